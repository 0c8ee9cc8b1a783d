package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/joseph-ayodele/bill-audit/internal/common"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error without leaking internal details.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error:     errorEnvelope{Code: code, Message: message},
	})
}

// writeAppError maps an application error onto a status and envelope.
func writeAppError(c *fiber.Ctx, err error) error {
	return writeError(c, httpStatus(err), common.ErrorCode(err), common.PublicMessage(err))
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, common.ErrNotReady):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, common.CodeNotFound, "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "TOO_LARGE", "upload exceeds the size limit")
		default:
			return writeError(c, status, common.CodeInternal, "internal server error")
		}
	}
}
