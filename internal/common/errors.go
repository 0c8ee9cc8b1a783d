package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotReady     = errors.New("not ready")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrStorage      = errors.New("storage error")
)

// Error codes surfaced to API clients.
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeNotFound     = "NOT_FOUND"
	CodeNotReady     = "NOT_READY"
	CodeInternal     = "INTERNAL_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// InputError builds an AppError for a rejected submission.
func InputError(format string, args ...any) *AppError {
	return NewAppError(CodeInvalidInput, fmt.Sprintf(format, args...), ErrInvalidInput)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// PublicMessage returns the message safe to show to clients.
func PublicMessage(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid input"
	case errors.Is(err, ErrNotReady):
		return "resource not ready"
	}
	return "internal server error"
}

// ErrorCode classifies err into one of the Code* constants.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrNotReady):
		return CodeNotReady
	}
	return CodeInternal
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func FailedPreconditionError(message string) error {
	return status.Error(codes.FailedPrecondition, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

// ToGRPCError maps an application error onto a gRPC status.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	msg := PublicMessage(err)
	switch ErrorCode(err) {
	case CodeInvalidInput:
		return InvalidArgumentError(msg)
	case CodeNotFound:
		return NotFoundError(msg)
	case CodeNotReady:
		return FailedPreconditionError(msg)
	}
	return InternalError(msg)
}
