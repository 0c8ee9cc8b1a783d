// Package server exposes the audit service over HTTP (Fiber) and gRPC.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/bill-audit/internal/audit"
	"github.com/joseph-ayodele/bill-audit/internal/common"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
	"github.com/joseph-ayodele/bill-audit/internal/jobs"
)

// AuditAPI is the part of *audit.Service the transports use.
type AuditAPI interface {
	Submit(ctx context.Context, req audit.SubmitRequest) (uuid.UUID, error)
	Poll(ctx context.Context, id uuid.UUID) (jobs.Status, error)
	Report(ctx context.Context, id uuid.UUID) (io.ReadCloser, audit.ReportInfo, error)
	List(ctx context.Context, limit int) ([]entity.AuditRun, error)
}

// HealthFunc reports whether dependencies are reachable; nil means healthy.
type HealthFunc func(ctx context.Context) error

// HTTPConfig configures the HTTP app.
type HTTPConfig struct {
	MaxUploadMB int
	Registry    *prometheus.Registry
	Health      HealthFunc
	Logger      *slog.Logger
}

// NewHTTP builds the Fiber app with middleware and routes attached.
func NewHTTP(api AuditAPI, cfg HTTPConfig) (*fiber.App, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 256
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	app := fiber.New(fiber.Config{
		AppName:               "bill-audit",
		BodyLimit:             cfg.MaxUploadMB << 20,
		ErrorHandler:          ErrorHandler(),
		DisableStartupMessage: true,
	})

	prom, err := NewPrometheusMiddleware(cfg.Registry)
	if err != nil {
		return nil, err
	}
	app.Use(RequestID())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || c.Path() == "/health"
	})))
	app.Use(Logger(cfg.Logger))
	app.Use(prom.Handler())

	h := &handlers{api: api, health: cfg.Health, logger: cfg.Logger}
	app.Get("/health", h.healthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))

	v1 := app.Group("/api/v1")
	v1.Post("/audits", h.submit)
	v1.Get("/audits", h.list)
	v1.Get("/audits/:id", h.poll)
	v1.Get("/audits/:id/report", h.report)
	return app, nil
}

type handlers struct {
	api    AuditAPI
	health HealthFunc
	logger *slog.Logger
}

// pollResponse adds the download location once a report exists.
type pollResponse struct {
	jobs.Status
	ReportURL string `json:"report_url,omitempty"`
}

func (h *handlers) healthCheck(c *fiber.Ctx) error {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.logger.Warn("health.check.failed", "error", err)
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
	}
	return c.JSON(fiber.Map{"status": "healthy"})
}

func (h *handlers) submit(c *fiber.Ctx) error {
	zipHeader, err := c.FormFile("zip_file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, common.CodeInvalidInput, "zip_file is required")
	}
	archive, err := zipHeader.Open()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, common.CodeInvalidInput, "cannot open zip_file")
	}
	defer func() { _ = archive.Close() }()

	req := audit.SubmitRequest{ArchiveName: zipHeader.Filename, Archive: archive}

	var ledger multipart.File
	if csvHeader, err := c.FormFile("csv_file"); err == nil {
		if ledger, err = csvHeader.Open(); err != nil {
			return writeError(c, fiber.StatusBadRequest, common.CodeInvalidInput, "cannot open csv_file")
		}
		defer func() { _ = ledger.Close() }()
		req.LedgerName, req.Ledger = csvHeader.Filename, ledger
	}

	id, err := h.api.Submit(c.UserContext(), req)
	if err != nil {
		return writeAppError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": id})
}

func (h *handlers) poll(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return writeAppError(c, err)
	}
	st, err := h.api.Poll(c.UserContext(), id)
	if err != nil {
		return writeAppError(c, err)
	}
	res := pollResponse{Status: st}
	if st.ReportKey != "" {
		res.ReportURL = "/api/v1/audits/" + id.String() + "/report"
	}
	return c.JSON(res)
}

func (h *handlers) report(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return writeAppError(c, err)
	}
	rc, info, err := h.api.Report(c.UserContext(), id)
	if err != nil {
		return writeAppError(c, err)
	}
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	if err != nil {
		return writeAppError(c, errors.Join(common.ErrStorage, err))
	}
	c.Attachment(info.FileName)
	c.Set(fiber.HeaderContentType, info.ContentType)
	return c.Send(body)
}

func (h *handlers) list(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 {
		return writeError(c, fiber.StatusBadRequest, common.CodeInvalidInput, "invalid limit")
	}
	runs, err := h.api.List(c.UserContext(), limit)
	if err != nil {
		return writeAppError(c, err)
	}
	if runs == nil {
		runs = []entity.AuditRun{}
	}
	return c.JSON(fiber.Map{"audits": runs})
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	return common.ParseID("id", c.Params("id"))
}
