// Package app wires configuration into the running audit stack shared by the
// daemon and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/bill-audit/internal/audit"
	"github.com/joseph-ayodele/bill-audit/internal/common"
	"github.com/joseph-ayodele/bill-audit/internal/export"
	"github.com/joseph-ayodele/bill-audit/internal/ingest"
	"github.com/joseph-ayodele/bill-audit/internal/jobs"
	"github.com/joseph-ayodele/bill-audit/internal/matching"
	"github.com/joseph-ayodele/bill-audit/internal/metrics"
	"github.com/joseph-ayodele/bill-audit/internal/ocr"
	"github.com/joseph-ayodele/bill-audit/internal/ocr/native"
	"github.com/joseph-ayodele/bill-audit/internal/pipeline"
	"github.com/joseph-ayodele/bill-audit/internal/repository"
	"github.com/joseph-ayodele/bill-audit/internal/storage"
)

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg *common.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// LoadRules returns the scoring rules. A rules file wins over the threshold
// settings; without one the defaults take the configured thresholds.
func LoadRules(cfg common.AuditConfig) (matching.Rules, error) {
	if cfg.RulesFile != "" {
		return matching.LoadRules(cfg.RulesFile)
	}
	r := matching.DefaultRules()
	r.MatchThreshold = cfg.MatchThreshold
	r.ReviewThreshold = cfg.ReviewThreshold
	if err := r.Validate(); err != nil {
		return matching.Rules{}, err
	}
	return r, nil
}

// NewOCRBackend builds the extractor for the configured engine, wrapped in
// the on-disk cache when a cache path is set. The returned closer may be nil.
func NewOCRBackend(cfg common.OCRConfig, logger *slog.Logger) (ocr.Backend, io.Closer, error) {
	passes, err := ocr.ParsePasses(cfg.Passes)
	if err != nil {
		return nil, nil, err
	}

	runner := ocr.ExecRunner{Logger: logger}
	var engine ocr.Engine
	switch cfg.Engine {
	case "native":
		engine = native.NewEngine(cfg.TessdataDir, strings.Split(cfg.Language, "+")...)
	default:
		engine = ocr.CLIEngine{
			Runner:      runner,
			Bin:         cfg.Tesseract,
			Language:    cfg.Language,
			TessdataDir: cfg.TessdataDir,
		}
	}
	ext := ocr.NewExtractor(ocr.Config{
		Pdftoppm:      cfg.Pdftoppm,
		HeicConverter: cfg.HeicConverter,
		Passes:        passes,
	}, engine, logger, ocr.WithRunner(runner))

	if cfg.CachePath == "" {
		return ext, nil, nil
	}
	cached, err := ocr.OpenCache(cfg.CachePath, ext, passes, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open ocr cache: %w", err)
	}
	return cached, cached, nil
}

// Stack is the assembled audit service and the resources behind it.
type Stack struct {
	Audit     *audit.Service
	DB        *repository.DB
	Artifacts storage.ArtifactStore
	Metrics   *metrics.Pipeline

	closers []io.Closer
	logger  *slog.Logger
}

// Build opens every dependency named in cfg. reg may be nil to skip metrics.
func Build(ctx context.Context, cfg *common.Config, reg prometheus.Registerer, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st := &Stack{logger: logger}

	rules, err := LoadRules(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	if reg != nil {
		if st.Metrics, err = metrics.NewPipeline(reg); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	if st.Artifacts, err = storage.New(cfg.Storage, logger); err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	backend, closer, err := NewOCRBackend(cfg.OCR, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		st.closers = append(st.closers, closer)
	}

	var repo repository.AuditRunRepository
	if cfg.Database.DSN != "" {
		if st.DB, err = repository.Open(ctx, cfg.Database, logger); err != nil {
			st.Close()
			return nil, fmt.Errorf("open database: %w", err)
		}
		repo = repository.NewAuditRunRepository(st.DB.DB, st.DB.Dialect, logger)
	}

	proc := pipeline.NewProcessor(pipeline.Config{
		Rules:      rules,
		OCRWorkers: cfg.OCR.Workers,
		DocTimeout: cfg.OCR.DocTimeout,
		Limits:     ingest.DefaultLimits,
	}, backend, export.NewService(logger), st.Artifacts, st.Metrics, logger)

	queue := jobs.NewQueue(logger,
		jobs.WithWorkers(cfg.Audit.JobWorkers),
		jobs.WithQueueSize(cfg.Audit.JobQueueSize),
		jobs.WithRunTimeout(cfg.Audit.JobTimeout),
	)
	st.Audit = audit.NewService(audit.Config{
		WorkDir:   cfg.Audit.WorkDir,
		Retention: cfg.Audit.JobRetention,
	}, jobs.NewStore(), queue, proc, st.Artifacts, repo, logger)
	return st, nil
}

// Health pings the database when one is configured.
func (s *Stack) Health(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return repository.HealthCheck(ctx, s.DB, 0, s.logger)
}

// Shutdown drains running audits, then releases resources.
func (s *Stack) Shutdown(ctx context.Context) {
	if s.Audit != nil {
		s.Audit.Shutdown(ctx)
	}
	s.Close()
}

// Close releases the database and caches.
func (s *Stack) Close() {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("app.close.failed", "error", err)
	}
	repository.Close(s.DB, s.logger)
	s.DB = nil
}
