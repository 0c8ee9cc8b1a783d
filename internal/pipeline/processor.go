// Package pipeline runs one audit job end to end: archive extraction, ledger
// parsing, OCR, matching, classification and report generation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
	"github.com/joseph-ayodele/bill-audit/internal/ingest"
	"github.com/joseph-ayodele/bill-audit/internal/jobs"
	"github.com/joseph-ayodele/bill-audit/internal/ledger"
	"github.com/joseph-ayodele/bill-audit/internal/matching"
	"github.com/joseph-ayodele/bill-audit/internal/metrics"
	"github.com/joseph-ayodele/bill-audit/internal/ocr"
	"github.com/joseph-ayodele/bill-audit/internal/storage"
	"github.com/joseph-ayodele/bill-audit/internal/telemetry"
)

// Progress milestones.
const (
	ProgressQueued    = 5
	ProgressExtracted = 8
	ProgressLedger    = 12
	ProgressFound     = 16
	ProgressOCRDone   = 66
	ProgressMatched   = 90
	ProgressReport    = 92
)

// ReportContentType is the MIME type of generated reports.
const ReportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// OCRBackend extracts the pages of one bill file.
type OCRBackend interface {
	ExtractDocument(ctx context.Context, path string) ([]ocr.PageText, error)
}

// ReportRenderer turns results into report bytes.
type ReportRenderer interface {
	RenderAudit(ctx context.Context, results []entity.MatchResult, summary entity.Summary) ([]byte, error)
}

// Input names the uploaded files of one job. An empty LedgerPath selects
// no-reference mode.
type Input struct {
	ArchivePath string
	ArchiveName string
	LedgerPath  string
	LedgerName  string
	// WorkDir is the job's scratch directory, removed when the run ends.
	WorkDir string
}

// Result is what a successful run produced.
type Result struct {
	Summary   entity.Summary
	ReportKey string
	Results   []entity.MatchResult
	Documents []*entity.Document
}

// Config tunes a Processor.
type Config struct {
	Rules      matching.Rules
	OCRWorkers int           // default 4
	DocTimeout time.Duration // 0 = unbounded
	Limits     ingest.Limits
}

// Processor executes audit jobs. It is safe for concurrent use; each Run
// works on its own job and input.
type Processor struct {
	cfg      Config
	ocr      OCRBackend
	renderer ReportRenderer
	store    storage.ArtifactStore
	matcher  *matching.Matcher
	metrics  *metrics.Pipeline
	tracer   trace.Tracer
	logger   *slog.Logger
}

func NewProcessor(cfg Config, backend OCRBackend, renderer ReportRenderer, store storage.ArtifactStore, m *metrics.Pipeline, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OCRWorkers <= 0 {
		cfg.OCRWorkers = 4
	}
	if cfg.Rules == (matching.Rules{}) {
		cfg.Rules = matching.DefaultRules()
	}
	if cfg.Limits == (ingest.Limits{}) {
		cfg.Limits = ingest.DefaultLimits
	}
	return &Processor{
		cfg:      cfg,
		ocr:      backend,
		renderer: renderer,
		store:    store,
		matcher:  matching.NewMatcher(cfg.Rules),
		metrics:  m,
		tracer:   otel.Tracer(telemetry.TracerName),
		logger:   logger,
	}
}

// ReportKey is the artifact key of a job's report.
func ReportKey(j *jobs.Job) string {
	return "audit_" + j.ID.String()[:8] + ".xlsx"
}

// Run executes every stage for job and completes it. Any returned error
// leaves the job to be failed by the caller; no artifact is stored then.
func (p *Processor) Run(ctx context.Context, job *jobs.Job, in Input) (res Result, err error) {
	start := time.Now()
	logger := p.logger.With("job_id", job.ID)
	finish := p.metrics.JobStarted()

	ctx, span := p.tracer.Start(ctx, "audit.run", trace.WithAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("audit.archive", in.ArchiveName),
		attribute.Bool("audit.ledger", in.LedgerPath != ""),
	))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
		status := string(constants.JobStatusDone)
		if err != nil {
			status = string(constants.JobStatusError)
			job.Log(constants.SeverityErr, "Audit failed: "+err.Error())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("pipeline.run.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		}
		finish(status)
		span.End()
		if in.WorkDir != "" {
			_ = os.RemoveAll(in.WorkDir)
		}
	}()

	job.Advance(ProgressQueued, "Queued")

	extractDir := filepath.Join(in.WorkDir, "bills")
	if err := p.stage(ctx, "audit.extract", func(ctx context.Context) error {
		st, err := ingest.ExtractZip(ctx, in.ArchivePath, extractDir, p.cfg.Limits, logger)
		if err != nil {
			return fmt.Errorf("extract archive: %w", err)
		}
		job.Advance(ProgressExtracted, "Archive extracted")
		job.Log(constants.SeverityInfo, fmt.Sprintf("Extracted %d files from %s", st.Extracted, in.ArchiveName))
		return nil
	}); err != nil {
		return Result{}, err
	}

	var records []entity.SourceRecord
	if in.LedgerPath != "" {
		if err := p.stage(ctx, "audit.ledger", func(context.Context) error {
			recs, err := ledger.Load(in.LedgerPath)
			if err != nil {
				return fmt.Errorf("read reference file: %w", err)
			}
			records = recs
			return nil
		}); err != nil {
			return Result{}, err
		}
		job.Advance(ProgressLedger, "Reference file loaded")
		job.Log(constants.SeverityOK, fmt.Sprintf("Loaded reference file: %d rows", len(records)))
	} else {
		job.Advance(ProgressLedger, "No reference file")
		job.Log(constants.SeverityInfo, "No reference file supplied; bills are listed without matching")
	}

	var files []ingest.BillFile
	if err := p.stage(ctx, "audit.collect", func(ctx context.Context) error {
		var err error
		files, _, err = ingest.Collect(ctx, extractDir, logger)
		if err != nil {
			return fmt.Errorf("enumerate bills: %w", err)
		}
		if len(files) == 0 {
			return errors.New("no bill files found in archive")
		}
		return nil
	}); err != nil {
		return Result{}, err
	}
	job.Advance(ProgressFound, "Bills enumerated")
	job.Log(constants.SeverityInfo, fmt.Sprintf("Found %d bill files in ZIP", len(files)))

	var docs []*entity.Document
	if err := p.stage(ctx, "audit.ocr", func(ctx context.Context) error {
		var err error
		docs, err = p.runOCR(ctx, job, files)
		return err
	}); err != nil {
		return Result{}, err
	}

	_, matchSpan := p.tracer.Start(ctx, "audit.match")
	results := p.match(job, records, docs)
	matchSpan.End()
	summary := matching.Summarize(results, docs)

	job.Advance(ProgressReport, "Generating report")
	key := ReportKey(job)
	if err := p.stage(ctx, "audit.report", func(ctx context.Context) error {
		body, err := p.renderer.RenderAudit(ctx, results, summary)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		if _, err := p.store.Put(ctx, key, bytesReader(body), storage.PutObjectOptions{
			Size:        int64(len(body)),
			ContentType: ReportContentType,
		}); err != nil {
			return fmt.Errorf("store report: %w", err)
		}
		return nil
	}); err != nil {
		return Result{}, err
	}

	job.Log(constants.SeverityOK, fmt.Sprintf("Report ready - %d matched, %d issues", summary.Matched, summary.Mismatch))
	job.Complete(summary, key)

	logger.Info("pipeline.run.ok",
		"records", summary.Total,
		"documents", summary.Documents,
		"matched", summary.Matched,
		"issues", summary.Mismatch,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Summary: summary, ReportKey: key, Results: results, Documents: docs}, nil
}

// stage runs fn inside a child span.
func (p *Processor) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
