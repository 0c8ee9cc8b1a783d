// Package audit is the job control surface shared by the HTTP, gRPC and CLI
// front ends: it validates submissions, queues audit runs, serves progress
// polls and hands out finished reports.
package audit

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/common"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
	"github.com/joseph-ayodele/bill-audit/internal/ingest"
	"github.com/joseph-ayodele/bill-audit/internal/jobs"
	"github.com/joseph-ayodele/bill-audit/internal/ledger"
	"github.com/joseph-ayodele/bill-audit/internal/pipeline"
	"github.com/joseph-ayodele/bill-audit/internal/repository"
	"github.com/joseph-ayodele/bill-audit/internal/storage"
)

// ReportFileName is the download name of every report.
const ReportFileName = "Purchase_Audit_Report.xlsx"

// Runner executes one audit job; *pipeline.Processor implements it.
type Runner interface {
	Run(ctx context.Context, job *jobs.Job, in pipeline.Input) (pipeline.Result, error)
}

// SubmitRequest carries the uploaded files of one audit. Ledger is optional.
type SubmitRequest struct {
	ArchiveName string
	Archive     io.Reader
	LedgerName  string
	Ledger      io.Reader
}

// ReportInfo describes a downloadable report.
type ReportInfo struct {
	FileName    string
	ContentType string
	Size        int64
}

// Config tunes the Service.
type Config struct {
	WorkDir   string
	Retention time.Duration
}

// Service owns the job registry and the worker queue. The repository is
// optional; without one finished runs are only visible until swept.
type Service struct {
	cfg       Config
	store     *jobs.Store
	queue     *jobs.Queue
	runner    Runner
	artifacts storage.ArtifactStore
	repo      repository.AuditRunRepository
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	runs map[uuid.UUID]*entity.AuditRun
}

func NewService(cfg Config, store *jobs.Store, queue *jobs.Queue, runner Runner, artifacts storage.ArtifactStore, repo repository.AuditRunRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	return &Service{
		cfg:       cfg,
		store:     store,
		queue:     queue,
		runner:    runner,
		artifacts: artifacts,
		repo:      repo,
		logger:    logger,
		now:       time.Now,
		runs:      make(map[uuid.UUID]*entity.AuditRun),
	}
}

// Submit validates the upload synchronously and queues the audit. Invalid
// input is rejected before any job exists.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	v := common.NewValidator().
		Field("zip_file", req.ArchiveName, common.Required, common.Extension(map[string]struct{}{"zip": {}}))
	if req.Ledger != nil {
		v.Field("csv_file", req.LedgerName, common.Required, common.Extension(constants.LedgerExtensions))
	}
	if req.Archive == nil {
		v.Field("zip_file", nil, common.Required)
	}
	if err := v.Err(); err != nil {
		return uuid.Nil, err
	}

	workDir, err := os.MkdirTemp(s.cfg.WorkDir, "audit-*")
	if err != nil {
		return uuid.Nil, common.NewAppError(common.CodeInternal, "could not create work directory", fmt.Errorf("%w: %w", common.ErrInternal, err))
	}
	in, err := s.stage(workDir, req)
	if err != nil {
		_ = os.RemoveAll(workDir)
		s.logger.Info("audit.submit.rejected", "archive", req.ArchiveName, "error", err)
		return uuid.Nil, err
	}

	job := s.store.Create()
	job.Advance(pipeline.ProgressQueued, "Queued")
	job.Log(constants.SeverityInfo, "Audit queued")

	run := &entity.AuditRun{
		ID:          job.ID,
		Status:      string(constants.JobStatusProcessing),
		CreatedAt:   job.Snapshot(false).CreatedAt,
		ArchiveName: in.ArchiveName,
		LedgerName:  in.LedgerName,
	}
	s.mu.Lock()
	s.runs[job.ID] = run
	s.mu.Unlock()
	if s.repo != nil {
		if err := s.repo.Create(ctx, run); err != nil {
			s.logger.Warn("audit.persist.failed", "job_id", job.ID, "error", err)
		}
	}

	task := jobs.Task{Job: job, Run: func(ctx context.Context, j *jobs.Job) error {
		ctx = common.WithJobID(ctx, j.ID.String())
		_, err := s.runner.Run(ctx, j, in)
		if err != nil {
			j.Fail(err)
		}
		s.persist(j)
		return err
	}}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		job.Fail(err)
		s.persist(job)
		// The caller never learns the id, so the job is not kept for polling.
		s.store.Delete(job.ID)
		_ = os.RemoveAll(workDir)
		return uuid.Nil, common.NewAppError(common.CodeInternal, "could not queue audit", fmt.Errorf("%w: %w", common.ErrInternal, err))
	}

	s.logger.Info("audit.submit.ok",
		"job_id", job.ID,
		"request_id", common.RequestIDFromContext(ctx),
		"archive", in.ArchiveName,
		"ledger", in.LedgerName,
	)
	return job.ID, nil
}

// stage writes the uploads into workDir and checks that they can be read.
func (s *Service) stage(workDir string, req SubmitRequest) (pipeline.Input, error) {
	in := pipeline.Input{
		ArchiveName: filepath.Base(req.ArchiveName),
		WorkDir:     workDir,
	}
	uploads := filepath.Join(workDir, "upload")
	if err := os.MkdirAll(uploads, 0o755); err != nil {
		return in, fmt.Errorf("%w: %w", common.ErrInternal, err)
	}

	in.ArchivePath = filepath.Join(uploads, "bills.zip")
	if err := writeUpload(in.ArchivePath, req.Archive); err != nil {
		return in, err
	}
	n, err := countBills(in.ArchivePath)
	if err != nil {
		return in, common.InputError("zip_file is not a readable ZIP archive")
	}
	if n == 0 {
		return in, common.InputError("zip_file contains no bill files (allowed: pdf, jpg, jpeg, png, heic, webp)")
	}

	if req.Ledger == nil {
		return in, nil
	}
	in.LedgerName = filepath.Base(req.LedgerName)
	in.LedgerPath = filepath.Join(uploads, "ledger"+filepath.Ext(in.LedgerName))
	if err := writeUpload(in.LedgerPath, req.Ledger); err != nil {
		return in, err
	}
	if _, err := ledger.Load(in.LedgerPath); err != nil {
		return in, err
	}
	return in, nil
}

func writeUpload(dst string, r io.Reader) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInternal, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", common.ErrInternal, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInternal, err)
	}
	return nil
}

// countBills counts archive entries that Collect would pick up.
func countBills(archivePath string) (int, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = zr.Close() }()
	n := 0
	for _, f := range zr.File {
		name := path.Clean(f.Name)
		if f.FileInfo().IsDir() || constants.IsIgnoredPath(name) || ingest.IsHidden(name) {
			continue
		}
		if ingest.AllowedExt(path.Ext(name)) {
			n++
		}
	}
	return n, nil
}

// persist records a terminal job in the run index and the repository.
func (s *Service) persist(j *jobs.Job) {
	st := j.Snapshot(false)
	s.mu.Lock()
	run, ok := s.runs[j.ID]
	if !ok {
		run = &entity.AuditRun{ID: j.ID, CreatedAt: st.CreatedAt}
		s.runs[j.ID] = run
	}
	run.Status = string(st.Status)
	run.FinishedAt = st.FinishedAt
	if st.ReportKey != "" {
		key := st.ReportKey
		run.ReportKey = &key
	}
	if st.Error != "" {
		msg := st.Error
		run.ErrorMessage = &msg
	}
	if st.Summary != nil {
		if b, err := json.Marshal(st.Summary); err == nil {
			run.Summary = b
		}
	}
	cp := *run
	s.mu.Unlock()

	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.repo.Finish(ctx, &cp); err != nil {
		s.logger.Warn("audit.persist.failed", "job_id", j.ID, "error", err)
	}
}

// Poll returns the job state and the log lines not yet delivered. Runs no
// longer in memory are served from the repository without log lines.
func (s *Service) Poll(ctx context.Context, id uuid.UUID) (jobs.Status, error) {
	if st, ok := s.store.Poll(id); ok {
		return st, nil
	}
	run, err := s.lookup(ctx, id)
	if err != nil {
		return jobs.Status{}, err
	}
	return statusFromRun(run)
}

func (s *Service) lookup(ctx context.Context, id uuid.UUID) (*entity.AuditRun, error) {
	if s.repo != nil {
		return s.repo.Get(ctx, id)
	}
	return nil, common.NewAppError(common.CodeNotFound, "audit not found", common.ErrNotFound)
}

func statusFromRun(run *entity.AuditRun) (jobs.Status, error) {
	sum, err := run.DecodeSummary()
	if err != nil {
		return jobs.Status{}, fmt.Errorf("%w: decode summary: %w", common.ErrInternal, err)
	}
	st := jobs.Status{
		ID:         run.ID,
		Status:     constants.JobStatus(run.Status),
		Logs:       []jobs.LogEntry{},
		Summary:    sum,
		CreatedAt:  run.CreatedAt,
		FinishedAt: run.FinishedAt,
	}
	switch st.Status {
	case constants.JobStatusDone:
		st.Progress, st.Step = 100, jobs.StepComplete
	case constants.JobStatusError:
		st.Step = "Failed"
	}
	if run.ReportKey != nil {
		st.ReportKey = *run.ReportKey
	}
	if run.ErrorMessage != nil {
		st.Error = *run.ErrorMessage
	}
	return st, nil
}

// Report opens the finished report of a job.
func (s *Service) Report(ctx context.Context, id uuid.UUID) (io.ReadCloser, ReportInfo, error) {
	var st jobs.Status
	if j, ok := s.store.Get(id); ok {
		st = j.Snapshot(false)
	} else {
		run, err := s.lookup(ctx, id)
		if err != nil {
			return nil, ReportInfo{}, err
		}
		if st, err = statusFromRun(run); err != nil {
			return nil, ReportInfo{}, err
		}
	}

	switch {
	case st.Status == constants.JobStatusError:
		return nil, ReportInfo{}, common.NewAppError(common.CodeNotReady, "audit failed; no report was produced", common.ErrNotReady)
	case st.Status != constants.JobStatusDone || st.ReportKey == "":
		return nil, ReportInfo{}, common.NewAppError(common.CodeNotReady, "report not ready", common.ErrNotReady)
	}

	rc, info, err := s.artifacts.Get(ctx, st.ReportKey)
	if err != nil {
		return nil, ReportInfo{}, err
	}
	ct := info.ContentType
	if ct == "" {
		ct = pipeline.ReportContentType
	}
	return rc, ReportInfo{FileName: ReportFileName, ContentType: ct, Size: info.Size}, nil
}

// List returns recent runs, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]entity.AuditRun, error) {
	if limit <= 0 {
		limit = 50
	}
	if s.repo != nil {
		return s.repo.List(ctx, limit)
	}
	s.mu.Lock()
	out := make([]entity.AuditRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, *r)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Sweep forgets finished jobs older than the retention period. Without a
// repository nothing else refers to a swept run, so its report is deleted too.
func (s *Service) Sweep() int {
	n := s.store.Sweep(s.now().Add(-s.cfg.Retention))
	var orphaned []string
	s.mu.Lock()
	for id, r := range s.runs {
		if _, ok := s.store.Get(id); ok {
			continue
		}
		delete(s.runs, id)
		if s.repo == nil && r.ReportKey != nil {
			orphaned = append(orphaned, *r.ReportKey)
		}
	}
	s.mu.Unlock()

	if len(orphaned) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, key := range orphaned {
			if err := s.artifacts.Delete(ctx, key); err != nil && !errors.Is(err, common.ErrNotFound) {
				s.logger.Warn("audit.janitor.delete_failed", "key", key, "error", err)
			}
		}
	}
	if n > 0 {
		s.logger.Info("audit.janitor.swept", "jobs", n, "reports", len(orphaned), "remaining", s.store.Len())
	}
	return n
}

// StartJanitor sweeps on every interval until ctx ends.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}

// Shutdown drains the queue.
func (s *Service) Shutdown(ctx context.Context) {
	s.queue.Shutdown(ctx)
}
