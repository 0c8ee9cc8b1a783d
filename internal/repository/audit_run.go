package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/bill-audit/internal/common"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
)

const auditRunsTable = "audit_runs"

var auditRunColumns = []string{
	"id", "status", "archive_name", "ledger_name", "report_key",
	"error_message", "summary", "created_at", "finished_at",
}

// AuditRunRepository stores one row per audit job.
type AuditRunRepository interface {
	Create(ctx context.Context, run *entity.AuditRun) error
	Finish(ctx context.Context, run *entity.AuditRun) error
	Get(ctx context.Context, id uuid.UUID) (*entity.AuditRun, error)
	List(ctx context.Context, limit int) ([]entity.AuditRun, error)
}

type auditRunRepo struct {
	db      *sql.DB
	dialect string
	log     *slog.Logger
}

func NewAuditRunRepository(db *sql.DB, dialect string, log *slog.Logger) AuditRunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &auditRunRepo{db: db, dialect: dialect, log: log}
}

func (r *auditRunRepo) Create(ctx context.Context, run *entity.AuditRun) error {
	query, args := entsql.Dialect(r.dialect).
		Insert(auditRunsTable).
		Columns("id", "status", "archive_name", "ledger_name", "created_at").
		Values(run.ID.String(), run.Status, run.ArchiveName, run.LedgerName, run.CreatedAt).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.log.Error("audit_run create failed", "job_id", run.ID, "err", err)
		return dbError(err)
	}
	r.log.Debug("audit_run created", "job_id", run.ID)
	return nil
}

func (r *auditRunRepo) Finish(ctx context.Context, run *entity.AuditRun) error {
	var summary any
	if len(run.Summary) > 0 {
		summary = string(run.Summary)
	}
	query, args := entsql.Dialect(r.dialect).
		Update(auditRunsTable).
		Set("status", run.Status).
		Set("finished_at", nullTime(run)).
		Set("report_key", nullString(run.ReportKey)).
		Set("error_message", nullString(run.ErrorMessage)).
		Set("summary", summary).
		Where(entsql.EQ("id", run.ID.String())).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("audit_run finish failed", "job_id", run.ID, "err", err)
		return dbError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError(common.CodeNotFound, "audit run not found", common.ErrNotFound)
	}
	r.log.Info("audit_run finished", "job_id", run.ID, "status", run.Status)
	return nil
}

func (r *auditRunRepo) Get(ctx context.Context, id uuid.UUID) (*entity.AuditRun, error) {
	query, args := entsql.Dialect(r.dialect).
		Select(auditRunColumns...).
		From(entsql.Table(auditRunsTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	run, err := scanRun(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError(common.CodeNotFound, "audit not found", common.ErrNotFound)
	}
	if err != nil {
		return nil, dbError(err)
	}
	return run, nil
}

// List returns the most recent runs first.
func (r *auditRunRepo) List(ctx context.Context, limit int) ([]entity.AuditRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query, args := entsql.Dialect(r.dialect).
		Select(auditRunColumns...).
		From(entsql.Table(auditRunsTable)).
		OrderBy(entsql.Desc("created_at")).
		Limit(limit).
		Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.AuditRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, dbError(err)
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*entity.AuditRun, error) {
	var (
		run                        entity.AuditRun
		id                         string
		reportKey, errMsg, summary sql.NullString
		finishedAt                 sql.NullTime
	)
	if err := s.Scan(&id, &run.Status, &run.ArchiveName, &run.LedgerName, &reportKey, &errMsg, &summary, &run.CreatedAt, &finishedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("audit run id %q: %w", id, err)
	}
	run.ID = parsed
	if reportKey.Valid {
		run.ReportKey = &reportKey.String
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	if summary.Valid && summary.String != "" {
		run.Summary = []byte(summary.String)
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(run *entity.AuditRun) any {
	if run.FinishedAt == nil {
		return nil
	}
	return *run.FinishedAt
}

func dbError(err error) error {
	return errors.Join(common.ErrDatabase, err)
}
