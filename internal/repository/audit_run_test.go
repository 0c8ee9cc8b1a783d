package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/bill-audit/internal/common"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
)

var runColumns = []string{"id", "status", "archive_name", "ledger_name", "report_key", "error_message", "summary", "created_at", "finished_at"}

func newMockRepo(t *testing.T) (AuditRunRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAuditRunRepository(db, dialect.Postgres, nil), mock
}

func TestAuditRun_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	run := &entity.AuditRun{ID: uuid.New(), Status: "processing", ArchiveName: "bills.zip", LedgerName: "ledger.csv", CreatedAt: now}

	mock.ExpectExec(`INSERT INTO "audit_runs"`).
		WithArgs(run.ID.String(), "processing", "bills.zip", "ledger.csv", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRun_CreateError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`INSERT INTO "audit_runs"`).WillReturnError(errors.New("connection refused"))

	err := repo.Create(context.Background(), &entity.AuditRun{ID: uuid.New()})
	assert.ErrorIs(t, err, common.ErrDatabase)
}

func TestAuditRun_Finish(t *testing.T) {
	repo, mock := newMockRepo(t)
	finished := time.Now().UTC()
	key := "audit_12345678.xlsx"
	run := &entity.AuditRun{
		ID:         uuid.New(),
		Status:     "done",
		FinishedAt: &finished,
		ReportKey:  &key,
		Summary:    json.RawMessage(`{"total":2}`),
	}

	t.Run("updated", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "audit_runs" SET (.+) WHERE (.+)`).
			WithArgs("done", finished, key, nil, `{"total":2}`, run.ID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Finish(context.Background(), run))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "audit_runs"`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Finish(context.Background(), run)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRun_Get(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	created := time.Now().UTC().Add(-time.Minute)
	finished := created.Add(30 * time.Second)

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(runColumns).
			AddRow(id.String(), "done", "bills.zip", "", "audit_x.xlsx", nil, `{"total":3,"matched":2}`, created, finished)
		mock.ExpectQuery(`SELECT (.+) FROM "audit_runs" WHERE (.+)`).
			WithArgs(id.String()).
			WillReturnRows(rows)

		run, err := repo.Get(context.Background(), id)

		require.NoError(t, err)
		assert.Equal(t, id, run.ID)
		assert.Equal(t, "done", run.Status)
		require.NotNil(t, run.ReportKey)
		assert.Equal(t, "audit_x.xlsx", *run.ReportKey)
		assert.Nil(t, run.ErrorMessage)
		require.NotNil(t, run.FinishedAt)
		assert.True(t, finished.Equal(*run.FinishedAt))
		sum, err := run.DecodeSummary()
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Matched)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM "audit_runs"`).
			WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows(runColumns))

		run, err := repo.Get(context.Background(), id)

		assert.Nil(t, run)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRun_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	msg := "no bill files found in archive"
	rows := sqlmock.NewRows(runColumns).
		AddRow(uuid.NewString(), "error", "b.zip", "", nil, msg, nil, now, now).
		AddRow(uuid.NewString(), "processing", "a.zip", "l.csv", nil, nil, nil, now.Add(-time.Hour), nil)
	mock.ExpectQuery(`SELECT (.+) FROM "audit_runs" ORDER BY "created_at" DESC LIMIT 10`).WillReturnRows(rows)

	runs, err := repo.List(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, msg, *runs[0].ErrorMessage)
	assert.Nil(t, runs[1].FinishedAt)
	assert.Empty(t, runs[1].Summary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRun_ListDefaultLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`LIMIT 50`).WillReturnRows(sqlmock.NewRows(runColumns))

	runs, err := repo.List(context.Background(), 0)

	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS audit_runs`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS audit_runs_created_at`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), &DB{DB: db, Dialect: dialect.Postgres}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverFor(t *testing.T) {
	name, dia, _, err := driverFor("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", name)
	assert.Equal(t, dialect.SQLite, dia)

	_, _, _, err = driverFor("mysql")
	assert.Error(t, err)
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), common.DatabaseConfig{Driver: "pgx"}, nil)
	assert.Error(t, err)
}
