// Package repository persists finished audit runs in Postgres (pgx) or
// SQLite (modernc) through database/sql.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/bill-audit/internal/common"
)

var sqlOpen = sql.Open

const migration = `CREATE TABLE IF NOT EXISTS audit_runs (
	id            VARCHAR(36) PRIMARY KEY,
	status        VARCHAR(16) NOT NULL,
	archive_name  TEXT NOT NULL,
	ledger_name   TEXT NOT NULL DEFAULT '',
	report_key    TEXT,
	error_message TEXT,
	summary       TEXT,
	created_at    TIMESTAMP NOT NULL,
	finished_at   TIMESTAMP
)`

const createdIndex = `CREATE INDEX IF NOT EXISTS audit_runs_created_at ON audit_runs (created_at)`

// DB is an open database together with the ent dialect used to build
// queries for it.
type DB struct {
	*sql.DB
	Dialect string
}

// driverFor maps the configured driver onto the database/sql driver name,
// the ent dialect and the semconv system attribute.
func driverFor(name string) (string, string, attribute.KeyValue, error) {
	switch name {
	case "pgx", "postgres":
		return "pgx", dialect.Postgres, semconv.DBSystemPostgreSQL, nil
	case "sqlite":
		return "sqlite", dialect.SQLite, semconv.DBSystemSqlite, nil
	}
	return "", "", attribute.KeyValue{}, fmt.Errorf("unsupported database driver %q", name)
}

// Open connects, applies pool settings, pings and migrates.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is empty")
	}
	driver, dia, system, err := driverFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	logger.Info("connecting to database", "driver", driver)
	name, err := otelsql.Register(driver,
		otelsql.WithAttributes(system),
		otelsql.WithSQLCommenter(dia == dialect.Postgres),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}
	db, err := sqlOpen(name, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	out := &DB{DB: db, Dialect: dia}
	if err := HealthCheck(ctx, out, cfg.DialTimeout, logger); err != nil {
		_ = db.Close()
		logger.Error("failed to connect to database", "error", err)
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := Migrate(ctx, out); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("successfully connected to database", "dialect", dia)
	return out, nil
}

// Migrate creates the audit_runs table when missing.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range []string{migration, createdIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the database connections gracefully
func Close(db *DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if err := db.DB.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
		return
	}
	logger.Info("database connections closed")
}

// HealthCheck pings with an optional timeout.
func HealthCheck(ctx context.Context, db *DB, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	logger.Debug("database ping successful")
	return nil
}
