package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const createVersionTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	checksum TEXT NOT NULL DEFAULT '',
	applied_at TEXT NOT NULL,
	execution_time_ms INTEGER NOT NULL DEFAULT 0
)`

type appliedRow struct {
	Version         string `db:"version"`
	Checksum        string `db:"checksum"`
	AppliedAt       string `db:"applied_at"`
	ExecutionTimeMS int64  `db:"execution_time_ms"`
}

// Executor runs migrations against a database and tracks them in the
// schema_migrations table.
type Executor struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewExecutor creates an Executor for db.
func NewExecutor(db *sqlx.DB) *Executor {
	return &Executor{db: db, now: time.Now}
}

// InitializeVersionTable creates schema_migrations when it is missing.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, createVersionTable); err != nil {
		return NewDatabaseError("", "create schema_migrations", err)
	}
	return nil
}

// Execute applies the migration and records it in one transaction.
func (e *Executor) Execute(ctx context.Context, migration Migration) (time.Duration, error) {
	started := e.now()

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, NewDatabaseError(migration.Version, "begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range splitStatements(migration.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, NewDatabaseError(migration.Version, fmt.Sprintf("execute statement %d", i+1), err)
		}
	}

	elapsed := e.now().Sub(started)
	row := appliedRow{
		Version:         migration.Version,
		Checksum:        migration.Checksum,
		AppliedAt:       e.now().UTC().Format(time.RFC3339),
		ExecutionTimeMS: elapsed.Milliseconds(),
	}
	const insert = `INSERT INTO schema_migrations (version, checksum, applied_at, execution_time_ms)
		VALUES (:version, :checksum, :applied_at, :execution_time_ms)`
	if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
		return 0, NewDatabaseError(migration.Version, "record migration", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, NewDatabaseError(migration.Version, "commit transaction", err)
	}
	return elapsed, nil
}

// Applied returns the recorded migrations ordered by version.
func (e *Executor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	var rows []appliedRow
	const query = `SELECT version, checksum, applied_at, execution_time_ms
		FROM schema_migrations ORDER BY CAST(version AS INTEGER) ASC`
	if err := e.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, NewDatabaseError("", "list applied migrations", err)
	}

	applied := make([]AppliedMigration, 0, len(rows))
	for _, row := range rows {
		appliedAt, err := time.Parse(time.RFC3339, row.AppliedAt)
		if err != nil {
			return nil, NewDatabaseError(row.Version, "parse applied_at", err)
		}
		applied = append(applied, AppliedMigration{
			Version:       row.Version,
			Checksum:      row.Checksum,
			AppliedAt:     appliedAt,
			ExecutionTime: time.Duration(row.ExecutionTimeMS) * time.Millisecond,
		})
	}
	return applied, nil
}
