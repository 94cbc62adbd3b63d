// Package sqlite implements the persistence repositories on SQLite using the
// pure Go modernc driver and sqlx for row mapping.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Lowii-3dy/campus-sched/internal/persistence"
	"github.com/Lowii-3dy/campus-sched/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// InMemoryDSN opens a private in-memory database with foreign keys enabled.
const InMemoryDSN = ":memory:?_pragma=foreign_keys(1)"

var (
	_ persistence.ScheduleRepository     = (*Storage)(nil)
	_ persistence.EventRepository        = (*Storage)(nil)
	_ persistence.ApprovalRepository     = (*Storage)(nil)
	_ persistence.NotificationRepository = (*Storage)(nil)
)

// Storage implements every persistence repository on a single SQLite
// database. Writes are serialised through one connection, which makes the
// overlap re-check inside a write transaction the commit point for bookings.
type Storage struct {
	pool   *ConnectionPool
	logger *slog.Logger
}

// Open connects to the database identified by dsn.
func Open(dsn string) (*Storage, error) {
	return OpenWithLogger(dsn, nil)
}

// OpenWithLogger connects to dsn and uses logger for migration output.
func OpenWithLogger(dsn string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(dsn)
	if err != nil {
		return nil, err
	}
	return &Storage{pool: pool, logger: logger}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.migrationManager().Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	return s.migrationManager().Status(ctx)
}

func (s *Storage) migrationManager() *migration.Manager {
	return migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewExecutor(s.pool.DB()),
		s.logger,
	)
}

// Ping verifies the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the database handle.
func (s *Storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// DB exposes the underlying handle for tooling and tests.
func (s *Storage) DB() *sqlx.DB {
	return s.pool.DB()
}
