package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
)

// Manager orchestrates scanning, diffing and applying migrations.
type Manager struct {
	scanner  *Scanner
	executor *Executor
	logger   *slog.Logger
}

// NewManager creates a Manager. A nil logger falls back to slog.Default().
func NewManager(scanner *Scanner, executor *Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scanner: scanner, executor: executor, logger: logger.With("component", "migration")}
}

// Run applies every pending migration in version order and stops at the
// first failure.
func (m *Manager) Run(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)
	for _, migration := range status.Pending {
		elapsed, err := m.executor.Execute(ctx, migration)
		if err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"path", migration.Path,
				"error", err,
			)
			return NewMigrationError(migration.Version, migration.Path, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return nil
}

// Status reports applied and pending migrations. An applied migration whose
// file checksum changed yields ErrChecksumMismatch.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := m.scanner.Scan()
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}

	checksums := make(map[int]string, len(applied))
	status := Status{Applied: applied}
	for _, row := range applied {
		number, err := strconv.Atoi(row.Version)
		if err != nil {
			return Status{}, NewMigrationError(row.Version, "", "read applied version", ErrInvalidVersion)
		}
		checksums[number] = row.Checksum
		status.CurrentVersion = row.Version
	}

	for _, migration := range available {
		number, _ := strconv.Atoi(migration.Version)
		checksum, ok := checksums[number]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if checksum != "" && checksum != migration.Checksum {
			return Status{}, NewMigrationError(migration.Version, migration.Path, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}
