package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Lowii-3dy/campus-sched/internal/persistence"
	"github.com/Lowii-3dy/campus-sched/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a private in-memory
// SQLite database for integration-style tests.
type SQLiteHarness struct {
	Storage       *sqlite.Storage
	Schedules     persistence.ScheduleRepository
	Events        persistence.EventRepository
	Approvals     persistence.ApprovalRepository
	Notifications persistence.NotificationRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates an in-memory database. Callers may
// invoke Close early; the helper also registers a cleanup with tb.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	storage, err := sqlite.OpenWithLogger(sqlite.InMemoryDSN, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:       storage,
		Schedules:     storage,
		Events:        storage,
		Approvals:     storage,
		Notifications: storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedSchedule stores the schedule fixture and fails the test on error.
func (h *SQLiteHarness) SeedSchedule(tb testing.TB, fixture ScheduleFixture) persistence.Schedule {
	tb.Helper()
	model := fixture.Persistence()
	if err := h.Schedules.CreateSchedule(context.Background(), model); err != nil {
		tb.Fatalf("failed to seed schedule %s: %v", model.ID, err)
	}
	return model
}

// SeedEvent stores the event fixture together with its approval record.
func (h *SQLiteHarness) SeedEvent(tb testing.TB, fixture EventFixture) persistence.Event {
	tb.Helper()
	model := fixture.Persistence()
	if err := h.Events.CreateEvent(context.Background(), model, fixture.Approval()); err != nil {
		tb.Fatalf("failed to seed event %s: %v", model.ID, err)
	}
	return model
}
