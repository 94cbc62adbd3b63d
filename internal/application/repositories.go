package application

import (
	"context"
	"errors"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/persistence"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

// ScheduleRepository captures the persistence interactions needed for schedules.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, schedule Schedule) error
	UpdateSchedule(ctx context.Context, schedule Schedule) error
	GetSchedule(ctx context.Context, id string) (Schedule, error)
	ListSchedules(ctx context.Context, filter ScheduleListFilter) ([]Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
}

// ScheduleListFilter narrows schedule listings. A zero filter lists all schedules.
type ScheduleListFilter struct {
	OwnerID       string
	IncludePublic bool
}

// EventRepository stores events. CreateEvent stores the approval record in
// the same transaction.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event, record approval.Record) error
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, filter EventListFilter) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// EventListFilter narrows event listings. StartsBefore and EndsAfter select
// events intersecting a window; recurring events always pass EndsAfter.
type EventListFilter struct {
	ScheduleID   string
	StartsBefore *time.Time
	EndsAfter    *time.Time
}

// EventSource feeds the scheduling engine with snapshots of stored events.
type EventSource interface {
	FetchScheduleEvents(ctx context.Context, scheduleID string) ([]scheduler.Event, error)
	FetchFacilityEvents(ctx context.Context, building, room string) ([]scheduler.Event, error)
	FetchLocatedEvents(ctx context.Context) ([]scheduler.Event, error)
}

// IntervalStore moves events in time without touching their status.
type IntervalStore interface {
	PersistEventInterval(ctx context.Context, eventID string, interval scheduler.Interval) (scheduler.Event, error)
}

// ApprovalStore persists approval records.
type ApprovalStore interface {
	GetApproval(ctx context.Context, eventID string) (approval.Record, error)
	// PersistApprovalTransition stores record when the stored status still
	// equals expected. Implementations update the event status in the same
	// transaction and report a lost race as persistence.ErrStale.
	PersistApprovalTransition(ctx context.Context, eventID string, expected approval.Status, record approval.Record, transition approval.Transition) (approval.Record, error)
	ListApprovals(ctx context.Context, filter ApprovalListFilter) ([]approval.Record, int, error)
	CountApprovals(ctx context.Context, status approval.Status) (int, error)
}

// ApprovalListFilter narrows approval listings.
type ApprovalListFilter struct {
	Status      approval.Status
	OrganizerID string
	Offset      int
	Limit       int
}

// NotificationRepository stores user notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error)
	PurgeNotifications(ctx context.Context, readBefore time.Time) (int, error)
}

// LifecycleAction names an event lifecycle message.
type LifecycleAction string

const (
	LifecycleCreated LifecycleAction = "created"
	LifecycleUpdated LifecycleAction = "updated"
	LifecycleDeleted LifecycleAction = "deleted"
)

// EventPublisher broadcasts domain changes to other systems. Publish errors
// are logged by the services and never fail the request.
type EventPublisher interface {
	PublishApprovalTransition(ctx context.Context, record approval.Record, transition approval.Transition) error
	PublishEventLifecycle(ctx context.Context, action LifecycleAction, event Event) error
}

// Notifier delivers a message to a user.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}

// mapRepoError translates persistence failures into application errors.
// Anything unrecognised is reported as an unavailable collaborator.
func mapRepoError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isNotFoundError(err):
		return ErrNotFound
	case errors.Is(err, ErrStale), errors.Is(err, persistence.ErrStale):
		return ErrStale
	case errors.Is(err, persistence.ErrOverlap):
		return &ConflictError{Scope: ConflictScopeSchedule}
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("interval", "start must be before end")
		return vErr
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("schedule_id", "related records are missing")
		return vErr
	}
	var conflict *ConflictError
	var vErr *ValidationError
	if errors.As(err, &conflict) || errors.As(err, &vErr) {
		return err
	}
	return unavailable(operation, err)
}
