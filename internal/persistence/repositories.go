package persistence

import (
	"context"
	"time"
)

// ScheduleFilter narrows schedule queries. A zero filter lists every schedule.
type ScheduleFilter struct {
	OwnerID       string
	IncludePublic bool
}

// ScheduleRepository stores schedules.
type ScheduleRepository interface {
	CreateSchedule(ctx context.Context, schedule Schedule) error
	UpdateSchedule(ctx context.Context, schedule Schedule) error
	GetSchedule(ctx context.Context, id string) (Schedule, error)
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
}

// EventFilter narrows event queries. Empty fields are ignored.
type EventFilter struct {
	ScheduleID string
	Building   string
	Room       string
	Statuses   []string
	// Order defaults to EventOrderStart.
	Order EventOrder
	// StartsBefore and EndsAfter select events intersecting a window.
	// Recurring events pass EndsAfter regardless of their first instance so
	// that later occurrences can be expanded.
	StartsBefore *time.Time
	EndsAfter    *time.Time
}

// EventOrder selects the ordering of ListEvents results.
type EventOrder int

const (
	// EventOrderStart sorts by start time, then insertion.
	EventOrderStart EventOrder = iota
	// EventOrderInsertion keeps the order in which events were created. The
	// overlap checker reports the first conflict in this order.
	EventOrderInsertion
)

// EventRepository stores events together with their approval records.
//
// CreateEvent, UpdateEvent and UpdateEventInterval re-check schedule overlap
// inside their transaction when the stored event occupies its slot, returning
// ErrOverlap when a concurrent writer booked the same time first.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event, approval Approval) error
	UpdateEvent(ctx context.Context, event Event) error
	UpdateEventInterval(ctx context.Context, id string, start, end time.Time, updatedAt time.Time) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// ApprovalFilter narrows approval listings.
type ApprovalFilter struct {
	Status      string
	OrganizerID string
	Offset      int
	Limit       int
}

// ApprovalRepository stores approval records and their history.
type ApprovalRepository interface {
	GetApprovalByEvent(ctx context.Context, eventID string) (Approval, error)
	ListApprovals(ctx context.Context, filter ApprovalFilter) ([]Approval, int, error)
	CountApprovals(ctx context.Context, status string) (int, error)
	// AppendApprovalTransition stores the transition when the approval is
	// still in expectedStatus, updating the event status in the same
	// transaction. It returns ErrStale when the status moved on.
	AppendApprovalTransition(ctx context.Context, approval Approval, expectedStatus string, transition ApprovalTransition) (Approval, error)
}

// NotificationRepository stores user notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error)
	PurgeNotifications(ctx context.Context, readBefore time.Time) (int, error)
}
