package application

import (
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/recurrence"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

// DefaultColor is used for schedules and events created without a color.
const DefaultColor = "#3b82f6"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID             string
	Role               approval.Role
	CanCreateSchedules bool
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == approval.RoleAdmin
}

func (p Principal) actor() approval.Actor {
	return approval.Actor{ID: p.UserID, Role: p.Role}
}

// ScheduleInput captures caller provided schedule fields.
type ScheduleInput struct {
	Title           string
	Description     string
	Color           string
	IsPublic        bool
	IsClassSchedule bool
}

// Schedule is a calendar owned by a user.
type Schedule struct {
	ID              string
	OwnerID         string
	Title           string
	Description     string
	Color           string
	IsPublic        bool
	IsClassSchedule bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateScheduleParams wraps the data required to create a schedule.
type CreateScheduleParams struct {
	Principal Principal
	Input     ScheduleInput
}

// UpdateScheduleParams wraps the data required to update an existing schedule.
type UpdateScheduleParams struct {
	Principal  Principal
	ScheduleID string
	Input      ScheduleInput
}

// Recurrence describes how an event repeats.
type Recurrence struct {
	Frequency recurrence.Frequency
	Weekdays  []time.Weekday
	Until     *time.Time
}

// Rule converts the recurrence into an expansion rule.
func (r *Recurrence) Rule() recurrence.Rule {
	if r == nil {
		return recurrence.Rule{}
	}
	return recurrence.Rule{Frequency: r.Frequency, Weekdays: r.Weekdays, Until: r.Until}
}

// Event is an event booked on a schedule.
type Event struct {
	ID               string
	ScheduleID       string
	OrganizerID      string
	Title            string
	Description      string
	Interval         scheduler.Interval
	Location         *scheduler.Location
	Color            string
	Status           approval.Status
	RequiresApproval bool
	Recurrence       *Recurrence
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Engine returns the event as seen by the scheduling engine.
func (e Event) Engine() scheduler.Event {
	out := scheduler.Event{
		ID:               e.ID,
		ScheduleID:       e.ScheduleID,
		Title:            e.Title,
		Interval:         e.Interval,
		Status:           e.Status,
		OrganizerID:      e.OrganizerID,
		RequiresApproval: e.RequiresApproval,
	}
	if e.Location != nil {
		loc := *e.Location
		out.Location = &loc
	}
	return out
}

// EventInput captures caller provided event fields. Start and End are
// ISO-8601 timestamps; naive values are read in the service location.
type EventInput struct {
	Title            string
	Description      string
	Start            string
	End              string
	Building         string
	Room             string
	Color            string
	RequiresApproval bool
	Draft            bool
	Recurrence       *RecurrenceInput
}

// RecurrenceInput captures caller provided recurrence fields.
type RecurrenceInput struct {
	Frequency string
	Weekdays  []time.Weekday
	Until     string
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal  Principal
	ScheduleID string
	Input      EventInput
}

// UpdateEventParams wraps the data required to update an event.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Input     EventInput
}

// ListEventsParams selects the events of a schedule. From and To are
// optional ISO-8601 bounds.
type ListEventsParams struct {
	Principal  Principal
	ScheduleID string
	From       string
	To         string
}

// RescheduleEventParams moves an event to a new slot.
type RescheduleEventParams struct {
	Principal Principal
	EventID   string
	Start     string
	End       string
}

// OverlapQuery asks whether a slot collides with a schedule's events.
type OverlapQuery struct {
	Principal      Principal
	ScheduleID     string
	Start          string
	End            string
	ExcludeEventID string
}

// FacilityQuery asks whether a facility is free during a slot.
type FacilityQuery struct {
	Principal      Principal
	Building       string
	Room           string
	Start          string
	End            string
	ExcludeEventID string
}

// SuggestQuery asks for free slots near a candidate.
type SuggestQuery struct {
	Principal       Principal
	ScheduleID      string
	Start           string
	End             string
	DurationMinutes int
	Building        string
	Room            string
	ExcludeEventID  string
	Limit           int
}

// ResolveConflictParams identifies a pair of conflicting events.
type ResolveConflictParams struct {
	Principal          Principal
	PrimaryEventID     string
	ConflictingEventID string
}

// ResolutionAction names a conflict resolution strategy.
type ResolutionAction string

const (
	// ResolutionReschedule moves one of the events to a suggested slot.
	ResolutionReschedule ResolutionAction = "reschedule"
	// ResolutionAcceptOverlap keeps both events in place.
	ResolutionAcceptOverlap ResolutionAction = "accept_overlap"
)

// ResolutionStrategy is one way of resolving a conflict.
type ResolutionStrategy struct {
	Action      ResolutionAction
	Target      string // "primary" or "conflicting" for reschedules
	EventID     string
	Suggestions []scheduler.Suggestion
	Warning     string
}

// DayView lists a schedule's events on one day.
type DayView struct {
	ScheduleID string
	Date       time.Time
	Events     []Occurrence
}

// WeekView lists a schedule's events for a Monday-start week.
type WeekView struct {
	ScheduleID string
	WeekStart  time.Time
	Days       []WeekDay
}

// WeekDay is one day of a WeekView.
type WeekDay struct {
	Date    time.Time
	Weekday time.Weekday
	Events  []Occurrence
}

// Occurrence is an event instance placed on a calendar. Recurring events
// produce one occurrence per repetition.
type Occurrence struct {
	Event    Event
	Interval scheduler.Interval
}

// ConflictReport lists overlapping event pairs of a schedule.
type ConflictReport struct {
	ScheduleID string
	Conflicts  []scheduler.Conflict
}

// TransitionParams requests an approval transition.
type TransitionParams struct {
	Principal Principal
	EventID   string
	Action    approval.Action
	Reason    string
}

// ListApprovalsParams filters and paginates approval listings.
type ListApprovalsParams struct {
	Principal Principal
	Status    string
	Page      int
	PerPage   int
}

// ApprovalPage is a page of approval records.
type ApprovalPage struct {
	Records []approval.Record
	Total   int
	Page    int
	PerPage int
}

// NotificationKind classifies notifications.
type NotificationKind string

const (
	NotificationApproved         NotificationKind = "approval_approved"
	NotificationDeclined         NotificationKind = "approval_declined"
	NotificationChangesRequested NotificationKind = "approval_changes_requested"
	NotificationInfo             NotificationKind = "info"
)

// Notification is a message for a user about one of their events.
type Notification struct {
	ID        string
	UserID    string
	EventID   string
	Kind      NotificationKind
	Message   string
	ReadAt    *time.Time
	CreatedAt time.Time
}

// IsRead reports whether the notification has been read.
func (n Notification) IsRead() bool {
	return n.ReadAt != nil
}
