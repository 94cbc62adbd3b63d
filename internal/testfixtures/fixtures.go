package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/application"
	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/persistence"
	"github.com/Lowii-3dy/campus-sched/internal/recurrence"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

var (
	scheduleCounter     uint64
	eventCounter        uint64
	notificationCounter uint64
)

// referenceTime is a Monday morning so weekly fixtures line up with a
// teaching week.
var referenceTime = time.Date(2024, time.October, 7, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ---------------------------- Schedule fixtures ----------------------------

// ScheduleFixture represents a deterministic schedule record.
type ScheduleFixture struct {
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

// ScheduleOption configures the generated schedule fixture.
type ScheduleOption func(*ScheduleFixture)

// NewScheduleFixture returns a deterministic schedule fixture with optional overrides.
func NewScheduleFixture(opts ...ScheduleOption) ScheduleFixture {
	idx := atomic.AddUint64(&scheduleCounter, 1)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	fixture := ScheduleFixture{
		ID:        fmt.Sprintf("schedule-%03d", idx),
		OwnerID:   "teacher-001",
		Title:     fmt.Sprintf("Course %03d", idx),
		Color:     application.DefaultColor,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithScheduleID overrides the generated schedule ID.
func WithScheduleID(id string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.ID = id
	}
}

// WithScheduleOwner overrides the schedule owner.
func WithScheduleOwner(id string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.OwnerID = id
	}
}

func WithScheduleTitle(title string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Title = title
	}
}

func WithScheduleDescription(description string) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.Description = description
	}
}

// WithSchedulePublic makes the schedule visible to every campus user.
func WithSchedulePublic(public bool) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.IsPublic = public
	}
}

// WithClassSchedule marks the schedule as a class timetable.
func WithClassSchedule(class bool) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.IsClassSchedule = class
	}
}

// WithScheduleTimestamps sets both timestamps.
func WithScheduleTimestamps(created, updated time.Time) ScheduleOption {
	return func(f *ScheduleFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application converts the fixture into the application model.
func (f ScheduleFixture) Application() application.Schedule {
	return application.Schedule{
		ID:              f.ID,
		OwnerID:         f.OwnerID,
		Title:           f.Title,
		Description:     f.Description,
		Color:           f.Color,
		IsPublic:        f.IsPublic,
		IsClassSchedule: f.IsClassSchedule,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// Input returns the service input that would create this schedule.
func (f ScheduleFixture) Input() application.ScheduleInput {
	return application.ScheduleInput{
		Title:           f.Title,
		Description:     f.Description,
		Color:           f.Color,
		IsPublic:        f.IsPublic,
		IsClassSchedule: f.IsClassSchedule,
	}
}

// Owner returns a principal acting as the schedule owner.
func (f ScheduleFixture) Owner() application.Principal {
	return application.Principal{UserID: f.OwnerID, Role: approval.RoleTeacher, CanCreateSchedules: true}
}

// Persistence converts the fixture into the persistence model.
func (f ScheduleFixture) Persistence() persistence.Schedule {
	return persistence.Schedule{
		ID:              f.ID,
		OwnerID:         f.OwnerID,
		Title:           f.Title,
		Description:     optionalString(f.Description),
		Color:           f.Color,
		IsPublic:        f.IsPublic,
		IsClassSchedule: f.IsClassSchedule,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// ----------------------------- Event fixtures ------------------------------

// EventFixture represents a deterministic event together with the data for
// its approval record.
type EventFixture struct {
	ID               string
	ScheduleID       string
	OrganizerID      string
	OrganizerRole    approval.Role
	Title            string
	Description      string
	Start            time.Time
	End              time.Time
	Building         string
	Room             string
	Color            string
	Status           approval.Status
	RequiresApproval bool
	Recurrence       *application.Recurrence
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns an approved one hour event. Consecutive fixtures
// are placed on consecutive days so they never overlap by accident.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.AddDate(0, 0, int(idx))
	fixture := EventFixture{
		ID:            fmt.Sprintf("event-%03d", idx),
		ScheduleID:    "schedule-001",
		OrganizerID:   "teacher-001",
		OrganizerRole: approval.RoleTeacher,
		Title:         fmt.Sprintf("Session %03d", idx),
		Start:         start,
		End:           start.Add(time.Hour),
		Status:        approval.StatusApproved,
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithEventID(id string) EventOption {
	return func(f *EventFixture) {
		f.ID = id
	}
}

func WithEventSchedule(id string) EventOption {
	return func(f *EventFixture) {
		f.ScheduleID = id
	}
}

// WithEventOrganizer sets the organizer and the role recorded in the
// approval history.
func WithEventOrganizer(id string, role approval.Role) EventOption {
	return func(f *EventFixture) {
		f.OrganizerID = id
		f.OrganizerRole = role
	}
}

func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) {
		f.Title = title
	}
}

// WithEventInterval overrides the event slot.
func WithEventInterval(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventLocation places the event in a campus facility.
func WithEventLocation(building, room string) EventOption {
	return func(f *EventFixture) {
		f.Building = building
		f.Room = room
	}
}

// WithEventStatus sets the status of both the event and its approval record.
func WithEventStatus(status approval.Status) EventOption {
	return func(f *EventFixture) {
		f.Status = status
		if status != approval.StatusApproved {
			f.RequiresApproval = true
		}
	}
}

// WithEventRecurrence makes the event repeat.
func WithEventRecurrence(frequency recurrence.Frequency, until *time.Time, weekdays ...time.Weekday) EventOption {
	return func(f *EventFixture) {
		f.Recurrence = &application.Recurrence{Frequency: frequency, Weekdays: weekdays, Until: until}
	}
}

func WithEventTimestamps(created, updated time.Time) EventOption {
	return func(f *EventFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application converts the fixture into the application model.
func (f EventFixture) Application() application.Event {
	event := application.Event{
		ID:               f.ID,
		ScheduleID:       f.ScheduleID,
		OrganizerID:      f.OrganizerID,
		Title:            f.Title,
		Description:      f.Description,
		Interval:         scheduler.Interval{Start: f.Start, End: f.End},
		Color:            f.Color,
		Status:           f.Status,
		RequiresApproval: f.RequiresApproval,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
	if f.Building != "" || f.Room != "" {
		event.Location = &scheduler.Location{Building: f.Building, Room: f.Room}
	}
	if f.Recurrence != nil {
		clone := *f.Recurrence
		clone.Weekdays = append([]time.Weekday(nil), f.Recurrence.Weekdays...)
		event.Recurrence = &clone
	}
	return event
}

// Engine returns the event as seen by the scheduling engine.
func (f EventFixture) Engine() scheduler.Event {
	return f.Application().Engine()
}

// Input returns the service input that would create this event.
func (f EventFixture) Input() application.EventInput {
	input := application.EventInput{
		Title:            f.Title,
		Description:      f.Description,
		Start:            f.Start.Format(time.RFC3339),
		End:              f.End.Format(time.RFC3339),
		Building:         f.Building,
		Room:             f.Room,
		Color:            f.Color,
		RequiresApproval: f.RequiresApproval,
		Draft:            f.Status == approval.StatusDraft,
	}
	if f.Recurrence != nil {
		input.Recurrence = &application.RecurrenceInput{
			Frequency: string(f.Recurrence.Frequency),
			Weekdays:  append([]time.Weekday(nil), f.Recurrence.Weekdays...),
		}
		if f.Recurrence.Until != nil {
			input.Recurrence.Until = f.Recurrence.Until.Format(time.RFC3339)
		}
	}
	return input
}

// Persistence converts the fixture into the persistence model.
func (f EventFixture) Persistence() persistence.Event {
	model := persistence.Event{
		ID:               f.ID,
		ScheduleID:       f.ScheduleID,
		OrganizerID:      f.OrganizerID,
		Title:            f.Title,
		Description:      optionalString(f.Description),
		Start:            f.Start,
		End:              f.End,
		Building:         optionalString(f.Building),
		Room:             optionalString(f.Room),
		Color:            optionalString(f.Color),
		Status:           string(f.Status),
		RequiresApproval: f.RequiresApproval,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
	if f.Recurrence != nil {
		model.Recurrence = &persistence.Recurrence{
			Frequency: string(f.Recurrence.Frequency),
			Weekdays:  append([]time.Weekday(nil), f.Recurrence.Weekdays...),
			Until:     copyTimePtr(f.Recurrence.Until),
		}
	}
	return model
}

// Approval returns the approval record stored alongside the event. Its
// history holds the single create entry that put the event in its status.
func (f EventFixture) Approval() persistence.Approval {
	return persistence.Approval{
		ID:               "approval-" + f.ID,
		EventID:          f.ID,
		OrganizerID:      f.OrganizerID,
		RequiresApproval: f.RequiresApproval,
		Status:           string(f.Status),
		History: []persistence.ApprovalTransition{{
			Sequence:   1,
			ApprovalID: "approval-" + f.ID,
			Action:     string(approval.ActionCreate),
			ToStatus:   string(f.Status),
			ActorID:    f.OrganizerID,
			ActorRole:  string(f.OrganizerRole),
			At:         f.CreatedAt,
		}},
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ------------------------- Notification fixtures --------------------------

// NotificationFixture represents a deterministic notification.
type NotificationFixture struct {
	ID        string
	UserID    string
	EventID   string
	Kind      application.NotificationKind
	Message   string
	ReadAt    *time.Time
	CreatedAt time.Time
}

// NotificationOption configures the generated notification fixture.
type NotificationOption func(*NotificationFixture)

// NewNotificationFixture returns an unread approval notification.
func NewNotificationFixture(opts ...NotificationOption) NotificationFixture {
	idx := atomic.AddUint64(&notificationCounter, 1)
	fixture := NotificationFixture{
		ID:        fmt.Sprintf("notification-%03d", idx),
		UserID:    "teacher-001",
		Kind:      application.NotificationApproved,
		Message:   fmt.Sprintf("Event %03d was approved", idx),
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithNotificationID(id string) NotificationOption {
	return func(f *NotificationFixture) {
		f.ID = id
	}
}

func WithNotificationUser(id string) NotificationOption {
	return func(f *NotificationFixture) {
		f.UserID = id
	}
}

// WithNotificationEvent links the notification to an event.
func WithNotificationEvent(id string) NotificationOption {
	return func(f *NotificationFixture) {
		f.EventID = id
	}
}

func WithNotificationKind(kind application.NotificationKind) NotificationOption {
	return func(f *NotificationFixture) {
		f.Kind = kind
	}
}

// WithNotificationReadAt marks the notification as read.
func WithNotificationReadAt(t time.Time) NotificationOption {
	return func(f *NotificationFixture) {
		f.ReadAt = &t
	}
}

func WithNotificationCreatedAt(t time.Time) NotificationOption {
	return func(f *NotificationFixture) {
		f.CreatedAt = t
	}
}

// Application converts the fixture into the application model.
func (f NotificationFixture) Application() application.Notification {
	return application.Notification{
		ID:        f.ID,
		UserID:    f.UserID,
		EventID:   f.EventID,
		Kind:      f.Kind,
		Message:   f.Message,
		ReadAt:    copyTimePtr(f.ReadAt),
		CreatedAt: f.CreatedAt,
	}
}

// Persistence converts the fixture into the persistence model.
func (f NotificationFixture) Persistence() persistence.Notification {
	return persistence.Notification{
		ID:        f.ID,
		UserID:    f.UserID,
		EventID:   optionalString(f.EventID),
		Kind:      string(f.Kind),
		Message:   f.Message,
		ReadAt:    copyTimePtr(f.ReadAt),
		CreatedAt: f.CreatedAt,
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	clone := *src
	return &clone
}
