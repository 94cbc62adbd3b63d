package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/recurrence"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

// recurrenceProbeDays is how far ahead a new recurrence is expanded to make
// sure its occurrences do not overlap each other.
const recurrenceProbeDays = 62

// EventServiceConfig carries the collaborators of an EventService.
type EventServiceConfig struct {
	Schedules   ScheduleRepository
	Events      EventRepository
	Source      EventSource
	Intervals   IntervalStore
	Publisher   EventPublisher
	Facilities  *FacilityCache
	Suggester   *scheduler.Suggester
	Recurrence  *recurrence.Engine
	Location    *time.Location
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// EventService manages the events of schedules.
type EventService struct {
	schedules   ScheduleRepository
	events      EventRepository
	intervals   IntervalStore
	publisher   EventPublisher
	facilities  *FacilityCache
	guard       conflictGuard
	recurrence  *recurrence.Engine
	location    *time.Location
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService wires dependencies for event operations.
func NewEventService(cfg EventServiceConfig) *EventService {
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = func() string { return "" }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Suggester == nil {
		cfg.Suggester = scheduler.NewSuggester(scheduler.DefaultSuggestConfig(), cfg.Location)
	}
	if cfg.Recurrence == nil {
		cfg.Recurrence = recurrence.NewEngine(cfg.Location, 0)
	}
	return &EventService{
		schedules:   cfg.Schedules,
		events:      cfg.Events,
		intervals:   cfg.Intervals,
		publisher:   cfg.Publisher,
		facilities:  cfg.Facilities,
		guard:       conflictGuard{source: cfg.Source, suggester: cfg.Suggester},
		recurrence:  cfg.Recurrence,
		location:    cfg.Location,
		idGenerator: cfg.IDGenerator,
		now:         cfg.Now,
		logger:      defaultLogger(cfg.Logger),
	}
}

// CreateEvent books a new event on a schedule. Occupying events are checked
// against the schedule and, when located, the facility; a collision returns
// a *ConflictError with alternative slots.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (event Event, err error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.schedules == nil || s.events == nil {
		return Event{}, fmt.Errorf("event repositories not configured")
	}
	logger := serviceLogger(ctx, s.logger, "EventService", "CreateEvent", "principal_id", params.Principal.UserID, "schedule_id", params.ScheduleID)
	defer func() {
		logOutcome(ctx, logger, err, "event created", "event_id", event.ID, "status", event.Status)
	}()

	schedule, err := s.schedules.GetSchedule(ctx, params.ScheduleID)
	if err != nil {
		return Event{}, mapRepoError("get schedule", err)
	}
	if !canManageSchedule(params.Principal, schedule) {
		return Event{}, ErrUnauthorized
	}

	fields, err := s.parseEventInput(params.Input)
	if err != nil {
		return Event{}, err
	}

	createdAt := s.now()
	eventID := s.idGenerator()
	record := approval.NewRecord(s.idGenerator(), eventID, params.Principal.actor(), params.Input.RequiresApproval, params.Input.Draft, createdAt)
	event = fields.apply(Event{
		ID:          eventID,
		ScheduleID:  schedule.ID,
		OrganizerID: params.Principal.UserID,
		CreatedAt:   createdAt,
	})
	event.RequiresApproval = params.Input.RequiresApproval
	event.Status = record.Status
	event.UpdatedAt = createdAt

	if err := s.guard.check(ctx, event.Engine()); err != nil {
		return Event{}, err
	}
	if err := s.events.CreateEvent(ctx, event, record); err != nil {
		return Event{}, s.guard.withCommitConflict(ctx, event.Engine(), mapRepoError("create event", err))
	}

	s.facilities.Upsert(event.Engine())
	s.publish(ctx, logger, LifecycleCreated, event)
	return event, nil
}

// GetEvent returns an event visible to the principal.
func (s *EventService) GetEvent(ctx context.Context, principal Principal, eventID string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	event, schedule, err := s.load(ctx, eventID)
	if err != nil {
		return Event{}, err
	}
	if !canViewSchedule(principal, schedule) {
		return Event{}, ErrUnauthorized
	}
	if !canSeeEvent(principal, schedule, event) {
		return Event{}, ErrNotFound
	}
	return event, nil
}

// ListEvents returns the events of a schedule visible to the principal,
// optionally limited to those intersecting [From, To).
func (s *EventService) ListEvents(ctx context.Context, params ListEventsParams) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if s.schedules == nil || s.events == nil {
		return nil, fmt.Errorf("event repositories not configured")
	}
	schedule, err := s.schedules.GetSchedule(ctx, params.ScheduleID)
	if err != nil {
		return nil, mapRepoError("get schedule", err)
	}
	if !canViewSchedule(params.Principal, schedule) {
		return nil, ErrUnauthorized
	}

	filter := EventListFilter{ScheduleID: schedule.ID}
	vErr := &ValidationError{}
	if params.From != "" {
		from, err := scheduler.ParseTimestamp(params.From, s.location)
		if err != nil {
			vErr.add("from", "from must be an ISO-8601 timestamp")
		} else {
			filter.EndsAfter = &from
		}
	}
	if params.To != "" {
		to, err := scheduler.ParseTimestamp(params.To, s.location)
		if err != nil {
			vErr.add("to", "to must be an ISO-8601 timestamp")
		} else {
			filter.StartsBefore = &to
		}
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	events, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, mapRepoError("list events", err)
	}
	visible := make([]Event, 0, len(events))
	for _, event := range events {
		if canSeeEvent(params.Principal, schedule, event) {
			visible = append(visible, event)
		}
	}
	return visible, nil
}

// UpdateEvent replaces the editable fields of an event. The approval status
// is kept; occupying events are re-checked for conflicts.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (updated Event, err error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "EventService", "UpdateEvent", "principal_id", params.Principal.UserID, "event_id", params.EventID)
	defer func() {
		logOutcome(ctx, logger, err, "event updated", "status", updated.Status)
	}()

	existing, schedule, err := s.load(ctx, params.EventID)
	if err != nil {
		return Event{}, err
	}
	if !canManageEvent(params.Principal, schedule, existing) {
		return Event{}, ErrUnauthorized
	}

	fields, err := s.parseEventInput(params.Input)
	if err != nil {
		return Event{}, err
	}
	updated = fields.apply(existing)
	updated.RequiresApproval = params.Input.RequiresApproval
	updated.UpdatedAt = s.now()

	if err := s.guard.check(ctx, updated.Engine()); err != nil {
		return Event{}, err
	}
	if err := s.events.UpdateEvent(ctx, updated); err != nil {
		return Event{}, s.guard.withCommitConflict(ctx, updated.Engine(), mapRepoError("update event", err))
	}

	s.facilities.Upsert(updated.Engine())
	s.publish(ctx, logger, LifecycleUpdated, updated)
	return updated, nil
}

// RescheduleEvent moves an event to a new slot, keeping its status.
func (s *EventService) RescheduleEvent(ctx context.Context, params RescheduleEventParams) (moved Event, err error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.intervals == nil {
		return Event{}, fmt.Errorf("interval store not configured")
	}
	logger := serviceLogger(ctx, s.logger, "EventService", "RescheduleEvent", "principal_id", params.Principal.UserID, "event_id", params.EventID)
	defer func() {
		logOutcome(ctx, logger, err, "event rescheduled", "interval", moved.Interval.String())
	}()

	existing, schedule, err := s.load(ctx, params.EventID)
	if err != nil {
		return Event{}, err
	}
	if !canManageEvent(params.Principal, schedule, existing) {
		return Event{}, ErrUnauthorized
	}

	interval, err := scheduler.ParseInterval(params.Start, params.End, s.location)
	if err != nil {
		return Event{}, err
	}
	candidate := existing.Engine()
	candidate.Interval = interval
	if err := s.guard.check(ctx, candidate); err != nil {
		return Event{}, err
	}

	stored, err := s.intervals.PersistEventInterval(ctx, existing.ID, interval)
	if err != nil {
		return Event{}, s.guard.withCommitConflict(ctx, candidate, mapRepoError("persist event interval", err))
	}

	moved = existing
	moved.Interval = stored.Interval
	moved.UpdatedAt = s.now()
	s.facilities.Upsert(moved.Engine())
	s.publish(ctx, logger, LifecycleUpdated, moved)
	return moved, nil
}

// DeleteEvent removes an event and its approval record.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID string) (err error) {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "EventService", "DeleteEvent", "principal_id", principal.UserID, "event_id", eventID)
	defer func() {
		logOutcome(ctx, logger, err, "event deleted")
	}()

	existing, schedule, err := s.load(ctx, eventID)
	if err != nil {
		return err
	}
	if !canManageEvent(principal, schedule, existing) {
		return ErrUnauthorized
	}
	if err := s.events.DeleteEvent(ctx, eventID); err != nil {
		return mapRepoError("delete event", err)
	}
	s.facilities.Remove(eventID)
	s.publish(ctx, logger, LifecycleDeleted, existing)
	return nil
}

func (s *EventService) load(ctx context.Context, eventID string) (Event, Schedule, error) {
	if s.schedules == nil || s.events == nil {
		return Event{}, Schedule{}, fmt.Errorf("event repositories not configured")
	}
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, Schedule{}, mapRepoError("get event", err)
	}
	schedule, err := s.schedules.GetSchedule(ctx, event.ScheduleID)
	if err != nil {
		return Event{}, Schedule{}, mapRepoError("get schedule", err)
	}
	return event, schedule, nil
}

func (s *EventService) publish(ctx context.Context, logger *slog.Logger, action LifecycleAction, event Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEventLifecycle(ctx, action, event); err != nil {
		logger.WarnContext(ctx, "publish event lifecycle failed", "action", action, "error", err)
	}
}

// eventFields is the validated form of an EventInput.
type eventFields struct {
	title       string
	description string
	interval    scheduler.Interval
	location    *scheduler.Location
	color       string
	recurrence  *Recurrence
}

func (f eventFields) apply(event Event) Event {
	event.Title = f.title
	event.Description = f.description
	event.Interval = f.interval
	event.Location = f.location
	event.Color = f.color
	event.Recurrence = f.recurrence
	return event
}

func (s *EventService) parseEventInput(input EventInput) (eventFields, error) {
	vErr := &ValidationError{}
	fields := eventFields{
		title:       strings.TrimSpace(input.Title),
		description: strings.TrimSpace(input.Description),
		color:       normalizeColor(input.Color),
	}
	if fields.title == "" {
		vErr.add("title", "title is required")
	} else if len(fields.title) > 200 {
		vErr.add("title", "title must be at most 200 characters")
	}
	if color := strings.TrimSpace(input.Color); color != "" && !colorPattern.MatchString(color) {
		vErr.add("color", "color must be a hex value like #3b82f6")
	}

	building, room := strings.TrimSpace(input.Building), strings.TrimSpace(input.Room)
	switch {
	case building != "" && room != "":
		fields.location = &scheduler.Location{Building: building, Room: room}
	case building != "" || room != "":
		vErr.add("location", "building and room must be given together")
	}

	if input.Recurrence != nil {
		rec, recErr := s.parseRecurrence(*input.Recurrence)
		vErr.merge(recErr)
		fields.recurrence = rec
	}
	if vErr.HasErrors() {
		return eventFields{}, vErr
	}

	interval, err := scheduler.ParseInterval(input.Start, input.End, s.location)
	if err != nil {
		return eventFields{}, err
	}
	fields.interval = interval

	if fields.recurrence != nil {
		if err := s.validateRecurrence(fields.recurrence, interval); err != nil {
			return eventFields{}, err
		}
	}
	return fields, nil
}

func (s *EventService) parseRecurrence(input RecurrenceInput) (*Recurrence, *ValidationError) {
	vErr := &ValidationError{}
	frequency, err := recurrence.ParseFrequency(input.Frequency)
	if err != nil {
		vErr.add("recurrence.frequency", "frequency must be daily, weekly or monthly")
		return nil, vErr
	}
	if frequency == recurrence.FrequencyNone {
		return nil, nil
	}

	rec := &Recurrence{Frequency: frequency}
	for _, day := range input.Weekdays {
		if day < time.Sunday || day > time.Saturday {
			vErr.add("recurrence.weekdays", "weekdays must be between 0 (Sunday) and 6 (Saturday)")
			break
		}
	}
	if len(input.Weekdays) > 0 && frequency == recurrence.FrequencyMonthly {
		vErr.add("recurrence.weekdays", "weekdays are not supported for monthly recurrence")
	}
	rec.Weekdays = uniqueWeekdays(input.Weekdays)

	if until := strings.TrimSpace(input.Until); until != "" {
		parsed, err := s.parseUntil(until)
		if err != nil {
			vErr.add("recurrence.until", "until must be a date or ISO-8601 timestamp")
		} else {
			rec.Until = &parsed
		}
	}
	if vErr.HasErrors() {
		return nil, vErr
	}
	return rec, nil
}

// parseUntil accepts a plain date, meaning the end of that day, or a timestamp.
func (s *EventService) parseUntil(value string) (time.Time, error) {
	if day, err := time.ParseInLocation("2006-01-02", value, s.location); err == nil {
		return day.AddDate(0, 0, 1).Add(-time.Second), nil
	}
	return scheduler.ParseTimestamp(value, s.location)
}

func (s *EventService) validateRecurrence(rec *Recurrence, interval scheduler.Interval) error {
	if rec.Until != nil && rec.Until.Before(interval.Start) {
		vErr := &ValidationError{}
		vErr.add("recurrence.until", "until must not be before the event start")
		return vErr
	}
	occurrences, err := s.recurrence.GenerateOccurrences("", rec.Rule(), interval.Start, interval.End, recurrence.GenerateOptions{
		RangeStart: interval.Start,
		RangeEnd:   interval.Start.AddDate(0, 0, recurrenceProbeDays),
	})
	if err != nil {
		vErr := &ValidationError{}
		vErr.add("recurrence", err.Error())
		return vErr
	}
	intervals := make([]scheduler.Interval, 0, len(occurrences))
	for _, occurrence := range occurrences {
		intervals = append(intervals, scheduler.Interval{Start: occurrence.Start, End: occurrence.End})
	}
	if _, overlaps := scheduler.FirstChainOverlap(intervals); overlaps {
		vErr := &ValidationError{}
		vErr.add("recurrence", "occurrences would overlap each other")
		return vErr
	}
	return nil
}

func uniqueWeekdays(days []time.Weekday) []time.Weekday {
	if len(days) == 0 {
		return nil
	}
	var seen [7]bool
	out := make([]time.Weekday, 0, len(days))
	for _, day := range days {
		if day < time.Sunday || day > time.Saturday || seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, day)
	}
	return out
}
