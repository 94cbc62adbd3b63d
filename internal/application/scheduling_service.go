package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/recurrence"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

const acceptOverlapWarning = "This will create a time conflict"

// SchedulingServiceConfig carries the collaborators of a SchedulingService.
type SchedulingServiceConfig struct {
	Schedules  ScheduleRepository
	Events     EventRepository
	Source     EventSource
	Facilities *FacilityCache
	Suggester  *scheduler.Suggester
	Recurrence *recurrence.Engine
	Location   *time.Location
	Logger     *slog.Logger
}

// SchedulingService exposes the scheduling engine: overlap and facility
// checks, suggestions, calendar views and conflict reports.
type SchedulingService struct {
	schedules  ScheduleRepository
	events     EventRepository
	source     EventSource
	facilities *FacilityCache
	suggester  *scheduler.Suggester
	recurrence *recurrence.Engine
	location   *time.Location
	logger     *slog.Logger
}

// NewSchedulingService wires dependencies for scheduling queries.
func NewSchedulingService(cfg SchedulingServiceConfig) *SchedulingService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Suggester == nil {
		cfg.Suggester = scheduler.NewSuggester(scheduler.DefaultSuggestConfig(), cfg.Location)
	}
	if cfg.Recurrence == nil {
		cfg.Recurrence = recurrence.NewEngine(cfg.Location, 0)
	}
	return &SchedulingService{
		schedules:  cfg.Schedules,
		events:     cfg.Events,
		source:     cfg.Source,
		facilities: cfg.Facilities,
		suggester:  cfg.Suggester,
		recurrence: cfg.Recurrence,
		location:   cfg.Location,
		logger:     defaultLogger(cfg.Logger),
	}
}

// CheckEventOverlap reports the first occupying event of the schedule that
// overlaps the queried slot.
func (s *SchedulingService) CheckEventOverlap(ctx context.Context, query OverlapQuery) (scheduler.OverlapResult, error) {
	if s == nil {
		return scheduler.OverlapResult{}, fmt.Errorf("SchedulingService is nil")
	}
	if _, err := s.viewableSchedule(ctx, query.Principal, query.ScheduleID); err != nil {
		return scheduler.OverlapResult{}, err
	}
	interval, err := scheduler.ParseInterval(query.Start, query.End, s.location)
	if err != nil {
		return scheduler.OverlapResult{}, err
	}
	scope, err := s.source.FetchScheduleEvents(ctx, query.ScheduleID)
	if err != nil {
		return scheduler.OverlapResult{}, unavailable("fetch schedule events", err)
	}
	return scheduler.CheckEventOverlap(scope, interval, query.ExcludeEventID), nil
}

// CheckFacilityAvailability counts the occupying bookings of a facility that
// overlap the queried slot, across all schedules.
func (s *SchedulingService) CheckFacilityAvailability(ctx context.Context, query FacilityQuery) (scheduler.AvailabilityResult, error) {
	if s == nil {
		return scheduler.AvailabilityResult{}, fmt.Errorf("SchedulingService is nil")
	}
	if query.Principal.UserID == "" {
		return scheduler.AvailabilityResult{}, ErrUnauthorized
	}
	if vErr := validateFacility(query.Building, query.Room); vErr.HasErrors() {
		return scheduler.AvailabilityResult{}, vErr
	}
	interval, err := scheduler.ParseInterval(query.Start, query.End, s.location)
	if err != nil {
		return scheduler.AvailabilityResult{}, err
	}
	booked, err := s.source.FetchFacilityEvents(ctx, query.Building, query.Room)
	if err != nil {
		return scheduler.AvailabilityResult{}, unavailable("fetch facility events", err)
	}
	index := scheduler.NewFacilityIndex(booked)
	return scheduler.CheckFacilityAvailability(index, query.Building, query.Room, interval, query.ExcludeEventID), nil
}

// SuggestAlternativeTimes proposes free slots near the queried one. When a
// facility is given the slots also avoid its bookings.
func (s *SchedulingService) SuggestAlternativeTimes(ctx context.Context, query SuggestQuery) ([]scheduler.Suggestion, error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	if _, err := s.viewableSchedule(ctx, query.Principal, query.ScheduleID); err != nil {
		return nil, err
	}
	vErr := &ValidationError{}
	if query.DurationMinutes < 0 {
		vErr.add("duration_minutes", "duration must be positive")
	}
	if query.Limit < 0 {
		vErr.add("limit", "limit must be positive")
	}
	if query.Building != "" || query.Room != "" {
		vErr.merge(validateFacility(query.Building, query.Room))
	}
	if vErr.HasErrors() {
		return nil, vErr
	}
	interval, err := scheduler.ParseInterval(query.Start, query.End, s.location)
	if err != nil {
		return nil, err
	}

	scope, err := s.source.FetchScheduleEvents(ctx, query.ScheduleID)
	if err != nil {
		return nil, unavailable("fetch schedule events", err)
	}
	if query.Building != "" {
		booked, err := s.source.FetchFacilityEvents(ctx, query.Building, query.Room)
		if err != nil {
			return nil, unavailable("fetch facility events", err)
		}
		scope = append(scope, booked...)
	}
	return s.suggester.Suggest(scope, interval, scheduler.SuggestOptions{
		DurationMinutes: query.DurationMinutes,
		ExcludeEventID:  query.ExcludeEventID,
		Limit:           query.Limit,
	}), nil
}

// DayView lists the visible occurrences of a schedule on a date (YYYY-MM-DD).
func (s *SchedulingService) DayView(ctx context.Context, principal Principal, scheduleID, date string) (DayView, error) {
	if s == nil {
		return DayView{}, fmt.Errorf("SchedulingService is nil")
	}
	schedule, err := s.viewableSchedule(ctx, principal, scheduleID)
	if err != nil {
		return DayView{}, err
	}
	day, err := s.parseDate("date", date)
	if err != nil {
		return DayView{}, err
	}
	window := scheduler.Interval{Start: day, End: day.AddDate(0, 0, 1)}
	occurrences, err := s.occurrences(ctx, principal, schedule, window)
	if err != nil {
		return DayView{}, err
	}
	return DayView{ScheduleID: schedule.ID, Date: day, Events: occurrences}, nil
}

// WeekView lists the visible occurrences of a schedule for the Monday-start
// week containing start (YYYY-MM-DD), grouped by day.
func (s *SchedulingService) WeekView(ctx context.Context, principal Principal, scheduleID, start string) (WeekView, error) {
	if s == nil {
		return WeekView{}, fmt.Errorf("SchedulingService is nil")
	}
	schedule, err := s.viewableSchedule(ctx, principal, scheduleID)
	if err != nil {
		return WeekView{}, err
	}
	day, err := s.parseDate("start", start)
	if err != nil {
		return WeekView{}, err
	}
	weekStart := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
	window := scheduler.Interval{Start: weekStart, End: weekStart.AddDate(0, 0, 7)}
	occurrences, err := s.occurrences(ctx, principal, schedule, window)
	if err != nil {
		return WeekView{}, err
	}

	view := WeekView{ScheduleID: schedule.ID, WeekStart: weekStart, Days: make([]WeekDay, 7)}
	for i := range view.Days {
		date := weekStart.AddDate(0, 0, i)
		dayWindow := scheduler.Interval{Start: date, End: date.AddDate(0, 0, 1)}
		view.Days[i] = WeekDay{Date: date, Weekday: date.Weekday()}
		for _, occurrence := range occurrences {
			if occurrence.Interval.Overlaps(dayWindow) {
				view.Days[i].Events = append(view.Days[i].Events, occurrence)
			}
		}
	}
	return view, nil
}

// ConflictReport lists every pair of overlapping occupying events visible
// in the schedule.
func (s *SchedulingService) ConflictReport(ctx context.Context, principal Principal, scheduleID string) (ConflictReport, error) {
	if s == nil {
		return ConflictReport{}, fmt.Errorf("SchedulingService is nil")
	}
	schedule, err := s.viewableSchedule(ctx, principal, scheduleID)
	if err != nil {
		return ConflictReport{}, err
	}
	events, err := s.events.ListEvents(ctx, EventListFilter{ScheduleID: schedule.ID})
	if err != nil {
		return ConflictReport{}, mapRepoError("list events", err)
	}
	scope := make([]scheduler.Event, 0, len(events))
	for _, event := range events {
		if canSeeEvent(principal, schedule, event) {
			scope = append(scope, event.Engine())
		}
	}
	return ConflictReport{ScheduleID: schedule.ID, Conflicts: scheduler.DetectConflicts(scope)}, nil
}

// ResolveConflict proposes ways out of a conflict between two events. It
// never changes either event.
func (s *SchedulingService) ResolveConflict(ctx context.Context, params ResolveConflictParams) (strategies []ResolutionStrategy, err error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	if s.events == nil || s.schedules == nil {
		return nil, fmt.Errorf("event repositories not configured")
	}
	logger := serviceLogger(ctx, s.logger, "SchedulingService", "ResolveConflict", "principal_id", params.Principal.UserID,
		"primary_event_id", params.PrimaryEventID, "conflicting_event_id", params.ConflictingEventID)
	defer func() {
		logOutcome(ctx, logger, err, "conflict strategies computed", "strategies", len(strategies))
	}()

	if params.PrimaryEventID == "" || params.PrimaryEventID == params.ConflictingEventID {
		vErr := &ValidationError{}
		vErr.add("conflicting_event_id", "two different events are required")
		return nil, vErr
	}

	primary, primarySchedule, err := s.loadEvent(ctx, params.PrimaryEventID)
	if err != nil {
		return nil, err
	}
	if !canManageEvent(params.Principal, primarySchedule, primary) {
		return nil, ErrUnauthorized
	}
	conflicting, conflictingSchedule, err := s.loadEvent(ctx, params.ConflictingEventID)
	if err != nil {
		return nil, err
	}
	if !canSeeEvent(params.Principal, conflictingSchedule, conflicting) {
		return nil, ErrNotFound
	}

	primarySlots, err := s.rescheduleOptions(ctx, primary)
	if err != nil {
		return nil, err
	}
	conflictingSlots, err := s.rescheduleOptions(ctx, conflicting)
	if err != nil {
		return nil, err
	}

	strategies = []ResolutionStrategy{
		{Action: ResolutionReschedule, Target: "primary", EventID: primary.ID, Suggestions: primarySlots},
		{Action: ResolutionReschedule, Target: "conflicting", EventID: conflicting.ID, Suggestions: conflictingSlots},
	}
	if !primary.RequiresApproval {
		strategies = append(strategies, ResolutionStrategy{
			Action:  ResolutionAcceptOverlap,
			EventID: primary.ID,
			Warning: acceptOverlapWarning,
		})
	}
	return strategies, nil
}

// ListFacilities returns every facility with bookings in the shared index.
func (s *SchedulingService) ListFacilities(ctx context.Context) ([]scheduler.FacilitySummary, error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	index, err := s.facilities.Index(ctx)
	if err != nil {
		return nil, err
	}
	return index.Facilities(), nil
}

// FacilityEvents returns the bookings of a facility. Non-admins only see
// pending and approved events.
func (s *SchedulingService) FacilityEvents(ctx context.Context, principal Principal, building, room string) ([]scheduler.Event, error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	if vErr := validateFacility(building, room); vErr.HasErrors() {
		return nil, vErr
	}
	index, err := s.facilities.Index(ctx)
	if err != nil {
		return nil, err
	}
	events := index.EventsAt(building, room)
	if principal.IsAdmin() {
		return events, nil
	}
	visible := events[:0]
	for _, event := range events {
		if event.Occupies() {
			visible = append(visible, event)
		}
	}
	return visible, nil
}

// RefreshFacilities rebuilds the shared facility index from storage.
func (s *SchedulingService) RefreshFacilities(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("SchedulingService is nil")
	}
	logger := serviceLogger(ctx, s.logger, "SchedulingService", "RefreshFacilities")
	if err := s.facilities.Refresh(ctx); err != nil {
		logger.ErrorContext(ctx, "facility index refresh failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.DebugContext(ctx, "facility index refreshed")
	return nil
}

func (s *SchedulingService) viewableSchedule(ctx context.Context, principal Principal, scheduleID string) (Schedule, error) {
	if s.schedules == nil || s.source == nil {
		return Schedule{}, fmt.Errorf("scheduling collaborators not configured")
	}
	if strings.TrimSpace(scheduleID) == "" {
		vErr := &ValidationError{}
		vErr.add("schedule_id", "schedule_id is required")
		return Schedule{}, vErr
	}
	schedule, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return Schedule{}, mapRepoError("get schedule", err)
	}
	if !canViewSchedule(principal, schedule) {
		return Schedule{}, ErrUnauthorized
	}
	return schedule, nil
}

func (s *SchedulingService) loadEvent(ctx context.Context, eventID string) (Event, Schedule, error) {
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

func (s *SchedulingService) rescheduleOptions(ctx context.Context, event Event) ([]scheduler.Suggestion, error) {
	scope, err := s.source.FetchScheduleEvents(ctx, event.ScheduleID)
	if err != nil {
		return nil, unavailable("fetch schedule events", err)
	}
	if loc := event.Location; loc != nil {
		booked, err := s.source.FetchFacilityEvents(ctx, loc.Building, loc.Room)
		if err != nil {
			return nil, unavailable("fetch facility events", err)
		}
		scope = append(scope, booked...)
	}
	return s.suggester.Suggest(scope, event.Interval, scheduler.SuggestOptions{
		ExcludeEventID: event.ID,
		Limit:          conflictSuggestionLimit,
	}), nil
}

// occurrences expands the visible events of a schedule into the instances
// that intersect window, earliest first.
func (s *SchedulingService) occurrences(ctx context.Context, principal Principal, schedule Schedule, window scheduler.Interval) ([]Occurrence, error) {
	events, err := s.events.ListEvents(ctx, EventListFilter{
		ScheduleID:   schedule.ID,
		StartsBefore: &window.End,
		EndsAfter:    &window.Start,
	})
	if err != nil {
		return nil, mapRepoError("list events", err)
	}

	var out []Occurrence
	for _, event := range events {
		if !canSeeEvent(principal, schedule, event) {
			continue
		}
		rule := event.Recurrence.Rule()
		if !rule.IsRecurring() {
			if event.Interval.Overlaps(window) {
				out = append(out, Occurrence{Event: event, Interval: event.Interval})
			}
			continue
		}
		// Start earlier by one duration so instances running into the
		// window are included.
		instances, err := s.recurrence.GenerateOccurrences(event.ID, rule, event.Interval.Start, event.Interval.End, recurrence.GenerateOptions{
			RangeStart: window.Start.Add(-event.Interval.Duration()),
			RangeEnd:   window.End,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "skipping event with invalid recurrence", "event_id", event.ID, "error", err)
			continue
		}
		for _, instance := range instances {
			interval := scheduler.Interval{Start: instance.Start, End: instance.End}
			if interval.Overlaps(window) {
				out = append(out, Occurrence{Event: event, Interval: interval})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Interval.Start.Equal(out[j].Interval.Start) {
			return out[i].Event.ID < out[j].Event.ID
		}
		return out[i].Interval.Start.Before(out[j].Interval.Start)
	})
	return out, nil
}

func (s *SchedulingService) parseDate(field, value string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), s.location)
	if err != nil {
		vErr := &ValidationError{}
		vErr.add(field, "must be a date formatted as YYYY-MM-DD")
		return time.Time{}, vErr
	}
	return day, nil
}

func validateFacility(building, room string) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(building) == "" {
		vErr.add("building", "building is required")
	}
	if strings.TrimSpace(room) == "" {
		vErr.add("room", "room is required")
	}
	return vErr
}
