package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/approval"
	"github.com/Lowii-3dy/campus-sched/internal/recurrence"
	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

func locatedEvent(id, scheduleID, building, room string, status approval.Status, start, end time.Time) Event {
	return Event{
		ID:          id,
		ScheduleID:  scheduleID,
		OrganizerID: "owner",
		Title:       id,
		Interval:    scheduler.Interval{Start: start, End: end},
		Location:    &scheduler.Location{Building: building, Room: room},
		Status:      status,
	}
}

func TestSchedulingService_CheckEventOverlap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	f.schedule("sched-1", "owner", false)
	f.event("booked", "sched-1", approval.StatusApproved, at(0, 9, 0), at(0, 10, 0))

	result, err := f.scheduling.CheckEventOverlap(ctx, OverlapQuery{
		Principal: owner, ScheduleID: "sched-1", Start: iso(at(0, 9, 30)), End: iso(at(0, 10, 30)),
	})
	if err != nil {
		t.Fatalf("CheckEventOverlap: %v", err)
	}
	if !result.HasOverlap || result.ConflictingEvent.ID != "booked" {
		t.Fatalf("expected overlap with booked, got %+v", result)
	}

	result, err = f.scheduling.CheckEventOverlap(ctx, OverlapQuery{
		Principal: owner, ScheduleID: "sched-1", Start: iso(at(0, 9, 30)), End: iso(at(0, 10, 30)), ExcludeEventID: "booked",
	})
	if err != nil || result.HasOverlap {
		t.Fatalf("excluded event must not conflict, got %+v (%v)", result, err)
	}

	naive, err := f.scheduling.CheckEventOverlap(ctx, OverlapQuery{
		Principal: owner, ScheduleID: "sched-1", Start: "2024-10-07T09:59", End: "2024-10-07T10:30",
	})
	if err != nil || !naive.HasOverlap {
		t.Fatalf("naive timestamps are read in the service location, got %+v (%v)", naive, err)
	}

	if _, err := f.scheduling.CheckEventOverlap(ctx, OverlapQuery{
		Principal: owner, ScheduleID: "sched-1", Start: "soon", End: iso(at(0, 10, 0)),
	}); !errors.Is(err, scheduler.ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
	if _, err := f.scheduling.CheckEventOverlap(ctx, OverlapQuery{
		Principal: visitor, ScheduleID: "sched-1", Start: iso(at(0, 9, 0)), End: iso(at(0, 10, 0)),
	}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	f.store.failWith = errStoreDown
	if _, err := f.scheduling.CheckEventOverlap(ctx, OverlapQuery{
		Principal: owner, ScheduleID: "sched-1", Start: iso(at(0, 9, 0)), End: iso(at(0, 10, 0)),
	}); !errors.Is(err, ErrCollaboratorUnavailable) || !errors.Is(err, errStoreDown) {
		t.Fatalf("expected collaborator error wrapping the cause, got %v", err)
	}
}

func TestSchedulingService_CheckFacilityAvailability(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	f.schedule("sched-1", "owner", false)
	f.schedule("sched-2", "someone", false)
	f.store.addEvent(locatedEvent("a", "sched-1", "Hall A", "101", approval.StatusApproved, at(0, 9, 0), at(0, 10, 0)))
	f.store.addEvent(locatedEvent("b", "sched-2", "hall a", "101", approval.StatusPending, at(0, 9, 30), at(0, 11, 0)))
	f.store.addEvent(locatedEvent("c", "sched-2", "Hall A", "101", approval.StatusDraft, at(0, 9, 0), at(0, 10, 0)))

	result, err := f.scheduling.CheckFacilityAvailability(ctx, FacilityQuery{
		Principal: visitor, Building: "HALL A", Room: "101", Start: iso(at(0, 9, 0)), End: iso(at(0, 12, 0)),
	})
	if err != nil {
		t.Fatalf("CheckFacilityAvailability: %v", err)
	}
	if result.Available || result.ConflictCount != 2 {
		t.Fatalf("expected two conflicts, got %+v", result)
	}

	result, err = f.scheduling.CheckFacilityAvailability(ctx, FacilityQuery{
		Principal: visitor, Building: "Hall A", Room: "101", Start: iso(at(0, 9, 0)), End: iso(at(0, 12, 0)), ExcludeEventID: "b",
	})
	if err != nil || result.ConflictCount != 1 {
		t.Fatalf("expected one conflict when excluding b, got %+v (%v)", result, err)
	}

	result, err = f.scheduling.CheckFacilityAvailability(ctx, FacilityQuery{
		Principal: visitor, Building: "Hall Z", Room: "1", Start: iso(at(0, 9, 0)), End: iso(at(0, 12, 0)),
	})
	if err != nil || !result.Available {
		t.Fatalf("unknown facilities are free, got %+v (%v)", result, err)
	}

	_, err = f.scheduling.CheckFacilityAvailability(ctx, FacilityQuery{
		Principal: visitor, Building: "Hall A", Start: iso(at(0, 9, 0)), End: iso(at(0, 12, 0)),
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.FieldErrors["room"] == "" {
		t.Fatalf("expected room validation error, got %v", err)
	}
}

func TestSchedulingService_SuggestAlternativeTimes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	f.schedule("sched-1", "owner", false)
	f.schedule("sched-2", "someone", false)
	f.event("first", "sched-1", approval.StatusApproved, at(0, 9, 0), at(0, 10, 0))
	f.event("second", "sched-1", approval.StatusPending, at(0, 10, 0), at(0, 11, 0))
	f.store.addEvent(locatedEvent("lab", "sched-2", "Lab", "3", approval.StatusApproved, at(0, 11, 0), at(0, 12, 0)))

	suggestions, err := f.scheduling.SuggestAlternativeTimes(ctx, SuggestQuery{
		Principal: owner, ScheduleID: "sched-1", Start: iso(at(0, 9, 0)), End: iso(at(0, 10, 0)), Limit: 2,
	})
	if err != nil {
		t.Fatalf("SuggestAlternativeTimes: %v", err)
	}
	if len(suggestions) != 2 || !suggestions[0].Interval.Start.Equal(at(0, 11, 0)) || !suggestions[1].Interval.Start.Equal(at(0, 11, 30)) {
		t.Fatalf("unexpected suggestions %+v", suggestions)
	}
	if suggestions[0].Weekday != time.Monday {
		t.Fatalf("expected Monday, got %s", suggestions[0].Weekday)
	}

	withRoom, err := f.scheduling.SuggestAlternativeTimes(ctx, SuggestQuery{
		Principal: owner, ScheduleID: "sched-1", Start: iso(at(0, 9, 0)), End: iso(at(0, 10, 0)),
		Building: "lab", Room: "3", Limit: 1,
	})
	if err != nil || len(withRoom) != 1 || !withRoom[0].Interval.Start.Equal(at(0, 12, 0)) {
		t.Fatalf("expected the facility booking to be avoided, got %+v (%v)", withRoom, err)
	}

	longer, err := f.scheduling.SuggestAlternativeTimes(ctx, SuggestQuery{
		Principal: owner, ScheduleID: "sched-1", Start: iso(at(0, 9, 0)), End: iso(at(0, 10, 0)), DurationMinutes: 90, Limit: 1,
	})
	if err != nil || len(longer) != 1 || longer[0].Interval.DurationMinutes() != 90 {
		t.Fatalf("expected a 90 minute slot, got %+v (%v)", longer, err)
	}

	late, err := f.scheduling.SuggestAlternativeTimes(ctx, SuggestQuery{
		Principal: owner, ScheduleID: "sched-1", Start: iso(at(0, 23, 0)), End: iso(at(1, 1, 0)),
	})
	if err != nil || len(late) != 0 {
		t.Fatalf("no slot fits before the horizon, got %+v (%v)", late, err)
	}
}

func TestSchedulingService_Views(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	f.schedule("sched-1", "owner", true)
	weekly := Event{
		ID: "weekly", ScheduleID: "sched-1", OrganizerID: "owner", Title: "Lab meeting",
		Interval:   scheduler.Interval{Start: at(0, 9, 0), End: at(0, 10, 0)},
		Status:     approval.StatusApproved,
		Recurrence: &Recurrence{Frequency: recurrence.FrequencyWeekly},
	}
	f.store.addEvent(weekly)
	f.event("overnight", "sched-1", approval.StatusApproved, at(8, 23, 0), at(9, 1, 0))
	f.event("hidden", "sched-1", approval.StatusPending, at(7, 12, 0), at(7, 13, 0))

	day, err := f.scheduling.DayView(ctx, visitor, "sched-1", "2024-10-14")
	if err != nil {
		t.Fatalf("DayView: %v", err)
	}
	if len(day.Events) != 1 || day.Events[0].Event.ID != "weekly" || !day.Events[0].Interval.Start.Equal(at(7, 9, 0)) {
		t.Fatalf("expected the weekly occurrence on the 14th, got %+v", day.Events)
	}

	ownerDay, err := f.scheduling.DayView(ctx, owner, "sched-1", "2024-10-14")
	if err != nil || len(ownerDay.Events) != 2 {
		t.Fatalf("owners also see pending events, got %+v (%v)", ownerDay.Events, err)
	}

	week, err := f.scheduling.WeekView(ctx, visitor, "sched-1", "2024-10-16")
	if err != nil {
		t.Fatalf("WeekView: %v", err)
	}
	if !week.WeekStart.Equal(at(7, 0, 0)) || len(week.Days) != 7 || week.Days[0].Weekday != time.Monday {
		t.Fatalf("week must start on Monday the 14th, got %s", week.WeekStart)
	}
	if len(week.Days[0].Events) != 1 {
		t.Fatalf("expected the weekly occurrence on Monday, got %+v", week.Days[0].Events)
	}
	if len(week.Days[1].Events) != 1 || len(week.Days[2].Events) != 1 || week.Days[2].Events[0].Event.ID != "overnight" {
		t.Fatalf("overnight event belongs to Tuesday and Wednesday, got %+v / %+v", week.Days[1].Events, week.Days[2].Events)
	}

	if _, err := f.scheduling.DayView(ctx, owner, "sched-1", "14/10/2024"); err == nil {
		t.Fatalf("expected a validation error for a malformed date")
	}
}

func TestSchedulingService_ConflictReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	f.schedule("sched-1", "owner", true)
	f.event("a", "sched-1", approval.StatusApproved, at(0, 9, 0), at(0, 10, 0))
	f.event("b", "sched-1", approval.StatusApproved, at(0, 9, 30), at(0, 11, 0))
	f.event("c", "sched-1", approval.StatusPending, at(0, 10, 30), at(0, 12, 0))

	report, err := f.scheduling.ConflictReport(ctx, owner, "sched-1")
	if err != nil {
		t.Fatalf("ConflictReport: %v", err)
	}
	if len(report.Conflicts) != 2 {
		t.Fatalf("expected a-b and b-c, got %+v", report.Conflicts)
	}
	if report.Conflicts[0].OverlapMinutes() != 30 {
		t.Fatalf("expected 30 minutes of overlap, got %d", report.Conflicts[0].OverlapMinutes())
	}

	visible, err := f.scheduling.ConflictReport(ctx, visitor, "sched-1")
	if err != nil || len(visible.Conflicts) != 1 {
		t.Fatalf("visitors only see approved pairs, got %+v (%v)", visible.Conflicts, err)
	}
}

func TestSchedulingService_ResolveConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	f.schedule("sched-1", "owner", false)
	f.event("primary", "sched-1", approval.StatusApproved, at(0, 9, 0), at(0, 10, 0))
	f.event("conflicting", "sched-1", approval.StatusApproved, at(0, 9, 30), at(0, 10, 30))

	strategies, err := f.scheduling.ResolveConflict(ctx, ResolveConflictParams{
		Principal: owner, PrimaryEventID: "primary", ConflictingEventID: "conflicting",
	})
	if err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}
	if len(strategies) != 3 {
		t.Fatalf("expected three strategies, got %+v", strategies)
	}
	if strategies[0].Target != "primary" || !strategies[0].Suggestions[0].Interval.Start.Equal(at(0, 10, 30)) {
		t.Fatalf("unexpected primary strategy %+v", strategies[0])
	}
	if strategies[1].Target != "conflicting" || !strategies[1].Suggestions[0].Interval.Start.Equal(at(0, 10, 0)) {
		t.Fatalf("unexpected conflicting strategy %+v", strategies[1])
	}
	if strategies[2].Action != ResolutionAcceptOverlap || strategies[2].Warning != acceptOverlapWarning {
		t.Fatalf("unexpected accept strategy %+v", strategies[2])
	}

	stored, _ := f.store.GetEvent(ctx, "primary")
	if !stored.Interval.Start.Equal(at(0, 9, 0)) {
		t.Fatalf("resolving must not move events")
	}

	reviewed := f.event("reviewed", "sched-1", approval.StatusPending, at(0, 9, 0), at(0, 10, 0))
	reviewed.RequiresApproval = true
	f.store.addEvent(reviewed)
	strategies, err = f.scheduling.ResolveConflict(ctx, ResolveConflictParams{
		Principal: owner, PrimaryEventID: "reviewed", ConflictingEventID: "conflicting",
	})
	if err != nil || len(strategies) != 2 {
		t.Fatalf("overlap cannot be accepted for events under review, got %+v (%v)", strategies, err)
	}

	if _, err := f.scheduling.ResolveConflict(ctx, ResolveConflictParams{
		Principal: visitor, PrimaryEventID: "primary", ConflictingEventID: "conflicting",
	}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.scheduling.ResolveConflict(ctx, ResolveConflictParams{
		Principal: owner, PrimaryEventID: "primary", ConflictingEventID: "primary",
	}); err == nil {
		t.Fatalf("expected a validation error for identical events")
	}
}

func TestSchedulingService_ResolveConflictAvoidsBookedRoom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	f.schedule("sched-1", "owner", false)
	f.schedule("sched-2", "someone", false)
	f.store.addEvent(locatedEvent("primary", "sched-1", "Lab", "3", approval.StatusApproved, at(0, 9, 0), at(0, 10, 0)))
	f.event("conflicting", "sched-1", approval.StatusApproved, at(0, 9, 30), at(0, 10, 30))
	f.store.addEvent(locatedEvent("lab-session", "sched-2", "Lab", "3", approval.StatusApproved, at(0, 10, 30), at(0, 11, 30)))

	strategies, err := f.scheduling.ResolveConflict(ctx, ResolveConflictParams{
		Principal: owner, PrimaryEventID: "primary", ConflictingEventID: "conflicting",
	})
	if err != nil {
		t.Fatalf("ResolveConflict: %v", err)
	}
	moves := strategies[0].Suggestions
	if strategies[0].Target != "primary" || len(moves) == 0 || !moves[0].Interval.Start.Equal(at(0, 11, 30)) {
		t.Fatalf("expected the primary to move after the lab session, got %+v", strategies[0])
	}
	// The conflicting event has no room, so only its schedule limits it.
	if !strategies[1].Suggestions[0].Interval.Start.Equal(at(0, 10, 0)) {
		t.Fatalf("unexpected conflicting strategy %+v", strategies[1])
	}
}

func TestSchedulingService_Facilities(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture()
	f.schedule("sched-1", "owner", false)
	f.store.addEvent(locatedEvent("a", "sched-1", "Hall A", "101", approval.StatusApproved, at(0, 9, 0), at(0, 10, 0)))
	f.store.addEvent(locatedEvent("b", "sched-1", "Hall A", "101", approval.StatusDraft, at(0, 11, 0), at(0, 12, 0)))
	f.store.addEvent(locatedEvent("c", "sched-1", "Annex", "1", approval.StatusPending, at(0, 9, 0), at(0, 10, 0)))

	facilities, err := f.scheduling.ListFacilities(ctx)
	if err != nil {
		t.Fatalf("ListFacilities: %v", err)
	}
	if len(facilities) != 2 || facilities[0].Building != "Annex" || facilities[1].EventCount != 2 {
		t.Fatalf("unexpected facilities %+v", facilities)
	}

	events, err := f.scheduling.FacilityEvents(ctx, visitor, "hall a", "101")
	if err != nil || len(events) != 1 || events[0].ID != "a" {
		t.Fatalf("visitors see occupying bookings only, got %+v (%v)", events, err)
	}
	events, err = f.scheduling.FacilityEvents(ctx, admin, "hall a", "101")
	if err != nil || len(events) != 2 {
		t.Fatalf("admins see every booking, got %+v (%v)", events, err)
	}

	f.store.addEvent(locatedEvent("d", "sched-1", "Gym", "main", approval.StatusApproved, at(0, 9, 0), at(0, 10, 0)))
	if err := f.scheduling.RefreshFacilities(ctx); err != nil {
		t.Fatalf("RefreshFacilities: %v", err)
	}
	facilities, _ = f.scheduling.ListFacilities(ctx)
	if len(facilities) != 3 {
		t.Fatalf("refresh should pick up new bookings, got %+v", facilities)
	}
}
