package application

import (
	"context"

	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

// conflictSuggestionLimit caps the alternatives attached to a ConflictError.
const conflictSuggestionLimit = 3

// conflictGuard runs the advisory overlap checks before a write. Storage
// repeats the schedule check inside its transaction.
type conflictGuard struct {
	source    EventSource
	suggester *scheduler.Suggester
}

// check returns a *ConflictError when candidate would overlap an occupying
// event in its schedule or at its facility. Non-occupying candidates never
// conflict.
func (g conflictGuard) check(ctx context.Context, candidate scheduler.Event) error {
	if !candidate.Occupies() || g.source == nil {
		return nil
	}

	scope, err := g.source.FetchScheduleEvents(ctx, candidate.ScheduleID)
	if err != nil {
		return unavailable("fetch schedule events", err)
	}
	if result := scheduler.CheckEventOverlap(scope, candidate.Interval, candidate.ID); result.HasOverlap {
		return &ConflictError{
			Scope:            ConflictScopeSchedule,
			ConflictingEvent: result.ConflictingEvent,
			Suggestions:      g.suggest(scope, candidate),
		}
	}

	if candidate.Location == nil || candidate.Location.Key().IsZero() {
		return nil
	}
	building, room := candidate.Location.Building, candidate.Location.Room
	booked, err := g.source.FetchFacilityEvents(ctx, building, room)
	if err != nil {
		return unavailable("fetch facility events", err)
	}
	availability := scheduler.CheckFacilityAvailability(scheduler.NewFacilityIndex(booked), building, room, candidate.Interval, candidate.ID)
	if availability.Available {
		return nil
	}
	first := availability.Conflicts[0]
	combined := make([]scheduler.Event, 0, len(scope)+len(booked))
	combined = append(combined, scope...)
	combined = append(combined, booked...)
	return &ConflictError{
		Scope:            ConflictScopeFacility,
		ConflictingEvent: &first,
		Suggestions:      g.suggest(combined, candidate),
	}
}

func (g conflictGuard) suggest(scope []scheduler.Event, candidate scheduler.Event) []scheduler.Suggestion {
	if g.suggester == nil {
		return nil
	}
	return g.suggester.Suggest(scope, candidate.Interval, scheduler.SuggestOptions{
		ExcludeEventID: candidate.ID,
		Limit:          conflictSuggestionLimit,
	})
}

// withCommitConflict fills in a ConflictError raised by storage at commit
// time, which carries no details, with the event that won the race.
func (g conflictGuard) withCommitConflict(ctx context.Context, candidate scheduler.Event, err error) error {
	conflict, ok := err.(*ConflictError)
	if !ok || conflict.ConflictingEvent != nil {
		return err
	}
	if detailed := g.check(ctx, candidate); detailed != nil {
		if _, ok := detailed.(*ConflictError); ok {
			return detailed
		}
	}
	return conflict
}
