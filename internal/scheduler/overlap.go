package scheduler

// OverlapResult reports the first conflicting event in a schedule scope.
type OverlapResult struct {
	HasOverlap       bool
	ConflictingEvent *Event
}

// AvailabilityResult reports every conflicting booking at a facility.
type AvailabilityResult struct {
	Available     bool
	ConflictCount int
	Conflicts     []Event
}

// FacilityLookup returns the events booked at a facility.
type FacilityLookup interface {
	EventsAt(building, room string) []Event
}

// CheckEventOverlap scans scopeEvents in order and returns the first pending
// or approved event, other than excludeEventID, that overlaps candidate. The
// result is not exhaustive; use DetectConflicts for a full report.
func CheckEventOverlap(scopeEvents []Event, candidate Interval, excludeEventID string) OverlapResult {
	for i := range scopeEvents {
		event := scopeEvents[i]
		if excludeEventID != "" && event.ID == excludeEventID {
			continue
		}
		if !event.Occupies() {
			continue
		}
		if Overlaps(event.Interval, candidate) {
			conflict := event.Clone()
			return OverlapResult{HasOverlap: true, ConflictingEvent: &conflict}
		}
	}
	return OverlapResult{}
}

// CheckFacilityAvailability counts all pending or approved bookings at the
// facility that overlap candidate, across every schedule.
func CheckFacilityAvailability(index FacilityLookup, building, room string, candidate Interval, excludeEventID string) AvailabilityResult {
	result := AvailabilityResult{Available: true}
	if index == nil {
		return result
	}
	for _, event := range index.EventsAt(building, room) {
		if excludeEventID != "" && event.ID == excludeEventID {
			continue
		}
		if !event.Occupies() || !Overlaps(event.Interval, candidate) {
			continue
		}
		result.Conflicts = append(result.Conflicts, event.Clone())
	}
	result.ConflictCount = len(result.Conflicts)
	result.Available = result.ConflictCount == 0
	return result
}
