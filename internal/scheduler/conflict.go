package scheduler

import "sort"

// Conflict describes two overlapping bookings in the same scope.
type Conflict struct {
	First   Event
	Second  Event
	Overlap Interval
}

// OverlapMinutes returns the length of the shared window in minutes.
func (c Conflict) OverlapMinutes() int {
	return c.Overlap.DurationMinutes()
}

// DetectConflicts reports every pair of pending or approved events that
// overlap. Pairs are ordered by the first event's start, then the second's.
func DetectConflicts(events []Event) []Conflict {
	active := make([]Event, 0, len(events))
	for _, event := range events {
		if event.Occupies() {
			active = append(active, event)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Interval.Start.Equal(active[j].Interval.Start) {
			return active[i].ID < active[j].ID
		}
		return active[i].Interval.Start.Before(active[j].Interval.Start)
	})

	var conflicts []Conflict
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			// Sorted by start: once a later event starts after this one ends,
			// no further event can overlap it.
			if !active[j].Interval.Start.Before(active[i].Interval.End) {
				break
			}
			overlap, ok := active[i].Interval.Intersection(active[j].Interval)
			if !ok {
				continue
			}
			conflicts = append(conflicts, Conflict{
				First:   active[i].Clone(),
				Second:  active[j].Clone(),
				Overlap: overlap,
			})
		}
	}
	return conflicts
}

// FirstChainOverlap checks a series of intervals, such as the occurrences of
// a recurring event, for self-overlap. It returns the index (in start order)
// of the first interval that overlaps its predecessor.
func FirstChainOverlap(intervals []Interval) (int, bool) {
	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].End.After(sorted[i].Start) {
			return i, true
		}
	}
	return 0, false
}
