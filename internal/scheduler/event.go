package scheduler

import (
	"strings"

	"github.com/Lowii-3dy/campus-sched/internal/approval"
)

// Location identifies a bookable campus facility.
type Location struct {
	Building string
	Room     string
}

// Key returns the normalised facility key for the location.
func (l Location) Key() FacilityKey {
	return NewFacilityKey(l.Building, l.Room)
}

// FacilityKey is the normalised (building, room) pair used for lookups.
// Matching ignores surrounding whitespace and case.
type FacilityKey struct {
	Building string
	Room     string
}

// NewFacilityKey normalises a building and room into a key.
func NewFacilityKey(building, room string) FacilityKey {
	return FacilityKey{
		Building: strings.ToLower(strings.TrimSpace(building)),
		Room:     strings.ToLower(strings.TrimSpace(room)),
	}
}

// IsZero reports whether the key names no facility.
func (k FacilityKey) IsZero() bool {
	return k.Building == "" && k.Room == ""
}

// Event is the engine's view of a scheduled event.
type Event struct {
	ID               string
	ScheduleID       string
	Title            string
	Interval         Interval
	Location         *Location
	Status           approval.Status
	OrganizerID      string
	RequiresApproval bool
}

// Occupies reports whether the event blocks its time slot.
func (e Event) Occupies() bool {
	return e.Status.Occupies()
}

// Clone returns a copy that shares no pointers with e.
func (e Event) Clone() Event {
	out := e
	if e.Location != nil {
		loc := *e.Location
		out.Location = &loc
	}
	return out
}
