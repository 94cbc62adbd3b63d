package scheduler

import (
	"sort"
	"sync"
)

// FacilitySummary describes a facility known to the index.
type FacilitySummary struct {
	Building   string
	Room       string
	EventCount int
}

// FacilityIndex maps facilities to the events booked there, in insertion
// order. It is a derived view over events and is safe for concurrent use.
type FacilityIndex struct {
	mu      sync.RWMutex
	byKey   map[FacilityKey][]Event
	keyByID map[string]FacilityKey
	display map[FacilityKey]Location
}

// NewFacilityIndex builds an index from events. Events without a location
// are ignored.
func NewFacilityIndex(events []Event) *FacilityIndex {
	idx := &FacilityIndex{
		byKey:   make(map[FacilityKey][]Event),
		keyByID: make(map[string]FacilityKey),
		display: make(map[FacilityKey]Location),
	}
	for _, event := range events {
		idx.upsertLocked(event)
	}
	return idx
}

// EventsAt returns a copy of the events booked at the facility.
func (idx *FacilityIndex) EventsAt(building, room string) []Event {
	if idx == nil {
		return nil
	}
	key := NewFacilityKey(building, room)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	events := idx.byKey[key]
	if len(events) == 0 {
		return nil
	}
	out := make([]Event, len(events))
	for i, event := range events {
		out[i] = event.Clone()
	}
	return out
}

// Upsert adds or replaces an event. Moving an event to another facility or
// removing its location is handled by dropping the previous entry first.
func (idx *FacilityIndex) Upsert(event Event) {
	if idx == nil {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.upsertLocked(event)
}

// Remove drops an event from the index.
func (idx *FacilityIndex) Remove(eventID string) {
	if idx == nil {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(eventID)
}

// Facilities lists every facility in the index ordered by building and room.
func (idx *FacilityIndex) Facilities() []FacilitySummary {
	if idx == nil {
		return nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]FacilitySummary, 0, len(idx.byKey))
	for key, events := range idx.byKey {
		loc := idx.display[key]
		out = append(out, FacilitySummary{Building: loc.Building, Room: loc.Room, EventCount: len(events)})
	}
	sort.Slice(out, func(i, j int) bool {
		ki := NewFacilityKey(out[i].Building, out[i].Room)
		kj := NewFacilityKey(out[j].Building, out[j].Room)
		if ki.Building == kj.Building {
			return ki.Room < kj.Room
		}
		return ki.Building < kj.Building
	})
	return out
}

// Len returns the number of indexed events.
func (idx *FacilityIndex) Len() int {
	if idx == nil {
		return 0
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.keyByID)
}

func (idx *FacilityIndex) upsertLocked(event Event) {
	if current, ok := idx.keyByID[event.ID]; ok && event.Location != nil && current == event.Location.Key() {
		events := idx.byKey[current]
		for i := range events {
			if events[i].ID == event.ID {
				events[i] = event.Clone()
				return
			}
		}
	}

	idx.removeLocked(event.ID)
	if event.Location == nil {
		return
	}
	key := event.Location.Key()
	if key.IsZero() {
		return
	}
	idx.byKey[key] = append(idx.byKey[key], event.Clone())
	idx.keyByID[event.ID] = key
	if _, ok := idx.display[key]; !ok {
		idx.display[key] = *event.Location
	}
}

func (idx *FacilityIndex) removeLocked(eventID string) {
	key, ok := idx.keyByID[eventID]
	if !ok {
		return
	}
	delete(idx.keyByID, eventID)

	events := idx.byKey[key]
	for i := range events {
		if events[i].ID == eventID {
			events = append(events[:i:i], events[i+1:]...)
			break
		}
	}
	if len(events) == 0 {
		delete(idx.byKey, key)
		delete(idx.display, key)
		return
	}
	idx.byKey[key] = events
}
