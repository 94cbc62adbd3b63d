package scheduler

import (
	"sync"
	"testing"

	"github.com/Lowii-3dy/campus-sched/internal/approval"
)

func TestFacilityIndexLifecycle(t *testing.T) {
	t.Parallel()

	lab := &Location{Building: "Engineering", Room: "B12"}
	hall := &Location{Building: "Main Hall", Room: "Auditorium"}

	a := booking(t, "A", 9, 0, 10, 0, approval.StatusApproved)
	a.Location = lab
	b := booking(t, "B", 10, 0, 11, 0, approval.StatusPending)
	b.Location = lab
	unlocated := booking(t, "C", 9, 0, 10, 0, approval.StatusApproved)

	index := NewFacilityIndex([]Event{a, b, unlocated})
	if index.Len() != 2 {
		t.Fatalf("expected 2 indexed events, got %d", index.Len())
	}

	events := index.EventsAt("engineering", "b12")
	if len(events) != 2 || events[0].ID != "A" || events[1].ID != "B" {
		t.Fatalf("expected insertion order A, B, got %+v", events)
	}

	t.Run("returned events are copies", func(t *testing.T) {
		events[0].Location.Room = "changed"
		again := index.EventsAt("Engineering", "B12")
		if again[0].Location.Room != "B12" {
			t.Fatal("index must not share locations with callers")
		}
	})

	t.Run("upsert updates in place", func(t *testing.T) {
		moved := a
		moved.Interval = mustInterval(t, at(14, 0), at(15, 0))
		index.Upsert(moved)
		events := index.EventsAt("Engineering", "B12")
		if len(events) != 2 || events[0].ID != "A" || !events[0].Interval.Start.Equal(at(14, 0)) {
			t.Fatalf("expected A updated in place, got %+v", events)
		}
	})

	t.Run("upsert moves between facilities", func(t *testing.T) {
		relocated := b
		relocated.Location = hall
		index.Upsert(relocated)
		if got := index.EventsAt("Engineering", "B12"); len(got) != 1 {
			t.Fatalf("expected one event left in the lab, got %d", len(got))
		}
		if got := index.EventsAt("main hall", "auditorium"); len(got) != 1 || got[0].ID != "B" {
			t.Fatalf("expected B in the hall, got %+v", got)
		}
	})

	t.Run("removing a location drops the event", func(t *testing.T) {
		cleared := b
		cleared.Location = nil
		index.Upsert(cleared)
		if got := index.EventsAt("Main Hall", "Auditorium"); len(got) != 0 {
			t.Fatalf("expected empty hall, got %+v", got)
		}
	})

	t.Run("facilities are listed in order", func(t *testing.T) {
		index.Upsert(b)
		index.Upsert(Event{ID: "Z", Location: &Location{Building: "Annex", Room: "1"}, Interval: a.Interval, Status: approval.StatusApproved})
		facilities := index.Facilities()
		if len(facilities) != 2 {
			t.Fatalf("expected 2 facilities, got %+v", facilities)
		}
		if facilities[0].Building != "Annex" || facilities[1].Building != "Engineering" {
			t.Fatalf("unexpected order %+v", facilities)
		}
		if facilities[1].EventCount != 2 {
			t.Fatalf("expected 2 lab events, got %d", facilities[1].EventCount)
		}
	})

	t.Run("remove", func(t *testing.T) {
		index.Remove("Z")
		index.Remove("missing")
		if got := index.EventsAt("Annex", "1"); len(got) != 0 {
			t.Fatalf("expected Z removed, got %+v", got)
		}
	})
}

func TestFacilityIndexConcurrentAccess(t *testing.T) {
	t.Parallel()

	index := NewFacilityIndex(nil)
	location := &Location{Building: "Library", Room: "3F"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			event := booking(t, string(rune('a'+i)), 9, 0, 10, 0, approval.StatusApproved)
			event.Location = location
			index.Upsert(event)
			_ = index.EventsAt("Library", "3F")
			_ = index.Facilities()
		}(i)
	}
	wg.Wait()

	if got := len(index.EventsAt("library", "3f")); got != 8 {
		t.Fatalf("expected 8 events, got %d", got)
	}
}
