package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := ReferenceTime()
	clock := NewClock(start)
	nowFn := clock.NowFunc()

	if updated := clock.Advance(90 * time.Minute); !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}
	if !nowFn().Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("NowFunc did not observe the advance")
	}

	clock.Set(start)
	if !nowFn().Equal(start) {
		t.Fatalf("expected %v after Set, got %v", start, nowFn())
	}
}

func TestClockAdvanceDaysKeepsWallClock(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Friday before the October 2024 DST change.
	clock := NewClock(time.Date(2024, time.October, 25, 9, 0, 0, 0, berlin))

	got := clock.AdvanceDays(3, berlin)
	if got.Hour() != 9 || got.Day() != 28 {
		t.Fatalf("expected 09:00 on the 28th, got %v", got)
	}
	if got.Sub(time.Date(2024, time.October, 25, 9, 0, 0, 0, berlin)) != 73*time.Hour {
		t.Fatalf("expected the extra DST hour to be absorbed, got %v", got)
	}
}

func TestClockTicking(t *testing.T) {
	start := ReferenceTime()
	clock := NewClock(start)
	tick := clock.Ticking(time.Second)

	first, second := tick(), tick()
	if !first.Equal(start) || !second.Equal(start.Add(time.Second)) {
		t.Fatalf("unexpected ticks %v, %v", first, second)
	}
	if !clock.Now().Equal(start.Add(2 * time.Second)) {
		t.Fatalf("expected the clock to advance with each tick, got %v", clock.Now())
	}
}
