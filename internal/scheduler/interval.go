package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval constructs an interval, rejecting empty or inverted ranges.
func NewInterval(start, end time.Time) (Interval, error) {
	if start.IsZero() || end.IsZero() {
		return Interval{}, fmt.Errorf("%w: start and end are required", ErrInvalidInterval)
	}
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidInterval,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without an offset are
// interpreted in loc (UTC when nil).
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrInvalidInterval)
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not an ISO-8601 timestamp", ErrInvalidInterval, value)
}

// ParseInterval parses a pair of ISO-8601 timestamps into an interval.
func ParseInterval(start, end string, loc *time.Location) (Interval, error) {
	s, err := ParseTimestamp(start, loc)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseTimestamp(end, loc)
	if err != nil {
		return Interval{}, err
	}
	return NewInterval(s, e)
}

// Overlaps reports whether the intervals share any instant. Touching
// endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Overlaps is the method form of Overlaps.
func (i Interval) Overlaps(other Interval) bool {
	return Overlaps(i, other)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// DurationMinutes returns the length of the interval in whole minutes.
func (i Interval) DurationMinutes() int {
	return int(i.Duration() / time.Minute)
}

// ShiftTo moves the interval to start at newStart, keeping its duration.
func (i Interval) ShiftTo(newStart time.Time) Interval {
	return Interval{Start: newStart, End: newStart.Add(i.Duration())}
}

// Contains reports whether t falls inside the interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Intersection returns the shared part of two intervals.
func (i Interval) Intersection(other Interval) (Interval, bool) {
	if !Overlaps(i, other) {
		return Interval{}, false
	}
	start := i.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := i.End
	if other.End.Before(end) {
		end = other.End
	}
	return Interval{Start: start, End: end}, true
}

// UTC returns the interval with both bounds converted to UTC.
func (i Interval) UTC() Interval {
	return Interval{Start: i.Start.UTC(), End: i.End.UTC()}
}

func (i Interval) String() string {
	return i.Start.Format(time.RFC3339) + "/" + i.End.Format(time.RFC3339)
}
