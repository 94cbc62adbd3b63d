package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency represents supported recurrence intervals.
type Frequency string

const (
	// FrequencyNone marks a one-off event.
	FrequencyNone Frequency = ""
	// FrequencyDaily repeats every day, optionally limited to Weekdays.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly repeats on the start's weekday, or on Weekdays when set.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyMonthly repeats on the start's day of month.
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency converts user input into a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	switch freq := Frequency(strings.ToLower(strings.TrimSpace(value))); freq {
	case FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return freq, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, value)
	}
}

// Rule describes how an event repeats.
type Rule struct {
	Frequency Frequency
	Weekdays  []time.Weekday
	Until     *time.Time
}

// IsRecurring reports whether the rule produces more than one occurrence.
func (r Rule) IsRecurring() bool {
	return r.Frequency != FrequencyNone
}

// GenerateOptions bounds occurrence generation.
type GenerateOptions struct {
	RangeStart time.Time
	RangeEnd   time.Time
}

// Occurrence represents a generated instance of a recurring event.
type Occurrence struct {
	EventID string
	Start   time.Time
	End     time.Time
}

// Engine expands recurrence rules into occurrences.
type Engine struct {
	location       *time.Location
	maxOccurrences int
}

// NewEngine constructs an Engine that evaluates rules in loc. When loc is nil
// UTC is used. maxOccurrences caps a single expansion; values <= 0 use 500.
func NewEngine(loc *time.Location, maxOccurrences int) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if maxOccurrences <= 0 {
		maxOccurrences = 500
	}
	return &Engine{location: loc, maxOccurrences: maxOccurrences}
}

var (
	// ErrInvalidFrequency indicates the recurrence frequency is not supported.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidWindow indicates the generation window is empty or unbounded.
	ErrInvalidWindow = errors.New("recurrence: generation window requires start before end")
	// ErrInvalidDuration indicates the base event duration is invalid.
	ErrInvalidDuration = errors.New("recurrence: event duration must be positive")
)

// GenerateOccurrences returns the occurrences of an event whose first
// instance is [baseStart, baseEnd) that start inside the options' range. A
// non-recurring rule yields the base instance when it falls in range.
func (e *Engine) GenerateOccurrences(eventID string, rule Rule, baseStart, baseEnd time.Time, opts GenerateOptions) ([]Occurrence, error) {
	if !baseEnd.After(baseStart) {
		return nil, ErrInvalidDuration
	}
	if opts.RangeStart.IsZero() || !opts.RangeEnd.After(opts.RangeStart) {
		return nil, ErrInvalidWindow
	}
	duration := baseEnd.Sub(baseStart)

	if !rule.IsRecurring() {
		if baseStart.Before(opts.RangeStart) || !baseStart.Before(opts.RangeEnd) {
			return nil, nil
		}
		return []Occurrence{{EventID: eventID, Start: baseStart, End: baseEnd}}, nil
	}

	r, err := e.build(rule, baseStart)
	if err != nil {
		return nil, err
	}

	starts := r.Between(opts.RangeStart.In(e.location), opts.RangeEnd.In(e.location), true)
	if len(starts) > e.maxOccurrences {
		starts = starts[:e.maxOccurrences]
	}

	occurrences := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		if !start.Before(opts.RangeEnd) {
			continue
		}
		occurrences = append(occurrences, Occurrence{
			EventID: eventID,
			Start:   start,
			End:     start.Add(duration),
		})
	}
	return occurrences, nil
}

// RRule renders the rule as an RFC 5545 RRULE value, without DTSTART.
func (e *Engine) RRule(rule Rule, baseStart time.Time) (string, error) {
	if !rule.IsRecurring() {
		return "", nil
	}
	opt, err := e.options(rule, baseStart)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

func (e *Engine) build(rule Rule, baseStart time.Time) (*rrule.RRule, error) {
	opt, err := e.options(rule, baseStart)
	if err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("recurrence: build rule: %w", err)
	}
	return r, nil
}

func (e *Engine) options(rule Rule, baseStart time.Time) (*rrule.ROption, error) {
	opt := &rrule.ROption{Dtstart: baseStart.In(e.location)}
	switch rule.Frequency {
	case FrequencyDaily:
		opt.Freq = rrule.DAILY
	case FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, rule.Frequency)
	}
	if rule.Until != nil {
		opt.Until = rule.Until.In(e.location)
	}
	for _, day := range rule.Weekdays {
		opt.Byweekday = append(opt.Byweekday, toRRuleWeekday(day))
	}
	return opt, nil
}

func toRRuleWeekday(day time.Weekday) rrule.Weekday {
	switch day {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}
