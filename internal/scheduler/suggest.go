package scheduler

import "time"

// SuggestConfig tunes the alternative time search.
type SuggestConfig struct {
	// Step is the distance between tested start times.
	Step time.Duration
	// HorizonDays bounds the search. One means the candidate's own day.
	HorizonDays int
	// Limit caps the number of suggestions returned.
	Limit int
	// DayStartHour and DayEndHour restrict slots to a daily window when
	// DayEndHour > DayStartHour. Zero values disable the window.
	DayStartHour int
	DayEndHour   int
}

// DefaultSuggestConfig returns a same-day search in 30 minute steps.
func DefaultSuggestConfig() SuggestConfig {
	return SuggestConfig{Step: 30 * time.Minute, HorizonDays: 1, Limit: 5}
}

// SuggestOptions customises a single search.
type SuggestOptions struct {
	// DurationMinutes overrides the candidate's duration when positive.
	DurationMinutes int
	// ExcludeEventID ignores the event being moved.
	ExcludeEventID string
	// Limit overrides the configured limit when positive.
	Limit int
}

// Suggestion is a free slot together with its weekday for display.
type Suggestion struct {
	Interval Interval
	Weekday  time.Weekday
}

// Suggester proposes non-conflicting alternatives to a candidate interval.
type Suggester struct {
	cfg      SuggestConfig
	location *time.Location
}

// NewSuggester builds a suggester. Day boundaries are evaluated in loc.
func NewSuggester(cfg SuggestConfig, loc *time.Location) *Suggester {
	defaults := DefaultSuggestConfig()
	if cfg.Step <= 0 {
		cfg.Step = defaults.Step
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = defaults.HorizonDays
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaults.Limit
	}
	if cfg.DayStartHour < 0 || cfg.DayEndHour > 24 || cfg.DayEndHour <= cfg.DayStartHour {
		cfg.DayStartHour, cfg.DayEndHour = 0, 0
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Suggester{cfg: cfg, location: loc}
}

// Config returns the effective configuration.
func (s *Suggester) Config() SuggestConfig {
	return s.cfg
}

// Suggest searches forward from the candidate's start and returns the
// earliest free slots of the requested duration. An empty result means no
// slot exists inside the horizon.
func (s *Suggester) Suggest(scopeEvents []Event, candidate Interval, opts SuggestOptions) []Suggestion {
	duration := candidate.Duration()
	if opts.DurationMinutes > 0 {
		duration = time.Duration(opts.DurationMinutes) * time.Minute
	}
	if duration <= 0 {
		return nil
	}
	limit := s.cfg.Limit
	if opts.Limit > 0 {
		limit = opts.Limit
	}

	start := candidate.Start.In(s.location)
	horizonEnd := startOfDay(start).AddDate(0, 0, s.cfg.HorizonDays)

	var out []Suggestion
	for t := start; !t.Add(duration).After(horizonEnd); t = t.Add(s.cfg.Step) {
		slot := Interval{Start: t, End: t.Add(duration)}
		if !s.inWindow(slot) {
			continue
		}
		if CheckEventOverlap(scopeEvents, slot, opts.ExcludeEventID).HasOverlap {
			continue
		}
		out = append(out, Suggestion{Interval: slot, Weekday: t.Weekday()})
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (s *Suggester) inWindow(slot Interval) bool {
	if s.cfg.DayEndHour <= s.cfg.DayStartHour {
		return true
	}
	day := startOfDay(slot.Start)
	open := day.Add(time.Duration(s.cfg.DayStartHour) * time.Hour)
	closing := day.Add(time.Duration(s.cfg.DayEndHour) * time.Hour)
	return !slot.Start.Before(open) && !slot.End.After(closing)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
