package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig tunes the scheduling engine and background jobs.
type EngineConfig struct {
	Suggestions SuggestionConfig `yaml:"suggestions"`

	// FacilityCacheTTL bounds how long a facility index snapshot is served
	// before it is rebuilt from storage.
	FacilityCacheTTL time.Duration `yaml:"facility_cache_ttl"`

	// MaxOccurrences caps a single recurrence expansion.
	MaxOccurrences int `yaml:"max_occurrences"`

	Jobs JobsConfig `yaml:"jobs"`
}

// SuggestionConfig controls the alternative time search.
type SuggestionConfig struct {
	Step         time.Duration `yaml:"step"`
	HorizonDays  int           `yaml:"horizon_days"`
	Limit        int           `yaml:"limit"`
	DayStartHour int           `yaml:"day_start_hour"`
	DayEndHour   int           `yaml:"day_end_hour"`
}

// JobsConfig holds cron specs for periodic maintenance. An empty spec after
// normalisation never happens; use "-" to disable a job.
type JobsConfig struct {
	FacilityRefresh       string        `yaml:"facility_refresh"`
	NotificationPurge     string        `yaml:"notification_purge"`
	NotificationRetention time.Duration `yaml:"notification_retention"`
}

// DefaultEngineConfig mirrors the campus defaults: five 30 minute
// suggestions within the next week between 08:00 and 18:00.
func DefaultEngineConfig() EngineConfig {
	cfg := EngineConfig{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing or out of range values with defaults so that
// partially filled files still behave correctly.
func (c *EngineConfig) Normalize() {
	if c.Suggestions.Step <= 0 {
		c.Suggestions.Step = 30 * time.Minute
	}
	if c.Suggestions.HorizonDays <= 0 {
		c.Suggestions.HorizonDays = 7
	}
	if c.Suggestions.Limit <= 0 {
		c.Suggestions.Limit = 5
	}
	if c.Suggestions.DayStartHour == 0 && c.Suggestions.DayEndHour == 0 {
		c.Suggestions.DayStartHour, c.Suggestions.DayEndHour = 8, 18
	}
	if c.Suggestions.DayStartHour < 0 || c.Suggestions.DayEndHour > 24 || c.Suggestions.DayEndHour <= c.Suggestions.DayStartHour {
		c.Suggestions.DayStartHour, c.Suggestions.DayEndHour = 8, 18
	}
	if c.FacilityCacheTTL <= 0 {
		c.FacilityCacheTTL = 5 * time.Minute
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = 500
	}
	if c.Jobs.FacilityRefresh == "" {
		c.Jobs.FacilityRefresh = "@every 5m"
	}
	if c.Jobs.NotificationPurge == "" {
		c.Jobs.NotificationPurge = "@daily"
	}
	if c.Jobs.NotificationRetention <= 0 {
		c.Jobs.NotificationRetention = 30 * 24 * time.Hour
	}
}

// LoadEngineConfig reads a YAML engine file and normalises it.
func LoadEngineConfig(path string) (EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("read engine config: %w", err)
	}
	return ParseEngineConfig(data)
}

// ParseEngineConfig decodes YAML engine settings. Unknown keys are rejected
// so that typos do not silently fall back to defaults.
func ParseEngineConfig(data []byte) (EngineConfig, error) {
	var cfg EngineConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return EngineConfig{}, fmt.Errorf("parse engine config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}
