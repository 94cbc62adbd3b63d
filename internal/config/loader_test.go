package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var schedulerVars = []string{
	"SCHEDULER_HTTP_PORT",
	"SCHEDULER_SQLITE_DSN",
	"SCHEDULER_TOKEN_SECRET",
	"SCHEDULER_TOKEN_TTL",
	"SCHEDULER_NATS_URL",
	"SCHEDULER_NATS_SUBJECT_PREFIX",
	"SCHEDULER_ENGINE_CONFIG",
	"SCHEDULER_TIMEZONE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range schedulerVars {
		t.Setenv(key, "")
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		const secret = "super-secret"
		t.Setenv("SCHEDULER_TOKEN_SECRET", secret)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 || cfg.ListenAddr() != ":8080" {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != DefaultSQLiteDSN {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.TokenSecret != secret || cfg.TokenTTL != 24*time.Hour {
			t.Fatalf("unexpected token settings: %q %s", cfg.TokenSecret, cfg.TokenTTL)
		}
		if cfg.NATSURL != "" || cfg.NATSSubjectPrefix != "campus.scheduling" {
			t.Fatalf("unexpected NATS settings: %q %q", cfg.NATSURL, cfg.NATSSubjectPrefix)
		}
		if cfg.Location != time.UTC {
			t.Fatalf("expected UTC location, got %v", cfg.Location)
		}
		if cfg.Engine != DefaultEngineConfig() {
			t.Fatalf("expected default engine settings, got %+v", cfg.Engine)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "missing required environment variables: SCHEDULER_TOKEN_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_TOKEN_SECRET", "secret")
		t.Setenv("SCHEDULER_HTTP_PORT", "http")
		t.Setenv("SCHEDULER_TOKEN_TTL", "-1h")
		t.Setenv("SCHEDULER_TIMEZONE", "Mars/Olympus")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, key := range []string{"SCHEDULER_HTTP_PORT", "SCHEDULER_TOKEN_TTL", "SCHEDULER_TIMEZONE"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in %q", key, err.Error())
			}
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_TOKEN_SECRET", "secret-value")
		t.Setenv("SCHEDULER_HTTP_PORT", "9090")
		t.Setenv("SCHEDULER_SQLITE_DSN", "file:/tmp/scheduler.db")
		t.Setenv("SCHEDULER_TOKEN_TTL", "2h")
		t.Setenv("SCHEDULER_NATS_URL", "nats://localhost:4222")
		t.Setenv("SCHEDULER_NATS_SUBJECT_PREFIX", "uni.events.")
		t.Setenv("SCHEDULER_TIMEZONE", "Asia/Tokyo")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.TokenTTL != 2*time.Hour {
			t.Fatalf("expected token TTL 2h, got %s", cfg.TokenTTL)
		}
		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:/tmp/scheduler.db" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.NATSURL != "nats://localhost:4222" || cfg.NATSSubjectPrefix != "uni.events" {
			t.Fatalf("unexpected NATS settings: %q %q", cfg.NATSURL, cfg.NATSSubjectPrefix)
		}
		if cfg.Location.String() != "Asia/Tokyo" {
			t.Fatalf("unexpected location %v", cfg.Location)
		}
	})

	t.Run("reads the engine file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "engine.yaml")
		content := "suggestions:\n  step: 15m\n  limit: 3\nfacility_cache_ttl: 1m\njobs:\n  notification_purge: \"0 3 * * *\"\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write engine file: %v", err)
		}
		t.Setenv("SCHEDULER_TOKEN_SECRET", "secret")
		t.Setenv("SCHEDULER_ENGINE_CONFIG", path)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.Engine.Suggestions.Step != 15*time.Minute || cfg.Engine.Suggestions.Limit != 3 {
			t.Fatalf("unexpected suggestions %+v", cfg.Engine.Suggestions)
		}
		if cfg.Engine.Suggestions.HorizonDays != 7 || cfg.Engine.Jobs.FacilityRefresh != "@every 5m" {
			t.Fatalf("missing values should fall back to defaults, got %+v", cfg.Engine)
		}
		if cfg.Engine.Jobs.NotificationPurge != "0 3 * * *" || cfg.Engine.FacilityCacheTTL != time.Minute {
			t.Fatalf("unexpected engine values %+v", cfg.Engine)
		}
	})

	t.Run("fails on an unreadable engine file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_TOKEN_SECRET", "secret")
		t.Setenv("SCHEDULER_ENGINE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for missing engine file")
		}
	})
}

func TestParseEngineConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(EngineConfig) bool
	}{
		{
			name:  "empty document uses defaults",
			yaml:  "",
			check: func(c EngineConfig) bool { return c == DefaultEngineConfig() },
		},
		{
			name: "inverted day window is reset",
			yaml: "suggestions:\n  day_start_hour: 19\n  day_end_hour: 7\n",
			check: func(c EngineConfig) bool {
				return c.Suggestions.DayStartHour == 8 && c.Suggestions.DayEndHour == 18
			},
		},
		{
			name: "custom window is kept",
			yaml: "suggestions:\n  day_start_hour: 7\n  day_end_hour: 22\n",
			check: func(c EngineConfig) bool {
				return c.Suggestions.DayStartHour == 7 && c.Suggestions.DayEndHour == 22
			},
		},
		{
			name:    "unknown keys are rejected",
			yaml:    "suggestion:\n  limit: 2\n",
			wantErr: true,
		},
		{
			name:    "bad durations are rejected",
			yaml:    "facility_cache_ttl: soon\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := ParseEngineConfig([]byte(tt.yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEngineConfig: %v", err)
			}
			if !tt.check(cfg) {
				t.Fatalf("unexpected config %+v", cfg)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("SCHEDULER_NATS_SUBJECT_PREFIX=from.file\nSCHEDULER_TOKEN_TTL=3h\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	clearEnv(t)
	// godotenv keeps variables that exist, even empty ones.
	os.Unsetenv("SCHEDULER_NATS_SUBJECT_PREFIX")
	os.Unsetenv("SCHEDULER_TOKEN_TTL")

	if err := LoadDotEnv(path, filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SCHEDULER_NATS_SUBJECT_PREFIX"); got != "from.file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("SCHEDULER_TOKEN_TTL"); got != "3h" {
		t.Fatalf("expected value from file, got %q", got)
	}
}

func TestDefaultEngineConfigSuggestions(t *testing.T) {
	t.Parallel()

	got := DefaultEngineConfig().Suggestions
	want := SuggestionConfig{Step: 30 * time.Minute, HorizonDays: 7, Limit: 5, DayStartHour: 8, DayEndHour: 18}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}
