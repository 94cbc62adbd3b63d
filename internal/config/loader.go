package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort          int
	SQLiteDSN         string
	TokenSecret       string
	TokenTTL          time.Duration
	NATSURL           string
	NATSSubjectPrefix string
	EngineConfigPath  string
	Timezone          string
	Location          *time.Location
	Engine            EngineConfig
}

// DefaultSQLiteDSN enables foreign keys, which the cascade deletes rely on.
const DefaultSQLiteDSN = "file:scheduler.db?_pragma=foreign_keys(1)"

// LoadDotEnv loads .env style files into the process environment. Missing
// files are ignored; variables already set win over file values.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Every missing or invalid variable is
// collected so that a single error reports all of them. When
// SCHEDULER_ENGINE_CONFIG names a file, engine tuning is read from it.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          8080,
		SQLiteDSN:         DefaultSQLiteDSN,
		TokenTTL:          24 * time.Hour,
		NATSSubjectPrefix: "campus.scheduling",
		Timezone:          "UTC",
		Location:          time.UTC,
		Engine:            DefaultEngineConfig(),
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("SCHEDULER_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("SCHEDULER_TOKEN_SECRET")); secret == "" {
		missing = append(missing, "SCHEDULER_TOKEN_SECRET")
	} else {
		cfg.TokenSecret = secret
	}

	if ttlValue := strings.TrimSpace(os.Getenv("SCHEDULER_TOKEN_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SCHEDULER_TOKEN_TTL")
		} else {
			cfg.TokenTTL = ttl
		}
	}

	cfg.NATSURL = strings.TrimSpace(os.Getenv("SCHEDULER_NATS_URL"))
	if prefix := strings.Trim(strings.TrimSpace(os.Getenv("SCHEDULER_NATS_SUBJECT_PREFIX")), "."); prefix != "" {
		cfg.NATSSubjectPrefix = prefix
	}

	if tz := strings.TrimSpace(os.Getenv("SCHEDULER_TIMEZONE")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "SCHEDULER_TIMEZONE")
		} else {
			cfg.Timezone, cfg.Location = tz, loc
		}
	}

	if path := strings.TrimSpace(os.Getenv("SCHEDULER_ENGINE_CONFIG")); path != "" {
		cfg.EngineConfigPath = path
		engine, err := LoadEngineConfig(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Engine = engine
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// ListenAddr returns the address the HTTP server binds to.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
