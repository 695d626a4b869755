// Package config defines service configuration and how it is loaded.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabasePath is the SQLite file. ":memory:" keeps everything in RAM.
	DatabasePath string `koanf:"database_path"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	CORS     CORSConfig     `koanf:"cors"`
	Jira     JiraConfig     `koanf:"jira"`
	Tempo    TempoConfig    `koanf:"tempo"`
	Sync     SyncConfig     `koanf:"sync"`
	Capacity CapacityConfig `koanf:"capacity"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type JiraConfig struct {
	URL      string        `koanf:"url"`
	Email    string        `koanf:"email"`
	APIToken string        `koanf:"api_token"`
	Timeout  time.Duration `koanf:"timeout"`
}

// Configured reports whether all credentials are present.
func (j JiraConfig) Configured() bool {
	return j.URL != "" && j.Email != "" && j.APIToken != ""
}

type TempoConfig struct {
	// BaseURL defaults to the Jira URL; Tempo is served from the same host.
	BaseURL  string        `koanf:"base_url"`
	APIToken string        `koanf:"api_token"`
	Timeout  time.Duration `koanf:"timeout"`
}

type SyncConfig struct {
	Enabled         bool `koanf:"enabled"`
	IntervalMinutes int  `koanf:"interval_minutes"`
}

// Interval returns the sync period.
func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

type CapacityConfig struct {
	// WorkdayHours is the capacity of a full-time day, used by time verification.
	WorkdayHours float64 `koanf:"workday_hours"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Addr:         ":8080",
		DatabasePath: "team_capacity.db",
		LogLevel:     "info",
		LogFormat:    "text",
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Jira: JiraConfig{
			Timeout: 30 * time.Second,
		},
		Tempo: TempoConfig{
			Timeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			Enabled:         true,
			IntervalMinutes: 60,
		},
		Capacity: CapacityConfig{
			WorkdayHours: 8,
		},
	}
}

var validLogFormats = map[string]bool{"text": true, "json": true}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path must not be empty"))
	}
	if c.Capacity.WorkdayHours <= 0 || c.Capacity.WorkdayHours > 24 {
		errs = append(errs, fmt.Errorf("capacity.workday_hours must be in (0, 24], got %v", c.Capacity.WorkdayHours))
	}
	if c.Sync.IntervalMinutes < 0 {
		errs = append(errs, fmt.Errorf("sync.interval_minutes must not be negative, got %d", c.Sync.IntervalMinutes))
	}
	if !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
