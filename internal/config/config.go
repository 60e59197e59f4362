// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Functions that may do I/O accept context.Context as the first parameter.
// - Errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"time"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// StoreDriver selects the event and snapshot backend.
	StoreDriver string `koanf:"store_driver" validate:"oneof=memory sqlite"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path" validate:"required_if=StoreDriver sqlite"`

	// AggregationTimeoutMS bounds the snapshot refresh after each ingestion.
	AggregationTimeoutMS int `koanf:"aggregation_timeout_ms" validate:"gt=0"`

	// DefaultEventsLimit and MaxEventsLimit govern GET /analytics/events?limit.
	DefaultEventsLimit int `koanf:"default_events_limit" validate:"gt=0"`
	MaxEventsLimit     int `koanf:"max_events_limit" validate:"gtefield=DefaultEventsLimit"`

	// DefaultTimelineDays and MaxTimelineDays govern GET /analytics/tasks/timeline?days.
	DefaultTimelineDays int `koanf:"default_timeline_days" validate:"gte=0"`
	MaxTimelineDays     int `koanf:"max_timeline_days" validate:"gtefield=DefaultTimelineDays"`

	// ShutdownTimeoutMS bounds graceful HTTP shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms" validate:"gt=0"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":8080",
		StoreDriver:          DriverMemory,
		SQLitePath:           "taskpulse.db",
		AggregationTimeoutMS: 5000,
		DefaultEventsLimit:   50,
		MaxEventsLimit:       1000,
		DefaultTimelineDays:  7,
		MaxTimelineDays:      366,
		ShutdownTimeoutMS:    10_000,
	}
}

// AggregationTimeout returns AggregationTimeoutMS as a duration.
func (c *Config) AggregationTimeout() time.Duration {
	return time.Duration(c.AggregationTimeoutMS) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}
