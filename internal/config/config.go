// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

// Package config loads Airmirror configuration via Koanf v2 with layered
// sources: struct defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration document.
type Config struct {
	Airtable AirtableConfig `koanf:"airtable"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	Cache    CacheConfig    `koanf:"cache"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// AirtableConfig configures the source client.
type AirtableConfig struct {
	// BaseURL is the API root. Overridable for tests and proxies.
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// BaseID is the Airtable base to mirror (e.g. "appXXXXXXXXXXXXXX").
	BaseID string `koanf:"base_id" validate:"required"`

	// APIKey is the bearer token for the Airtable API.
	APIKey string `koanf:"api_key" validate:"required"`

	// Tables lists the table names to mirror. Each gets its own
	// reconciliation schedule.
	Tables []string `koanf:"tables" validate:"required,min=1"`

	// PageSize is the list-endpoint page size (Airtable caps at 100).
	PageSize int `koanf:"page_size" validate:"min=1,max=100"`

	// RequestsPerSecond caps the client-side request rate. Airtable
	// enforces 5 rps per base; staying below avoids 429 churn.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RetryAttempts is the maximum number of attempts per page request.
	RetryAttempts int `koanf:"retry_attempts" validate:"min=1"`

	// RetryDelay is the initial backoff delay, doubled per attempt with
	// jitter.
	RetryDelay time.Duration `koanf:"retry_delay" validate:"gt=0"`
}

// DatabaseConfig configures the PostgreSQL local store.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	URL string `koanf:"url" validate:"required"`

	// MaxConns caps the pgx connection pool size.
	MaxConns int32 `koanf:"max_conns" validate:"min=1"`

	// MigrateOnStart runs embedded schema migrations during startup.
	MigrateOnStart bool `koanf:"migrate_on_start"`
}

// SyncConfig configures the reconciliation scheduler.
type SyncConfig struct {
	// Interval is the per-table cycle period.
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// CycleTimeout is the maximum duration of one cycle. Exceeding it
	// fails the run and releases the table's running flag.
	CycleTimeout time.Duration `koanf:"cycle_timeout" validate:"gt=0"`

	// Incremental narrows fetches with the source's last-modified filter
	// instead of doing a full reconciliation pass every cycle.
	Incremental bool `koanf:"incremental"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// CacheConfig configures the in-memory read cache.
type CacheConfig struct {
	// TTL is the default entry lifetime. Explicit invalidation after a
	// sync is the primary mechanism; TTL is the safety net.
	TTL time.Duration `koanf:"ttl" validate:"gt=0"`
}

// LoggingConfig configures the zerolog global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks struct tags plus the semantic constraints the tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Airtable.Tables))
	for _, table := range c.Airtable.Tables {
		name := strings.TrimSpace(table)
		if name == "" {
			return fmt.Errorf("config validation: empty table name in airtable.tables")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("config validation: duplicate table %q in airtable.tables", name)
		}
		seen[name] = struct{}{}
	}

	if c.Sync.CycleTimeout <= c.Airtable.Timeout {
		return fmt.Errorf("config validation: sync.cycle_timeout (%s) must exceed airtable.timeout (%s)",
			c.Sync.CycleTimeout, c.Airtable.Timeout)
	}

	return nil
}
