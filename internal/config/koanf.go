// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/airmirror/config.yaml",
	"/etc/airmirror/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// sections are the recognized top-level config namespaces; environment
// variables outside these prefixes are ignored.
var sections = []string{"airtable", "database", "sync", "server", "cache", "logging"}

// defaultConfig returns built-in defaults. These are applied first, then
// overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Airtable: AirtableConfig{
			BaseURL:           "https://api.airtable.com",
			BaseID:            "",
			APIKey:            "",
			Tables:            []string{"events", "signups", "organizers"},
			PageSize:          100,
			RequestsPerSecond: 4, // Airtable enforces 5 rps per base
			Timeout:           15 * time.Second,
			RetryAttempts:     5,
			RetryDelay:        time.Second,
		},
		Database: DatabaseConfig{
			URL:            "",
			MaxConns:       8,
			MigrateOnStart: true,
		},
		Sync: SyncConfig{
			Interval:     time.Second,
			CycleTimeout: 45 * time.Second,
			Incremental:  false,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              4820,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Cache: CacheConfig{
			TTL: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources (highest wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (AIRTABLE_API_KEY -> airtable.api_key, ...)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envTransform maps environment variable names to koanf paths:
// AIRTABLE_PAGE_SIZE -> airtable.page_size. Variables that do not match a
// known section are dropped by returning the empty string.
func envTransform(key string) string {
	lower := strings.ToLower(key)
	for _, section := range sections {
		if strings.HasPrefix(lower, section+"_") {
			return section + "." + strings.TrimPrefix(lower, section+"_")
		}
	}
	return ""
}

// processSliceFields splits comma-separated env strings into slices for
// fields typed []string. Env providers deliver "a,b,c" as one string, which
// would otherwise unmarshal as a single-element slice.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range []string{"airtable.tables", "server.cors_origins"} {
		raw := k.Get(path)
		s, ok := raw.(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				values = append(values, trimmed)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
