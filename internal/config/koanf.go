// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

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

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/adreckon/config.yaml",
	"/etc/adreckon/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		ClickFlare: ClickFlareConfig{
			URL:                "https://public-api.clickflare.io",
			APIKey:             "",
			PageSize:           1000,
			Timeout:            60 * time.Second,
			RateLimit:          2,
			ExcludedSpendMedia: []string{},
		},
		Mintegral: MintegralConfig{
			Enabled:         false, // Mintegral is optional - ClickFlare-only mode by default
			URL:             "https://ss-api.mintegral.com",
			AccessKey:       "",
			APIKey:          "",
			Accounts:        nil,
			Timeout:         60 * time.Second,
			PollInterval:    10 * time.Second,
			PollMaxAttempts: 30,
			PollTimeout:     5 * time.Minute,
			MediaKeywords:   []string{"Mintegral", "Hastraffic"},
		},
		Database: DatabaseConfig{
			Path:      "/data/adreckon.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Jobs: JobsConfig{
			ReportTimezone: "Asia/Shanghai",
			Merge: MergeJobConfig{
				Enabled:        true,
				Hour:           6,
				TimeoutMinutes: 30,
				RetryAttempts:  3,
				RetryDelay:     2 * time.Second,
			},
			Hourly: HourlyJobConfig{
				Enabled:        true,
				Interval:       10 * time.Minute,
				TimeoutMinutes: 5,
				LookbackHours:  0, // 0 = since UTC midnight
				RetentionDays:  31,
			},
		},
		Reconcile: ReconcileConfig{
			SyncEnabled: true,
			SyncHour:    12,
		},
		Runs: RunsConfig{
			RegistryPath:   "", // Empty = in-memory registry
			StaleAfter:     20 * time.Minute,
			LogBufferLines: 500,
		},
		Events: EventsConfig{
			Enabled:             true,
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamRetentionDays: 7,
			DurableName:         "reconcile-sync",
			SubscribersCount:    1,
		},
		Server: ServerConfig{
			Port:        8843,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development", // Set ENVIRONMENT=production for production checks
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			TrustedProxies:    []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
//   - Multi-account Mintegral credentials via the YAML accounts list
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// CLICKFLARE_API_KEY -> clickflare.api_key
	// MERGE_TIMEOUT_MINUTES -> jobs.merge.timeout_minutes
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"clickflare.excluded_spend_media",
	"mintegral.media_keywords",
	"security.cors_origins",
	"security.trusted_proxies",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - CLICKFLARE_API_KEY -> clickflare.api_key
//   - MINTEGRAL_POLL_INTERVAL -> mintegral.poll_interval
//   - MERGE_TIMEOUT_MINUTES -> jobs.merge.timeout_minutes
//   - DUCKDB_PATH -> database.path
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// ClickFlare mappings (primary source)
		"clickflare_url":                  "clickflare.url",
		"clickflare_api_key":              "clickflare.api_key",
		"clickflare_page_size":            "clickflare.page_size",
		"clickflare_timeout":              "clickflare.timeout",
		"clickflare_rate_limit":           "clickflare.rate_limit",
		"clickflare_excluded_spend_media": "clickflare.excluded_spend_media",

		// Mintegral mappings (secondary source)
		"mintegral_enabled":           "mintegral.enabled",
		"mintegral_url":               "mintegral.url",
		"mintegral_access_key":        "mintegral.access_key",
		"mintegral_api_key":           "mintegral.api_key",
		"mintegral_timeout":           "mintegral.timeout",
		"mintegral_poll_interval":     "mintegral.poll_interval",
		"mintegral_poll_max_attempts": "mintegral.poll_max_attempts",
		"mintegral_poll_timeout":      "mintegral.poll_timeout",
		"mintegral_media_keywords":    "mintegral.media_keywords",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Job mappings
		"report_timezone":       "jobs.report_timezone",
		"merge_enabled":         "jobs.merge.enabled",
		"merge_hour":            "jobs.merge.hour",
		"merge_timeout_minutes": "jobs.merge.timeout_minutes",
		"merge_retry_attempts":  "jobs.merge.retry_attempts",
		"merge_retry_delay":     "jobs.merge.retry_delay",

		"hourly_enabled":         "jobs.hourly.enabled",
		"hourly_interval":        "jobs.hourly.interval",
		"hourly_timeout_minutes": "jobs.hourly.timeout_minutes",
		"hourly_lookback_hours":  "jobs.hourly.lookback_hours",
		"hourly_retention_days":  "jobs.hourly.retention_days",

		// Reconciliation mappings
		"reconcile_sync_enabled": "reconcile.sync_enabled",
		"reconcile_sync_hour":    "reconcile.sync_hour",

		// Run registry mappings
		"runs_registry_path":    "runs.registry_path",
		"runs_stale_after":      "runs.stale_after",
		"runs_log_buffer_lines": "runs.log_buffer_lines",

		// Events (NATS) mappings
		"nats_enabled":        "events.enabled",
		"nats_url":            "events.url",
		"nats_embedded":       "events.embedded_server",
		"nats_store_dir":      "events.store_dir",
		"nats_max_memory":     "events.max_memory",
		"nats_max_store":      "events.max_store",
		"nats_retention_days": "events.stream_retention_days",
		"nats_durable_name":   "events.durable_name",
		"nats_subscribers":    "events.subscribers_count",

		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		// Security mappings
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",
		"trusted_proxies":     "security.trusted_proxies",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage.
// This is useful for:
//   - Custom configuration sources
//   - Testing with mock configurations
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// Note: The caller is responsible for mutex protection when accessing
// configuration during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	// Start watching the file for changes
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
