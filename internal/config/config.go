// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from environment variables and config files.
// Provides centralized configuration management for all application components including
// ad network sources (ClickFlare, Mintegral), warehouse, jobs, server, API, security, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Data Sources:
//     - ClickFlare: Primary tracker source (conversion-complete revenue data)
//     - Mintegral: Secondary network source (impression-complete spend data)
//
//  2. Infrastructure:
//     - Database: DuckDB warehouse configuration (path, memory, threads)
//     - Jobs: Merge and hourly ETL job schedules, timeouts, retry policy
//     - Runs: Run registry (stale-run reaping) and job log buffers
//     - Events: Run-completed event processing with Watermill/NATS JetStream (optional)
//
//  3. API & Security:
//     - API: Pagination and response limits
//     - Security: Rate limiting, CORS, trusted proxies
//
//  4. Observability:
//     - Logging: Log levels and output formats
//
// Example - Load configuration from environment:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.ClickFlare.URL, cfg.Database.Path, etc. are now populated
//
// Example - Access configuration values:
//
//	db, err := database.New(cfg.Database)
//	manager := sync.NewManager(cfg, db)
//	server := http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)}
//
// Validation:
// The Load() function validates all required fields and returns an error if:
//   - Required settings are missing (CLICKFLARE_API_KEY)
//   - Values are malformed (invalid URL format, out-of-range numbers)
//   - Mintegral is enabled but no account has complete credentials
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from multiple goroutines.
type Config struct {
	ClickFlare ClickFlareConfig `koanf:"clickflare"`
	Mintegral  MintegralConfig  `koanf:"mintegral"` // Optional: secondary spend source
	Database   DatabaseConfig   `koanf:"database"`
	Jobs       JobsConfig       `koanf:"jobs"`
	Reconcile  ReconcileConfig  `koanf:"reconcile"`
	Runs       RunsConfig       `koanf:"runs"`
	Events     EventsConfig     `koanf:"events"` // Optional: run-completed events with Watermill/NATS JetStream
	Server     ServerConfig     `koanf:"server"`
	API        APIConfig        `koanf:"api"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ClickFlareConfig holds ClickFlare tracker connection settings.
// ClickFlare is the primary data source: it is conversion-complete (revenue,
// conversions, visits per campaign) but its reported cost is unreliable for
// networks that bill outside the tracker.
//
// Environment Variables:
//   - CLICKFLARE_URL: ClickFlare API base URL (default: https://public-api.clickflare.io)
//   - CLICKFLARE_API_KEY: ClickFlare API key (required)
//   - CLICKFLARE_PAGE_SIZE: Rows per report page (default: 1000)
//   - CLICKFLARE_TIMEOUT: Per-request HTTP timeout (default: 60s)
//   - CLICKFLARE_RATE_LIMIT: Client-side requests per second cap (default: 2)
//   - CLICKFLARE_EXCLUDED_SPEND_MEDIA: Comma-separated media names whose spend
//     is seeded from revenue instead of tracker-reported cost
//
// Example:
//
//	cfg := ClickFlareConfig{
//	    URL:      "https://public-api.clickflare.io",
//	    APIKey:   "cf_live_...",
//	    PageSize: 1000,
//	}
type ClickFlareConfig struct {
	URL                string        `koanf:"url"`
	APIKey             string        `koanf:"api_key"`
	PageSize           int           `koanf:"page_size" validate:"min=1,max=5000"`
	Timeout            time.Duration `koanf:"timeout"`
	RateLimit          float64       `koanf:"rate_limit"`           // Requests per second against the ClickFlare API
	ExcludedSpendMedia []string      `koanf:"excluded_spend_media"` // Media whose spend is seeded from revenue during transform
}

// MintegralConfig holds Mintegral reporting API settings.
// Mintegral is the secondary data source: it is impression-complete (true spend,
// impressions, clicks per offer) but knows nothing about conversions or revenue.
// Spend pulled from Mintegral is allocated across matching ClickFlare rows.
//
// Multiple accounts are supported via the Accounts list (YAML config). For a
// single account the flat AccessKey/APIKey fields are enough; a one-element
// account list is synthesized from them at load time.
//
// Environment Variables:
//   - MINTEGRAL_ENABLED: Enable the Mintegral source (default: false)
//   - MINTEGRAL_URL: Reporting API base URL (default: https://ss-api.mintegral.com)
//   - MINTEGRAL_ACCESS_KEY: Access key for single-account setups
//   - MINTEGRAL_API_KEY: API key for single-account setups
//   - MINTEGRAL_TIMEOUT: Per-request HTTP timeout (default: 60s)
//   - MINTEGRAL_POLL_INTERVAL: Delay between report-ready polls (default: 10s)
//   - MINTEGRAL_POLL_MAX_ATTEMPTS: Polls before giving up on a report (default: 30)
//   - MINTEGRAL_POLL_TIMEOUT: Wall-clock cap on the poll loop (default: 5m)
//   - MINTEGRAL_MEDIA_KEYWORDS: Comma-separated substrings identifying which
//     primary-source media rows are eligible for Mintegral spend allocation
//     (default: Mintegral,Hastraffic)
//
// Example - Multi-account (YAML only):
//
//	mintegral:
//	  enabled: true
//	  accounts:
//	    - name: "us-east"
//	      access_key: "ak_..."
//	      api_key: "sk_..."
//	    - name: "apac"
//	      access_key: "ak_..."
//	      api_key: "sk_..."
type MintegralConfig struct {
	Enabled         bool                     `koanf:"enabled"`
	URL             string                   `koanf:"url"`
	AccessKey       string                   `koanf:"access_key"` // Single-account convenience; Accounts takes precedence
	APIKey          string                   `koanf:"api_key"`
	Accounts        []MintegralAccountConfig `koanf:"accounts"`
	Timeout         time.Duration            `koanf:"timeout"`
	PollInterval    time.Duration            `koanf:"poll_interval"`
	PollMaxAttempts int                      `koanf:"poll_max_attempts" validate:"min=1,max=120"`
	PollTimeout     time.Duration            `koanf:"poll_timeout"`
	MediaKeywords   []string                 `koanf:"media_keywords"` // Primary-row media substrings eligible for spend allocation
}

// MintegralAccountConfig identifies one Mintegral advertiser account.
// Every account is pulled independently during a merge run; a failed account
// is logged and skipped without failing the run.
type MintegralAccountConfig struct {
	Name      string `koanf:"name"` // Auto-generated from the access key if empty
	AccessKey string `koanf:"access_key"`
	APIKey    string `koanf:"api_key"`
}

// DatabaseConfig holds DuckDB settings
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // Number of DuckDB threads (0 = use NumCPU)
}

// JobsConfig holds ETL job scheduling settings shared by the merge and hourly jobs.
//
// Environment Variables:
//   - REPORT_TIMEZONE: IANA timezone the upstream reports are keyed to
//     (default: Asia/Shanghai). "Yesterday" for the daily merge run and the
//     UTC conversion of hourly rows are both computed in this zone.
type JobsConfig struct {
	ReportTimezone string          `koanf:"report_timezone"`
	Merge          MergeJobConfig  `koanf:"merge"`
	Hourly         HourlyJobConfig `koanf:"hourly"`
}

// MergeJobConfig holds settings for the daily merge job: the two-pass ClickFlare
// pull, the Mintegral account loop, spend allocation, and the idempotent replace
// write into the canonical table.
//
// Environment Variables:
//   - MERGE_ENABLED: Schedule the daily merge run (default: true)
//   - MERGE_HOUR: Hour of day (report timezone) for the scheduled run (default: 6)
//   - MERGE_TIMEOUT_MINUTES: Cooperative stage-timeout budget; when exceeded the
//     run commits what it has and exits as a partial success (default: 30)
//   - MERGE_RETRY_ATTEMPTS: Retries per request against source APIs, on top of
//     the initial attempt (default: 3, waiting 2s, 4s, 8s)
//   - MERGE_RETRY_DELAY: First retry backoff, doubled per retry (default: 2s)
type MergeJobConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Hour           int           `koanf:"hour" validate:"min=0,max=23"`
	TimeoutMinutes int           `koanf:"timeout_minutes" validate:"min=1,max=720"`
	RetryAttempts  int           `koanf:"retry_attempts" validate:"min=0,max=10"`
	RetryDelay     time.Duration `koanf:"retry_delay"`
}

// HourlyJobConfig holds settings for the hourly job: a single-pass ClickFlare
// hourly report pull with a whole-window replace into the hourly table.
//
// Environment Variables:
//   - HOURLY_ENABLED: Schedule the hourly run (default: true)
//   - HOURLY_INTERVAL: Time between runs (default: 10m)
//   - HOURLY_TIMEOUT_MINUTES: Stage-timeout budget (default: 5)
//   - HOURLY_LOOKBACK_HOURS: Pull window; 0 means since UTC midnight (default: 0)
//   - HOURLY_RETENTION_DAYS: Hourly rows older than this are pruned (default: 31)
type HourlyJobConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Interval       time.Duration `koanf:"interval"`
	TimeoutMinutes int           `koanf:"timeout_minutes" validate:"min=1,max=60"`
	LookbackHours  int           `koanf:"lookback_hours" validate:"min=0,max=72"`
	RetentionDays  int           `koanf:"retention_days" validate:"min=1,max=365"`
}

// ReconcileConfig holds daily-report reconciliation settings.
//
// Environment Variables:
//   - RECONCILE_SYNC_ENABLED: Schedule the daily safety sync (default: true)
//   - RECONCILE_SYNC_HOUR: Hour of day for the safety sync of yesterday's
//     daily-report rows from the canonical table (default: 12)
type ReconcileConfig struct {
	SyncEnabled bool `koanf:"sync_enabled"`
	SyncHour    int  `koanf:"sync_hour" validate:"min=0,max=23"`
}

// RunsConfig holds run registry and job log settings.
//
// Environment Variables:
//   - RUNS_REGISTRY_PATH: BadgerDB directory for durable run records; empty
//     keeps the registry in memory (runs are then reaped on restart anyway)
//   - RUNS_STALE_AFTER: Age after which a registered merge run is considered
//     stuck and reaped by the next run (default: 20m)
//   - RUNS_LOG_BUFFER_LINES: Per-job in-memory log tail size (default: 500)
type RunsConfig struct {
	RegistryPath   string        `koanf:"registry_path"`
	StaleAfter     time.Duration `koanf:"stale_after"`
	LogBufferLines int           `koanf:"log_buffer_lines" validate:"min=50,max=10000"`
}

// EventsConfig holds run-completed event processing settings.
// When enabled, a successful merge run publishes a RunCompleted event over
// NATS JetStream (embedded or external) and a subscriber re-syncs the affected
// date's daily-report rows. When disabled the scheduled safety sync is the
// only path that keeps the daily report current.
//
// Environment Variables:
//   - NATS_ENABLED: Enable event processing (default: true)
//   - NATS_URL: NATS server URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: Run an embedded NATS server (default: true)
//   - NATS_STORE_DIR: JetStream storage directory (default: /data/nats/jetstream)
//   - NATS_MAX_MEMORY: JetStream memory cap in bytes (default: 1GB)
//   - NATS_MAX_STORE: JetStream disk cap in bytes (default: 10GB)
//   - NATS_RETENTION_DAYS: Event retention (default: 7)
//   - NATS_DURABLE_NAME: Consumer durable name (default: reconcile-sync)
//   - NATS_SUBSCRIBERS: Concurrent event processors (default: 1)
type EventsConfig struct {
	Enabled             bool   `koanf:"enabled"`
	URL                 string `koanf:"url"`
	EmbeddedServer      bool   `koanf:"embedded_server"` // If false, expects an external NATS server at URL
	StoreDir            string `koanf:"store_dir"`
	MaxMemory           int64  `koanf:"max_memory"`
	MaxStore            int64  `koanf:"max_store"`
	StreamRetentionDays int    `koanf:"stream_retention_days" validate:"min=1,max=365"`
	DurableName         string `koanf:"durable_name"`
	SubscribersCount    int    `koanf:"subscribers_count" validate:"min=1,max=32"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        int           `koanf:"port" validate:"min=1,max=65535"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // Environment mode: "development", "staging", "production" (default: "development")
}

// APIConfig holds API pagination and response settings
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size" validate:"min=1,max=1000"`
	MaxPageSize     int `koanf:"max_page_size" validate:"min=1,max=10000"`
}

// SecurityConfig holds rate limiting and cross-origin settings for the ops API
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TrustedProxies    []string      `koanf:"trusted_proxies"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// JSON is recommended for production (structured, machine-parseable).
	// Console is human-readable for development.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Adds slight performance overhead.
	// Default: false
	Caller bool `koanf:"caller"`
}

// GetMintegralAccounts returns the Mintegral accounts to pull, preferring the
// Accounts list over the flat single-account fields. Accounts without a name
// get a deterministic one derived from their access key so that multi-account
// log lines and metrics stay distinguishable across restarts.
func (c *Config) GetMintegralAccounts() []MintegralAccountConfig {
	if len(c.Mintegral.Accounts) > 0 {
		accounts := make([]MintegralAccountConfig, 0, len(c.Mintegral.Accounts))
		for _, acct := range c.Mintegral.Accounts {
			if acct.Name == "" {
				acct.Name = generateAccountName(acct.AccessKey)
			}
			accounts = append(accounts, acct)
		}
		return accounts
	}

	// Fall back to the flat single-account fields
	if c.Mintegral.AccessKey != "" || c.Mintegral.APIKey != "" {
		return []MintegralAccountConfig{{
			Name:      generateAccountName(c.Mintegral.AccessKey),
			AccessKey: c.Mintegral.AccessKey,
			APIKey:    c.Mintegral.APIKey,
		}}
	}

	return nil
}

// generateAccountName creates a deterministic account name from an access key.
// The same access key always generates the same name for consistency.
// Format: mintegral-{hash} where hash is 8 hex chars of the key hash.
func generateAccountName(accessKey string) string {
	if accessKey == "" {
		return "mintegral-default"
	}

	hash := uint32(0)
	for _, c := range accessKey {
		hash = hash*31 + uint32(c)
	}

	return fmt.Sprintf("mintegral-%08x", hash)
}

// Load reads configuration from environment variables and optional config file.
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Built-in defaults
//  2. Config file (config.yaml if exists, or path specified in CONFIG_PATH env var)
//  3. Environment variables
//
// This function uses Koanf v2 for flexible, layered configuration management.
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
