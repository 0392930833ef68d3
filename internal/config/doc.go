// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

/*
Package config provides centralized configuration management for Adreckon.

This package handles loading, validation, and parsing of configuration for all
application components. It ensures consistent configuration across the ETL
pipeline, warehouse, reconciliation store, and ops API, and provides sensible
defaults for optional settings.

# Configuration Sources

Configuration is loaded in layers via Koanf v2 (later layers override earlier
ones):

  - Built-in defaults (struct provider)
  - YAML config file (CONFIG_PATH or the first of config.yaml, config.yml,
    /etc/adreckon/config.yaml, /etc/adreckon/config.yml)
  - Environment variables (explicit transform map, unknown vars ignored)

# Configuration Structure

The package organizes configuration into logical groups:

  - ClickFlareConfig: primary tracker source (URL, API key, page size, rate limit)
  - MintegralConfig: secondary ad-network source (accounts, poll loop, media keywords)
  - DatabaseConfig: DuckDB warehouse tuning (path, memory, threads)
  - JobsConfig: merge and hourly job schedules, timeouts, retry policy
  - ReconcileConfig: daily-report safety sync schedule
  - RunsConfig: run registry (stale-run reaping) and job log buffers
  - EventsConfig: run-completed event processing over NATS JetStream
  - ServerConfig / APIConfig / SecurityConfig: ops API surface
  - LoggingConfig: zerolog level and format

# Environment Variables

Selected variables by component:

ClickFlare (required):
  - CLICKFLARE_URL: API base URL (default: https://public-api.clickflare.io)
  - CLICKFLARE_API_KEY: tracker API key (required)
  - CLICKFLARE_PAGE_SIZE: rows per report page (default: 1000)
  - CLICKFLARE_EXCLUDED_SPEND_MEDIA: media whose spend is seeded from revenue

Mintegral (optional):
  - MINTEGRAL_ENABLED: enable the secondary source (default: false)
  - MINTEGRAL_ACCESS_KEY / MINTEGRAL_API_KEY: single-account credentials
  - MINTEGRAL_POLL_INTERVAL / MINTEGRAL_POLL_MAX_ATTEMPTS / MINTEGRAL_POLL_TIMEOUT
  - MINTEGRAL_MEDIA_KEYWORDS: media substrings eligible for spend allocation

Jobs:
  - REPORT_TIMEZONE: timezone the upstream reports are keyed to (default: Asia/Shanghai)
  - MERGE_HOUR / MERGE_TIMEOUT_MINUTES / MERGE_RETRY_ATTEMPTS / MERGE_RETRY_DELAY
  - HOURLY_INTERVAL / HOURLY_TIMEOUT_MINUTES / HOURLY_RETENTION_DAYS

Database:
  - DUCKDB_PATH: warehouse file path (default: /data/adreckon.duckdb)
  - DUCKDB_MAX_MEMORY / DUCKDB_THREADS

Runs:
  - RUNS_REGISTRY_PATH: BadgerDB directory for durable run records
  - RUNS_STALE_AFTER: stuck-run reap threshold (default: 20m)

Events:
  - NATS_ENABLED / NATS_URL / NATS_EMBEDDED / NATS_STORE_DIR / NATS_DURABLE_NAME

Server:
  - HTTP_HOST / HTTP_PORT / HTTP_TIMEOUT / ENVIRONMENT

# Usage Example

	import "github.com/adreckon/adreckon/internal/config"

	cfg, err := config.Load()
	if err != nil {
	    log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Printf("Starting server on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Warehouse: %s\n", cfg.Database.Path)

# Validation

Load() performs validation and fails fast on:

  - Missing required fields (CLICKFLARE_API_KEY; Mintegral credentials when enabled)
  - Out-of-range numerics (HTTP_PORT, page sizes, timeout minutes)
  - Malformed URLs (ClickFlare/Mintegral base URLs, NATS URL)
  - Unknown timezone names and log levels
  - Placeholder credential values (CHANGEME, YOUR_KEY, ...)

# Thread Safety

The Config struct is immutable after Load() returns, making it safe for concurrent
access from multiple goroutines without synchronization.
*/
package config
