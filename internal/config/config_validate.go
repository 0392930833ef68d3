// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateClickFlare(); err != nil {
		return err
	}

	if err := c.validateMintegral(); err != nil {
		return err
	}

	if err := c.validateJobs(); err != nil {
		return err
	}

	if err := c.validateReconcile(); err != nil {
		return err
	}

	if err := c.validateRuns(); err != nil {
		return err
	}

	if err := c.validateEvents(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateClickFlare validates ClickFlare tracker configuration.
// ClickFlare is the primary source and is always required - there is no
// merge pipeline without it.
func (c *Config) validateClickFlare() error {
	if err := c.validateClickFlareURL(); err != nil {
		return err
	}
	if err := c.validateClickFlareAPIKey(); err != nil {
		return err
	}
	return c.validateClickFlarePageSize()
}

// validateClickFlareURL validates the ClickFlare base URL
func (c *Config) validateClickFlareURL() error {
	if c.ClickFlare.URL == "" {
		return fmt.Errorf("CLICKFLARE_URL is required")
	}
	if err := validateHTTPURL(c.ClickFlare.URL, "CLICKFLARE_URL"); err != nil {
		return fmt.Errorf("CLICKFLARE_URL is invalid: %w", err)
	}
	return nil
}

// validateClickFlareAPIKey validates the ClickFlare API key
func (c *Config) validateClickFlareAPIKey() error {
	if c.ClickFlare.APIKey == "" {
		return fmt.Errorf("CLICKFLARE_API_KEY is required")
	}
	if containsPlaceholder(c.ClickFlare.APIKey) {
		return fmt.Errorf("CLICKFLARE_API_KEY contains a placeholder value - set the real tracker API key")
	}
	return nil
}

// validateClickFlarePageSize validates the report page size
func (c *Config) validateClickFlarePageSize() error {
	if c.ClickFlare.PageSize < 1 || c.ClickFlare.PageSize > 5000 {
		return fmt.Errorf("CLICKFLARE_PAGE_SIZE must be between 1 and 5000")
	}
	return nil
}

// validateMintegral validates Mintegral configuration (only if enabled).
// Mintegral is OPTIONAL - without it the pipeline runs ClickFlare-only and
// no spend allocation happens.
func (c *Config) validateMintegral() error {
	if !c.Mintegral.Enabled {
		return nil // Mintegral is optional - no validation needed when disabled
	}

	if c.Mintegral.URL == "" {
		return fmt.Errorf("MINTEGRAL_URL is required when MINTEGRAL_ENABLED=true")
	}
	if err := validateHTTPURL(c.Mintegral.URL, "MINTEGRAL_URL"); err != nil {
		return fmt.Errorf("MINTEGRAL_URL is invalid: %w", err)
	}

	if err := c.validateMintegralAccounts(); err != nil {
		return err
	}
	return c.validateMintegralPolling()
}

// validateMintegralAccounts requires at least one account with complete credentials
func (c *Config) validateMintegralAccounts() error {
	accounts := c.GetMintegralAccounts()
	if len(accounts) == 0 {
		return fmt.Errorf("MINTEGRAL_ACCESS_KEY/MINTEGRAL_API_KEY or mintegral.accounts is required when MINTEGRAL_ENABLED=true")
	}
	for _, acct := range accounts {
		if acct.AccessKey == "" || acct.APIKey == "" {
			return fmt.Errorf("mintegral account %q is missing access_key or api_key", acct.Name)
		}
	}
	return nil
}

// Mintegral polling limit constants
const (
	mintegralMinPollInterval = time.Second
	mintegralMaxPollInterval = time.Minute
	mintegralMaxPollAttempts = 120
	mintegralMaxPollTimeout  = 30 * time.Minute
)

// validateMintegralPolling validates the report-ready poll loop settings
func (c *Config) validateMintegralPolling() error {
	if c.Mintegral.PollInterval < mintegralMinPollInterval || c.Mintegral.PollInterval > mintegralMaxPollInterval {
		return fmt.Errorf("MINTEGRAL_POLL_INTERVAL must be between %v and %v", mintegralMinPollInterval, mintegralMaxPollInterval)
	}
	if c.Mintegral.PollMaxAttempts < 1 || c.Mintegral.PollMaxAttempts > mintegralMaxPollAttempts {
		return fmt.Errorf("MINTEGRAL_POLL_MAX_ATTEMPTS must be between 1 and %d", mintegralMaxPollAttempts)
	}
	if c.Mintegral.PollTimeout < c.Mintegral.PollInterval || c.Mintegral.PollTimeout > mintegralMaxPollTimeout {
		return fmt.Errorf("MINTEGRAL_POLL_TIMEOUT must be between MINTEGRAL_POLL_INTERVAL and %v", mintegralMaxPollTimeout)
	}
	return nil
}

// validateJobs validates ETL job configuration
func (c *Config) validateJobs() error {
	if err := c.validateReportTimezone(); err != nil {
		return err
	}
	if err := c.validateMergeJob(); err != nil {
		return err
	}
	return c.validateHourlyJob()
}

// validateReportTimezone validates the upstream report timezone
func (c *Config) validateReportTimezone() error {
	if c.Jobs.ReportTimezone == "" {
		return fmt.Errorf("REPORT_TIMEZONE is required")
	}
	if _, err := time.LoadLocation(c.Jobs.ReportTimezone); err != nil {
		return fmt.Errorf("REPORT_TIMEZONE is not a valid IANA timezone: %w", err)
	}
	return nil
}

// validateMergeJob validates daily merge job settings
func (c *Config) validateMergeJob() error {
	if c.Jobs.Merge.Hour < 0 || c.Jobs.Merge.Hour > 23 {
		return fmt.Errorf("MERGE_HOUR must be between 0 and 23")
	}
	if c.Jobs.Merge.TimeoutMinutes < 1 || c.Jobs.Merge.TimeoutMinutes > 720 {
		return fmt.Errorf("MERGE_TIMEOUT_MINUTES must be between 1 and 720")
	}
	if c.Jobs.Merge.RetryAttempts < 1 || c.Jobs.Merge.RetryAttempts > 10 {
		return fmt.Errorf("MERGE_RETRY_ATTEMPTS must be between 1 and 10")
	}
	if c.Jobs.Merge.RetryDelay < 100*time.Millisecond || c.Jobs.Merge.RetryDelay > time.Minute {
		return fmt.Errorf("MERGE_RETRY_DELAY must be between 100ms and 1m")
	}
	return nil
}

// validateHourlyJob validates hourly job settings
func (c *Config) validateHourlyJob() error {
	if c.Jobs.Hourly.Interval < time.Minute || c.Jobs.Hourly.Interval > 6*time.Hour {
		return fmt.Errorf("HOURLY_INTERVAL must be between 1m and 6h")
	}
	if c.Jobs.Hourly.TimeoutMinutes < 1 || c.Jobs.Hourly.TimeoutMinutes > 60 {
		return fmt.Errorf("HOURLY_TIMEOUT_MINUTES must be between 1 and 60")
	}
	if c.Jobs.Hourly.LookbackHours < 0 || c.Jobs.Hourly.LookbackHours > 72 {
		return fmt.Errorf("HOURLY_LOOKBACK_HOURS must be between 0 and 72")
	}
	if c.Jobs.Hourly.RetentionDays < 1 || c.Jobs.Hourly.RetentionDays > 365 {
		return fmt.Errorf("HOURLY_RETENTION_DAYS must be between 1 and 365")
	}
	return nil
}

// validateReconcile validates daily-report reconciliation settings
func (c *Config) validateReconcile() error {
	if c.Reconcile.SyncHour < 0 || c.Reconcile.SyncHour > 23 {
		return fmt.Errorf("RECONCILE_SYNC_HOUR must be between 0 and 23")
	}
	return nil
}

// validateRuns validates run registry settings
func (c *Config) validateRuns() error {
	if c.Runs.StaleAfter < time.Minute || c.Runs.StaleAfter > 24*time.Hour {
		return fmt.Errorf("RUNS_STALE_AFTER must be between 1m and 24h")
	}
	if c.Runs.LogBufferLines < 50 || c.Runs.LogBufferLines > 10000 {
		return fmt.Errorf("RUNS_LOG_BUFFER_LINES must be between 50 and 10000")
	}
	return nil
}

// validateEvents validates events (NATS) configuration (only if enabled)
func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}

	if err := validateNATSURL(c.Events.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}

	return c.validateEventsLimits()
}

// NATS limit constants
const (
	natsMinMemory      = 64 * 1024 * 1024  // 64MB
	natsMinStore       = 100 * 1024 * 1024 // 100MB
	natsMaxRetention   = 365
	natsMinRetention   = 1
	natsMaxSubscribers = 32
)

// validateEventsLimits validates NATS storage and processing limits
func (c *Config) validateEventsLimits() error {
	if c.Events.MaxMemory < natsMinMemory {
		return fmt.Errorf("NATS_MAX_MEMORY must be at least 64MB (67108864 bytes)")
	}
	if c.Events.MaxStore < natsMinStore {
		return fmt.Errorf("NATS_MAX_STORE must be at least 100MB (104857600 bytes)")
	}
	if c.Events.StreamRetentionDays < natsMinRetention || c.Events.StreamRetentionDays > natsMaxRetention {
		return fmt.Errorf("NATS_RETENTION_DAYS must be between 1 and 365")
	}
	if c.Events.SubscribersCount < 1 || c.Events.SubscribersCount > natsMaxSubscribers {
		return fmt.Errorf("NATS_SUBSCRIBERS must be between 1 and 32")
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	return c.validateRateLimits()
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateRateLimits validates rate limiting configuration bounds.
// Ensures rate limit values are within sensible ranges to prevent
// misconfiguration that could lead to DoS or ineffective protection.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}

	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
// Production mode is determined by the ENVIRONMENT environment variable.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the user forgot to set a real value. This prevents accidental deployment
// with insecure default credentials.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_KEY",
	"YOUR_SECRET",
	"PLACEHOLDER",
	"TODO",
	"FIXME",
	"XXX",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns
// that indicate the user forgot to set a real value. This prevents accidental
// deployment with insecure default credentials.
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}
