// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the ETL engine:
// - Warehouse query and replace performance (DuckDB)
// - Connector pulls (ClickFlare, Mintegral)
// - Spend allocation
// - Job runs and timeouts
// - API endpoint latency and throughput
// - Circuit breakers and the event bus

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBConnectionPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdb_connection_pool_size",
			Help: "Current number of database connections in use",
		},
	)

	WarehouseReplaceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warehouse_replace_duration_seconds",
			Help:    "Duration of delete-and-insert replace cycles in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"table"},
	)

	WarehouseRowsReplaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_rows_replaced_total",
			Help: "Total number of rows written through replace cycles",
		},
		[]string{"table"},
	)

	// Connector Pull Metrics
	PullDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pull_duration_seconds",
			Help:    "Duration of connector pulls in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600}, // Mintegral polling can take minutes
		},
		[]string{"source"},
	)

	PullRowsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pull_rows_fetched_total",
			Help: "Total number of raw rows fetched from upstream sources",
		},
		[]string{"source"},
	)

	PullPages = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pull_pages",
			Help:    "Number of pages fetched per paginated pull",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"source"},
	)

	PullErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pull_errors_total",
			Help: "Total number of connector pull errors",
		},
		[]string{"source", "error_type"}, // "api", "parse", "timeout", "other"
	)

	PullRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pull_retries_total",
			Help: "Total number of retried upstream requests",
		},
		[]string{"source"},
	)

	PullLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pull_last_success_timestamp",
			Help: "Unix timestamp of the last successful pull per source",
		},
		[]string{"source"},
	)

	MintegralPollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mintegral_poll_attempts",
			Help:    "Report-ready poll attempts before a Mintegral download",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 40, 60},
		},
	)

	MintegralAccountFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mintegral_account_failures_total",
			Help: "Total number of per-account Mintegral pull failures",
		},
		[]string{"account"},
	)

	// Allocation Metrics
	AllocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "allocation_duration_seconds",
			Help:    "Duration of spend allocation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AllocationRowsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_rows_merged_total",
			Help: "Total number of canonical rows produced by allocation",
		},
	)

	AllocationRowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_rows_dropped_total",
			Help: "Total number of malformed rows dropped during allocation",
		},
		[]string{"reason"}, // "negative_count", "non_finite"
	)

	AllocationUnmatchedSecondary = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_unmatched_secondary_total",
			Help: "Total number of secondary rows with no matching primary group",
		},
	)

	AllocationEqualSplits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_equal_splits_total",
			Help: "Total number of zero-impression groups that fell back to equal splits",
		},
	)

	AllocationSpendAllocated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_spend_allocated_total",
			Help: "Total network spend distributed onto primary rows",
		},
		[]string{"network"},
	)

	// Run Metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_runs_total",
			Help: "Total number of ETL runs by outcome",
		},
		[]string{"job", "status"}, // status: "success", "failed"
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etl_run_duration_seconds",
			Help:    "Duration of ETL runs in seconds",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"job"},
	)

	RunRecordCount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etl_run_records",
			Help:    "Number of rows committed per run",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000},
		},
		[]string{"job"},
	)

	RunsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etl_runs_active",
			Help: "Number of currently live runs per job",
		},
		[]string{"job"},
	)

	RunsReaped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_runs_reaped_total",
			Help: "Total number of stale runs killed before a new run started",
		},
		[]string{"job"},
	)

	RunStageTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_run_stage_timeouts_total",
			Help: "Total number of deadline hits at run stage checkpoints",
		},
		[]string{"job", "stage"}, // stage: "pass1", "pass2", "secondary"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Reconciliation Metrics
	ReconcileManualEdits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_manual_edits_total",
			Help: "Total number of manual spend corrections applied",
		},
		[]string{"media"},
	)

	ReconcileLockActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_lock_actions_total",
			Help: "Total number of date lock and unlock actions",
		},
		[]string{"action"}, // "lock", "unlock"
	)

	ReconcileSyncedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_synced_rows_total",
			Help: "Total number of report rows refreshed from the warehouse",
		},
	)

	ReconcileSkippedLocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_skipped_locked_total",
			Help: "Total number of report rows skipped because their date is locked",
		},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published to the bus",
		},
		[]string{"topic"},
	)

	EventsPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_publish_errors_total",
			Help: "Total number of failed event publishes",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total number of events consumed from the bus",
		},
		[]string{"topic"},
	)

	EventsProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "events_processing_duration_seconds",
			Help:    "Duration of event handler execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordReplace records a delete-and-insert replace cycle
func RecordReplace(table string, rows int, duration time.Duration) {
	WarehouseReplaceDuration.WithLabelValues(table).Observe(duration.Seconds())
	WarehouseRowsReplaced.WithLabelValues(table).Add(float64(rows))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordPull records a connector pull and classifies its failure mode
func RecordPull(source string, duration time.Duration, rows int, err error) {
	PullDuration.WithLabelValues(source).Observe(duration.Seconds())
	PullRowsFetched.WithLabelValues(source).Add(float64(rows))
	if err != nil {
		PullErrors.WithLabelValues(source, classifyPullError(err)).Inc()
	} else {
		PullLastSuccess.WithLabelValues(source).Set(float64(time.Now().Unix()))
	}
}

// classifyPullError buckets a pull error for the error_type label
func classifyPullError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout"):
		return "timeout"
	// "decode" contains "code", so parse errors must win before the api
	// bucket gets a look.
	case strings.Contains(msg, "parse") || strings.Contains(msg, "decode") || strings.Contains(msg, "unmarshal"):
		return "parse"
	case strings.Contains(msg, "status") || strings.Contains(msg, "code"):
		return "api"
	default:
		return "other"
	}
}

// RecordPullPages records how many pages a paginated pull walked
func RecordPullPages(source string, pages int) {
	PullPages.WithLabelValues(source).Observe(float64(pages))
}

// RecordPullRetry records one retried upstream request
func RecordPullRetry(source string) {
	PullRetries.WithLabelValues(source).Inc()
}

// RecordPollAttempts records poll attempts before a Mintegral download
func RecordPollAttempts(attempts int) {
	MintegralPollAttempts.Observe(float64(attempts))
}

// RecordAccountFailure records a skipped Mintegral account
func RecordAccountFailure(account string) {
	MintegralAccountFailures.WithLabelValues(account).Inc()
}

// RecordRun records a finished ETL run
func RecordRun(job, status string, duration time.Duration, records int) {
	RunsTotal.WithLabelValues(job, status).Inc()
	RunDuration.WithLabelValues(job).Observe(duration.Seconds())
	RunRecordCount.WithLabelValues(job).Observe(float64(records))
}

// TrackActiveRun tracks live runs per job
func TrackActiveRun(job string, inc bool) {
	if inc {
		RunsActive.WithLabelValues(job).Inc()
	} else {
		RunsActive.WithLabelValues(job).Dec()
	}
}

// RecordRunReaped records a stale run killed during pre-start reaping
func RecordRunReaped(job string) {
	RunsReaped.WithLabelValues(job).Inc()
}

// RecordStageTimeout records a deadline hit at a run stage checkpoint
func RecordStageTimeout(job, stage string) {
	RunStageTimeouts.WithLabelValues(job, stage).Inc()
}

// RecordAllocation records one allocation pass
func RecordAllocation(duration time.Duration, merged, unmatched, equalSplits int) {
	AllocationDuration.Observe(duration.Seconds())
	AllocationRowsMerged.Add(float64(merged))
	AllocationUnmatchedSecondary.Add(float64(unmatched))
	AllocationEqualSplits.Add(float64(equalSplits))
}

// RecordAllocationDrop records a malformed row dropped before allocation
func RecordAllocationDrop(reason string) {
	AllocationRowsDropped.WithLabelValues(reason).Inc()
}

// RecordSpendAllocated accumulates spend distributed for a network
func RecordSpendAllocated(network string, spend float64) {
	if spend > 0 {
		AllocationSpendAllocated.WithLabelValues(network).Add(spend)
	}
}

// RecordManualEdit records a manual spend correction
func RecordManualEdit(media string) {
	ReconcileManualEdits.WithLabelValues(media).Inc()
}

// RecordLockAction records a date lock or unlock
func RecordLockAction(locked bool) {
	action := "unlock"
	if locked {
		action = "lock"
	}
	ReconcileLockActions.WithLabelValues(action).Inc()
}

// RecordReconcileSync records a warehouse-to-report refresh
func RecordReconcileSync(synced, skippedLocked int) {
	ReconcileSyncedRows.Add(float64(synced))
	ReconcileSkippedLocked.Add(float64(skippedLocked))
}

// RecordEventPublished records an event publish and its outcome
func RecordEventPublished(topic string, err error) {
	if err != nil {
		EventsPublishErrors.WithLabelValues(topic).Inc()
		return
	}
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordEventConsumed records an event handled from the bus
func RecordEventConsumed(topic string, duration time.Duration) {
	EventsConsumed.WithLabelValues(topic).Inc()
	EventsProcessingDuration.Observe(duration.Seconds())
}
