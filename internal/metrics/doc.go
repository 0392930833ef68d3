// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

/*
Package metrics provides Prometheus metrics collection and export.

All metrics are registered on the default registry via promauto and
exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8476/metrics

# Available Metrics

Warehouse (DuckDB):
  - duckdb_query_duration_seconds: query execution time (histogram)
    Labels: operation, table
  - duckdb_query_errors_total: failed queries (counter)
    Labels: operation, table, error_type
  - warehouse_replace_duration_seconds: delete-and-insert cycles (histogram)
    Labels: table
  - warehouse_rows_replaced_total: rows written through replaces (counter)
    Labels: table

Connector pulls:
  - pull_duration_seconds: end-to-end pull duration (histogram)
    Labels: source (clickflare, mintegral)
    Buckets sized for report polling, up to 10 minutes
  - pull_rows_fetched_total, pull_pages, pull_errors_total, pull_retries_total
  - pull_last_success_timestamp: per-source freshness (gauge)
  - mintegral_poll_attempts: polls before a report download (histogram)
  - mintegral_account_failures_total: skipped accounts (counter)

Allocation:
  - allocation_duration_seconds, allocation_rows_merged_total
  - allocation_rows_dropped_total: malformed input rows (counter)
    Labels: reason (negative_count, non_finite)
  - allocation_unmatched_secondary_total: secondary rows kept without a
    primary group (counter)
  - allocation_equal_splits_total: zero-impression fallbacks (counter)
  - allocation_spend_allocated_total: spend distributed per network (counter)

Runs:
  - etl_runs_total (job, status), etl_run_duration_seconds (job)
  - etl_run_records (job): rows committed per run (histogram)
  - etl_runs_active (job), etl_runs_reaped_total (job)
  - etl_run_stage_timeouts_total (job, stage): deadline hits at the
    pass1 / pass2 / secondary checkpoints

API, circuit breakers, reconciliation, and the event bus follow the
same pattern; see the variable declarations in metrics.go.

# Usage

Record helpers wrap the common label plumbing:

	start := time.Now()
	rows, err := client.PullDay(ctx, day)
	metrics.RecordPull("clickflare", time.Since(start), len(rows), err)

# Example PromQL

	# Pull failure rate by source
	rate(pull_errors_total[15m])

	# p95 merge run duration
	histogram_quantile(0.95, rate(etl_run_duration_seconds_bucket{job="merge"}[1h]))

	# Data freshness: seconds since last successful pull
	time() - pull_last_success_timestamp

# Cardinality

Labels stay low-cardinality: sources, jobs, tables, and networks are
small fixed sets, and endpoint labels come from chi route patterns, not
raw URLs. The one free-text label, duckdb_query_errors_total's
error_type, is truncated to 50 characters.

# Thread Safety

All recording functions are safe for concurrent use; the Prometheus
client handles synchronization internally.
*/
package metrics
