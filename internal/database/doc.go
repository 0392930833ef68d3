// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

/*
Package database provides the DuckDB warehouse layer.

It owns the connection lifecycle (pooling, reconnection with backoff, prepared
statement caching), the schema, and the write paths of the ETL pipeline:

  - marketing_report_daily: canonical merged rows, replaced idempotently per
    (report date, campaign set) by the merge job
  - hourly_report: hourly rows, replaced per time window by the hourly job,
    pruned by retention
  - daily_report: per-(date, media) reconciliation rows with manual spend
    corrections and lock flags (mutated by the reconcile package)
  - etl_runs: persisted run outcomes backing the job status endpoint

Read/aggregate queries for the reconciliation surface live in the reconcile
package, which works through Conn().
*/
package database
