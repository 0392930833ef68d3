// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

/*
Package runs enforces single-flight execution of the ETL jobs and keeps the
operational record of every run.

Three pieces work together:

  - Registry: liveness records, one per job kind. The memory implementation
    covers single-process deployments; the BadgerDB implementation survives
    restarts so a crashed run is visible (and reapable) after the process
    comes back.
  - JobLogs: a bounded in-memory ring of log lines per job, backing the
    job log endpoint.
  - Tracker: the lifecycle orchestrator. It reaps stale registrations before
    a new run starts, persists run history through the warehouse, and feeds
    the status endpoint.

A run is never killed from the inside. The only path to the killed status is
pre-start reaping: the hourly job reaps any leftover registration
unconditionally, the merge job only reaps registrations older than the
configured stale threshold.
*/
package runs
