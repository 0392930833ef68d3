// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

// Package api implements the ops HTTP API on the Chi router: job triggers
// and status, daily report reads, manual spend corrections, date locks and
// canonical re-sync, plus health and Prometheus endpoints.
//
// Handlers depend on narrow interfaces (JobManager, RunReader, ReportStore)
// rather than concrete types so they can be exercised with fakes; the
// production wiring in cmd/server satisfies them with sync.Manager,
// runs.Tracker and reconcile.Store.
package api
