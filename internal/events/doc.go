// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

// Package events carries run-completed notifications over NATS JetStream.
//
// After a merge run commits canonical rows, the manager publishes a
// RunCompleted event on the "runs.completed" subject. A durable subscriber
// re-syncs the affected date's daily-report rows so manual spend corrections
// stay anchored to fresh canonical data without waiting for the scheduled
// safety sync.
//
// The bus is optional. With events.embedded_server set, a single-binary
// deployment runs its own NATS server with JetStream file storage; otherwise
// the configured URL must point at an external server. Either way the
// RUN_EVENTS stream is provisioned up front and both publisher and subscriber
// bind to it, so losing the subscriber never loses events within the
// retention window.
package events
