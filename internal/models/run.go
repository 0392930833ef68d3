// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package models

import "time"

// JobKind identifies an ETL job. Exactly one run per kind may be live at a
// time; the run registry enforces this.
type JobKind string

const (
	// JobMerge is the daily two-source merge job: ClickFlare two-pass pull,
	// Mintegral account loop, spend allocation, idempotent replace.
	JobMerge JobKind = "merge"

	// JobHourly is the single-pass hourly report job with whole-window
	// delete-then-insert and retention pruning.
	JobHourly JobKind = "hourly"
)

// Valid reports whether k names a known job.
func (k JobKind) Valid() bool {
	return k == JobMerge || k == JobHourly
}

// RunStatus is the lifecycle state of one ETL run.
//
// A run moves Running -> {Success, Failed, TimedOut}. Killed is only ever
// applied from the outside, by pre-start reaping of a stale registration;
// a run never kills itself.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"

	// RunStatusSuccess means the run committed everything it pulled.
	RunStatusSuccess RunStatus = "success"

	// RunStatusFailed means a fatal error (typically a warehouse write
	// failure); the whole date is retried wholesale on the next run.
	RunStatusFailed RunStatus = "failed"

	// RunStatusTimedOut means the cooperative stage-timeout fired mid-run:
	// rows assembled so far were committed and the remainder is left for the
	// next scheduled invocation. Externally this reports as a success with a
	// partial record count.
	RunStatusTimedOut RunStatus = "timed_out"

	// RunStatusKilled means a stale registration was reaped before a new run
	// started.
	RunStatusKilled RunStatus = "killed"

	RunStatusUnknown RunStatus = "unknown"
)

// Terminal reports whether the status is an end state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed ||
		s == RunStatusTimedOut || s == RunStatusKilled
}

// External collapses the internal status to the success/failed/unknown
// vocabulary the status endpoint exposes. Timed-out runs committed partial
// work, so they count as success; per-account failures and partial commits
// are visible in the log tail, not here.
func (s RunStatus) External() string {
	switch s {
	case RunStatusSuccess, RunStatusTimedOut:
		return "success"
	case RunStatusFailed, RunStatusKilled:
		return "failed"
	default:
		return "unknown"
	}
}

// RunRecord is the persisted outcome of one ETL run, stored in the etl_runs
// table so job status survives restarts.
type RunRecord struct {
	RunID        string    `json:"run_id"`
	Job          JobKind   `json:"job"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Status       RunStatus `json:"status"`
	RecordCount  int64     `json:"record_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Duration returns the wall-clock run time, or the elapsed time so far for a
// run that has not finished.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
