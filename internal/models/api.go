// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP endpoints.
//
// Status field values:
//   - "success": Request completed successfully, see Data field
//   - "error": Request failed, see Error field for details
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"run_id": "6d5e...", "status": "started"},
//	  "metadata": {"timestamp": "2026-08-29T12:00:00Z", "query_time_ms": 4}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms"`
}

// APIError carries machine-readable error details.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// TriggerResult is the payload of a job trigger response. Status is "started"
// when a run was launched and "already_running" when the registry refused a
// second concurrent run; RunID identifies the live run in both cases.
type TriggerResult struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// JobStatus is the payload of the job status endpoint, read from the persisted
// run history. LastStatus uses the external success/failed/unknown vocabulary.
type JobStatus struct {
	Job             JobKind    `json:"job"`
	Running         bool       `json:"running"`
	LastRun         *time.Time `json:"last_run"`
	LastStatus      string     `json:"last_status"`
	DurationSeconds float64    `json:"duration_seconds"`
	RecordCount     int64      `json:"record_count"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

// JobLog is the payload of the job log endpoint: the newest lines of the
// in-memory run log buffer, oldest first.
type JobLog struct {
	Job   JobKind  `json:"job"`
	Lines []string `json:"lines"`
}

// DailyReportQuery holds the parsed query parameters of the daily report data
// endpoint. Media is optional; empty means all media.
type DailyReportQuery struct {
	StartDate time.Time
	EndDate   time.Time
	Media     string
}

// DailyReportResult is the payload of the daily report data endpoint.
type DailyReportResult struct {
	Rows    []DailyReportRow   `json:"rows"`
	Summary DailyReportSummary `json:"summary"`
}

// UpdateSpendRequest sets the absolute final spend for one (date, media) row.
// The store derives the manual delta from the currently attributed spend, so
// repeated corrections compose instead of clobbering each other.
type UpdateSpendRequest struct {
	Date  string  `json:"date" validate:"required,datetime=2006-01-02"`
	Media string  `json:"media" validate:"required,max=255"`
	Spend float64 `json:"spend" validate:"gte=0"`
}

// LockDateRequest toggles the lock flag for every media row at a date.
// Locking is idempotent.
type LockDateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Lock bool   `json:"lock"`
}

// SyncRangeRequest re-aggregates the daily report from canonical rows for an
// inclusive date range. Locked dates are silently skipped.
type SyncRangeRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// SyncRangeResult reports how many dates were actually synced and the total
// number of daily report rows written across them.
type SyncRangeResult struct {
	Synced  int      `json:"synced"`
	Rows    int      `json:"rows_synced"`
	Skipped []string `json:"skipped_locked,omitempty"`
}

// HealthStatus is the payload of the health endpoint.
type HealthStatus struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
