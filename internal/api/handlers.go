// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package api

import (
	"context"
	"time"

	"github.com/adreckon/adreckon/internal/config"
	"github.com/adreckon/adreckon/internal/models"
)

// Version is stamped by the build and reported by the health endpoint.
var Version = "dev"

// JobManager launches ETL runs. StartMerge and StartHourly register the run
// synchronously and execute it in the background, returning the run ID so
// trigger responses can reference the live run.
type JobManager interface {
	StartMerge(ctx context.Context, date time.Time) (string, error)
	StartHourly(ctx context.Context) (string, error)
	ReportLocation() *time.Location
}

// RunReader reads run state: persisted history for status, the in-memory
// ring buffer for the log tail.
type RunReader interface {
	Status(ctx context.Context, job models.JobKind) (models.JobStatus, error)
	Log(job models.JobKind, n int) models.JobLog
}

// ReportStore is the reconciliation surface of the daily report.
type ReportStore interface {
	Query(ctx context.Context, q models.DailyReportQuery) (models.DailyReportResult, error)
	MediaList(ctx context.Context) ([]string, error)
	SetFinalSpend(ctx context.Context, date time.Time, media string, spend float64) (float64, error)
	Lock(ctx context.Context, date time.Time, locked bool) (int64, error)
	SyncRange(ctx context.Context, start, end time.Time) (models.SyncRangeResult, error)
	LockedDates(ctx context.Context, start, end time.Time) ([]string, error)
}

// Pinger checks database connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains dependencies for the ops API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct and constructor (this file)
//   - handlers_helpers.go: shared response and parameter helpers
//   - handlers_jobs.go: trigger, status and log endpoints
//   - handlers_report.go: report reads, corrections, locks and re-sync
//   - handlers_health.go: health and probe endpoints
type Handler struct {
	jobs      JobManager
	runs      RunReader
	store     ReportStore
	db        Pinger
	config    *config.Config
	startTime time.Time
}

// NewHandler creates the ops API handler.
func NewHandler(jobs JobManager, runs RunReader, store ReportStore, db Pinger, cfg *config.Config) *Handler {
	return &Handler{
		jobs:      jobs,
		runs:      runs,
		store:     store,
		db:        db,
		config:    cfg,
		startTime: time.Now(),
	}
}
