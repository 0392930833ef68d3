// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

// Package scheduler drives the recurring jobs: the daily merge run, the
// hourly report run, and the daily-report safety sync.
//
// There is no cron library here. A single loop wakes on a short check
// interval and fires whatever is due: the merge at its configured hour (for
// "yesterday" in the report timezone), the hourly job by elapsed interval,
// the safety sync at its configured hour. Per-day guards keep an hour-long
// window from firing a daily job twice; the run tracker's single-flight
// registration catches everything else.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adreckon/adreckon/internal/config"
	"github.com/adreckon/adreckon/internal/logging"
	"github.com/adreckon/adreckon/internal/models"
	"github.com/adreckon/adreckon/internal/runs"
)

const (
	defaultCheckInterval = 30 * time.Second

	// runHistoryRetention bounds the etl_runs table. Old run records have
	// no operational value past the dashboard's history view.
	runHistoryRetention = 90 * 24 * time.Hour
)

// JobRunner runs the ETL jobs. Satisfied by *sync.Manager.
type JobRunner interface {
	RunMerge(ctx context.Context, date time.Time) error
	RunHourly(ctx context.Context) error
	ReportLocation() *time.Location
}

// ReportSyncer rebuilds one date's daily-report rows from canonical data.
// Satisfied by *reconcile.Store.
type ReportSyncer interface {
	SyncFromCanonical(ctx context.Context, date time.Time) (synced, skipped int, err error)
}

// RunPruner deletes old run-history records. Satisfied by *database.DB.
type RunPruner interface {
	PruneRunsBefore(ctx context.Context, cutoff time.Time) error
}

// Scheduler fires the recurring jobs on their configured cadence.
type Scheduler struct {
	jobs      config.JobsConfig
	reconcile config.ReconcileConfig
	runner    JobRunner
	syncer    ReportSyncer
	pruner    RunPruner
	logger    zerolog.Logger

	checkInterval time.Duration
	now           func() time.Time

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	wg           sync.WaitGroup
	lastMergeDay string
	lastSyncDay  string
	lastPruneDay string
	lastHourly   time.Time
}

// New creates a scheduler. The syncer and pruner may be nil, disabling the
// safety sync and run-history pruning respectively.
func New(jobs config.JobsConfig, rec config.ReconcileConfig, runner JobRunner, syncer ReportSyncer, pruner RunPruner) *Scheduler {
	return &Scheduler{
		jobs:          jobs,
		reconcile:     rec,
		runner:        runner,
		syncer:        syncer,
		pruner:        pruner,
		logger:        logging.WithComponent("scheduler"),
		checkInterval: defaultCheckInterval,
		now:           time.Now,
	}
}

// Start begins the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info().
		Bool("merge_enabled", s.jobs.Merge.Enabled).
		Int("merge_hour", s.jobs.Merge.Hour).
		Bool("hourly_enabled", s.jobs.Hourly.Enabled).
		Dur("hourly_interval", s.jobs.Hourly.Interval).
		Bool("sync_enabled", s.reconcile.SyncEnabled).
		Int("sync_hour", s.reconcile.SyncHour).
		Msg("Starting scheduler")

	go s.run(ctx)
	return nil
}

// Stop stops the loop and waits for in-flight job goroutines.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick fires whatever is due. Jobs run in their own goroutines so a
// half-hour merge never starves the hourly cadence.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	local := now.In(s.runner.ReportLocation())
	day := local.Format(models.DateFormat)

	if s.jobs.Merge.Enabled && local.Hour() == s.jobs.Merge.Hour && s.lastMergeDay != day {
		s.lastMergeDay = day
		date := reportDate(local.AddDate(0, 0, -1))
		s.spawn(func() { s.runMerge(ctx, date) })
	}

	if s.jobs.Hourly.Enabled && now.Sub(s.lastHourly) >= s.jobs.Hourly.Interval {
		s.lastHourly = now
		s.spawn(func() { s.runHourly(ctx) })
	}

	if s.syncer != nil && s.reconcile.SyncEnabled && local.Hour() == s.reconcile.SyncHour && s.lastSyncDay != day {
		s.lastSyncDay = day
		date := reportDate(local.AddDate(0, 0, -1))
		s.spawn(func() { s.runSync(ctx, date) })
	}

	if s.pruner != nil && s.lastPruneDay != day {
		s.lastPruneDay = day
		cutoff := now.Add(-runHistoryRetention)
		s.spawn(func() {
			if err := s.pruner.PruneRunsBefore(ctx, cutoff); err != nil {
				s.logger.Warn().Err(err).Msg("Run-history prune failed")
			}
		})
	}
}

func (s *Scheduler) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Scheduler) runMerge(ctx context.Context, date time.Time) {
	s.logger.Info().Str("report_date", date.Format(models.DateFormat)).Msg("Scheduled merge run starting")
	if err := s.runner.RunMerge(ctx, date); err != nil {
		s.logJobErr(err, string(models.JobMerge))
	}
}

func (s *Scheduler) runHourly(ctx context.Context) {
	if err := s.runner.RunHourly(ctx); err != nil {
		s.logJobErr(err, string(models.JobHourly))
	}
}

func (s *Scheduler) runSync(ctx context.Context, date time.Time) {
	synced, skipped, err := s.syncer.SyncFromCanonical(ctx, date)
	if err != nil {
		s.logger.Error().Err(err).Str("report_date", date.Format(models.DateFormat)).Msg("Safety sync failed")
		return
	}
	s.logger.Info().
		Str("report_date", date.Format(models.DateFormat)).
		Int("synced", synced).
		Int("skipped", skipped).
		Msg("Safety sync completed")
}

func (s *Scheduler) logJobErr(err error, job string) {
	var already *runs.AlreadyRunningError
	if errors.As(err, &already) {
		s.logger.Info().Str("job", job).Str("run_id", already.RunID).Msg("Scheduled run skipped, job already running")
		return
	}
	s.logger.Error().Err(err).Str("job", job).Msg("Scheduled run failed")
}

// reportDate collapses a zoned timestamp to its calendar date as a UTC
// midnight, the shape the warehouse stores dates in.
func reportDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
