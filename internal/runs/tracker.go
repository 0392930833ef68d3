// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adreckon/adreckon/internal/database"
	"github.com/adreckon/adreckon/internal/logging"
	"github.com/adreckon/adreckon/internal/metrics"
	"github.com/adreckon/adreckon/internal/models"
)

// Tracker orchestrates the run lifecycle: stale-registration reaping, the
// single-flight acquire, persisted run history, and the status/log read
// surface. One Tracker serves all job kinds.
type Tracker struct {
	registry   Registry
	db         *database.DB
	logs       *JobLogs
	staleAfter time.Duration
}

func NewTracker(registry Registry, db *database.DB, logs *JobLogs, staleAfter time.Duration) *Tracker {
	return &Tracker{
		registry:   registry,
		db:         db,
		logs:       logs,
		staleAfter: staleAfter,
	}
}

// Run is one live run handle. The owning job must call Finish exactly once.
type Run struct {
	ID        string
	Job       models.JobKind
	StartedAt time.Time

	tracker *Tracker
}

// Begin starts a new run for the job. A live registration is reaped first
// when it qualifies (hourly: always; merge: older than the stale threshold);
// otherwise Begin fails with AlreadyRunningError carrying the live run's ID.
func (t *Tracker) Begin(ctx context.Context, job models.JobKind) (*Run, error) {
	if !job.Valid() {
		return nil, fmt.Errorf("unknown job %q", job)
	}

	live, ok, err := t.registry.Live(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("read run registry: %w", err)
	}
	if ok {
		if !t.shouldReap(job, live) {
			return nil, &AlreadyRunningError{Job: job, RunID: live.RunID}
		}
		if err := t.reap(ctx, live); err != nil {
			return nil, err
		}
	}

	run := &Run{
		ID:        uuid.NewString(),
		Job:       job,
		StartedAt: time.Now().UTC(),
		tracker:   t,
	}

	if err := t.registry.Acquire(ctx, LiveRun{Job: job, RunID: run.ID, StartedAt: run.StartedAt}); err != nil {
		return nil, err
	}

	if err := t.db.InsertRunStart(ctx, models.RunRecord{
		RunID:     run.ID,
		Job:       job,
		StartedAt: run.StartedAt,
		Status:    models.RunStatusRunning,
	}); err != nil {
		// Roll back the registration so the failed start does not wedge the job.
		_ = t.registry.Release(ctx, job, run.ID)
		return nil, fmt.Errorf("record run start: %w", err)
	}

	t.logs.Logf(job, "run %s started", run.ID)
	logging.Info().
		Str("job", string(job)).
		Str("run_id", run.ID).
		Msg("ETL run started")
	return run, nil
}

// shouldReap decides whether a live registration may be cleared before a new
// run. The hourly job is short and frequent, so any leftover registration is
// presumed dead. The merge job can legitimately run long; only registrations
// past the stale threshold are reaped.
func (t *Tracker) shouldReap(job models.JobKind, live LiveRun) bool {
	if job == models.JobHourly {
		return true
	}
	return time.Since(live.StartedAt) > t.staleAfter
}

func (t *Tracker) reap(ctx context.Context, live LiveRun) error {
	if err := t.registry.Release(ctx, live.Job, live.RunID); err != nil {
		return fmt.Errorf("release stale run: %w", err)
	}

	if err := t.db.FinishRun(ctx, models.RunRecord{
		RunID:        live.RunID,
		Job:          live.Job,
		FinishedAt:   time.Now().UTC(),
		Status:       models.RunStatusKilled,
		ErrorMessage: "stale registration reaped before new run",
	}); err != nil {
		// The registration is already cleared; a missing history row for a
		// dead run is not worth blocking the new one.
		logging.Warn().Err(err).
			Str("job", string(live.Job)).
			Str("run_id", live.RunID).
			Msg("Failed to record reaped run")
	}

	metrics.RecordRunReaped(string(live.Job))
	t.logs.Logf(live.Job, "run %s reaped (stale, started %s)",
		live.RunID, live.StartedAt.UTC().Format(time.RFC3339))
	logging.Warn().
		Str("job", string(live.Job)).
		Str("run_id", live.RunID).
		Time("started_at", live.StartedAt).
		Msg("Reaped stale run registration")
	return nil
}

// Finish records the run's terminal status, releases the registration and
// emits the summary metrics. Must be called exactly once per Run.
func (r *Run) Finish(ctx context.Context, status models.RunStatus, records int64, runErr error) error {
	t := r.tracker
	finishedAt := time.Now().UTC()
	duration := finishedAt.Sub(r.StartedAt)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}

	if err := t.db.FinishRun(ctx, models.RunRecord{
		RunID:        r.ID,
		Job:          r.Job,
		FinishedAt:   finishedAt,
		Status:       status,
		RecordCount:  records,
		ErrorMessage: errMsg,
	}); err != nil {
		_ = t.registry.Release(ctx, r.Job, r.ID)
		return fmt.Errorf("record run finish: %w", err)
	}
	if err := t.registry.Release(ctx, r.Job, r.ID); err != nil {
		return fmt.Errorf("release run: %w", err)
	}

	metrics.RecordRun(string(r.Job), string(status), duration, int(records))
	t.logs.Logf(r.Job, "run %s finished status=%s records=%d duration=%s",
		r.ID, status, records, duration.Round(time.Millisecond))

	event := logging.Info()
	if status == models.RunStatusFailed {
		event = logging.Error()
	}
	event.
		Str("job", string(r.Job)).
		Str("run_id", r.ID).
		Str("status", string(status)).
		Int64("records", records).
		Dur("duration", duration).
		Msg("ETL run finished")
	return nil
}

// Logf mirrors one formatted line into the run's job log buffer.
func (r *Run) Logf(format string, args ...any) {
	r.tracker.logs.Logf(r.Job, format, args...)
}

// Status assembles the job status payload: liveness from the registry, last
// outcome from the persisted run history. A job with no history reports
// last_status "unknown".
func (t *Tracker) Status(ctx context.Context, job models.JobKind) (models.JobStatus, error) {
	status := models.JobStatus{Job: job, LastStatus: models.RunStatusUnknown.External()}

	_, running, err := t.registry.Live(ctx, job)
	if err != nil {
		return status, fmt.Errorf("read run registry: %w", err)
	}
	status.Running = running

	rec, err := t.db.LastRun(ctx, job)
	if errors.Is(err, database.ErrNoRuns) {
		return status, nil
	}
	if err != nil {
		return status, fmt.Errorf("read run history: %w", err)
	}

	started := rec.StartedAt
	status.LastRun = &started
	status.LastStatus = rec.Status.External()
	status.DurationSeconds = rec.Duration().Seconds()
	status.RecordCount = rec.RecordCount
	status.ErrorMessage = rec.ErrorMessage
	return status, nil
}

// Log returns the newest n buffered log lines for the job, oldest first.
func (t *Tracker) Log(job models.JobKind, n int) models.JobLog {
	return models.JobLog{Job: job, Lines: t.logs.Tail(job, n)}
}

// Close releases the underlying registry resources.
func (t *Tracker) Close() error {
	return t.registry.Close()
}
