// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adreckon/adreckon/internal/models"
)

// ErrAlreadyRunning is the sentinel wrapped by AlreadyRunningError so callers
// can branch with errors.Is without caring about the live run's identity.
var ErrAlreadyRunning = errors.New("job already running")

// AlreadyRunningError reports a refused acquisition together with the run
// that holds the registration, so the trigger endpoint can echo its ID.
type AlreadyRunningError struct {
	Job   models.JobKind
	RunID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("job %s already running (run %s)", e.Job, e.RunID)
}

func (e *AlreadyRunningError) Unwrap() error { return ErrAlreadyRunning }

// LiveRun is one job's liveness registration.
type LiveRun struct {
	Job       models.JobKind `json:"job"`
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
}

// Registry holds at most one live registration per job kind. Acquire fails
// with AlreadyRunningError while a registration exists; reaping decisions are
// the Tracker's job, the registry only stores and releases.
type Registry interface {
	// Acquire registers run as the live run for its job kind.
	Acquire(ctx context.Context, run LiveRun) error

	// Release clears the registration for job if it is held by runID. An
	// empty runID clears unconditionally. Releasing a registration that is
	// not held is a no-op.
	Release(ctx context.Context, job models.JobKind, runID string) error

	// Live returns the current registration for job, if any.
	Live(ctx context.Context, job models.JobKind) (LiveRun, bool, error)

	Close() error
}

// MemoryRegistry is the in-process Registry. Registrations die with the
// process, which makes every restart start from a clean slate.
type MemoryRegistry struct {
	mu   sync.Mutex
	live map[models.JobKind]LiveRun
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{live: make(map[models.JobKind]LiveRun)}
}

func (r *MemoryRegistry) Acquire(_ context.Context, run LiveRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.live[run.Job]; ok {
		return &AlreadyRunningError{Job: run.Job, RunID: existing.RunID}
	}
	r.live[run.Job] = run
	return nil
}

func (r *MemoryRegistry) Release(_ context.Context, job models.JobKind, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.live[job]
	if !ok {
		return nil
	}
	if runID != "" && existing.RunID != runID {
		return nil
	}
	delete(r.live, job)
	return nil
}

func (r *MemoryRegistry) Live(_ context.Context, job models.JobKind) (LiveRun, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.live[job]
	return run, ok, nil
}

func (r *MemoryRegistry) Close() error { return nil }
