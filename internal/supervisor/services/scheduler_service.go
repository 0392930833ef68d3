// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

// Package services adapts the application's components to suture's Serve
// pattern so the supervision tree can manage their lifecycles.
package services

import (
	"context"
	"fmt"
)

// StartStopper matches the scheduler's lifecycle. Satisfied by
// *scheduler.Scheduler.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService wraps the job scheduler as a supervised service: Start
// on entry, block on the context, Stop on the way out.
type SchedulerService struct {
	manager StartStopper
	name    string
}

// NewSchedulerService creates the scheduler service wrapper.
func NewSchedulerService(manager StartStopper) *SchedulerService {
	return &SchedulerService{
		manager: manager,
		name:    "job-scheduler",
	}
}

// Serve implements suture.Service. A Start failure returns immediately so
// the supervisor restarts with backoff.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (s *SchedulerService) String() string {
	return s.name
}
