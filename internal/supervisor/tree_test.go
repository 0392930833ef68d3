// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package supervisor

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

type signalService struct {
	name    string
	started chan struct{}
}

func (s *signalService) Serve(ctx context.Context) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *signalService) String() string { return s.name }

func TestDefaultTreeConfig(t *testing.T) {
	cfg := DefaultTreeConfig()
	if cfg.FailureThreshold != 5.0 {
		t.Errorf("threshold = %v", cfg.FailureThreshold)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v", cfg.ShutdownTimeout)
	}
}

func TestTreeZeroConfigGetsDefaults(t *testing.T) {
	tree := NewTree(slog.Default(), TreeConfig{})
	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("threshold = %v, want default 5.0", tree.config.FailureThreshold)
	}
	if tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("backoff = %v, want default 15s", tree.config.FailureBackoff)
	}
}

func TestTreeRunsServicesInAllLayers(t *testing.T) {
	tree := NewTree(slog.Default(), DefaultTreeConfig())

	etl := &signalService{name: "etl-probe", started: make(chan struct{}, 1)}
	msg := &signalService{name: "msg-probe", started: make(chan struct{}, 1)}
	api := &signalService{name: "api-probe", started: make(chan struct{}, 1)}
	tree.AddETLService(etl)
	tree.AddMessagingService(msg)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	for _, svc := range []*signalService{etl, msg, api} {
		select {
		case <-svc.started:
		case <-time.After(5 * time.Second):
			t.Fatalf("service %s never started", svc.name)
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			t.Errorf("tree exited with %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}
