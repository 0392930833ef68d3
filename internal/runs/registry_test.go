// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package runs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/adreckon/adreckon/internal/config"
	"github.com/adreckon/adreckon/internal/models"
)

func newBadgerTestRegistry(t *testing.T) *BadgerRegistry {
	t.Helper()

	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}
	reg := NewBadgerRegistry(db)
	t.Cleanup(func() {
		if err := reg.Close(); err != nil {
			t.Errorf("Failed to close registry: %v", err)
		}
	})
	return reg
}

// registryContract runs the behavior shared by both implementations.
func registryContract(t *testing.T, reg Registry) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := reg.Live(ctx, models.JobMerge)
	if err != nil {
		t.Fatalf("Live on empty registry failed: %v", err)
	}
	if ok {
		t.Fatal("Expected no live run on empty registry")
	}

	first := LiveRun{Job: models.JobMerge, RunID: "run-1", StartedAt: time.Now().UTC().Truncate(time.Second)}
	if err := reg.Acquire(ctx, first); err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}

	err = reg.Acquire(ctx, LiveRun{Job: models.JobMerge, RunID: "run-2", StartedAt: time.Now()})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Expected ErrAlreadyRunning, got %v", err)
	}
	var busy *AlreadyRunningError
	if !errors.As(err, &busy) || busy.RunID != "run-1" {
		t.Errorf("Expected conflict to report run-1, got %+v", busy)
	}

	// Different job kinds do not conflict.
	if err := reg.Acquire(ctx, LiveRun{Job: models.JobHourly, RunID: "run-h", StartedAt: time.Now()}); err != nil {
		t.Fatalf("Acquire for other job failed: %v", err)
	}

	// A mismatched run ID must not release someone else's registration.
	if err := reg.Release(ctx, models.JobMerge, "run-2"); err != nil {
		t.Fatalf("Mismatched release errored: %v", err)
	}
	if _, ok, _ := reg.Live(ctx, models.JobMerge); !ok {
		t.Fatal("Mismatched release cleared the registration")
	}

	if err := reg.Release(ctx, models.JobMerge, "run-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, ok, _ := reg.Live(ctx, models.JobMerge); ok {
		t.Fatal("Expected registration to be cleared")
	}

	// Releasing again is a no-op.
	if err := reg.Release(ctx, models.JobMerge, "run-1"); err != nil {
		t.Fatalf("Double release errored: %v", err)
	}

	// Empty run ID clears unconditionally.
	if err := reg.Release(ctx, models.JobHourly, ""); err != nil {
		t.Fatalf("Unconditional release failed: %v", err)
	}
	if _, ok, _ := reg.Live(ctx, models.JobHourly); ok {
		t.Fatal("Expected unconditional release to clear the registration")
	}
}

func TestMemoryRegistry(t *testing.T) {
	registryContract(t, NewMemoryRegistry())
}

func TestBadgerRegistry(t *testing.T) {
	registryContract(t, newBadgerTestRegistry(t))
}

func TestBadgerRegistrySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	open := func() *BadgerRegistry {
		opts := badger.DefaultOptions(dir)
		opts.Logger = nil
		db, err := badger.Open(opts)
		if err != nil {
			t.Fatalf("Failed to open badger: %v", err)
		}
		return NewBadgerRegistry(db)
	}

	reg := open()
	started := time.Now().UTC().Truncate(time.Second)
	if err := reg.Acquire(ctx, LiveRun{Job: models.JobMerge, RunID: "crashed", StartedAt: started}); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reg = open()
	defer func() {
		if err := reg.Close(); err != nil {
			t.Errorf("Failed to close registry: %v", err)
		}
	}()

	live, ok, err := reg.Live(ctx, models.JobMerge)
	if err != nil {
		t.Fatalf("Live after reopen failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected registration to survive reopen")
	}
	if live.RunID != "crashed" || !live.StartedAt.Equal(started) {
		t.Errorf("Unexpected surviving registration: %+v", live)
	}
}

func TestNewRegistrySelectsBackend(t *testing.T) {
	reg, err := NewRegistry(&config.RunsConfig{})
	if err != nil {
		t.Fatalf("NewRegistry with empty path failed: %v", err)
	}
	if _, ok := reg.(*MemoryRegistry); !ok {
		t.Errorf("Expected memory registry, got %T", reg)
	}

	reg, err = NewRegistry(&config.RunsConfig{RegistryPath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewRegistry with path failed: %v", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			t.Errorf("Failed to close registry: %v", err)
		}
	}()
	if _, ok := reg.(*BadgerRegistry); !ok {
		t.Errorf("Expected badger registry, got %T", reg)
	}
}
