// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package runs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/adreckon/adreckon/internal/config"
	"github.com/adreckon/adreckon/internal/models"
)

const liveRunKeyPrefix = "run:"

// BadgerRegistry persists liveness registrations in BadgerDB so a run that
// died with the process is still visible, and reapable, after a restart.
type BadgerRegistry struct {
	db *badger.DB
}

// NewBadgerRegistry wraps an already-open BadgerDB.
func NewBadgerRegistry(db *badger.DB) *BadgerRegistry {
	return &BadgerRegistry{db: db}
}

// NewRegistry creates the Registry selected by configuration: BadgerDB at
// RegistryPath when set, in-memory otherwise.
func NewRegistry(cfg *config.RunsConfig) (Registry, error) {
	if cfg == nil || cfg.RegistryPath == "" {
		return NewMemoryRegistry(), nil
	}

	opts := badger.DefaultOptions(cfg.RegistryPath)
	opts.Logger = nil // Badger's own logger is too chatty for a tiny registry

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run registry at %s: %w", cfg.RegistryPath, err)
	}
	return NewBadgerRegistry(db), nil
}

func liveRunKey(job models.JobKind) []byte {
	return []byte(liveRunKeyPrefix + string(job))
}

func (r *BadgerRegistry) Acquire(_ context.Context, run LiveRun) error {
	return r.db.Update(func(txn *badger.Txn) error {
		key := liveRunKey(run.Job)

		item, err := txn.Get(key)
		if err == nil {
			var existing LiveRun
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); verr != nil {
				return fmt.Errorf("decode live run: %w", verr)
			}
			return &AlreadyRunningError{Job: run.Job, RunID: existing.RunID}
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get live run: %w", err)
		}

		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("marshal live run: %w", err)
		}
		return txn.Set(key, data)
	})
}

func (r *BadgerRegistry) Release(_ context.Context, job models.JobKind, runID string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		key := liveRunKey(job)

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get live run: %w", err)
		}

		if runID != "" {
			var existing LiveRun
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); verr != nil {
				return fmt.Errorf("decode live run: %w", verr)
			}
			if existing.RunID != runID {
				return nil
			}
		}
		return txn.Delete(key)
	})
}

func (r *BadgerRegistry) Live(_ context.Context, job models.JobKind) (LiveRun, bool, error) {
	var run LiveRun
	found := false

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(liveRunKey(job))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get live run: %w", err)
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if err != nil {
		return LiveRun{}, false, err
	}
	return run, found, nil
}

func (r *BadgerRegistry) Close() error {
	return r.db.Close()
}
