// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

// Package main is the entry point for the Adreckon server.
//
// Adreckon pulls ad performance data from ClickFlare and per-network source
// adapters, allocates network spend onto canonical rows, and maintains a
// reconciled daily report in DuckDB. The server runs the scheduled merge and
// hourly jobs, an optional run-events bus over embedded NATS JetStream, and
// the ops HTTP API, all under a suture supervision tree.
//
// Startup order:
//
//  1. Configuration via Koanf (env over config file over defaults)
//  2. Logging (zerolog, console or JSON)
//  3. DuckDB warehouse and schema
//  4. Run registry (BadgerDB) and tracker
//  5. Reconcile store and sync manager
//  6. Run-events bus, when events.enabled
//  7. Scheduler, HTTP server, supervision tree
//
// Shutdown on SIGINT/SIGTERM stops accepting connections, drains in-flight
// requests, stops the scheduler, and closes the bus, registry and warehouse.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adreckon/adreckon/internal/api"
	"github.com/adreckon/adreckon/internal/config"
	"github.com/adreckon/adreckon/internal/database"
	"github.com/adreckon/adreckon/internal/events"
	"github.com/adreckon/adreckon/internal/logging"
	"github.com/adreckon/adreckon/internal/reconcile"
	"github.com/adreckon/adreckon/internal/runs"
	"github.com/adreckon/adreckon/internal/scheduler"
	"github.com/adreckon/adreckon/internal/supervisor"
	"github.com/adreckon/adreckon/internal/supervisor/services"
	syncpkg "github.com/adreckon/adreckon/internal/sync"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	logging.Info().
		Str("version", api.Version).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Adreckon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open warehouse: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close warehouse")
		}
	}()

	registry, err := runs.NewRegistry(&cfg.Runs)
	if err != nil {
		return fmt.Errorf("open run registry: %w", err)
	}
	tracker := runs.NewTracker(registry, db, runs.NewJobLogs(cfg.Runs.LogBufferLines), cfg.Runs.StaleAfter)
	defer func() {
		if err := tracker.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close run registry")
		}
	}()

	store := reconcile.NewStore(db)

	// The bus is optional; without it the scheduled safety sync is the
	// only path that keeps the daily report current.
	var publisher syncpkg.RunPublisher
	var bus *events.Service
	if cfg.Events.Enabled {
		bus, err = events.NewService(cfg.Events, store)
		if err != nil {
			return fmt.Errorf("start run-events bus: %w", err)
		}
		defer func() {
			if err := bus.Close(); err != nil {
				logging.Error().Err(err).Msg("Failed to close run-events bus")
			}
		}()
		publisher = bus.Publisher()
	}

	manager, err := syncpkg.NewManager(cfg, db, tracker, publisher)
	if err != nil {
		return fmt.Errorf("build sync manager: %w", err)
	}

	sched := scheduler.New(cfg.Jobs, cfg.Reconcile, manager, store, db)

	handler := api.NewHandler(manager, tracker, store, db, cfg)
	router := api.NewRouter(handler, api.ChiMiddlewareFromConfig(cfg.Security))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddETLService(services.NewSchedulerService(sched))
	if bus != nil {
		tree.AddMessagingService(bus)
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))

	logging.Info().
		Str("addr", httpServer.Addr).
		Bool("events", cfg.Events.Enabled).
		Msg("Supervision tree starting")

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervision tree: %w", err)
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}
