// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

// Package logging provides centralized zerolog-based structured logging
// for Adreckon.
//
// A single global logger is configured once at startup via Init. JSON
// output is the production default; console output is available for
// development. All exported functions are safe for concurrent use.
//
// # Quick Start
//
//	import "github.com/adreckon/adreckon/internal/logging"
//
//	// Initialize at application startup
//	if err := logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	}); err != nil {
//	    return err
//	}
//
//	// Log messages with structured fields
//	logging.Info().Str("job", "merge").Msg("Run started")
//	logging.Error().Err(err).Str("account", name).Msg("Pull failed")
//
// # Component Loggers
//
// Long-lived components derive a child logger once and reuse it:
//
//	log := logging.WithComponent("allocation")
//	log.Debug().Int("rows", n).Msg("Grouped primary rows")
//
// The merge and hourly pipelines tag entries with their job kind:
//
//	log := logging.WithJob("hourly")
//
// # Context-Aware Logging
//
// Jobs stamp their run ID into the context at run start; HTTP middleware
// does the same with a request ID. The Ctx helpers pick both up so a
// single grep over run_id reconstructs a run:
//
//	ctx = logging.ContextWithRunID(ctx, runID)
//	logging.Ctx(ctx).Info().Msg("Pass 2 complete")
//
// # Levels
//
// Supported levels, most to least verbose: trace, debug, info, warn,
// error, fatal, panic, disabled. The level can be changed at runtime
// with SetLevelString.
//
// # Credential Redaction
//
// Connector code logs upstream failures, and upstream error bodies can
// echo request credentials back. Use the Sanitize helpers before putting
// any API key, token, or raw error body into a log field:
//
//	logging.Error().
//	    Str("key", logging.SanitizeToken(apiKey)).
//	    Str("body", logging.SanitizeError(body)).
//	    Msg("Report request rejected")
//
// # slog Bridge
//
// Libraries that take a *slog.Logger (the supervision tree via
// sutureslog, the event bus via watermill's slog logger) are bridged
// onto zerolog with NewSlogLogger:
//
//	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
//
// # Testing
//
//	var buf bytes.Buffer
//	logging.SetLogger(logging.NewTestLogger(&buf))
//	// ... exercise code ...
//	// assert on buf.String()
package logging
