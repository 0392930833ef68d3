// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package database

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// reconnect attempts to re-establish the database connection with
// exponential backoff. Prepared statements are invalidated by a reconnect
// and the cache is cleared before the new connection is opened.
func (db *DB) reconnect(ctx context.Context) error {
	db.reconnectMu.Lock()
	defer db.reconnectMu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.conn.PingContext(pingCtx); err == nil {
		return nil // Connection recovered on its own
	}

	db.clearStatementCache()
	if db.conn != nil {
		closeQuietly(db.conn)
	}

	var lastErr error
	for attempt := 0; attempt < db.maxReconnectTries; attempt++ {
		if attempt > 0 {
			delay := db.reconnectDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := db.attemptReconnect(ctx); err != nil {
			lastErr = fmt.Errorf("reconnect attempt %d failed: %w", attempt+1, err)
			continue
		}
		return nil
	}

	return fmt.Errorf("failed to reconnect after %d attempts: %w", db.maxReconnectTries, lastErr)
}

// attemptReconnect opens and verifies a new connection, then re-runs schema
// initialization so a freshly created file is usable.
func (db *DB) attemptReconnect(ctx context.Context) error {
	conn, err := sql.Open("duckdb", connString(db.cfg))
	if err != nil {
		return fmt.Errorf("failed to open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return fmt.Errorf("failed to ping: %w", err)
	}

	db.conn = conn
	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return fmt.Errorf("failed to initialize: %w", err)
	}
	return nil
}

// configureConnectionPool sets connection pool parameters.
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// runWithReconnect runs fn, reconnecting and retrying exactly once when the
// connection was lost mid-operation. fn must be safe to re-run wholesale;
// the replace operations are, by construction.
func (db *DB) runWithReconnect(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !isConnectionError(err) {
		return err
	}
	if rerr := db.reconnect(ctx); rerr != nil {
		return fmt.Errorf("%w (reconnect failed: %v)", err, rerr)
	}
	return fn()
}

// isConnectionError checks whether an error indicates connection loss, as
// opposed to a query error. Only connection failures trigger reconnection.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "database is closed")
}
