// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the warehouse tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		// Canonical merged daily rows. Replaced wholesale per
		// (report_date, campaign set) by the merge job's idempotent writer.
		`CREATE TABLE IF NOT EXISTS marketing_report_daily (
			report_date DATE NOT NULL,
			data_source TEXT NOT NULL DEFAULT '',

			media TEXT NOT NULL DEFAULT '',
			media_id TEXT NOT NULL DEFAULT '',
			offer TEXT NOT NULL DEFAULT '',
			offer_id TEXT NOT NULL DEFAULT '',
			advertiser TEXT NOT NULL DEFAULT '',
			advertiser_id TEXT NOT NULL DEFAULT '',
			lander TEXT NOT NULL DEFAULT '',
			lander_id TEXT NOT NULL DEFAULT '',
			campaign TEXT NOT NULL DEFAULT '',
			campaign_id TEXT NOT NULL DEFAULT '',
			adset TEXT NOT NULL DEFAULT '',
			adset_id TEXT NOT NULL DEFAULT '',
			ads TEXT NOT NULL DEFAULT '',
			ads_id TEXT NOT NULL DEFAULT '',

			impressions BIGINT NOT NULL DEFAULT 0,
			clicks BIGINT NOT NULL DEFAULT 0,
			conversions BIGINT NOT NULL DEFAULT 0,
			revenue DOUBLE NOT NULL DEFAULT 0,
			spend DOUBLE NOT NULL DEFAULT 0,

			m_imp BIGINT NOT NULL DEFAULT 0,
			m_clicks BIGINT NOT NULL DEFAULT 0,
			m_conv BIGINT NOT NULL DEFAULT 0,

			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Hourly report rows, stored in UTC. Replaced per time window by the
		// hourly job and pruned by retention.
		`CREATE TABLE IF NOT EXISTS hourly_report (
			report_hour TIMESTAMP NOT NULL,

			media TEXT NOT NULL DEFAULT '',
			media_id TEXT NOT NULL DEFAULT '',
			offer TEXT NOT NULL DEFAULT '',
			offer_id TEXT NOT NULL DEFAULT '',
			campaign TEXT NOT NULL DEFAULT '',
			campaign_id TEXT NOT NULL DEFAULT '',
			adset TEXT NOT NULL DEFAULT '',
			adset_id TEXT NOT NULL DEFAULT '',
			ads TEXT NOT NULL DEFAULT '',
			ads_id TEXT NOT NULL DEFAULT '',

			impressions BIGINT NOT NULL DEFAULT 0,
			clicks BIGINT NOT NULL DEFAULT 0,
			conversions BIGINT NOT NULL DEFAULT 0,
			revenue DOUBLE NOT NULL DEFAULT 0,
			spend DOUBLE NOT NULL DEFAULT 0,

			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Per-(date, media) reconciliation rows. spend_manual accumulates
		// manual deltas; spend_final = spend_original + spend_manual.
		// Locked rows are skipped by the automated sync.
		`CREATE TABLE IF NOT EXISTS daily_report (
			report_date DATE NOT NULL,
			media TEXT NOT NULL,

			impressions BIGINT NOT NULL DEFAULT 0,
			clicks BIGINT NOT NULL DEFAULT 0,
			conversions BIGINT NOT NULL DEFAULT 0,
			revenue DOUBLE NOT NULL DEFAULT 0,

			spend_original DOUBLE NOT NULL DEFAULT 0,
			spend_manual DOUBLE NOT NULL DEFAULT 0,
			spend_final DOUBLE NOT NULL DEFAULT 0,

			m_imp BIGINT NOT NULL DEFAULT 0,
			m_clicks BIGINT NOT NULL DEFAULT 0,
			m_conv BIGINT NOT NULL DEFAULT 0,

			ctr DOUBLE NOT NULL DEFAULT 0,
			cvr DOUBLE NOT NULL DEFAULT 0,
			roi DOUBLE NOT NULL DEFAULT 0,
			cpa DOUBLE NOT NULL DEFAULT 0,
			epc DOUBLE NOT NULL DEFAULT 0,
			epa DOUBLE NOT NULL DEFAULT 0,

			is_locked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,

			PRIMARY KEY (report_date, media)
		)`,

		// Run history backing the job status endpoint across restarts.
		`CREATE TABLE IF NOT EXISTS etl_runs (
			run_id TEXT PRIMARY KEY,
			job TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			status TEXT NOT NULL,
			record_count BIGINT NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT ''
		)`,
	}
}

// createIndexes creates indexes for the common query patterns: date-scoped
// replaces on the canonical table, window deletes on the hourly table, and
// latest-run lookups.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_canonical_date_campaign
			ON marketing_report_daily (report_date, campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_canonical_date_media
			ON marketing_report_daily (report_date, media)`,
		`CREATE INDEX IF NOT EXISTS idx_canonical_adset
			ON marketing_report_daily (adset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_hourly_hour
			ON hourly_report (report_hour)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_job_started
			ON etl_runs (job, started_at)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}
