// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adreckon/adreckon/internal/logging"
	"github.com/adreckon/adreckon/internal/metrics"
	"github.com/adreckon/adreckon/internal/models"
)

const canonicalInsertQuery = `INSERT INTO marketing_report_daily (
	report_date, data_source,
	media, media_id, offer, offer_id, advertiser, advertiser_id,
	lander, lander_id, campaign, campaign_id, adset, adset_id, ads, ads_id,
	impressions, clicks, conversions, revenue, spend,
	m_imp, m_clicks, m_conv
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ReplaceCanonical deletes the canonical rows for reportDate scoped to the
// campaign IDs present in rows, then inserts rows. Re-running with identical
// rows converges: no growth, no duplication.
//
// The delete and the insert are separate operations. A failure between them
// leaves the date incomplete; the caller treats that as fatal and the whole
// date is replaced again on the next run.
func (db *DB) ReplaceCanonical(ctx context.Context, reportDate time.Time, rows []models.CanonicalRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	start := time.Now()

	campaignIDs := distinctCampaignIDs(rows)

	var inserted int
	err := db.runWithReconnect(ctx, func() error {
		if err := db.deleteCanonical(ctx, reportDate, campaignIDs); err != nil {
			return err
		}
		n, err := db.insertCanonical(ctx, rows)
		inserted = n
		return err
	})
	if err != nil {
		return inserted, err
	}

	metrics.RecordReplace("marketing_report_daily", inserted, time.Since(start))
	logging.Info().
		Str("report_date", reportDate.Format(models.DateFormat)).
		Int("campaigns", len(campaignIDs)).
		Int("rows", inserted).
		Dur("duration", time.Since(start)).
		Msg("Canonical rows replaced")

	return inserted, nil
}

// deleteCanonical removes existing rows for the date, scoped to the campaign
// IDs being replaced rather than the whole date: campaigns pulled by another
// account or a previous partial run stay untouched.
func (db *DB) deleteCanonical(ctx context.Context, reportDate time.Time, campaignIDs []string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(campaignIDs)), ",")
	query := fmt.Sprintf(
		"DELETE FROM marketing_report_daily WHERE report_date = ? AND campaign_id IN (%s)",
		placeholders)

	args := make([]any, 0, len(campaignIDs)+1)
	args = append(args, reportDate)
	for _, id := range campaignIDs {
		args = append(args, id)
	}

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete canonical rows: %w", err)
	}
	return nil
}

func (db *DB) insertCanonical(ctx context.Context, rows []models.CanonicalRow) (inserted int, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Transaction rollback failed")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, canonicalInsertQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer closeQuietly(stmt)

	for i := range rows {
		row := &rows[i]
		if _, err = stmt.ExecContext(ctx,
			row.ReportDate, row.DataSource,
			row.Media, row.MediaID, row.Offer, row.OfferID, row.Advertiser, row.AdvertiserID,
			row.Lander, row.LanderID, row.Campaign, row.CampaignID, row.Adset, row.AdsetID, row.Ads, row.AdsID,
			row.Impressions, row.Clicks, row.Conversions, row.Revenue, row.Spend,
			row.MImp, row.MClicks, row.MConv,
		); err != nil {
			return inserted, fmt.Errorf("failed to insert canonical row %d: %w", i, err)
		}
		inserted++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// distinctCampaignIDs returns the sorted distinct campaign IDs in rows.
// Rows without a campaign ID map to the empty string so secondary-only rows
// are still covered by the delete scope.
func distinctCampaignIDs(rows []models.CanonicalRow) []string {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		seen[row.CampaignID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CanonicalRowCount returns the number of canonical rows for a date.
func (db *DB) CanonicalRowCount(ctx context.Context, reportDate time.Time) (int64, error) {
	stmt, err := db.getStmt(ctx, "SELECT COUNT(*) FROM marketing_report_daily WHERE report_date = ?")
	if err != nil {
		return 0, err
	}
	var count int64
	if err := stmt.QueryRowContext(ctx, reportDate).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count canonical rows: %w", err)
	}
	return count, nil
}
