// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adreckon/adreckon/internal/database"
	"github.com/adreckon/adreckon/internal/logging"
	"github.com/adreckon/adreckon/internal/metrics"
	"github.com/adreckon/adreckon/internal/models"
)

// ErrRowNotFound is returned when a (date, media) row does not exist and the
// operation cannot create one.
var ErrRowNotFound = errors.New("reconcile: daily report row not found")

const dailyInsertQuery = `INSERT INTO daily_report (
	report_date, media,
	impressions, clicks, conversions, revenue,
	spend_original, spend_manual, spend_final,
	m_imp, m_clicks, m_conv,
	ctr, cvr, roi, cpa, epc, epa,
	is_locked
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Store owns the daily_report table. All reads and writes to the
// reconciliation surface go through it.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Lock sets the lock flag on every media row at the given date. It is
// idempotent and returns the number of rows affected; locking a date with no
// rows is a no-op, not an error.
func (s *Store) Lock(ctx context.Context, date time.Time, locked bool) (int64, error) {
	res, err := s.db.Conn().ExecContext(ctx,
		`UPDATE daily_report SET is_locked = ?, updated_at = CURRENT_TIMESTAMP WHERE report_date = ?`,
		locked, date)
	if err != nil {
		return 0, fmt.Errorf("lock date: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("lock date rows affected: %w", err)
	}

	metrics.RecordLockAction(locked)
	logging.Info().
		Str("date", date.Format(models.DateFormat)).
		Bool("locked", locked).
		Int64("rows", affected).
		Msg("Daily report lock updated")
	return affected, nil
}

// IsDateLocked reports whether any media row at the date carries the lock
// flag. Lock operates on whole dates, so one locked row means the date is
// locked.
func (s *Store) IsDateLocked(ctx context.Context, date time.Time) (bool, error) {
	var locked bool
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM daily_report WHERE report_date = ? AND is_locked)`,
		date).Scan(&locked)
	if err != nil {
		return false, fmt.Errorf("check date lock: %w", err)
	}
	return locked, nil
}

// ApplyManualSpend adds a correction delta to the manual spend of one
// (date, media) row and recomputes the spend-derived ratios in place. Deltas
// accumulate across calls. Manual edits apply to locked rows too; the lock
// only fences off the automated sync.
//
// If the row does not exist yet it is created with zero counters, so
// operators can book spend for media the trackers never reported.
func (s *Store) ApplyManualSpend(ctx context.Context, date time.Time, media string, delta float64) error {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin manual spend tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row, found, err := scanRow(tx.QueryRowContext(ctx,
		selectRowQuery+` WHERE report_date = ? AND media = ?`, date, media))
	if err != nil {
		return fmt.Errorf("read daily report row: %w", err)
	}

	if !found {
		r := Derive(0, 0, 0, delta, 0)
		_, err = tx.ExecContext(ctx, dailyInsertQuery,
			date, media,
			0, 0, 0, 0.0,
			0.0, delta, delta,
			0, 0, 0,
			r.Ctr, r.Cvr, r.Roi, r.Cpa, r.Epc, r.Epa,
			false)
		if err != nil {
			return fmt.Errorf("insert manual spend row: %w", err)
		}
	} else {
		manual := row.SpendManual + delta
		final := row.SpendOriginal + manual
		r := Derive(row.Impressions, row.Clicks, row.Conversions, final, row.Revenue)
		_, err = tx.ExecContext(ctx,
			`UPDATE daily_report SET
				spend_manual = ?, spend_final = ?,
				ctr = ?, cvr = ?, roi = ?, cpa = ?, epc = ?, epa = ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE report_date = ? AND media = ?`,
			manual, final,
			r.Ctr, r.Cvr, r.Roi, r.Cpa, r.Epc, r.Epa,
			date, media)
		if err != nil {
			return fmt.Errorf("update manual spend: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit manual spend: %w", err)
	}

	metrics.RecordManualEdit(media)
	logging.Info().
		Str("date", date.Format(models.DateFormat)).
		Str("media", media).
		Float64("delta", delta).
		Msg("Manual spend applied")
	return nil
}

// SetFinalSpend sets the absolute final spend for one (date, media) row by
// deriving the manual delta from the row's current final spend. It returns
// the delta that was applied so callers can report it. A missing row behaves
// like a row with zero spend.
func (s *Store) SetFinalSpend(ctx context.Context, date time.Time, media string, spend float64) (float64, error) {
	row, found, err := scanRow(s.db.Conn().QueryRowContext(ctx,
		selectRowQuery+` WHERE report_date = ? AND media = ?`, date, media))
	if err != nil {
		return 0, fmt.Errorf("read daily report row: %w", err)
	}

	var delta float64
	if found {
		delta = spend - row.SpendFinal
	} else {
		delta = spend
	}
	if err := s.ApplyManualSpend(ctx, date, media, delta); err != nil {
		return 0, err
	}
	return delta, nil
}

// SyncFromCanonical rebuilds the unlocked media rows of one date from the
// canonical table. Locked rows are left untouched, including their manual
// spend; unlocked rows are replaced wholesale, which resets spend_manual to
// zero for them. Returns how many rows were written and how many locked
// rows were skipped.
func (s *Store) SyncFromCanonical(ctx context.Context, date time.Time) (int, int, error) {
	lockedMedia, err := s.lockedMediaAt(ctx, date)
	if err != nil {
		return 0, 0, err
	}

	aggs, err := s.aggregateCanonical(ctx, date)
	if err != nil {
		return 0, 0, err
	}

	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin sync tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM daily_report WHERE report_date = ? AND NOT is_locked`, date); err != nil {
		return 0, 0, fmt.Errorf("delete unlocked rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, dailyInsertQuery)
	if err != nil {
		return 0, 0, fmt.Errorf("prepare daily insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	synced, skipped := 0, 0
	for _, agg := range aggs {
		if _, locked := lockedMedia[agg.Media]; locked {
			skipped++
			continue
		}
		r := Derive(agg.Impressions, agg.Clicks, agg.Conversions, agg.Spend, agg.Revenue)
		_, err = stmt.ExecContext(ctx,
			agg.Date, agg.Media,
			agg.Impressions, agg.Clicks, agg.Conversions, agg.Revenue,
			agg.Spend, 0.0, agg.Spend,
			agg.MImp, agg.MClicks, agg.MConv,
			r.Ctr, r.Cvr, r.Roi, r.Cpa, r.Epc, r.Epa,
			false)
		if err != nil {
			return 0, 0, fmt.Errorf("insert daily row for %q: %w", agg.Media, err)
		}
		synced++
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit sync: %w", err)
	}

	metrics.RecordReconcileSync(synced, skipped)
	logging.Info().
		Str("date", date.Format(models.DateFormat)).
		Int("synced", synced).
		Int("skipped_locked", skipped).
		Msg("Daily report synced from canonical")
	return synced, skipped, nil
}

// SyncRange syncs every date in the inclusive range, totalling the rows
// written per date. Dates carrying the lock flag are skipped wholesale and
// reported back by date string.
func (s *Store) SyncRange(ctx context.Context, start, end time.Time) (models.SyncRangeResult, error) {
	var result models.SyncRangeResult
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		locked, err := s.IsDateLocked(ctx, d)
		if err != nil {
			return result, err
		}
		if locked {
			result.Skipped = append(result.Skipped, d.Format(models.DateFormat))
			continue
		}
		rows, _, err := s.SyncFromCanonical(ctx, d)
		if err != nil {
			return result, err
		}
		result.Synced++
		result.Rows += rows
	}
	return result, nil
}

// Query returns the daily report rows for an inclusive date range, newest
// date first, with grand totals computed over the selection. An empty Media
// filter matches all media.
func (s *Store) Query(ctx context.Context, q models.DailyReportQuery) (models.DailyReportResult, error) {
	query := selectRowQuery + ` WHERE report_date >= ? AND report_date <= ?`
	args := []any{q.StartDate, q.EndDate}
	if q.Media != "" {
		query += ` AND media = ?`
		args = append(args, q.Media)
	}
	query += ` ORDER BY report_date DESC, media`

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return models.DailyReportResult{}, fmt.Errorf("query daily report: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := models.DailyReportResult{Rows: []models.DailyReportRow{}}
	for rows.Next() {
		row, err := scanReportRow(rows)
		if err != nil {
			return models.DailyReportResult{}, fmt.Errorf("scan daily report row: %w", err)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return models.DailyReportResult{}, fmt.Errorf("iterate daily report: %w", err)
	}

	result.Summary = summarize(result.Rows)
	return result, nil
}

// MediaList returns the distinct media names present in the daily report.
func (s *Store) MediaList(ctx context.Context) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT DISTINCT media FROM daily_report ORDER BY media`)
	if err != nil {
		return nil, fmt.Errorf("query media list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	media := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

// LockedDates returns the locked dates within an inclusive range, formatted
// as YYYY-MM-DD, oldest first.
func (s *Store) LockedDates(ctx context.Context, start, end time.Time) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT DISTINCT report_date FROM daily_report
		WHERE is_locked AND report_date >= ? AND report_date <= ?
		ORDER BY report_date`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query locked dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	dates := []string{}
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan locked date: %w", err)
		}
		dates = append(dates, d.Format(models.DateFormat))
	}
	return dates, rows.Err()
}

func (s *Store) lockedMediaAt(ctx context.Context, date time.Time) (map[string]struct{}, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT media FROM daily_report WHERE report_date = ? AND is_locked`, date)
	if err != nil {
		return nil, fmt.Errorf("query locked media: %w", err)
	}
	defer func() { _ = rows.Close() }()

	locked := make(map[string]struct{})
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan locked media: %w", err)
		}
		locked[m] = struct{}{}
	}
	return locked, rows.Err()
}

// canonicalAggregate is one media's totals re-read from the canonical table.
type canonicalAggregate struct {
	Date        time.Time
	Media       string
	Impressions int64
	Clicks      int64
	Conversions int64
	Revenue     float64
	Spend       float64
	MImp        int64
	MClicks     int64
	MConv       int64
}

func (s *Store) aggregateCanonical(ctx context.Context, date time.Time) ([]canonicalAggregate, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT report_date, media,
			SUM(impressions), SUM(clicks), SUM(conversions), SUM(revenue), SUM(spend),
			SUM(m_imp), SUM(m_clicks), SUM(m_conv)
		FROM marketing_report_daily
		WHERE report_date = ?
		GROUP BY report_date, media
		ORDER BY media`, date)
	if err != nil {
		return nil, fmt.Errorf("aggregate canonical: %w", err)
	}
	defer func() { _ = rows.Close() }()

	aggs := []canonicalAggregate{}
	for rows.Next() {
		var a canonicalAggregate
		if err := rows.Scan(&a.Date, &a.Media,
			&a.Impressions, &a.Clicks, &a.Conversions, &a.Revenue, &a.Spend,
			&a.MImp, &a.MClicks, &a.MConv); err != nil {
			return nil, fmt.Errorf("scan canonical aggregate: %w", err)
		}
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

const selectRowQuery = `SELECT
	report_date, media,
	impressions, clicks, conversions, revenue,
	spend_original, spend_manual, spend_final,
	m_imp, m_clicks, m_conv,
	ctr, cvr, roi, cpa, epc, epa,
	is_locked, updated_at
FROM daily_report`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReportRow(sc rowScanner) (models.DailyReportRow, error) {
	var r models.DailyReportRow
	err := sc.Scan(&r.ReportDate, &r.Media,
		&r.Impressions, &r.Clicks, &r.Conversions, &r.Revenue,
		&r.SpendOriginal, &r.SpendManual, &r.SpendFinal,
		&r.MImp, &r.MClicks, &r.MConv,
		&r.Ctr, &r.Cvr, &r.Roi, &r.Cpa, &r.Epc, &r.Epa,
		&r.IsLocked, &r.UpdatedAt)
	return r, err
}

func scanRow(sc rowScanner) (models.DailyReportRow, bool, error) {
	row, err := scanReportRow(sc)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DailyReportRow{}, false, nil
	}
	if err != nil {
		return models.DailyReportRow{}, false, err
	}
	return row, true, nil
}

func summarize(rows []models.DailyReportRow) models.DailyReportSummary {
	var s models.DailyReportSummary
	for _, r := range rows {
		s.SpendOriginal += r.SpendOriginal
		s.SpendManual += r.SpendManual
		s.SpendFinal += r.SpendFinal
		s.Revenue += r.Revenue
		s.Impressions += r.Impressions
		s.Clicks += r.Clicks
		s.Conversions += r.Conversions
	}
	ratios := Derive(s.Impressions, s.Clicks, s.Conversions, s.SpendFinal, s.Revenue)
	s.Ctr, s.Cvr, s.Roi = ratios.Ctr, ratios.Cvr, ratios.Roi
	s.Cpa, s.Epc, s.Epa = ratios.Cpa, ratios.Epc, ratios.Epa
	return s
}
