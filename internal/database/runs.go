// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/adreckon/adreckon/internal/models"
)

// ErrNoRuns is returned by LastRun when a job has never run.
var ErrNoRuns = errors.New("no recorded runs")

// InsertRunStart records a newly started run.
func (db *DB) InsertRunStart(ctx context.Context, rec models.RunRecord) error {
	stmt, err := db.getStmt(ctx, `INSERT INTO etl_runs
		(run_id, job, started_at, status, record_count, error_message)
		VALUES (?, ?, ?, ?, 0, '')`)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, rec.RunID, string(rec.Job), rec.StartedAt, string(rec.Status)); err != nil {
		return fmt.Errorf("failed to insert run start: %w", err)
	}
	return nil
}

// FinishRun records a run's terminal state.
func (db *DB) FinishRun(ctx context.Context, rec models.RunRecord) error {
	stmt, err := db.getStmt(ctx, `UPDATE etl_runs
		SET finished_at = ?, status = ?, record_count = ?, error_message = ?
		WHERE run_id = ?`)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx,
		rec.FinishedAt, string(rec.Status), rec.RecordCount, rec.ErrorMessage, rec.RunID,
	); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run for a job, finished or not.
func (db *DB) LastRun(ctx context.Context, job models.JobKind) (models.RunRecord, error) {
	stmt, err := db.getStmt(ctx, `SELECT run_id, job, started_at, finished_at, status, record_count, error_message
		FROM etl_runs WHERE job = ? ORDER BY started_at DESC LIMIT 1`)
	if err != nil {
		return models.RunRecord{}, err
	}

	var (
		rec      models.RunRecord
		jobName  string
		status   string
		finished sql.NullTime
	)
	err = stmt.QueryRowContext(ctx, string(job)).Scan(
		&rec.RunID, &jobName, &rec.StartedAt, &finished, &status, &rec.RecordCount, &rec.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RunRecord{}, ErrNoRuns
	}
	if err != nil {
		return models.RunRecord{}, fmt.Errorf("failed to query last run: %w", err)
	}

	rec.Job = models.JobKind(jobName)
	rec.Status = models.RunStatus(status)
	if finished.Valid {
		rec.FinishedAt = finished.Time
	}
	return rec, nil
}

// PruneRunsBefore deletes run records older than cutoff, keeping the history
// table bounded.
func (db *DB) PruneRunsBefore(ctx context.Context, cutoff time.Time) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM etl_runs WHERE started_at < ?", cutoff); err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}
	return nil
}
