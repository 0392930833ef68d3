// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package models

import "time"

// RunCompleted is published after a merge run commits canonical rows. The
// reconciliation subscriber re-syncs the affected date's daily-report rows
// when it sees one.
type RunCompleted struct {
	Job        JobKind   `json:"job"`
	RunID      string    `json:"run_id"`
	ReportDate string    `json:"report_date"` // DateFormat
	Campaigns  int       `json:"campaigns"`
	Records    int64     `json:"records"`
	Status     RunStatus `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}
