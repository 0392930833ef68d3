// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package models

import "time"

// DailyReportRow is one (report date, media) row of the reconciliation table
// that feeds the dashboard and the manual correction workflow.
//
// SpendManual accumulates as a running delta across edits rather than being
// replaced wholesale, so repeated corrections compose additively. SpendFinal
// is always SpendOriginal + SpendManual.
//
// Once IsLocked is set, the automated sync path skips the row entirely; only
// an explicit manual correction or an unlock can touch it.
type DailyReportRow struct {
	ReportDate time.Time `json:"report_date"`
	Media      string    `json:"media"`

	SpendOriginal float64 `json:"spend_original"`
	SpendManual   float64 `json:"spend_manual"`
	SpendFinal    float64 `json:"spend_final"`

	Revenue     float64 `json:"revenue"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`

	MImp    int64 `json:"m_imp"`
	MClicks int64 `json:"m_clicks"`
	MConv   int64 `json:"m_conv"`

	// Derived ratios, recomputed whenever spend or the counters change.
	Ctr float64 `json:"ctr"`
	Cvr float64 `json:"cvr"`
	Roi float64 `json:"roi"`
	Cpa float64 `json:"cpa"`
	Epc float64 `json:"epc"`
	Epa float64 `json:"epa"`

	IsLocked  bool      `json:"is_locked"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DailyReportSummary holds the totals line for a daily report query, with the
// same derived ratios computed over the summed columns.
type DailyReportSummary struct {
	SpendOriginal float64 `json:"spend_original"`
	SpendManual   float64 `json:"spend_manual"`
	SpendFinal    float64 `json:"spend_final"`
	Revenue       float64 `json:"revenue"`
	Impressions   int64   `json:"impressions"`
	Clicks        int64   `json:"clicks"`
	Conversions   int64   `json:"conversions"`

	Ctr float64 `json:"ctr"`
	Cvr float64 `json:"cvr"`
	Roi float64 `json:"roi"`
	Cpa float64 `json:"cpa"`
	Epc float64 `json:"epc"`
	Epa float64 `json:"epa"`
}
