// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

// Package sync pulls report data from the advertising sources and writes the
// merged result into the warehouse.
//
// Two jobs live here. The daily merge run pulls the ClickFlare custom report
// in two passes (advertiser dimensions, then landing dimensions), pulls the
// Mintegral performance report for every configured account, allocates
// Mintegral spend across matching tracker rows, and replaces the canonical
// table for the report date. The hourly run pulls a single-pass hourly report
// and replaces the pulled window in the hourly table.
//
// The merge run carries a cooperative stage timeout: the budget is checked
// after ClickFlare pass 1, after pass 2, and after each Mintegral account.
// When the budget is exceeded the run commits whatever it has pulled so far
// and finishes as timed_out, which reports externally as a success. Losing a
// secondary account's spend for a day is preferred over losing the day.
//
// Both source clients sit behind sony/gobreaker circuit breakers so a
// misbehaving upstream fails fast instead of hanging every scheduled run.
package sync
