// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

/*
Package reconcile maintains the daily_report reconciliation table: the
per-(date, media) aggregates the dashboard reads and operators correct.

The store guarantees three invariants:

  - spend_manual accumulates deltas across edits; spend_final is always
    spend_original + spend_manual
  - locked rows are never touched by the automated sync, only by explicit
    manual edits or an unlock
  - syncing from the canonical table silently filters locked rows, it never
    errors on them

Derived ratios follow the reporting conventions of the upstream dashboard,
including the deliberate asymmetry of the ROI guard (see Derive).
*/
package reconcile
