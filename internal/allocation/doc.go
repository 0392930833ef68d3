// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

/*
Package allocation merges the two upstream report populations into canonical
warehouse rows.

The resolver half normalizes source-specific wire rows into domain rows: a
fixed field mapping per source, an explicit unresolved sentinel for missing
join identifiers, and spend seeding from revenue for media on the excluded
list.

The engine half distributes network-attributed secondary spend across the
tracker rows that share an adset. The invariant it protects is zero spend
leakage: for any report date, the spend attached to the emitted rows sums to
exactly the spend pulled from the secondary network. Secondary aggregates
that match no eligible tracker row are emitted as secondary-only rows rather
than dropped.
*/
package allocation
