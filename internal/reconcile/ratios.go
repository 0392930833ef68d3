// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package reconcile

// Ratios holds the derived performance metrics persisted alongside every
// daily_report row and recomputed on each sync or manual edit.
type Ratios struct {
	Ctr float64
	Cvr float64
	Roi float64
	Cpa float64
	Epc float64
	Epa float64
}

// Derive computes the ratio columns from raw counters and money.
//
// Count denominators clamp to 1 when zero, so ctr/cvr/cpa/epc/epa degrade to
// the numerator instead of erroring. ROI uses a different guard: it is 0 when
// spend is not positive, never revenue/1. The asymmetry is intentional and
// matches the dashboard these numbers feed.
func Derive(impressions, clicks, conversions int64, spend, revenue float64) Ratios {
	r := Ratios{
		Ctr: float64(clicks) / float64(orOne(impressions)),
		Cvr: float64(conversions) / float64(orOne(clicks)),
		Cpa: spend / float64(orOne(conversions)),
		Epc: revenue / float64(orOne(clicks)),
		Epa: revenue / float64(orOne(conversions)),
	}
	if spend > 0 {
		r.Roi = (revenue - spend) / spend
	}
	return r
}

func orOne(n int64) int64 {
	if n == 0 {
		return 1
	}
	return n
}
