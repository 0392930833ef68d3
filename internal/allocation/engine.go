// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package allocation

import (
	"math"
	"sort"
	"time"

	"github.com/adreckon/adreckon/internal/models"
)

// SecondaryMediaName labels secondary-only rows that have no tracker
// counterpart.
const SecondaryMediaName = "Mintegral"

// Stats summarizes one merge for logging and metrics. Dropped counts
// malformed rows excluded before allocation; allocation itself never fails
// for data-shape reasons.
type Stats struct {
	PrimaryRows      int
	SecondaryRows    int
	MatchedGroups    int
	UnmatchedGroups  int
	EqualSplitGroups int
	Dropped          int
	SecondarySpend   float64
}

// Engine merges primary tracker rows with aggregated secondary network rows.
type Engine struct {
	mediaKeywords []string
}

// NewEngine returns an engine. mediaKeywords lists the media-name substrings
// (matched case-insensitively) that make a primary row eligible to receive
// secondary spend.
func NewEngine(mediaKeywords []string) *Engine {
	return &Engine{mediaKeywords: mediaKeywords}
}

// secondaryAggregate is the sum of all secondary rows sharing an adset ID.
// Dimensional labels are first-seen.
type secondaryAggregate struct {
	CampaignID string
	AdsID      string
	Adset      string
	Ads        string
	Spend      float64
	Imp        int64
	Clicks     int64
	Conv       int64
}

// Merge distributes secondary spend across the primary rows and returns the
// full canonical row set for the date, including secondary-only rows for
// adsets the tracker never saw. Primary rows are not mutated; the returned
// slice owns its data.
//
// Spend partitioning is exact: for every secondary aggregate the allocated
// shares are computed as spend*imp_i/total with the last member receiving the
// remainder, so the parts always sum to the aggregate regardless of rounding.
func (e *Engine) Merge(primary []models.CanonicalRow, secondary []SecondaryRow) ([]models.CanonicalRow, Stats) {
	var stats Stats

	rows := make([]models.CanonicalRow, 0, len(primary))
	for _, row := range primary {
		if malformedPrimary(row) {
			stats.Dropped++
			continue
		}
		rows = append(rows, row)
	}
	stats.PrimaryRows = len(rows)

	aggregates := make(map[string]*secondaryAggregate)
	var reportDate = anyDate(rows, secondary)
	for _, sec := range secondary {
		if malformedSecondary(sec) {
			stats.Dropped++
			continue
		}
		stats.SecondaryRows++
		stats.SecondarySpend += sec.Spend

		agg, ok := aggregates[sec.AdsetID]
		if !ok {
			agg = &secondaryAggregate{
				CampaignID: sec.CampaignID,
				AdsID:      sec.AdsID,
				Adset:      sec.Adset,
				Ads:        sec.Ads,
			}
			aggregates[sec.AdsetID] = agg
		}
		agg.Spend += sec.Spend
		agg.Imp += sec.Imp
		agg.Clicks += sec.Clicks
		agg.Conv += sec.Conv
	}

	byAdset := make(map[string][]int)
	for i, row := range rows {
		byAdset[row.AdsetID] = append(byAdset[row.AdsetID], i)
	}

	// Deterministic emission order for secondary-only rows.
	adsetIDs := make([]string, 0, len(aggregates))
	for id := range aggregates {
		adsetIDs = append(adsetIDs, id)
	}
	sort.Strings(adsetIDs)

	for _, adsetID := range adsetIDs {
		agg := aggregates[adsetID]

		// Unresolved adset IDs never join, even when primary rows are also
		// unresolved: "no ID" on both sides is not a match.
		var group []int
		if models.IsResolved(adsetID) {
			group = byAdset[adsetID]
		}

		eligible := group[:0:0]
		for _, i := range group {
			if matchesAny(rows[i].Media, e.mediaKeywords) {
				eligible = append(eligible, i)
			}
		}

		if len(eligible) == 0 {
			// No tracker row can carry this spend. Emitting a standalone row
			// keeps the date's total spend equal to the network's total.
			rows = append(rows, e.secondaryOnlyRow(reportDate, adsetID, agg))
			stats.UnmatchedGroups++
			continue
		}

		e.allocate(rows, eligible, agg, &stats)
		stats.MatchedGroups++
	}

	return rows, stats
}

// allocate partitions agg across the eligible rows, by impression share when
// the group has impressions and equally otherwise. The last member takes the
// remainder of each partition.
func (e *Engine) allocate(rows []models.CanonicalRow, eligible []int, agg *secondaryAggregate, stats *Stats) {
	var totalImp int64
	for _, i := range eligible {
		totalImp += rows[i].Impressions
	}

	var spendLeft = agg.Spend
	var impLeft, clicksLeft, convLeft = agg.Imp, agg.Clicks, agg.Conv

	for n, i := range eligible {
		var ratio float64
		if totalImp > 0 {
			ratio = float64(rows[i].Impressions) / float64(totalImp)
		} else {
			ratio = 1 / float64(len(eligible))
		}

		if n == len(eligible)-1 {
			// Earlier rounded shares can overshoot the totals, which would
			// leave a negative count here. Counters floor at zero.
			rows[i].Spend = spendLeft
			rows[i].MImp = max(impLeft, 0)
			rows[i].MClicks = max(clicksLeft, 0)
			rows[i].MConv = max(convLeft, 0)
			break
		}

		spend := agg.Spend * ratio
		mImp := int64(math.Round(float64(agg.Imp) * ratio))
		mClicks := int64(math.Round(float64(agg.Clicks) * ratio))
		mConv := int64(math.Round(float64(agg.Conv) * ratio))

		rows[i].Spend = spend
		rows[i].MImp = mImp
		rows[i].MClicks = mClicks
		rows[i].MConv = mConv

		spendLeft -= spend
		impLeft -= mImp
		clicksLeft -= mClicks
		convLeft -= mConv
	}

	if totalImp == 0 {
		stats.EqualSplitGroups++
	}
}

func (e *Engine) secondaryOnlyRow(reportDate time.Time, adsetID string, agg *secondaryAggregate) models.CanonicalRow {
	id := adsetID
	if !models.IsResolved(id) {
		id = ""
	}
	return models.CanonicalRow{
		ReportDate: reportDate,
		DataSource: SecondaryMediaName,
		Media:      SecondaryMediaName,
		CampaignID: agg.CampaignID,
		Adset:      agg.Adset,
		AdsetID:    id,
		Ads:        agg.Ads,
		AdsID:      agg.AdsID,
		Spend:      agg.Spend,
		MImp:       agg.Imp,
		MClicks:    agg.Clicks,
		MConv:      agg.Conv,
	}
}

func malformedPrimary(row models.CanonicalRow) bool {
	if row.Impressions < 0 || row.Clicks < 0 || row.Conversions < 0 {
		return true
	}
	return !finite(row.Spend) || !finite(row.Revenue)
}

func malformedSecondary(row SecondaryRow) bool {
	if row.Imp < 0 || row.Clicks < 0 || row.Conv < 0 {
		return true
	}
	return !finite(row.Spend)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// anyDate picks the report date for synthesized secondary-only rows: the
// first primary row's date, falling back to the secondary rows' own date.
func anyDate(rows []models.CanonicalRow, secondary []SecondaryRow) time.Time {
	if len(rows) > 0 {
		return rows[0].ReportDate
	}
	for _, sec := range secondary {
		return sec.ReportDate
	}
	return time.Time{}
}
