// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package allocation

import (
	"math"
	"testing"
	"time"

	"github.com/adreckon/adreckon/internal/models"
)

var testDate = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func primaryRow(adsetID, media string, impressions int64) models.CanonicalRow {
	return models.CanonicalRow{
		ReportDate:  testDate,
		DataSource:  "Clickflare",
		Media:       media,
		AdsetID:     adsetID,
		Impressions: impressions,
		Clicks:      impressions / 10,
		Conversions: impressions / 100,
		Revenue:     float64(impressions) / 50,
	}
}

func secondaryRow(adsetID string, spend float64, imp int64) SecondaryRow {
	return SecondaryRow{
		ReportDate: testDate,
		AdsetID:    adsetID,
		CampaignID: "c-" + adsetID,
		Spend:      spend,
		Imp:        imp,
		Clicks:     imp / 20,
		Conv:       imp / 200,
	}
}

func TestMergeProportionalSplit(t *testing.T) {
	engine := NewEngine([]string{"Mintegral"})

	primary := []models.CanonicalRow{
		primaryRow("a1", "Mintegral DSP", 30),
		primaryRow("a1", "Mintegral DSP", 70),
	}
	secondary := []SecondaryRow{secondaryRow("a1", 100, 10000)}

	rows, stats := engine.Merge(primary, secondary)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if math.Abs(rows[0].Spend-30) > 1e-9 {
		t.Errorf("row 0 spend = %v, want 30", rows[0].Spend)
	}
	if math.Abs(rows[1].Spend-70) > 1e-9 {
		t.Errorf("row 1 spend = %v, want 70", rows[1].Spend)
	}
	if stats.MatchedGroups != 1 || stats.UnmatchedGroups != 0 {
		t.Errorf("stats = %+v, want 1 matched group", stats)
	}

	// Headline metrics stay the tracker's own numbers.
	if rows[0].Impressions != 30 || rows[1].Impressions != 70 {
		t.Error("primary impressions must not be overwritten by allocation")
	}
}

func TestMergeNoSpendLeakage(t *testing.T) {
	engine := NewEngine([]string{"Mintegral"})

	// Awkward impression distributions that do not divide evenly.
	primary := []models.CanonicalRow{
		primaryRow("a1", "Mintegral-RTB", 1),
		primaryRow("a1", "Mintegral-RTB", 3),
		primaryRow("a1", "Mintegral-RTB", 7),
		primaryRow("a2", "Mintegral-RTB", 13),
		primaryRow("a3", "Other Network", 50), // ineligible
	}
	secondary := []SecondaryRow{
		secondaryRow("a1", 99.97, 1234567),
		secondaryRow("a1", 0.03, 11), // duplicate adset, sum-merged
		secondaryRow("a2", 55.55, 999),
		secondaryRow("a3", 12.34, 100), // group exists but no eligible rows
		secondaryRow("a9", 7.77, 42),   // no primary counterpart at all
	}

	rows, stats := engine.Merge(primary, secondary)

	var wantTotal float64
	for _, s := range secondary {
		wantTotal += s.Spend
	}

	var gotTotal float64
	for _, r := range rows {
		if r.Media == "Other Network" {
			// Ineligible row keeps its own (zero) spend.
			if r.Spend != 0 {
				t.Errorf("ineligible row received spend %v", r.Spend)
			}
			continue
		}
		gotTotal += r.Spend
	}
	if math.Abs(gotTotal-wantTotal) > 1e-9 {
		t.Errorf("allocated spend = %v, want %v (no leakage)", gotTotal, wantTotal)
	}
	if stats.SecondarySpend != wantTotal {
		t.Errorf("stats.SecondarySpend = %v, want %v", stats.SecondarySpend, wantTotal)
	}
	// a3 and a9 both become secondary-only rows.
	if stats.UnmatchedGroups != 2 {
		t.Errorf("UnmatchedGroups = %d, want 2", stats.UnmatchedGroups)
	}
}

func TestMergeZeroImpressionsEqualSplit(t *testing.T) {
	engine := NewEngine([]string{"Mintegral"})

	primary := []models.CanonicalRow{
		primaryRow("a1", "Mintegral", 0),
		primaryRow("a1", "Mintegral", 0),
		primaryRow("a1", "Mintegral", 0),
	}
	secondary := []SecondaryRow{secondaryRow("a1", 90, 300)}

	rows, stats := engine.Merge(primary, secondary)
	for i, r := range rows {
		if math.Abs(r.Spend-30) > 1e-9 {
			t.Errorf("row %d spend = %v, want 30 (equal split)", i, r.Spend)
		}
	}
	var total float64
	for _, r := range rows {
		total += r.Spend
	}
	if math.Abs(total-90) > 1e-9 {
		t.Errorf("total = %v, want 90", total)
	}
	if stats.EqualSplitGroups != 1 {
		t.Errorf("EqualSplitGroups = %d, want 1", stats.EqualSplitGroups)
	}
}

func TestMergeUnmatchedSecondaryRow(t *testing.T) {
	engine := NewEngine([]string{"Mintegral"})

	secondary := []SecondaryRow{secondaryRow("lonely", 42.5, 5000)}
	rows, stats := engine.Merge(nil, secondary)

	if len(rows) != 1 {
		t.Fatalf("got %d rows, want exactly 1 secondary-only row", len(rows))
	}
	row := rows[0]
	if row.Media != SecondaryMediaName {
		t.Errorf("Media = %q, want %q", row.Media, SecondaryMediaName)
	}
	if row.AdsetID != "lonely" {
		t.Errorf("AdsetID = %q, want lonely", row.AdsetID)
	}
	if row.Impressions != 0 || row.Clicks != 0 || row.Conversions != 0 || row.Revenue != 0 {
		t.Error("primary metrics must be zeroed on a secondary-only row")
	}
	if row.Spend != 42.5 || row.MImp != 5000 {
		t.Errorf("secondary metrics = spend %v m_imp %d, want 42.5/5000", row.Spend, row.MImp)
	}
	if !row.ReportDate.Equal(testDate) {
		t.Errorf("ReportDate = %v, want %v", row.ReportDate, testDate)
	}
	if stats.UnmatchedGroups != 1 {
		t.Errorf("UnmatchedGroups = %d, want 1", stats.UnmatchedGroups)
	}
}

func TestMergeIneligibleGroupEmitsSecondaryOnly(t *testing.T) {
	engine := NewEngine([]string{"Mintegral"})

	primary := []models.CanonicalRow{primaryRow("a1", "Facebook", 100)}
	secondary := []SecondaryRow{secondaryRow("a1", 25, 1000)}

	rows, _ := engine.Merge(primary, secondary)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want primary row + secondary-only row", len(rows))
	}
	if rows[0].Spend != 0 {
		t.Errorf("ineligible primary row spend = %v, want untouched 0", rows[0].Spend)
	}
	if rows[1].Media != SecondaryMediaName || rows[1].Spend != 25 {
		t.Errorf("secondary-only row = %+v, want Mintegral spend 25", rows[1])
	}
}

func TestMergeDuplicateSecondarySumMerged(t *testing.T) {
	engine := NewEngine([]string{"Mintegral"})

	primary := []models.CanonicalRow{primaryRow("a1", "Mintegral", 10)}
	secondary := []SecondaryRow{
		secondaryRow("a1", 10, 100),
		secondaryRow("a1", 15, 200),
		secondaryRow("a1", 5, 50),
	}

	rows, _ := engine.Merge(primary, secondary)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Spend != 30 {
		t.Errorf("spend = %v, want 30 (pagination duplicates sum, never overwrite)", rows[0].Spend)
	}
	if rows[0].MImp != 350 {
		t.Errorf("m_imp = %d, want 350", rows[0].MImp)
	}
}

func TestMergeUnresolvedNeverJoins(t *testing.T) {
	engine := NewEngine([]string{"Mintegral"})

	// A primary row whose adset ID failed to resolve must not absorb the
	// network's unattributed spend.
	primary := []models.CanonicalRow{primaryRow(models.Unresolved, "Mintegral", 100)}
	secondary := []SecondaryRow{secondaryRow(models.Unresolved, 33, 400)}

	rows, stats := engine.Merge(primary, secondary)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (no join on unresolved)", len(rows))
	}
	if rows[0].Spend != 0 {
		t.Errorf("unresolved primary row spend = %v, want 0", rows[0].Spend)
	}
	secOnly := rows[1]
	if secOnly.Spend != 33 {
		t.Errorf("secondary-only spend = %v, want 33", secOnly.Spend)
	}
	if secOnly.AdsetID != "" {
		t.Errorf("unresolved sentinel leaked into output: AdsetID = %q", secOnly.AdsetID)
	}
	if stats.UnmatchedGroups != 1 {
		t.Errorf("UnmatchedGroups = %d, want 1", stats.UnmatchedGroups)
	}
}

func TestMergeDropsMalformedRows(t *testing.T) {
	engine := NewEngine([]string{"Mintegral"})

	bad := primaryRow("a1", "Mintegral", 10)
	bad.Clicks = -5
	nanSpend := primaryRow("a2", "Mintegral", 10)
	nanSpend.Spend = math.NaN()

	primary := []models.CanonicalRow{bad, nanSpend, primaryRow("a3", "Mintegral", 10)}
	secondary := []SecondaryRow{
		{ReportDate: testDate, AdsetID: "a3", Spend: math.Inf(1)},
		secondaryRow("a3", 5, 100),
	}

	rows, stats := engine.Merge(primary, secondary)
	if stats.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", stats.Dropped)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 surviving row", len(rows))
	}
	if rows[0].Spend != 5 {
		t.Errorf("spend = %v, want 5 (malformed secondary excluded)", rows[0].Spend)
	}
}

func TestMergeRoundingNeverGoesNegative(t *testing.T) {
	engine := NewEngine([]string{"Mintegral"})

	// Impression shares of 0.5, 0.5 and 0 against 3 network impressions
	// round to 2 and 2, overshooting the total. The last row must floor
	// at zero instead of carrying a negative remainder.
	primary := []models.CanonicalRow{
		primaryRow("a1", "Mintegral", 1),
		primaryRow("a1", "Mintegral", 1),
		primaryRow("a1", "Mintegral", 0),
	}
	secondary := []SecondaryRow{secondaryRow("a1", 30, 3)}

	rows, _ := engine.Merge(primary, secondary)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for i, r := range rows {
		if r.MImp < 0 || r.MClicks < 0 || r.MConv < 0 {
			t.Errorf("row %d has negative allocated counters: %+v", i, r)
		}
	}
	if rows[0].MImp != 2 || rows[1].MImp != 2 || rows[2].MImp != 0 {
		t.Errorf("m_imp shares = %d/%d/%d, want 2/2/0",
			rows[0].MImp, rows[1].MImp, rows[2].MImp)
	}
	var totalSpend float64
	for _, r := range rows {
		totalSpend += r.Spend
	}
	if math.Abs(totalSpend-30) > 1e-9 {
		t.Errorf("total spend = %v, want 30", totalSpend)
	}
}

func TestMergeNoSecondaryPassthrough(t *testing.T) {
	engine := NewEngine([]string{"Mintegral"})

	primary := []models.CanonicalRow{
		primaryRow("a1", "Mintegral", 10),
		primaryRow("a2", "Facebook", 20),
	}
	rows, stats := engine.Merge(primary, nil)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 untouched rows", len(rows))
	}
	if stats.MatchedGroups != 0 || stats.UnmatchedGroups != 0 || stats.SecondarySpend != 0 {
		t.Errorf("stats = %+v, want empty secondary stats", stats)
	}
}
