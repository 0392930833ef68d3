// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package allocation

import (
	"fmt"
	"strings"
	"time"

	"github.com/adreckon/adreckon/internal/models"
	"github.com/adreckon/adreckon/internal/models/clickflare"
	"github.com/adreckon/adreckon/internal/models/mintegral"
)

// SecondaryRow is a normalized secondary-network row before allocation.
// AdsetID may be the unresolved sentinel when the network reported no usable
// offer ID; such rows never join a primary group.
type SecondaryRow struct {
	ReportDate time.Time
	CampaignID string
	AdsetID    string
	AdsID      string
	Adset      string
	Ads        string
	Spend      float64
	Imp        int64
	Clicks     int64
	Conv       int64
}

// Resolver normalizes source wire rows into domain rows. Mapping is fixed per
// source kind; there is no fallback guessing.
type Resolver struct {
	excludedSpendMedia []string
}

// NewResolver returns a resolver. excludedSpendMedia lists media names (matched
// case-insensitively as substrings) whose spend is seeded from revenue instead
// of the tracker-reported cost; the secondary network later overwrites the
// seed for its own media.
func NewResolver(excludedSpendMedia []string) *Resolver {
	return &Resolver{excludedSpendMedia: excludedSpendMedia}
}

// ResolvePrimary maps one ClickFlare report item onto a canonical row.
// Returns an error for rows without a parseable date; such rows carry no
// usable identity and are counted as dropped by the caller.
func (r *Resolver) ResolvePrimary(item clickflare.ReportItem) (models.CanonicalRow, error) {
	date, err := time.Parse(models.DateFormat, item.Date)
	if err != nil {
		return models.CanonicalRow{}, fmt.Errorf("parse report date %q: %w", item.Date, err)
	}

	revenue := float64(item.Revenue)
	spend := float64(item.Cost)
	if matchesAny(item.TrafficSourceName, r.excludedSpendMedia) {
		spend = revenue
	}

	row := models.CanonicalRow{
		ReportDate:   date,
		DataSource:   "Clickflare",
		Media:        item.TrafficSourceName,
		MediaID:      item.TrafficSourceID,
		Offer:        item.OfferName,
		OfferID:      item.OfferID,
		Advertiser:   item.AffiliateNetworkName,
		AdvertiserID: item.AffiliateNetworkID,
		Lander:       item.LandingName,
		LanderID:     item.LandingID,
		Campaign:     item.TrackingField4,
		CampaignID:   item.TrackingField3,
		Adset:        item.TrackingField6,
		AdsetID:      resolvePrimaryID(item.TrackingField5),
		Ads:          item.TrackingField2,
		AdsID:        item.TrackingField1,
		Impressions:  int64(item.UniqueVisits),
		Clicks:       int64(item.UniqueClicks),
		Conversions:  int64(item.Conversions),
		Revenue:      revenue,
		Spend:        spend,
		// Seed the network counters from tracker data; allocation overwrites
		// them for rows that receive secondary spend.
		MImp:    int64(item.UniqueVisits),
		MClicks: int64(item.UniqueClicks),
		MConv:   int64(item.Conversions),
	}
	return row, nil
}

// ResolveSecondary maps one Mintegral TSV row onto a secondary row for
// reportDate. Offer IDs "" and "0" are unattributed on the network side and
// resolve to the unresolved sentinel.
func (r *Resolver) ResolveSecondary(row mintegral.ReportRow, reportDate time.Time) SecondaryRow {
	return SecondaryRow{
		ReportDate: reportDate,
		CampaignID: row.CampaignID,
		AdsetID:    resolveSecondaryID(row.OfferID),
		AdsID:      row.CreativeID,
		Adset:      row.OfferName,
		Ads:        row.CreativeName,
		Spend:      row.Spend,
		Imp:        row.Impression,
		Clicks:     row.Click,
		Conv:       row.Conversion,
	}
}

// Key returns the normalized composite identity of a resolved canonical row.
func Key(row models.CanonicalRow) models.CompositeKey {
	return models.CompositeKey{
		CampaignID: row.CampaignID,
		AdsetID:    row.AdsetID,
		AdsID:      row.AdsID,
	}
}

func resolvePrimaryID(id string) string {
	if id == "" {
		return models.Unresolved
	}
	return id
}

func resolveSecondaryID(id string) string {
	if id == "" || id == "0" {
		return models.Unresolved
	}
	return id
}

func matchesAny(media string, keywords []string) bool {
	if media == "" {
		return false
	}
	lower := strings.ToLower(media)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
