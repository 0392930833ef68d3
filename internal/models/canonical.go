// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package models

import "time"

// DateFormat is the wire and warehouse representation of a report date.
const DateFormat = "2006-01-02"

// SourceKind identifies which upstream system a raw row came from.
// The key resolver applies a fixed, source-specific field mapping per kind;
// there is no string-keyed fallback.
type SourceKind int

const (
	// SourceClickFlare is the primary source: conversion-complete tracker data.
	// Every row it reports had at least one tracked event, so its impression
	// counts are sparse relative to the ad network's own numbers.
	SourceClickFlare SourceKind = iota

	// SourceMintegral is the secondary source: impression-complete network data
	// with spend attributed network-wide rather than per tracked row.
	SourceMintegral
)

// String returns the source name used in logs and metrics labels.
func (s SourceKind) String() string {
	switch s {
	case SourceClickFlare:
		return "clickflare"
	case SourceMintegral:
		return "mintegral"
	default:
		return "unknown"
	}
}

// Unresolved is the sentinel identifier the key resolver emits when a source
// row is missing an identifier or maps it to a value that cannot join
// (Mintegral reports "" and "0" for unattributed offers). Downstream
// allocation treats Unresolved as "no match", which is distinct from a row
// that genuinely matched an empty-string ID.
const Unresolved = "\x00unresolved"

// IsResolved reports whether an identifier is usable as a join key.
func IsResolved(id string) bool {
	return id != Unresolved
}

// CompositeKey is the normalized identity of a raw row: the campaign/adset/ad
// identifiers both sources encode under different field names. AdsetID is the
// allocation join key; the other fields are carried for labeling.
type CompositeKey struct {
	CampaignID string
	AdsetID    string
	AdsID      string
}

// CanonicalRow is the merged warehouse unit: one row per primary-source
// dimensional combination for a report date, carrying the primary source's
// own metrics as headline numbers plus the secondary source's allocated spend
// and raw counters.
//
// The m_* fields stay separate from impressions/clicks/conversions because
// the two sources track fundamentally different populations: ClickFlare only
// sees rows with at least one conversion event while Mintegral counts every
// impression. Collapsing them would make both numbers meaningless.
//
// Rows are created by the allocation engine and replaced wholesale per
// (report date, campaign set) by the idempotent writer; they are never
// partially mutated in place.
type CanonicalRow struct {
	ReportDate time.Time
	DataSource string // Originating pipeline label ("Clickflare" or "Mintegral")

	// Dimensional labels
	Media        string
	MediaID      string
	Offer        string
	OfferID      string
	Advertiser   string
	AdvertiserID string
	Lander       string
	LanderID     string
	Campaign     string
	CampaignID   string
	Adset        string
	AdsetID      string
	Ads          string
	AdsID        string

	// Primary-source metrics
	Impressions int64
	Clicks      int64
	Conversions int64
	Revenue     float64

	// Spend is the secondary network's allocated spend for eligible media,
	// the tracker-reported cost otherwise, or revenue for media on the
	// excluded-spend list.
	Spend float64

	// Secondary-source raw counters (network-side truth)
	MImp    int64
	MClicks int64
	MConv   int64
}

// HourlyRow is one row of the single-pass hourly report. ReportHour is stored
// in UTC; the upstream report keys hours to the configured report timezone and
// the connector converts before handing rows to the writer.
type HourlyRow struct {
	ReportHour time.Time

	Media      string
	MediaID    string
	Offer      string
	OfferID    string
	Campaign   string
	CampaignID string
	Adset      string
	AdsetID    string
	Ads        string
	AdsID      string

	Impressions int64
	Clicks      int64
	Conversions int64
	Revenue     float64
	Spend       float64
}
