// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

// Package clickflare defines the wire types of the ClickFlare reporting API.
// Upstream field names stay inside this package; the connector maps them onto
// the canonical models at the transform boundary.
package clickflare

import (
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// DateTimeFormat is the timestamp format the report endpoint expects for
// startDate/endDate.
const DateTimeFormat = "2006-01-02 15:04:05"

// ReportRequest is the POST body of the custom report endpoint. Pagination is
// 1-based; the caller stops on an empty or short page.
type ReportRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	GroupBy    []string `json:"groupBy"`
	Metrics    []string `json:"metrics"`
	Timezone   string   `json:"timezone"`
	SortBy     string   `json:"sortBy,omitempty"`
	OrderType  string   `json:"orderType,omitempty"`
	IncludeAll bool     `json:"includeAll"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
}

// ReportResponse is one page of report rows.
type ReportResponse struct {
	Items []ReportItem `json:"items"`
}

// ReportItem is one dimensional row of the custom report. The trackingField
// slots carry campaign/adset/ad identity by upstream convention:
// trackingField1/2 = ad ID/name, trackingField3/4 = campaign ID/name,
// trackingField5/6 = adset ID/name.
//
// Metric fields are flexible because the API is not consistent about
// number-vs-string encoding across report types.
type ReportItem struct {
	Date string `json:"date"`

	// DateTime is populated when the report groups by dateTime (the hourly
	// pull); daily reports leave it empty.
	DateTime string `json:"dateTime"`

	TrafficSourceName    string `json:"trafficSourceName"`
	TrafficSourceID      string `json:"trafficSourceID"`
	OfferName            string `json:"offerName"`
	OfferID              string `json:"offerID"`
	AffiliateNetworkName string `json:"affiliateNetworkName"`
	AffiliateNetworkID   string `json:"affiliateNetworkID"`
	LandingName          string `json:"landingName"`
	LandingID            string `json:"landingID"`

	TrackingField1 string `json:"trackingField1"`
	TrackingField2 string `json:"trackingField2"`
	TrackingField3 string `json:"trackingField3"`
	TrackingField4 string `json:"trackingField4"`
	TrackingField5 string `json:"trackingField5"`
	TrackingField6 string `json:"trackingField6"`

	UniqueVisits FlexInt   `json:"uniqueVisits"`
	UniqueClicks FlexInt   `json:"uniqueClicks"`
	Conversions  FlexInt   `json:"conversions"`
	Revenue      FlexFloat `json:"revenue"`
	Cost         FlexFloat `json:"cost"`
}

// RowKey returns the 9-field identity used to merge pass-2 rows (landing
// dimensions) into pass-1 rows (advertiser dimensions).
func (r ReportItem) RowKey() string {
	return strings.Join([]string{
		r.Date,
		r.TrafficSourceID,
		r.OfferID,
		r.TrackingField1,
		r.TrackingField2,
		r.TrackingField3,
		r.TrackingField4,
		r.TrackingField5,
		r.TrackingField6,
	}, "|")
}

// FlexInt is an int64 that unmarshals from a JSON number, a numeric string,
// or null. Fractional values truncate toward zero; unparseable values decode
// as zero rather than failing the row.
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	v, err := coerceFloat(data)
	if err != nil {
		return err
	}
	*f = FlexInt(int64(v))
	return nil
}

// FlexFloat is a float64 with the same lenient decoding as FlexInt.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	v, err := coerceFloat(data)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

func coerceFloat(data []byte) (float64, error) {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return 0, nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return 0, fmt.Errorf("decode numeric string: %w", err)
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0, nil
		}
		return v, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("decode numeric value %q: %w", s, err)
	}
	return v, nil
}
