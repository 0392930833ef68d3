// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

// Package mintegral defines the wire types of the Mintegral reporting API.
// The report protocol is asynchronous: a type=1 request asks for generation,
// the same request is polled until the report is ready, and a type=2 request
// downloads the result as TSV.
package mintegral

import (
	"strconv"
	"strings"
)

// Report readiness codes returned in the JSON envelope of type=1 requests.
const (
	CodeSuccess    = 200   // Report is ready for download
	CodeReceived   = 201   // Request accepted, generation queued
	CodeGenerating = 202   // Report is being generated
	CodeNoRequest  = 203   // No generation request exists for these parameters
	CodeNotReady   = 204   // Generation not finished yet
	CodeExpired    = 205   // Generated report expired, must re-request
	CodeError      = 10000 // Parameter or server error
)

// StatusResponse is the JSON envelope of a report generation/status request.
type StatusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Ready reports whether the report can be downloaded.
func (r StatusResponse) Ready() bool {
	return r.Code == CodeSuccess
}

// Pending reports whether polling should continue. Anything that is neither
// ready nor pending is a hard failure for this account.
func (r StatusResponse) Pending() bool {
	switch r.Code {
	case CodeReceived, CodeGenerating, CodeNotReady:
		return true
	default:
		return false
	}
}

// TSV column headers of the downloaded performance report.
const (
	ColCampaignID   = "Campaign Id"
	ColOfferID      = "Offer Id"
	ColCreativeID   = "Creative Id"
	ColOfferName    = "Offer Name"
	ColCreativeName = "Creative Name"
	ColSpend        = "Spend"
	ColImpression   = "Impression"
	ColClick        = "Click"
	ColConversion   = "Conversion"
)

// ReportRow is one parsed TSV row of the daily performance report.
// OfferID is the join key for spend allocation against tracker adset IDs.
type ReportRow struct {
	CampaignID   string
	OfferID      string
	CreativeID   string
	OfferName    string
	CreativeName string
	Spend        float64
	Impression   int64
	Click        int64
	Conversion   int64
}

// ParseTSV decodes a downloaded report body. The first line is the header;
// short lines are padded with empty values and blank lines are skipped.
// Numeric cells may carry "," grouping separators.
func ParseTSV(body string) []ReportRow {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) < 2 {
		return nil
	}

	idx := make(map[string]int, 16)
	for i, h := range strings.Split(lines[0], "\t") {
		idx[strings.TrimSpace(h)] = i
	}

	rows := make([]ReportRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, "\t")
		cell := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[i])
		}
		rows = append(rows, ReportRow{
			CampaignID:   cell(ColCampaignID),
			OfferID:      cell(ColOfferID),
			CreativeID:   cell(ColCreativeID),
			OfferName:    cell(ColOfferName),
			CreativeName: cell(ColCreativeName),
			Spend:        parseGroupedFloat(cell(ColSpend)),
			Impression:   parseGroupedInt(cell(ColImpression)),
			Click:        parseGroupedInt(cell(ColClick)),
			Conversion:   parseGroupedInt(cell(ColConversion)),
		})
	}
	return rows
}

func parseGroupedFloat(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseGroupedInt(s string) int64 {
	return int64(parseGroupedFloat(s))
}
