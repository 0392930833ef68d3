// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package sync

import (
	"time"

	"github.com/adreckon/adreckon/internal/logging"
	"github.com/adreckon/adreckon/internal/metrics"
	"github.com/adreckon/adreckon/internal/models"
	"github.com/adreckon/adreckon/internal/models/clickflare"
)

// resolveHourlyRows maps hourly report items onto warehouse rows. The
// upstream keys the dateTime column to the report timezone; rows are stored
// with their hour converted to UTC. Rows without a parseable dateTime carry
// no usable identity and are dropped.
func resolveHourlyRows(items []clickflare.ReportItem, loc *time.Location) ([]models.HourlyRow, int) {
	rows := make([]models.HourlyRow, 0, len(items))
	dropped := 0

	for _, item := range items {
		hour, err := time.ParseInLocation(clickflare.DateTimeFormat, item.DateTime, loc)
		if err != nil {
			dropped++
			metrics.RecordAllocationDrop("bad_hour")
			logging.Warn().
				Str("dateTime", item.DateTime).
				Str("media", item.TrafficSourceName).
				Msg("Dropping hourly row without parseable hour")
			continue
		}

		rows = append(rows, models.HourlyRow{
			ReportHour: hour.UTC(),

			Media:      item.TrafficSourceName,
			MediaID:    item.TrafficSourceID,
			Offer:      item.OfferName,
			OfferID:    item.OfferID,
			Campaign:   item.TrackingField4,
			CampaignID: item.TrackingField3,
			Adset:      item.TrackingField6,
			AdsetID:    item.TrackingField5,
			Ads:        item.TrackingField2,
			AdsID:      item.TrackingField1,

			Impressions: int64(item.UniqueVisits),
			Clicks:      int64(item.UniqueClicks),
			Conversions: int64(item.Conversions),
			Revenue:     float64(item.Revenue),
			Spend:       float64(item.Cost),
		})
	}

	return rows, dropped
}
