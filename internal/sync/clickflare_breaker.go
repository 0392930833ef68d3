// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package sync

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/adreckon/adreckon/internal/config"
	"github.com/adreckon/adreckon/internal/models/clickflare"
)

// ClickFlareBreaker wraps ClickFlareClient with a circuit breaker. One full
// multi-page pull counts as one breaker sample; a tracker that is down fails
// every page anyway.
type ClickFlareBreaker struct {
	client *ClickFlareClient
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewClickFlareBreaker builds the breaker-wrapped client used by the manager.
func NewClickFlareBreaker(cfg *config.ClickFlareConfig, timezone string, loc *time.Location) *ClickFlareBreaker {
	name := "clickflare-api"
	return &ClickFlareBreaker{
		client: NewClickFlareClient(cfg, timezone, loc),
		cb:     newBreaker(name),
		name:   name,
	}
}

func (b *ClickFlareBreaker) PullDailyAdvertiser(ctx context.Context, date time.Time) ([]clickflare.ReportItem, error) {
	return castResult[[]clickflare.ReportItem](executeBreaker(b.cb, b.name, func() (interface{}, error) {
		return b.client.PullDailyAdvertiser(ctx, date)
	}))
}

func (b *ClickFlareBreaker) PullDailyLanding(ctx context.Context, date time.Time) ([]clickflare.ReportItem, error) {
	return castResult[[]clickflare.ReportItem](executeBreaker(b.cb, b.name, func() (interface{}, error) {
		return b.client.PullDailyLanding(ctx, date)
	}))
}

func (b *ClickFlareBreaker) PullHourly(ctx context.Context, startUTC, endUTC time.Time) ([]clickflare.ReportItem, error) {
	return castResult[[]clickflare.ReportItem](executeBreaker(b.cb, b.name, func() (interface{}, error) {
		return b.client.PullHourly(ctx, startUTC, endUTC)
	}))
}
