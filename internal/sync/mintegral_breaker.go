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
	"github.com/adreckon/adreckon/internal/models/mintegral"
)

// MintegralBreaker wraps MintegralClient with a circuit breaker shared by all
// accounts; the accounts hit the same API host, so one breaker reflects its
// health.
type MintegralBreaker struct {
	client *MintegralClient
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewMintegralBreaker builds the breaker-wrapped client used by the manager.
func NewMintegralBreaker(cfg *config.MintegralConfig) *MintegralBreaker {
	name := "mintegral-api"
	return &MintegralBreaker{
		client: NewMintegralClient(cfg),
		cb:     newBreaker(name),
		name:   name,
	}
}

func (b *MintegralBreaker) PullDaily(ctx context.Context, account config.MintegralAccountConfig, date time.Time) ([]mintegral.ReportRow, error) {
	return castResult[[]mintegral.ReportRow](executeBreaker(b.cb, b.name, func() (interface{}, error) {
		return b.client.PullDaily(ctx, account, date)
	}))
}
