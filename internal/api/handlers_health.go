// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package api

import (
	"net/http"
	"time"

	"github.com/adreckon/adreckon/internal/models"
)

// Health reports overall service health: database connectivity plus uptime
// and version. The process is degraded, not dead, when the database ping
// fails, so the endpoint still answers 200 with status "degraded".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	checks := map[string]string{}
	status := "healthy"

	if h.db == nil || h.db.Ping(r.Context()) != nil {
		checks["database"] = "down"
		status = "degraded"
	} else {
		checks["database"] = "up"
	}

	respondSuccess(w, http.StatusOK, models.HealthStatus{
		Status:    status,
		Version:   Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
		Timestamp: time.Now(),
	}, start)
}

// HealthLive is the liveness probe: 200 whenever the process can serve.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady is the readiness probe: 200 only when the database answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.db == nil || h.db.Ping(r.Context()) != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Database is not reachable", nil)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"}, start)
}
