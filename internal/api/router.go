// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adreckon/adreckon/internal/middleware"
)

// Router assembles the ops API routes around a handler and the shared
// middleware factories.
type Router struct {
	handler *Handler
	chimw   *ChiMiddleware
}

// NewRouter creates a router for the given handler. A nil middleware
// factory uses the defaults.
func NewRouter(handler *Handler, chimw *ChiMiddleware) *Router {
	if chimw == nil {
		chimw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chimw: chimw}
}

// Setup configures all HTTP routes on a Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order. CORS must be
	// global so OPTIONS preflight requests are answered everywhere.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chimw.CORS())

	// Health probes get a permissive limit so monitors can poll freely.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chimw.RateLimitHealth())
		r.Use(middleware.SecurityHeaders)
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Job control. Triggers are writes and get the strict limit.
	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Use(router.chimw.RateLimit())
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.PrometheusMetrics)
		r.With(router.chimw.RateLimitTrigger()).Post("/{job}/run", router.handler.TriggerJob)
		r.Get("/{job}/status", router.handler.JobStatus)
		r.Get("/{job}/log", router.handler.JobLog)
	})

	// Report reads and corrections.
	r.Route("/api/v1/report", func(r chi.Router) {
		r.Use(router.chimw.RateLimit())
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.PrometheusMetrics)
		r.Get("/daily", router.handler.DailyReport)
		r.Get("/media", router.handler.MediaList)
		r.Get("/locked", router.handler.LockedDates)
		r.With(router.chimw.RateLimitTrigger()).Post("/spend", router.handler.UpdateSpend)
		r.With(router.chimw.RateLimitTrigger()).Post("/lock", router.handler.LockDate)
		r.With(router.chimw.RateLimitTrigger()).Post("/sync", router.handler.SyncRange)
	})

	// Prometheus scrape endpoint, outside the API envelope.
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
