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

// defaultReportDays bounds the range returned when the caller omits
// start_date and end_date.
const defaultReportDays = 30

// DailyReport returns daily report rows for an inclusive date range with
// grand totals. Query parameters: start_date, end_date (YYYY-MM-DD, both
// default to the trailing 30 days) and media (optional exact filter).
func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	endDate, present, err := getDateParam(r, "end_date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DATE", "Invalid end_date, want YYYY-MM-DD", err)
		return
	}
	if !present {
		endDate = yesterday(time.Now().In(h.jobs.ReportLocation()))
	}

	startDate, present, err := getDateParam(r, "start_date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DATE", "Invalid start_date, want YYYY-MM-DD", err)
		return
	}
	if !present {
		startDate = endDate.AddDate(0, 0, -(defaultReportDays - 1))
	}

	if endDate.Before(startDate) {
		respondError(w, http.StatusBadRequest, "INVALID_RANGE", "end_date precedes start_date", nil)
		return
	}

	result, err := h.store.Query(r.Context(), models.DailyReportQuery{
		StartDate: startDate,
		EndDate:   endDate,
		Media:     r.URL.Query().Get("media"),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to query daily report", err)
		return
	}

	respondSuccess(w, http.StatusOK, result, start)
}

// MediaList returns the distinct media names present in the daily report,
// for populating filter dropdowns.
func (h *Handler) MediaList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	media, err := h.store.MediaList(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to query media list", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string][]string{"media": media}, start)
}

// UpdateSpend sets the absolute final spend for one (date, media) row. The
// store turns the absolute value into a delta against currently attributed
// spend, so repeated corrections compose. Operator corrections apply even on
// locked dates; the lock only fences off automated re-syncs.
func (h *Handler) UpdateSpend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.UpdateSpendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Failed to decode request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	date, err := parseBodyDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DATE", "Invalid date, want YYYY-MM-DD", err)
		return
	}

	final, err := h.store.SetFinalSpend(r.Context(), date, req.Media, req.Spend)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SPEND_UPDATE_FAILED", "Failed to apply spend correction", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]any{
		"date":        req.Date,
		"media":       req.Media,
		"final_spend": final,
	}, start)
}

// LockDate toggles the lock flag for every media row at a date. Locked
// dates are skipped by re-syncs; operator spend corrections still apply.
func (h *Handler) LockDate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.LockDateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Failed to decode request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	date, err := parseBodyDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DATE", "Invalid date, want YYYY-MM-DD", err)
		return
	}

	affected, err := h.store.Lock(r.Context(), date, req.Lock)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LOCK_FAILED", "Failed to update lock flag", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]any{
		"date":          req.Date,
		"locked":        req.Lock,
		"rows_affected": affected,
	}, start)
}

// SyncRange re-aggregates the daily report from canonical rows for an
// inclusive date range. Locked dates are skipped and listed in the result.
func (h *Handler) SyncRange(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.SyncRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Failed to decode request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	startDate, err := parseBodyDate(req.StartDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DATE", "Invalid start_date, want YYYY-MM-DD", err)
		return
	}
	endDate, err := parseBodyDate(req.EndDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DATE", "Invalid end_date, want YYYY-MM-DD", err)
		return
	}
	if endDate.Before(startDate) {
		respondError(w, http.StatusBadRequest, "INVALID_RANGE", "end_date precedes start_date", nil)
		return
	}

	result, err := h.store.SyncRange(r.Context(), startDate, endDate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SYNC_FAILED", "Failed to sync date range", err)
		return
	}

	respondSuccess(w, http.StatusOK, result, start)
}

// LockedDates lists the locked dates within an inclusive range, defaulting
// to the trailing 30 days.
func (h *Handler) LockedDates(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	endDate, present, err := getDateParam(r, "end_date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DATE", "Invalid end_date, want YYYY-MM-DD", err)
		return
	}
	if !present {
		endDate = yesterday(time.Now().In(h.jobs.ReportLocation()))
	}

	startDate, present, err := getDateParam(r, "start_date")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DATE", "Invalid start_date, want YYYY-MM-DD", err)
		return
	}
	if !present {
		startDate = endDate.AddDate(0, 0, -(defaultReportDays - 1))
	}

	dates, err := h.store.LockedDates(r.Context(), startDate, endDate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to query locked dates", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string][]string{"locked_dates": dates}, start)
}
