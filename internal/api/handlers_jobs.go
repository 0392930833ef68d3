// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adreckon/adreckon/internal/models"
	"github.com/adreckon/adreckon/internal/runs"
)

// jobParam extracts and validates the {job} URL parameter.
func jobParam(r *http.Request) (models.JobKind, bool) {
	job := models.JobKind(chi.URLParam(r, "job"))
	return job, job.Valid()
}

// TriggerJob launches a run of the named job and returns immediately with
// the run ID. A refused concurrent run is not an error: the response carries
// status "already_running" and the live run's ID so the caller can follow it.
//
// The merge job accepts an optional ?date=YYYY-MM-DD parameter; without it
// the run targets yesterday in the report timezone, matching the schedule.
func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	job, ok := jobParam(r)
	if !ok {
		respondError(w, http.StatusNotFound, "UNKNOWN_JOB", "Unknown job, want merge or hourly", nil)
		return
	}

	var (
		runID string
		err   error
	)
	switch job {
	case models.JobMerge:
		date, present, perr := getDateParam(r, "date")
		if perr != nil {
			respondError(w, http.StatusBadRequest, "INVALID_DATE", "Invalid date parameter, want YYYY-MM-DD", perr)
			return
		}
		if !present {
			date = yesterday(time.Now().In(h.jobs.ReportLocation()))
		}
		runID, err = h.jobs.StartMerge(r.Context(), date)
	case models.JobHourly:
		runID, err = h.jobs.StartHourly(r.Context())
	}

	if err != nil {
		var already *runs.AlreadyRunningError
		if errors.As(err, &already) {
			respondSuccess(w, http.StatusOK, models.TriggerResult{
				Status: "already_running",
				RunID:  already.RunID,
			}, start)
			return
		}
		respondError(w, http.StatusInternalServerError, "TRIGGER_FAILED", "Failed to launch job run", err)
		return
	}

	respondSuccess(w, http.StatusAccepted, models.TriggerResult{
		Status: "started",
		RunID:  runID,
	}, start)
}

// JobStatus reports the persisted outcome of the job's most recent run.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	job, ok := jobParam(r)
	if !ok {
		respondError(w, http.StatusNotFound, "UNKNOWN_JOB", "Unknown job, want merge or hourly", nil)
		return
	}

	status, err := h.runs.Status(r.Context(), job)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STATUS_FAILED", "Failed to read job status", err)
		return
	}

	respondSuccess(w, http.StatusOK, status, start)
}

// JobLog returns the newest lines of the job's in-memory log buffer. The
// ?lines=N parameter defaults to 100 and is capped by the buffer size.
func (h *Handler) JobLog(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	job, ok := jobParam(r)
	if !ok {
		respondError(w, http.StatusNotFound, "UNKNOWN_JOB", "Unknown job, want merge or hourly", nil)
		return
	}

	lines := getIntParam(r, "lines", 100)
	if lines < 1 {
		respondError(w, http.StatusBadRequest, "INVALID_LINES", "Parameter lines must be positive", nil)
		return
	}

	respondSuccess(w, http.StatusOK, h.runs.Log(job, lines), start)
}

// yesterday converts a local wall-clock instant to the previous calendar
// date as a UTC midnight, the canonical report-date representation.
func yesterday(local time.Time) time.Time {
	y := local.AddDate(0, 0, -1)
	return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)
}
