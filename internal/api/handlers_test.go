// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/adreckon/adreckon/internal/models"
	"github.com/adreckon/adreckon/internal/runs"
)

type fakeJobs struct {
	mergeDate  time.Time
	mergeErr   error
	hourlyErr  error
	mergeCalls int
	runID      string
	loc        *time.Location
}

func (f *fakeJobs) StartMerge(_ context.Context, date time.Time) (string, error) {
	f.mergeCalls++
	f.mergeDate = date
	if f.mergeErr != nil {
		return "", f.mergeErr
	}
	return f.runID, nil
}

func (f *fakeJobs) StartHourly(context.Context) (string, error) {
	if f.hourlyErr != nil {
		return "", f.hourlyErr
	}
	return f.runID, nil
}

func (f *fakeJobs) ReportLocation() *time.Location {
	if f.loc != nil {
		return f.loc
	}
	return time.UTC
}

type fakeRuns struct {
	status models.JobStatus
	err    error
	lines  []string
}

func (f *fakeRuns) Status(_ context.Context, job models.JobKind) (models.JobStatus, error) {
	if f.err != nil {
		return models.JobStatus{}, f.err
	}
	s := f.status
	s.Job = job
	return s, nil
}

func (f *fakeRuns) Log(job models.JobKind, n int) models.JobLog {
	lines := f.lines
	if n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	return models.JobLog{Job: job, Lines: lines}
}

type fakeStore struct {
	queryArg   models.DailyReportQuery
	result     models.DailyReportResult
	queryErr   error
	spendDate  time.Time
	spendMedia string
	spendVal   float64
	spendErr   error
	lockDate   time.Time
	lockVal    bool
	syncResult models.SyncRangeResult
	locked     []string
}

func (f *fakeStore) Query(_ context.Context, q models.DailyReportQuery) (models.DailyReportResult, error) {
	f.queryArg = q
	return f.result, f.queryErr
}

func (f *fakeStore) MediaList(context.Context) ([]string, error) {
	return []string{"adnet", "pushhouse"}, nil
}

func (f *fakeStore) SetFinalSpend(_ context.Context, date time.Time, media string, spend float64) (float64, error) {
	if f.spendErr != nil {
		return 0, f.spendErr
	}
	f.spendDate, f.spendMedia, f.spendVal = date, media, spend
	return spend, nil
}

func (f *fakeStore) Lock(_ context.Context, date time.Time, locked bool) (int64, error) {
	f.lockDate, f.lockVal = date, locked
	return 3, nil
}

func (f *fakeStore) SyncRange(_ context.Context, start, end time.Time) (models.SyncRangeResult, error) {
	return f.syncResult, nil
}

func (f *fakeStore) LockedDates(_ context.Context, start, end time.Time) ([]string, error) {
	return f.locked, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func newTestRouter(jobs *fakeJobs, rr *fakeRuns, store *fakeStore, db *fakePinger) http.Handler {
	mc := DefaultChiMiddlewareConfig()
	mc.RateLimitDisabled = true
	h := NewHandler(jobs, rr, store, db, nil)
	return NewRouter(h, NewChiMiddleware(mc)).Setup()
}

func doRequest(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response envelope: %v (body %q)", err, rec.Body.String())
	}
	return rec, env
}

func TestTriggerMergeStarted(t *testing.T) {
	jobs := &fakeJobs{runID: "run-123"}
	router := newTestRouter(jobs, &fakeRuns{}, &fakeStore{}, &fakePinger{})

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/jobs/merge/run?date=2026-03-10", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var result models.TriggerResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if result.Status != "started" || result.RunID != "run-123" {
		t.Errorf("result = %+v, want started/run-123", result)
	}
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !jobs.mergeDate.Equal(want) {
		t.Errorf("merge date = %v, want %v", jobs.mergeDate, want)
	}
}

func TestTriggerMergeDefaultsToYesterday(t *testing.T) {
	jobs := &fakeJobs{runID: "run-9", loc: time.FixedZone("UTC+8", 8*3600)}
	router := newTestRouter(jobs, &fakeRuns{}, &fakeStore{}, &fakePinger{})

	rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/jobs/merge/run", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	want := yesterday(time.Now().In(jobs.loc))
	if !jobs.mergeDate.Equal(want) {
		t.Errorf("merge date = %v, want %v", jobs.mergeDate, want)
	}
	if loc := jobs.mergeDate.Location(); loc != time.UTC {
		t.Errorf("merge date location = %v, want UTC", loc)
	}
}

func TestTriggerAlreadyRunning(t *testing.T) {
	jobs := &fakeJobs{mergeErr: &runs.AlreadyRunningError{Job: models.JobMerge, RunID: "live-1"}}
	router := newTestRouter(jobs, &fakeRuns{}, &fakeStore{}, &fakePinger{})

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/jobs/merge/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var result models.TriggerResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if result.Status != "already_running" || result.RunID != "live-1" {
		t.Errorf("result = %+v, want already_running/live-1", result)
	}
}

func TestTriggerRejectsUnknownJobAndBadDate(t *testing.T) {
	router := newTestRouter(&fakeJobs{runID: "x"}, &fakeRuns{}, &fakeStore{}, &fakePinger{})

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/jobs/weekly/run", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "UNKNOWN_JOB" {
		t.Errorf("error = %+v, want UNKNOWN_JOB", env.Error)
	}

	rec, env = doRequest(t, router, http.MethodPost, "/api/v1/jobs/merge/run?date=10/03/2026", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "INVALID_DATE" {
		t.Errorf("error = %+v, want INVALID_DATE", env.Error)
	}
}

func TestTriggerFailure(t *testing.T) {
	jobs := &fakeJobs{hourlyErr: errors.New("registry unavailable")}
	router := newTestRouter(jobs, &fakeRuns{}, &fakeStore{}, &fakePinger{})

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/jobs/hourly/run", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "TRIGGER_FAILED" {
		t.Errorf("error = %+v, want TRIGGER_FAILED", env.Error)
	}
}

func TestJobStatus(t *testing.T) {
	last := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	rr := &fakeRuns{status: models.JobStatus{
		LastRun:         &last,
		LastStatus:      "success",
		DurationSeconds: 42.5,
		RecordCount:     1200,
	}}
	router := newTestRouter(&fakeJobs{}, rr, &fakeStore{}, &fakePinger{})

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/jobs/merge/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status models.JobStatus
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if status.Job != models.JobMerge || status.LastStatus != "success" || status.RecordCount != 1200 {
		t.Errorf("status = %+v", status)
	}
}

func TestJobLog(t *testing.T) {
	rr := &fakeRuns{lines: []string{"a", "b", "c", "d"}}
	router := newTestRouter(&fakeJobs{}, rr, &fakeStore{}, &fakePinger{})

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/jobs/hourly/log?lines=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var log models.JobLog
	if err := json.Unmarshal(env.Data, &log); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if len(log.Lines) != 2 || log.Lines[0] != "c" || log.Lines[1] != "d" {
		t.Errorf("lines = %v, want newest two", log.Lines)
	}

	rec, env = doRequest(t, router, http.MethodGet, "/api/v1/jobs/hourly/log?lines=0", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero lines status = %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "INVALID_LINES" {
		t.Errorf("error = %+v, want INVALID_LINES", env.Error)
	}
}

func TestDailyReportRangeParsing(t *testing.T) {
	store := &fakeStore{result: models.DailyReportResult{Rows: []models.DailyReportRow{}}}
	router := newTestRouter(&fakeJobs{}, &fakeRuns{}, store, &fakePinger{})

	rec, _ := doRequest(t, router, http.MethodGet,
		"/api/v1/report/daily?start_date=2026-03-01&end_date=2026-03-10&media=adnet", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := store.queryArg.StartDate; !got.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", got)
	}
	if got := store.queryArg.EndDate; !got.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", got)
	}
	if store.queryArg.Media != "adnet" {
		t.Errorf("media = %q", store.queryArg.Media)
	}

	rec, env := doRequest(t, router, http.MethodGet,
		"/api/v1/report/daily?start_date=2026-03-10&end_date=2026-03-01", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range status = %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "INVALID_RANGE" {
		t.Errorf("error = %+v, want INVALID_RANGE", env.Error)
	}
}

func TestDailyReportDefaultRange(t *testing.T) {
	store := &fakeStore{}
	router := newTestRouter(&fakeJobs{}, &fakeRuns{}, store, &fakePinger{})

	rec, _ := doRequest(t, router, http.MethodGet, "/api/v1/report/daily", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	days := int(store.queryArg.EndDate.Sub(store.queryArg.StartDate).Hours()/24) + 1
	if days != defaultReportDays {
		t.Errorf("default range = %d days, want %d", days, defaultReportDays)
	}
}

func TestUpdateSpend(t *testing.T) {
	store := &fakeStore{}
	router := newTestRouter(&fakeJobs{}, &fakeRuns{}, store, &fakePinger{})

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/report/spend",
		`{"date":"2026-03-10","media":"adnet","spend":150.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (error %+v)", rec.Code, env.Error)
	}
	if store.spendMedia != "adnet" || store.spendVal != 150.5 {
		t.Errorf("store got media=%q spend=%v", store.spendMedia, store.spendVal)
	}
	if !store.spendDate.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("store got date %v", store.spendDate)
	}
}

func TestUpdateSpendValidation(t *testing.T) {
	router := newTestRouter(&fakeJobs{}, &fakeRuns{}, &fakeStore{}, &fakePinger{})

	tests := []struct {
		name string
		body string
	}{
		{"bad date format", `{"date":"10/03/2026","media":"adnet","spend":1}`},
		{"missing media", `{"date":"2026-03-10","spend":1}`},
		{"negative spend", `{"date":"2026-03-10","media":"adnet","spend":-5}`},
		{"not json", `date=2026-03-10`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doRequest(t, router, http.MethodPost, "/api/v1/report/spend", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if env.Error == nil {
				t.Fatal("missing error payload")
			}
		})
	}
}

func TestUpdateSpendStoreFailure(t *testing.T) {
	store := &fakeStore{spendErr: errors.New("no report row for 2026-03-10/adnet")}
	router := newTestRouter(&fakeJobs{}, &fakeRuns{}, store, &fakePinger{})

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/report/spend",
		`{"date":"2026-03-10","media":"adnet","spend":10}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "SPEND_UPDATE_FAILED" {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestLockDate(t *testing.T) {
	store := &fakeStore{}
	router := newTestRouter(&fakeJobs{}, &fakeRuns{}, store, &fakePinger{})

	rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/report/lock",
		`{"date":"2026-03-10","lock":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !store.lockVal || !store.lockDate.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("store got date=%v lock=%v", store.lockDate, store.lockVal)
	}
}

func TestSyncRange(t *testing.T) {
	store := &fakeStore{syncResult: models.SyncRangeResult{Synced: 8, Rows: 24, Skipped: []string{"2026-03-05"}}}
	router := newTestRouter(&fakeJobs{}, &fakeRuns{}, store, &fakePinger{})

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/report/sync",
		`{"start_date":"2026-03-01","end_date":"2026-03-09"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (error %+v)", rec.Code, env.Error)
	}
	var result models.SyncRangeResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if result.Synced != 8 || result.Rows != 24 || len(result.Skipped) != 1 {
		t.Errorf("result = %+v", result)
	}

	rec, env = doRequest(t, router, http.MethodPost, "/api/v1/report/sync",
		`{"start_date":"2026-03-09","end_date":"2026-03-01"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range status = %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "INVALID_RANGE" {
		t.Errorf("error = %+v, want INVALID_RANGE", env.Error)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeJobs{}, &fakeRuns{}, &fakeStore{}, &fakePinger{})

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var health models.HealthStatus
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if health.Status != "healthy" || health.Checks["database"] != "up" {
		t.Errorf("health = %+v", health)
	}
}

func TestHealthDegradedAndNotReady(t *testing.T) {
	router := newTestRouter(&fakeJobs{}, &fakeRuns{}, &fakeStore{}, &fakePinger{err: errors.New("ping: closed")})

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
	var health models.HealthStatus
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if health.Status != "degraded" || health.Checks["database"] != "down" {
		t.Errorf("health = %+v", health)
	}

	rec, _ = doRequest(t, router, http.MethodGet, "/api/v1/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", rec.Code)
	}

	rec, _ = doRequest(t, router, http.MethodGet, "/api/v1/health/live", "")
	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d, want 200", rec.Code)
	}
}

func TestRouterSetsRequestIDAndSecurityHeaders(t *testing.T) {
	router := newTestRouter(&fakeJobs{}, &fakeRuns{}, &fakeStore{}, &fakePinger{})

	rec, _ := doRequest(t, router, http.MethodGet, "/api/v1/report/media", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options header")
	}
}
