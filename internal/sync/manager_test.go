// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/adreckon/adreckon/internal/config"
	"github.com/adreckon/adreckon/internal/database"
	"github.com/adreckon/adreckon/internal/models"
	"github.com/adreckon/adreckon/internal/models/clickflare"
	"github.com/adreckon/adreckon/internal/models/mintegral"
	"github.com/adreckon/adreckon/internal/runs"
)

// testDBSemaphore serializes DuckDB creation: concurrent CGO calls from
// parallel tests can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

var mergeDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

// fakeSources is a pair of httptest servers standing in for the tracker and
// the secondary network. Responses are fixed per test; calls are counted.
type fakeSources struct {
	mu sync.Mutex

	pass1Items  []clickflare.ReportItem
	pass2Items  []clickflare.ReportItem
	hourlyItems []clickflare.ReportItem
	pass2Status int

	tsvByAccessKey map[string]string
	failAccessKeys map[string]bool

	pass1Calls, pass2Calls, hourlyCalls, mintegralCalls int

	clickflare *httptest.Server
	mintegral  *httptest.Server
}

func newFakeSources(t *testing.T) *fakeSources {
	t.Helper()
	f := &fakeSources{
		tsvByAccessKey: map[string]string{},
		failAccessKeys: map[string]bool{},
	}

	f.clickflare = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req clickflare.ReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode clickflare request: %v", err)
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case contains(req.GroupBy, "dateTime"):
			f.hourlyCalls++
			_ = json.NewEncoder(w).Encode(clickflare.ReportResponse{Items: f.hourlyItems})
		case contains(req.GroupBy, "landingID"):
			f.pass2Calls++
			if f.pass2Status != 0 {
				w.WriteHeader(f.pass2Status)
				return
			}
			_ = json.NewEncoder(w).Encode(clickflare.ReportResponse{Items: f.pass2Items})
		default:
			f.pass1Calls++
			_ = json.NewEncoder(w).Encode(clickflare.ReportResponse{Items: f.pass1Items})
		}
	}))
	t.Cleanup(f.clickflare.Close)

	f.mintegral = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessKey := r.Header.Get("access-key")

		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.URL.Query().Get("type") {
		case "1":
			f.mintegralCalls++
			code := mintegral.CodeSuccess
			if f.failAccessKeys[accessKey] {
				code = mintegral.CodeError
			}
			_ = json.NewEncoder(w).Encode(mintegral.StatusResponse{Code: code})
		case "2":
			_, _ = w.Write([]byte(f.tsvByAccessKey[accessKey]))
		}
	}))
	t.Cleanup(f.mintegral.Close)

	return f
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func testConfig(f *fakeSources) *config.Config {
	return &config.Config{
		ClickFlare: config.ClickFlareConfig{
			URL:                f.clickflare.URL,
			APIKey:             "test-key",
			PageSize:           100,
			Timeout:            5 * time.Second,
			RateLimit:          1000,
			ExcludedSpendMedia: []string{"Mintegral"},
		},
		Mintegral: config.MintegralConfig{
			Enabled: true,
			URL:     f.mintegral.URL,
			Accounts: []config.MintegralAccountConfig{
				{Name: "us-east", AccessKey: "ak-1", APIKey: "sk-1"},
			},
			Timeout:         5 * time.Second,
			PollInterval:    time.Millisecond,
			PollMaxAttempts: 5,
			PollTimeout:     5 * time.Second,
			MediaKeywords:   []string{"Mintegral"},
		},
		Jobs: config.JobsConfig{
			ReportTimezone: "UTC",
			Merge: config.MergeJobConfig{
				Enabled:        true,
				TimeoutMinutes: 30,
				RetryAttempts:  1,
				RetryDelay:     time.Millisecond,
			},
			Hourly: config.HourlyJobConfig{
				Enabled:        true,
				TimeoutMinutes: 5,
				LookbackHours:  2,
				RetentionDays:  31,
			},
		},
	}
}

func newTestManager(t *testing.T, f *fakeSources) (*Manager, *database.DB, *runs.Tracker) {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB", Threads: 2})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})

	tracker := runs.NewTracker(runs.NewMemoryRegistry(), db, runs.NewJobLogs(100), 20*time.Minute)
	t.Cleanup(func() {
		if err := tracker.Close(); err != nil {
			t.Errorf("Failed to close tracker: %v", err)
		}
	})

	m, err := NewManager(testConfig(f), db, tracker, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m, db, tracker
}

// mergeFixture returns pass-1 rows for one Mintegral adset and one Facebook
// row, the matching landing pass, and the network TSV for the adset.
func mergeFixture(f *fakeSources) {
	f.pass1Items = []clickflare.ReportItem{
		{
			Date:              "2026-03-10",
			TrafficSourceName: "Mintegral",
			TrafficSourceID:   "ts-mtg",
			OfferName:         "Offer A",
			OfferID:           "o1",
			TrackingField3:    "camp-1",
			TrackingField5:    "981273",
			UniqueVisits:      1000,
			UniqueClicks:      100,
			Conversions:       10,
			Revenue:           80,
			Cost:              0,
		},
		{
			Date:              "2026-03-10",
			TrafficSourceName: "Facebook",
			TrafficSourceID:   "ts-fb",
			OfferName:         "Offer B",
			OfferID:           "o2",
			TrackingField3:    "camp-2",
			TrackingField5:    "444555",
			UniqueVisits:      500,
			UniqueClicks:      50,
			Conversions:       5,
			Revenue:           40,
			Cost:              30,
		},
	}
	f.pass2Items = []clickflare.ReportItem{
		{
			Date:            "2026-03-10",
			TrafficSourceID: "ts-mtg",
			OfferID:         "o1",
			TrackingField3:  "camp-1",
			TrackingField5:  "981273",
			LandingID:       "l1",
			LandingName:     "Lander One",
		},
	}
	f.tsvByAccessKey["ak-1"] = "Campaign Id\tOffer Id\tCreative Id\tOffer Name\tCreative Name\tSpend\tImpression\tClick\tConversion\n" +
		"77001\t981273\t55100\tSummer Push\tvideo_a\t50.00\t10,000\t600\t30\n"
}

type canonicalSnapshot struct {
	media   string
	spend   float64
	revenue float64
	lander  string
	mImp    int64
}

func readCanonical(t *testing.T, db *database.DB) map[string]canonicalSnapshot {
	t.Helper()
	rows, err := db.Conn().QueryContext(context.Background(),
		`SELECT media, spend, revenue, lander, m_imp FROM marketing_report_daily ORDER BY media`)
	if err != nil {
		t.Fatalf("query canonical rows: %v", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[string]canonicalSnapshot{}
	for rows.Next() {
		var snap canonicalSnapshot
		if err := rows.Scan(&snap.media, &snap.spend, &snap.revenue, &snap.lander, &snap.mImp); err != nil {
			t.Fatalf("scan canonical row: %v", err)
		}
		out[snap.media] = snap
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate canonical rows: %v", err)
	}
	return out
}

func TestRunMergeCommitsAllocatedRows(t *testing.T) {
	f := newFakeSources(t)
	mergeFixture(f)
	m, db, tracker := newTestManager(t, f)

	if err := m.RunMerge(context.Background(), mergeDate); err != nil {
		t.Fatalf("RunMerge() error = %v", err)
	}

	snaps := readCanonical(t, db)
	if len(snaps) != 2 {
		t.Fatalf("canonical rows = %d, want 2", len(snaps))
	}

	mtg := snaps["Mintegral"]
	if mtg.spend != 50 {
		t.Errorf("Mintegral spend = %v, want the network-reported 50 instead of the revenue seed", mtg.spend)
	}
	if mtg.revenue != 80 {
		t.Errorf("Mintegral revenue = %v, want the tracker-reported 80", mtg.revenue)
	}
	if mtg.lander != "Lander One" {
		t.Errorf("Mintegral lander = %q, want the pass-2 landing name", mtg.lander)
	}
	if mtg.mImp != 10000 {
		t.Errorf("Mintegral m_imp = %d, want the network impressions", mtg.mImp)
	}

	fb := snaps["Facebook"]
	if fb.spend != 30 {
		t.Errorf("Facebook spend = %v, want the tracker cost untouched", fb.spend)
	}

	status, err := tracker.Status(context.Background(), models.JobMerge)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Running {
		t.Error("run should have released the registry")
	}
	if status.LastStatus != "success" {
		t.Errorf("LastStatus = %q, want success", status.LastStatus)
	}
	if status.RecordCount != 2 {
		t.Errorf("RecordCount = %d, want 2", status.RecordCount)
	}
}

func TestRunMergeToleratesLandingFailure(t *testing.T) {
	f := newFakeSources(t)
	mergeFixture(f)
	f.pass2Status = http.StatusInternalServerError
	m, db, tracker := newTestManager(t, f)

	if err := m.RunMerge(context.Background(), mergeDate); err != nil {
		t.Fatalf("RunMerge() error = %v, landing failure should not fail the run", err)
	}

	snaps := readCanonical(t, db)
	if snaps["Mintegral"].lander != "" {
		t.Errorf("lander = %q, want empty without pass-2 data", snaps["Mintegral"].lander)
	}
	if snaps["Mintegral"].spend != 50 {
		t.Errorf("spend = %v, allocation should still run without landing data", snaps["Mintegral"].spend)
	}

	status, _ := tracker.Status(context.Background(), models.JobMerge)
	if status.LastStatus != "success" {
		t.Errorf("LastStatus = %q, want success", status.LastStatus)
	}
}

func TestRunMergeSkipsFailedAccount(t *testing.T) {
	f := newFakeSources(t)
	mergeFixture(f)
	f.failAccessKeys["ak-1"] = true
	f.tsvByAccessKey["ak-2"] = "Campaign Id\tOffer Id\tCreative Id\tOffer Name\tCreative Name\tSpend\tImpression\tClick\tConversion\n" +
		"88001\t981273\t55200\tSummer Push\tvideo_b\t20.00\t4,000\t200\t8\n"

	m, db, _ := newTestManager(t, f)
	m.cfg.Mintegral.Accounts = append(m.cfg.Mintegral.Accounts,
		config.MintegralAccountConfig{Name: "apac", AccessKey: "ak-2", APIKey: "sk-2"})

	if err := m.RunMerge(context.Background(), mergeDate); err != nil {
		t.Fatalf("RunMerge() error = %v, a failed account should be skipped", err)
	}

	snaps := readCanonical(t, db)
	if snaps["Mintegral"].spend != 20 {
		t.Errorf("spend = %v, want 20 from the surviving account", snaps["Mintegral"].spend)
	}
}

func TestRunMergeTimeoutCommitsPartial(t *testing.T) {
	f := newFakeSources(t)
	mergeFixture(f)
	m, db, tracker := newTestManager(t, f)

	// Every clock read advances one minute past a one-minute budget, so the
	// first stage check fires.
	m.cfg.Jobs.Merge.TimeoutMinutes = 1
	var mu sync.Mutex
	base := time.Now()
	step := 0
	m.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	if err := m.RunMerge(context.Background(), mergeDate); err != nil {
		t.Fatalf("RunMerge() error = %v, a timed-out run still succeeds externally", err)
	}

	if f.pass2Calls != 0 {
		t.Errorf("pass2 calls = %d, want 0 after the budget fired", f.pass2Calls)
	}
	if f.mintegralCalls != 0 {
		t.Errorf("mintegral calls = %d, want 0 after the budget fired", f.mintegralCalls)
	}

	// Pass-1 rows are committed; the excluded-media row keeps its revenue
	// seed because no network spend arrived.
	snaps := readCanonical(t, db)
	if len(snaps) != 2 {
		t.Fatalf("canonical rows = %d, want the pass-1 rows committed", len(snaps))
	}
	if snaps["Mintegral"].spend != 80 {
		t.Errorf("spend = %v, want the revenue seed 80 without allocation", snaps["Mintegral"].spend)
	}

	status, _ := tracker.Status(context.Background(), models.JobMerge)
	if status.LastStatus != "success" {
		t.Errorf("LastStatus = %q, want success (timed_out reports externally as success)", status.LastStatus)
	}

	// The warehouse records the true status.
	rec, err := db.LastRun(context.Background(), models.JobMerge)
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if rec.Status != models.RunStatusTimedOut {
		t.Errorf("run status = %q, want %q", rec.Status, models.RunStatusTimedOut)
	}
}

func TestRunMergeSingleFlight(t *testing.T) {
	f := newFakeSources(t)
	mergeFixture(f)
	m, _, tracker := newTestManager(t, f)

	// Simulate a live run.
	first, err := tracker.Begin(context.Background(), models.JobMerge)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	err = m.RunMerge(context.Background(), mergeDate)
	var already *runs.AlreadyRunningError
	if !errors.As(err, &already) {
		t.Fatalf("RunMerge() error = %v, want AlreadyRunningError", err)
	}
	if already.RunID != first.ID {
		t.Errorf("conflicting run ID = %q, want %q", already.RunID, first.ID)
	}

	if err := first.Finish(context.Background(), models.RunStatusSuccess, 0, nil); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if err := m.RunMerge(context.Background(), mergeDate); err != nil {
		t.Errorf("RunMerge() after release error = %v", err)
	}
}

type capturedEvent struct {
	mu     sync.Mutex
	events []models.RunCompleted
}

func (c *capturedEvent) PublishRunCompleted(_ context.Context, event models.RunCompleted) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func TestRunMergePublishesRunCompleted(t *testing.T) {
	f := newFakeSources(t)
	mergeFixture(f)
	m, _, _ := newTestManager(t, f)

	pub := &capturedEvent{}
	m.publisher = pub

	if err := m.RunMerge(context.Background(), mergeDate); err != nil {
		t.Fatalf("RunMerge() error = %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(pub.events))
	}
	event := pub.events[0]
	if event.Job != models.JobMerge {
		t.Errorf("event job = %q, want merge", event.Job)
	}
	if event.ReportDate != "2026-03-10" {
		t.Errorf("event date = %q, want 2026-03-10", event.ReportDate)
	}
	if event.Records != 2 {
		t.Errorf("event records = %d, want 2", event.Records)
	}
	if event.Status != models.RunStatusSuccess {
		t.Errorf("event status = %q, want success", event.Status)
	}
	if event.RunID == "" {
		t.Error("event run ID is empty")
	}
}

func TestRunHourlyReplacesWindow(t *testing.T) {
	f := newFakeSources(t)
	f.hourlyItems = []clickflare.ReportItem{
		{
			DateTime:          time.Now().UTC().Truncate(time.Hour).Format(clickflare.DateTimeFormat),
			TrafficSourceName: "Mintegral",
			TrafficSourceID:   "ts-mtg",
			UniqueVisits:      120,
			UniqueClicks:      12,
			Conversions:       1,
			Revenue:           9.5,
			Cost:              4.25,
		},
		{DateTime: "garbage"},
	}
	m, db, tracker := newTestManager(t, f)

	if err := m.RunHourly(context.Background()); err != nil {
		t.Fatalf("RunHourly() error = %v", err)
	}

	var count int64
	if err := db.Conn().QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM hourly_report`).Scan(&count); err != nil {
		t.Fatalf("count hourly rows: %v", err)
	}
	if count != 1 {
		t.Errorf("hourly rows = %d, want 1 (bad row dropped)", count)
	}

	status, err := tracker.Status(context.Background(), models.JobHourly)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.LastStatus != "success" || status.RecordCount != 1 {
		t.Errorf("status = %q/%d, want success/1", status.LastStatus, status.RecordCount)
	}

	// Re-running replaces the window instead of duplicating it.
	if err := m.RunHourly(context.Background()); err != nil {
		t.Fatalf("second RunHourly() error = %v", err)
	}
	if err := db.Conn().QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM hourly_report`).Scan(&count); err != nil {
		t.Fatalf("count hourly rows: %v", err)
	}
	if count != 1 {
		t.Errorf("hourly rows after rerun = %d, want 1", count)
	}
}

func TestRunMergeFailsWhenPrimarySourceDown(t *testing.T) {
	f := newFakeSources(t)
	m, db, tracker := newTestManager(t, f)
	f.clickflare.Close()

	err := m.RunMerge(context.Background(), mergeDate)
	if err == nil {
		t.Fatal("RunMerge() should fail when pass 1 cannot be pulled")
	}

	status, _ := tracker.Status(context.Background(), models.JobMerge)
	if status.Running {
		t.Error("failed run should have released the registry")
	}
	if status.LastStatus != "failed" {
		t.Errorf("LastStatus = %q, want failed", status.LastStatus)
	}

	count, err := db.CanonicalRowCount(context.Background(), mergeDate)
	if err != nil {
		t.Fatalf("CanonicalRowCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("canonical rows = %d, want none committed", count)
	}
}
