// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/adreckon/adreckon/internal/allocation"
	"github.com/adreckon/adreckon/internal/config"
	"github.com/adreckon/adreckon/internal/database"
	"github.com/adreckon/adreckon/internal/logging"
	"github.com/adreckon/adreckon/internal/metrics"
	"github.com/adreckon/adreckon/internal/models"
	"github.com/adreckon/adreckon/internal/models/clickflare"
	"github.com/adreckon/adreckon/internal/models/mintegral"
	"github.com/adreckon/adreckon/internal/runs"
)

// primarySource is the ClickFlare pull surface the manager needs. Satisfied
// by ClickFlareBreaker in production and by plain clients in tests.
type primarySource interface {
	PullDailyAdvertiser(ctx context.Context, date time.Time) ([]clickflare.ReportItem, error)
	PullDailyLanding(ctx context.Context, date time.Time) ([]clickflare.ReportItem, error)
	PullHourly(ctx context.Context, startUTC, endUTC time.Time) ([]clickflare.ReportItem, error)
}

// secondarySource is the Mintegral pull surface.
type secondarySource interface {
	PullDaily(ctx context.Context, account config.MintegralAccountConfig, date time.Time) ([]mintegral.ReportRow, error)
}

// RunPublisher receives a notification after a merge run commits canonical
// rows. A nil publisher disables notifications.
type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, event models.RunCompleted) error
}

// Manager orchestrates the ETL runs: source pulls, spend allocation, and the
// warehouse replace, under the single-flight tracker.
type Manager struct {
	cfg       *config.Config
	db        *database.DB
	tracker   *runs.Tracker
	primary   primarySource
	secondary secondarySource
	resolver  *allocation.Resolver
	engine    *allocation.Engine
	publisher RunPublisher
	loc       *time.Location

	retryAttempts int
	retryDelay    time.Duration

	now func() time.Time
}

// NewManager wires a manager from configuration. publisher may be nil.
func NewManager(cfg *config.Config, db *database.DB, tracker *runs.Tracker, publisher RunPublisher) (*Manager, error) {
	tz := cfg.Jobs.ReportTimezone
	if tz == "" {
		tz = "Asia/Shanghai"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load report timezone %q: %w", tz, err)
	}

	m := &Manager{
		cfg:           cfg,
		db:            db,
		tracker:       tracker,
		primary:       NewClickFlareBreaker(&cfg.ClickFlare, tz, loc),
		resolver:      allocation.NewResolver(cfg.ClickFlare.ExcludedSpendMedia),
		engine:        allocation.NewEngine(cfg.Mintegral.MediaKeywords),
		publisher:     publisher,
		loc:           loc,
		retryAttempts: cfg.Jobs.Merge.RetryAttempts,
		retryDelay:    cfg.Jobs.Merge.RetryDelay,
		now:           time.Now,
	}
	if cfg.Mintegral.Enabled {
		m.secondary = NewMintegralBreaker(&cfg.Mintegral)
	}
	return m, nil
}

// ReportLocation returns the report timezone the upstream accounts are keyed
// to. The scheduler computes "yesterday" in this zone.
func (m *Manager) ReportLocation() *time.Location {
	return m.loc
}

// RunMerge executes the daily merge run for date: ClickFlare two-pass pull,
// Mintegral account pulls, spend allocation, canonical replace.
//
// The stage budget is checked after pass 1, after pass 2, and after each
// account. When exceeded, everything pulled so far is still allocated and
// committed and the run finishes as timed_out. A pass-2 or account failure is
// logged and skipped; only a pass-1 failure or a warehouse write failure
// fails the run.
func (m *Manager) RunMerge(ctx context.Context, date time.Time) error {
	run, err := m.tracker.Begin(ctx, models.JobMerge)
	if err != nil {
		return err
	}
	return m.mergeRun(ctx, run, date)
}

// StartMerge registers a merge run and executes it in the background,
// returning the new run's ID. The trigger endpoint uses this so the caller
// gets the run ID without waiting out a half-hour pull.
func (m *Manager) StartMerge(ctx context.Context, date time.Time) (string, error) {
	run, err := m.tracker.Begin(ctx, models.JobMerge)
	if err != nil {
		return "", err
	}
	go func() {
		if err := m.mergeRun(context.WithoutCancel(ctx), run, date); err != nil {
			logging.Error().Err(err).Str("run_id", run.ID).Msg("Triggered merge run failed")
		}
	}()
	return run.ID, nil
}

func (m *Manager) mergeRun(ctx context.Context, run *runs.Run, date time.Time) error {
	start := m.now()
	budget := time.Duration(m.cfg.Jobs.Merge.TimeoutMinutes) * time.Minute
	status := models.RunStatusSuccess
	day := date.Format(models.DateFormat)

	timedOut := func(stage string) bool {
		if m.now().Sub(start) <= budget {
			return false
		}
		metrics.RecordStageTimeout(string(models.JobMerge), stage)
		run.Logf("stage budget exceeded %s, committing partial data", stage)
		logging.Warn().Str("date", day).Str("stage", stage).Msg("Merge run timed out, committing partial data")
		return true
	}

	// Pass 1 is the backbone of the run; without it there is nothing to
	// commit.
	var pass1 []clickflare.ReportItem
	pullStart := m.now()
	err := retryWithBackoff(ctx, "clickflare_daily", m.retryAttempts, m.retryDelay, func() error {
		var pullErr error
		pass1, pullErr = m.primary.PullDailyAdvertiser(ctx, date)
		return pullErr
	})
	metrics.RecordPull("clickflare_daily", m.now().Sub(pullStart), len(pass1), err)
	if err != nil {
		return m.fail(ctx, run, fmt.Errorf("clickflare pass 1: %w", err))
	}
	run.Logf("pass 1 pulled %d rows", len(pass1))

	var landing []clickflare.ReportItem
	if timedOut("clickflare_pass1") {
		status = models.RunStatusTimedOut
	} else {
		pullStart = m.now()
		err = retryWithBackoff(ctx, "clickflare_landing", m.retryAttempts, m.retryDelay, func() error {
			var pullErr error
			landing, pullErr = m.primary.PullDailyLanding(ctx, date)
			return pullErr
		})
		metrics.RecordPull("clickflare_landing", m.now().Sub(pullStart), len(landing), err)
		if err != nil {
			// Landing dimensions are enrichment, not identity.
			landing = nil
			run.Logf("pass 2 failed, continuing without landing data: %v", err)
			logging.Warn().Err(err).Str("date", day).Msg("Landing pull failed, continuing without landing data")
		} else {
			run.Logf("pass 2 pulled %d rows", len(landing))
		}
		if timedOut("clickflare_pass2") {
			status = models.RunStatusTimedOut
		}
	}

	primaryRows, dropped := m.resolvePrimary(mergeLandingDims(pass1, landing))

	var secondary []allocation.SecondaryRow
	accountsPulled, accountsTotal := 0, 0
	if m.secondary != nil {
		accountsTotal = len(m.cfg.GetMintegralAccounts())
	}
	if status == models.RunStatusSuccess && m.secondary != nil {
		secondary, accountsPulled, status = m.pullSecondary(ctx, run, date, timedOut)
	}

	allocStart := m.now()
	merged, stats := m.engine.Merge(primaryRows, secondary)
	stats.Dropped += dropped
	metrics.RecordAllocation(m.now().Sub(allocStart), stats.MatchedGroups, stats.UnmatchedGroups, stats.EqualSplitGroups)
	metrics.RecordSpendAllocated(allocation.SecondaryMediaName, stats.SecondarySpend)

	inserted, err := m.db.ReplaceCanonical(ctx, date, merged)
	if err != nil {
		return m.fail(ctx, run, fmt.Errorf("replace canonical rows: %w", err))
	}

	var revenue, spend float64
	campaigns := map[string]struct{}{}
	for _, row := range merged {
		revenue += row.Revenue
		spend += row.Spend
		campaigns[row.CampaignID] = struct{}{}
	}
	run.Logf("SUMMARY: revenue=%.2f spend=%.2f rows=%d dropped=%d accounts=%d/%d",
		revenue, spend, inserted, stats.Dropped, accountsPulled, accountsTotal)

	if err := run.Finish(ctx, status, int64(inserted), nil); err != nil {
		return err
	}
	m.publish(ctx, run, day, len(campaigns), int64(inserted), status)
	return nil
}

// pullSecondary walks the configured accounts. A failed account is skipped;
// the stage budget is checked after each account.
func (m *Manager) pullSecondary(ctx context.Context, run *runs.Run, date time.Time, timedOut func(string) bool) ([]allocation.SecondaryRow, int, models.RunStatus) {
	var rows []allocation.SecondaryRow
	pulled := 0
	status := models.RunStatusSuccess

	for _, account := range m.cfg.GetMintegralAccounts() {
		pullStart := m.now()
		accountRows, err := m.secondary.PullDaily(ctx, account, date)
		metrics.RecordPull("mintegral", m.now().Sub(pullStart), len(accountRows), err)
		if err != nil {
			metrics.RecordAccountFailure(account.Name)
			run.Logf("account %s failed, skipping: %v", account.Name, err)
			logging.Error().Err(err).Str("account", account.Name).Msg("Secondary account pull failed, skipping")
		} else {
			for _, row := range accountRows {
				rows = append(rows, m.resolver.ResolveSecondary(row, date))
			}
			pulled++
			run.Logf("account %s pulled %d rows", account.Name, len(accountRows))
		}

		if timedOut("mintegral_" + account.Name) {
			status = models.RunStatusTimedOut
			break
		}
	}

	return rows, pulled, status
}

// RunHourly executes the hourly run: a single-pass pull of the current UTC
// window replaced wholesale in the hourly table, then retention pruning.
func (m *Manager) RunHourly(ctx context.Context) error {
	run, err := m.tracker.Begin(ctx, models.JobHourly)
	if err != nil {
		return err
	}
	return m.hourlyRun(ctx, run)
}

// StartHourly registers an hourly run and executes it in the background,
// returning the new run's ID.
func (m *Manager) StartHourly(ctx context.Context) (string, error) {
	run, err := m.tracker.Begin(ctx, models.JobHourly)
	if err != nil {
		return "", err
	}
	go func() {
		if err := m.hourlyRun(context.WithoutCancel(ctx), run); err != nil {
			logging.Error().Err(err).Str("run_id", run.ID).Msg("Triggered hourly run failed")
		}
	}()
	return run.ID, nil
}

func (m *Manager) hourlyRun(ctx context.Context, run *runs.Run) error {
	budget := time.Duration(m.cfg.Jobs.Hourly.TimeoutMinutes) * time.Minute
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	end := m.now().UTC()
	var start time.Time
	if lookback := m.cfg.Jobs.Hourly.LookbackHours; lookback > 0 {
		start = end.Add(-time.Duration(lookback) * time.Hour)
	} else {
		start = end.Truncate(24 * time.Hour)
	}

	var items []clickflare.ReportItem
	pullStart := m.now()
	err := retryWithBackoff(ctx, "clickflare_hourly", m.retryAttempts, m.retryDelay, func() error {
		var pullErr error
		items, pullErr = m.primary.PullHourly(ctx, start, end)
		return pullErr
	})
	metrics.RecordPull("clickflare_hourly", m.now().Sub(pullStart), len(items), err)
	if err != nil {
		return m.fail(ctx, run, fmt.Errorf("clickflare hourly: %w", err))
	}
	run.Logf("pulled %d hourly rows for %s to %s", len(items),
		start.Format(clickflare.DateTimeFormat), end.Format(clickflare.DateTimeFormat))

	rows, dropped := resolveHourlyRows(items, m.loc)
	if dropped > 0 {
		run.Logf("dropped %d hourly rows without parseable hour", dropped)
	}

	inserted, err := m.db.ReplaceHourlyWindow(ctx, start, end, rows)
	if err != nil {
		return m.fail(ctx, run, fmt.Errorf("replace hourly window: %w", err))
	}

	cutoff := end.AddDate(0, 0, -m.cfg.Jobs.Hourly.RetentionDays)
	pruned, err := m.db.PruneHourlyBefore(ctx, cutoff)
	if err != nil {
		logging.Warn().Err(err).Msg("Hourly retention prune failed")
	} else if pruned > 0 {
		run.Logf("pruned %d hourly rows before %s", pruned, cutoff.Format(models.DateFormat))
	}

	return run.Finish(ctx, models.RunStatusSuccess, int64(inserted), nil)
}

func (m *Manager) fail(ctx context.Context, run *runs.Run, err error) error {
	if finishErr := run.Finish(ctx, models.RunStatusFailed, 0, err); finishErr != nil {
		logging.Error().Err(finishErr).Msg("Failed to record run failure")
	}
	return err
}

// publish notifies the run publisher. Timed-out runs publish too: they
// committed rows and the daily report should pick them up.
func (m *Manager) publish(ctx context.Context, run *runs.Run, day string, campaigns int, records int64, status models.RunStatus) {
	if m.publisher == nil {
		return
	}
	event := models.RunCompleted{
		Job:        models.JobMerge,
		RunID:      run.ID,
		ReportDate: day,
		Campaigns:  campaigns,
		Records:    records,
		Status:     status,
		OccurredAt: m.now().UTC(),
	}
	if err := m.publisher.PublishRunCompleted(ctx, event); err != nil {
		logging.Error().Err(err).Str("date", day).Msg("Failed to publish run-completed event")
	}
}

func (m *Manager) resolvePrimary(items []clickflare.ReportItem) ([]models.CanonicalRow, int) {
	rows := make([]models.CanonicalRow, 0, len(items))
	dropped := 0
	for _, item := range items {
		row, err := m.resolver.ResolvePrimary(item)
		if err != nil {
			dropped++
			metrics.RecordAllocationDrop("bad_date")
			logging.Warn().Err(err).Str("media", item.TrafficSourceName).Msg("Dropping report row")
			continue
		}
		rows = append(rows, row)
	}
	return rows, dropped
}
