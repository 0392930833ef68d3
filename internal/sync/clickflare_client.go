// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/adreckon/adreckon/internal/config"
	"github.com/adreckon/adreckon/internal/logging"
	"github.com/adreckon/adreckon/internal/metrics"
	"github.com/adreckon/adreckon/internal/models"
	"github.com/adreckon/adreckon/internal/models/clickflare"
)

// reportEndpoint is the custom report endpoint, appended to the configured
// base URL.
const reportEndpoint = "/api/v1/report/custom"

// maxReportPages caps pagination as a runaway guard; a report this deep means
// the upstream stopped honoring pageSize.
const maxReportPages = 100

// maxErrorBodySize limits how much of an error response body is read for
// error messages.
const maxErrorBodySize = 64 * 1024

// Report dimension sets. The daily report runs twice because the upstream
// cannot group by advertiser and landing dimensions in one request: pass 1
// carries the advertiser network, pass 2 re-groups by landing page and is
// joined back onto pass 1 rows by ReportItem.RowKey.
var (
	dailyGroupBy = []string{
		"date", "trafficSourceID", "offerID", "affiliateNetworkID",
		"trackingField1", "trackingField2", "trackingField3",
		"trackingField4", "trackingField5", "trackingField6",
	}
	dailyMetrics = []string{
		"trafficSourceName", "offerName", "affiliateNetworkName",
		"uniqueVisits", "uniqueClicks", "conversions", "revenue", "cost",
	}

	landingGroupBy = []string{
		"date", "trafficSourceID", "offerID", "landingID",
		"trackingField1", "trackingField2", "trackingField3",
		"trackingField4", "trackingField5", "trackingField6",
	}
	landingMetrics = []string{"landingName", "uniqueVisits"}

	hourlyGroupBy = []string{
		"dateTime", "trafficSourceID", "offerID", "affiliateNetworkID",
		"trackingField1", "trackingField2", "trackingField3",
		"trackingField4", "trackingField5", "trackingField6",
	}
	hourlyMetrics = []string{
		"trafficSourceName", "offerName", "affiliateNetworkName",
		"uniqueVisits", "uniqueClicks", "conversions", "revenue", "cost",
	}
)

// ClickFlareClient pulls the ClickFlare custom report. Requests are paced by
// a client-side rate limiter and HTTP 429 responses are retried with
// exponential backoff, honoring Retry-After when present.
type ClickFlareClient struct {
	baseURL  string
	apiKey   string
	pageSize int
	timezone string
	loc      *time.Location
	client   *http.Client
	limiter  *rate.Limiter

	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClickFlareClient builds a client from cfg. Report times are expressed in
// loc, the report timezone the upstream account is keyed to.
func NewClickFlareClient(cfg *config.ClickFlareConfig, timezone string, loc *time.Location) *ClickFlareClient {
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 2
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &ClickFlareClient{
		baseURL:  cfg.URL,
		apiKey:   cfg.APIKey,
		pageSize: pageSize,
		timezone: timezone,
		loc:      loc,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:        rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries:     3,
		retryBaseDelay: time.Second,
	}
}

// PullDailyAdvertiser pulls pass 1 of the daily report: full advertiser
// dimensions with all metric columns.
func (c *ClickFlareClient) PullDailyAdvertiser(ctx context.Context, date time.Time) ([]clickflare.ReportItem, error) {
	return c.pullPaged(ctx, "clickflare_daily", clickflare.ReportRequest{
		StartDate: date.Format(models.DateFormat) + " 00:00:00",
		EndDate:   date.Format(models.DateFormat) + " 23:59:59",
		GroupBy:   dailyGroupBy,
		Metrics:   dailyMetrics,
		Timezone:  c.timezone,
		SortBy:    dailyMetrics[0],
		OrderType: "desc",
	})
}

// PullDailyLanding pulls pass 2 of the daily report: the same row identity
// regrouped by landing page. Only the landing columns of the result are used.
func (c *ClickFlareClient) PullDailyLanding(ctx context.Context, date time.Time) ([]clickflare.ReportItem, error) {
	return c.pullPaged(ctx, "clickflare_landing", clickflare.ReportRequest{
		StartDate: date.Format(models.DateFormat) + " 00:00:00",
		EndDate:   date.Format(models.DateFormat) + " 23:59:59",
		GroupBy:   landingGroupBy,
		Metrics:   landingMetrics,
		Timezone:  c.timezone,
		SortBy:    landingMetrics[0],
		OrderType: "desc",
	})
}

// PullHourly pulls the hourly report for the UTC window [startUTC, endUTC).
// The request is expressed in the report timezone; returned rows carry their
// hour in the dateTime column, also in the report timezone.
func (c *ClickFlareClient) PullHourly(ctx context.Context, startUTC, endUTC time.Time) ([]clickflare.ReportItem, error) {
	return c.pullPaged(ctx, "clickflare_hourly", clickflare.ReportRequest{
		StartDate: startUTC.In(c.loc).Format(clickflare.DateTimeFormat),
		EndDate:   endUTC.In(c.loc).Format(clickflare.DateTimeFormat),
		GroupBy:   hourlyGroupBy,
		Metrics:   hourlyMetrics,
		Timezone:  c.timezone,
		SortBy:    "uniqueVisits",
		OrderType: "desc",
	})
}

// pullPaged fetches every page of req. Pagination is 1-based and stops on an
// empty page or a short page.
func (c *ClickFlareClient) pullPaged(ctx context.Context, source string, req clickflare.ReportRequest) ([]clickflare.ReportItem, error) {
	req.PageSize = c.pageSize
	req.IncludeAll = false

	var all []clickflare.ReportItem
	pages := 0
	for page := 1; page <= maxReportPages; page++ {
		req.Page = page

		items, err := c.fetchPage(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		pages++
		all = append(all, items...)

		if len(items) == 0 || len(items) < c.pageSize {
			break
		}
	}

	metrics.RecordPullPages(source, pages)
	logging.Debug().
		Str("source", source).
		Int("pages", pages).
		Int("rows", len(all)).
		Msg("Report pull complete")
	return all, nil
}

// fetchPage posts one report request and decodes a single page. HTTP 429 is
// retried with exponential backoff; other non-200 statuses fail immediately.
func (c *ClickFlareClient) fetchPage(ctx context.Context, req clickflare.ReportRequest) ([]clickflare.ReportItem, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode report request: %w", err)
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+reportEndpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("api-key", c.apiKey)

		resp, err := c.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("report request failed: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			if attempt == c.maxRetries {
				return nil, fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
			}

			delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
					delay = seconds
				}
			}

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if resp.StatusCode != http.StatusOK {
			errBody := readBodyForError(resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("report request returned HTTP %d: %s", resp.StatusCode, errBody)
		}

		var page clickflare.ReportResponse
		err = json.NewDecoder(resp.Body).Decode(&page)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode report page: %w", err)
		}
		return page.Items, nil
	}

	return nil, fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
}

// mergeLandingDims joins pass-2 landing dimensions onto pass-1 rows by the
// shared row key. First pass-2 row per key wins; pass-1 rows with no landing
// match are returned untouched.
func mergeLandingDims(primary, landing []clickflare.ReportItem) []clickflare.ReportItem {
	if len(landing) == 0 {
		return primary
	}

	type landingDims struct {
		id, name string
	}
	lookup := make(map[string]landingDims, len(landing))
	for _, row := range landing {
		key := row.RowKey()
		if _, ok := lookup[key]; !ok {
			lookup[key] = landingDims{id: row.LandingID, name: row.LandingName}
		}
	}

	merged := 0
	out := make([]clickflare.ReportItem, len(primary))
	for i, row := range primary {
		if dims, ok := lookup[row.RowKey()]; ok {
			row.LandingID = dims.id
			row.LandingName = dims.name
			merged++
		}
		out[i] = row
	}

	logging.Debug().
		Int("primary", len(primary)).
		Int("landing", len(landing)).
		Int("merged", merged).
		Msg("Merged landing dimensions")
	return out
}

// readBodyForError reads at most maxErrorBodySize bytes for inclusion in an
// error message.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte(fmt.Sprintf("<failed to read body: %v>", err))
	}
	return body
}
