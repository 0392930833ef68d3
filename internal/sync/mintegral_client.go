// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package sync

import (
	"context"
	"crypto/md5" //nolint:gosec // Upstream-mandated token scheme, not used for security here
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/adreckon/adreckon/internal/config"
	"github.com/adreckon/adreckon/internal/logging"
	"github.com/adreckon/adreckon/internal/metrics"
	"github.com/adreckon/adreckon/internal/models"
	"github.com/adreckon/adreckon/internal/models/mintegral"
)

// mintegralEndpoint is the async performance report endpoint, appended to the
// configured base URL.
const mintegralEndpoint = "/api/v2/reports/data"

// mintegralDimensions selects the report columns; the TSV parser expects the
// headers these dimensions produce.
const mintegralDimensions = "Campaign,Offer,Creative"

// downloadTimeout caps the type=2 download request, which returns the whole
// TSV body and runs far longer than a status poll.
const downloadTimeout = 2 * time.Minute

// Report request types.
const (
	requestTypeGenerate = 1
	requestTypeDownload = 2
)

// MintegralClient pulls the Mintegral daily performance report. The protocol
// is asynchronous: a type=1 request queues report generation, the same request
// is polled until code 200, and a type=2 request downloads the TSV.
//
// Authentication is per request: every call carries the account access key
// plus a token derived from the API key and the current unix timestamp.
type MintegralClient struct {
	baseURL       string
	statusTimeout time.Duration

	pollInterval    time.Duration
	pollMaxAttempts int
	pollTimeout     time.Duration

	client *http.Client
	now    func() time.Time
}

// NewMintegralClient builds a client from cfg. Account credentials are passed
// per pull; one client serves every configured account.
func NewMintegralClient(cfg *config.MintegralConfig) *MintegralClient {
	statusTimeout := cfg.Timeout
	if statusTimeout <= 0 {
		statusTimeout = 60 * time.Second
	}
	return &MintegralClient{
		baseURL:         cfg.URL,
		statusTimeout:   statusTimeout,
		pollInterval:    cfg.PollInterval,
		pollMaxAttempts: cfg.PollMaxAttempts,
		pollTimeout:     cfg.PollTimeout,
		client:          &http.Client{},
		now:             time.Now,
	}
}

// PullDaily pulls and parses one account's performance report for date.
func (c *MintegralClient) PullDaily(ctx context.Context, account config.MintegralAccountConfig, date time.Time) ([]mintegral.ReportRow, error) {
	day := date.Format(models.DateFormat)
	params := url.Values{
		"start_time":       {day},
		"end_time":         {day},
		"timezone":         {"0"},
		"dimension_option": {mintegralDimensions},
		"time_granularity": {"daily"},
	}

	status, err := c.reportStatus(ctx, account, params, requestTypeGenerate)
	if err != nil {
		return nil, fmt.Errorf("initiate report: %w", err)
	}

	if !status.Ready() {
		if err := c.pollUntilReady(ctx, account, params, status); err != nil {
			return nil, err
		}
	}

	body, err := c.download(ctx, account, params)
	if err != nil {
		return nil, fmt.Errorf("download report: %w", err)
	}

	rows := mintegral.ParseTSV(body)
	logging.Debug().
		Str("account", account.Name).
		Str("date", day).
		Int("rows", len(rows)).
		Msg("Mintegral report parsed")
	return rows, nil
}

// pollUntilReady repeats the generation request until the report is ready.
// Pending codes keep polling; any other code is a hard failure for this
// account. Both the attempt cap and the wall-clock budget bound the loop.
func (c *MintegralClient) pollUntilReady(ctx context.Context, account config.MintegralAccountConfig, params url.Values, last mintegral.StatusResponse) error {
	if !last.Pending() {
		return fmt.Errorf("report generation refused: code %d (%s)", last.Code, last.Msg)
	}

	start := c.now()
	for attempt := 1; attempt <= c.pollMaxAttempts; attempt++ {
		if c.now().Sub(start) > c.pollTimeout {
			metrics.RecordPollAttempts(attempt)
			return fmt.Errorf("report not ready after %s (poll timeout)", c.pollTimeout)
		}

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}

		status, err := c.reportStatus(ctx, account, params, requestTypeGenerate)
		if err != nil {
			return fmt.Errorf("poll attempt %d: %w", attempt, err)
		}
		if status.Ready() {
			metrics.RecordPollAttempts(attempt)
			return nil
		}
		if !status.Pending() {
			metrics.RecordPollAttempts(attempt)
			return fmt.Errorf("report generation failed: code %d (%s)", status.Code, status.Msg)
		}
	}

	metrics.RecordPollAttempts(c.pollMaxAttempts)
	return fmt.Errorf("report not ready after %d polls", c.pollMaxAttempts)
}

func (c *MintegralClient) reportStatus(ctx context.Context, account config.MintegralAccountConfig, params url.Values, reqType int) (mintegral.StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	resp, err := c.get(ctx, account, params, reqType)
	if err != nil {
		return mintegral.StatusResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return mintegral.StatusResponse{}, fmt.Errorf("status request returned HTTP %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}

	var status mintegral.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return mintegral.StatusResponse{}, fmt.Errorf("decode status response: %w", err)
	}
	return status, nil
}

func (c *MintegralClient) download(ctx context.Context, account config.MintegralAccountConfig, params url.Values) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	resp, err := c.get(ctx, account, params, requestTypeDownload)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned HTTP %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read report body: %w", err)
	}
	return string(body), nil
}

func (c *MintegralClient) get(ctx context.Context, account config.MintegralAccountConfig, params url.Values, reqType int) (*http.Response, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("type", strconv.Itoa(reqType))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+mintegralEndpoint+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	req.Header.Set("access-key", account.AccessKey)
	req.Header.Set("Token", mintegralToken(account.APIKey, timestamp))
	req.Header.Set("Timestamp", timestamp)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report request failed: %w", err)
	}
	return resp, nil
}

// mintegralToken derives the per-request auth token: MD5(apiKey + MD5(timestamp)).
func mintegralToken(apiKey, timestamp string) string {
	tsSum := md5.Sum([]byte(timestamp)) //nolint:gosec
	raw := apiKey + hex.EncodeToString(tsSum[:])
	sum := md5.Sum([]byte(raw)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
