// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/adreckon/adreckon/internal/logging"
	"github.com/adreckon/adreckon/internal/metrics"
)

// retryWithBackoff runs fn, retrying up to retries more times on failure
// with the delay doubling from baseDelay: three retries at a 2s base wait
// 2s, 4s, 8s. Waits are cancellable; a cancelled context returns ctx.Err()
// rather than the last attempt's error.
func retryWithBackoff(ctx context.Context, source string, retries int, baseDelay time.Duration, fn func() error) error {
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if attempt == retries {
			break
		}

		delay := baseDelay * time.Duration(1<<uint(attempt))
		metrics.RecordPullRetry(source)
		logging.Warn().
			Err(lastErr).
			Str("source", source).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Pull attempt failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s: all %d attempts failed: %w", source, retries+1, lastErr)
}
