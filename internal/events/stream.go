// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the JetStream stream holding run events.
	StreamName = "RUN_EVENTS"

	// TopicRunCompleted is the subject merge runs publish on.
	TopicRunCompleted = "runs.completed"

	// duplicateWindow bounds Nats-Msg-Id deduplication. Re-publishing the
	// same run ID inside this window is dropped server-side.
	duplicateWindow = 2 * time.Minute
)

// streamSubjects covers every run-event subject under one stream.
var streamSubjects = []string{"runs.>"}

// StreamManager handles JetStream stream lifecycle for run events.
type StreamManager struct {
	js        jetstream.JetStream
	retention time.Duration
}

// NewStreamManager creates a stream manager on an existing connection.
func NewStreamManager(nc *nats.Conn, retentionDays int) (*StreamManager, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	if retentionDays < 1 {
		retentionDays = 7
	}
	return &StreamManager{
		js:        js,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}, nil
}

// EnsureStream creates the run-events stream, or updates it if the
// configuration drifted. Both publisher and subscriber bind to this stream,
// so it must exist before either connects.
func (m *StreamManager) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	cfg := jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   streamSubjects,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     m.retention,
		MaxMsgs:    -1,
		Duplicates: duplicateWindow,
		Replicas:   1,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}

	if _, err := m.js.Stream(ctx, StreamName); err == nil {
		stream, err := m.js.UpdateStream(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", StreamName, err)
		}
		return stream, nil
	}

	stream, err := m.js.CreateStream(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", StreamName, err)
	}
	return stream, nil
}

// StreamInfo returns current stream state for health reporting.
func (m *StreamManager) StreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", StreamName, err)
	}
	return stream.Info(ctx)
}
