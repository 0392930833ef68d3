// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/adreckon/adreckon/internal/models"
)

type fakeSyncer struct {
	mu     sync.Mutex
	dates  []time.Time
	err    error
	called chan time.Time
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{called: make(chan time.Time, 16)}
}

func (f *fakeSyncer) SyncFromCanonical(_ context.Context, date time.Time) (int, int, error) {
	f.mu.Lock()
	f.dates = append(f.dates, date)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return 0, 0, err
	}
	f.called <- date
	return 3, 1, nil
}

func (f *fakeSyncer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dates)
}

func TestServerOptionsFromURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{name: "full url", url: "nats://10.0.0.5:5222", wantHost: "10.0.0.5", wantPort: 5222},
		{name: "empty url keeps defaults", url: "", wantHost: "127.0.0.1", wantPort: 4222},
		{name: "no port keeps default port", url: "nats://broker.internal", wantHost: "broker.internal", wantPort: 4222},
		{name: "garbage", url: "nats://host:notaport", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ServerOptionsFromURL(tt.url, "/tmp/js", 1<<20, 1<<20)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.url)
				}
				return
			}
			if err != nil {
				t.Fatalf("ServerOptionsFromURL(%q): %v", tt.url, err)
			}
			if opts.Host != tt.wantHost {
				t.Errorf("host = %q, want %q", opts.Host, tt.wantHost)
			}
			if opts.Port != tt.wantPort {
				t.Errorf("port = %d, want %d", opts.Port, tt.wantPort)
			}
			if opts.StoreDir != "/tmp/js" {
				t.Errorf("store dir = %q", opts.StoreDir)
			}
		})
	}
}

func runEventMessage(t *testing.T, event models.RunCompleted) *message.Message {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return message.NewMessage(event.RunID, data)
}

func TestSubscriberHandleSyncsMergeDate(t *testing.T) {
	s := &Subscriber{logger: watermill.NewStdLogger(false, false)}
	syncer := newFakeSyncer()

	msg := runEventMessage(t, models.RunCompleted{
		Job:        models.JobMerge,
		RunID:      "run-1",
		ReportDate: "2026-03-10",
		Records:    42,
		Status:     models.RunStatusSuccess,
		OccurredAt: time.Now().UTC(),
	})

	s.handle(context.Background(), syncer, msg)

	if got := syncer.callCount(); got != 1 {
		t.Fatalf("sync calls = %d, want 1", got)
	}
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !syncer.dates[0].Equal(want) {
		t.Errorf("synced date = %v, want %v", syncer.dates[0], want)
	}
	select {
	case <-msg.Acked():
	default:
		t.Error("message was not acked")
	}
}

func TestSubscriberHandleDropsMalformed(t *testing.T) {
	s := &Subscriber{logger: watermill.NewStdLogger(false, false)}

	tests := []struct {
		name string
		msg  *message.Message
	}{
		{name: "bad payload", msg: message.NewMessage("m1", []byte("{not json"))},
		{name: "bad date", msg: runEventMessage(t, models.RunCompleted{
			Job: models.JobMerge, RunID: "run-2", ReportDate: "10/03/2026",
		})},
		{name: "hourly job ignored", msg: runEventMessage(t, models.RunCompleted{
			Job: models.JobHourly, RunID: "run-3", ReportDate: "2026-03-10",
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := newFakeSyncer()
			s.handle(context.Background(), syncer, tt.msg)
			if got := syncer.callCount(); got != 0 {
				t.Errorf("sync calls = %d, want 0", got)
			}
			select {
			case <-tt.msg.Acked():
			default:
				t.Error("malformed message should be acked, not redelivered")
			}
		})
	}
}

func TestSubscriberHandleNacksSyncFailure(t *testing.T) {
	s := &Subscriber{logger: watermill.NewStdLogger(false, false)}
	syncer := newFakeSyncer()
	syncer.err = fmt.Errorf("warehouse busy")

	msg := runEventMessage(t, models.RunCompleted{
		Job: models.JobMerge, RunID: "run-4", ReportDate: "2026-03-10",
	})

	s.handle(context.Background(), syncer, msg)

	select {
	case <-msg.Nacked():
	default:
		t.Error("failed sync should nack for redelivery")
	}
}

// TestBusRoundTrip exercises the full path: embedded server, stream
// provisioning, JetStream publish, durable consume, reconciliation sync.
func TestBusRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS round trip in short mode")
	}

	srv, err := NewEmbeddedServer(ServerOptions{
		Host:      "127.0.0.1",
		Port:      -1, // random port
		StoreDir:  t.TempDir(),
		MaxMemory: 64 << 20,
		MaxStore:  64 << 20,
	})
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	if !srv.JetStreamEnabled() {
		t.Fatal("JetStream not enabled on embedded server")
	}
	url := srv.ClientURL()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()

	mgr, err := NewStreamManager(nc, 1)
	if err != nil {
		t.Fatalf("stream manager: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := mgr.EnsureStream(ctx); err != nil {
		t.Fatalf("ensure stream: %v", err)
	}
	// Idempotent on re-run.
	if _, err := mgr.EnsureStream(ctx); err != nil {
		t.Fatalf("ensure stream again: %v", err)
	}

	logger := watermill.NewStdLogger(false, false)
	pub, err := NewPublisher(url, logger)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	defer pub.Close()

	subCfg := DefaultSubscriberConfig(url)
	subCfg.AckWaitTimeout = 5 * time.Second
	sub, err := NewSubscriber(subCfg, logger)
	if err != nil {
		t.Fatalf("subscriber: %v", err)
	}
	defer sub.Close()

	syncer := newFakeSyncer()
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	done := make(chan error, 1)
	go func() { done <- sub.Run(runCtx, syncer) }()

	// DeliverNew: give the consumer a moment to bind before publishing.
	time.Sleep(500 * time.Millisecond)

	event := models.RunCompleted{
		Job:        models.JobMerge,
		RunID:      "run-roundtrip",
		ReportDate: "2026-03-10",
		Records:    7,
		Status:     models.RunStatusSuccess,
		OccurredAt: time.Now().UTC(),
	}
	if err := pub.PublishRunCompleted(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case date := <-syncer.called:
		want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		if !date.Equal(want) {
			t.Errorf("synced date = %v, want %v", date, want)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for run event to reach the syncer")
	}

	runCancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("subscriber did not stop after cancel")
	}
}

func TestPublisherClosedRejectsPublish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}

	srv, err := NewEmbeddedServer(ServerOptions{
		Host:      "127.0.0.1",
		Port:      -1,
		StoreDir:  t.TempDir(),
		MaxMemory: 64 << 20,
		MaxStore:  64 << 20,
	})
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	mgr, err := NewStreamManager(nc, 1)
	if err != nil {
		t.Fatalf("stream manager: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := mgr.EnsureStream(ctx); err != nil {
		t.Fatalf("ensure stream: %v", err)
	}

	pub, err := NewPublisher(srv.ClientURL(), nil)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}

	err = pub.PublishRunCompleted(ctx, models.RunCompleted{
		Job: models.JobMerge, RunID: "run-x", ReportDate: "2026-03-10",
	})
	if err == nil {
		t.Fatal("expected error publishing on closed publisher")
	}
}
