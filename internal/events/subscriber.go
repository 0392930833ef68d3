// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/adreckon/adreckon/internal/metrics"
	"github.com/adreckon/adreckon/internal/models"
)

// CanonicalSyncer rebuilds one date's daily-report rows from canonical data.
// Satisfied by the reconciliation store.
type CanonicalSyncer interface {
	SyncFromCanonical(ctx context.Context, date time.Time) (synced, skipped int, err error)
}

// SubscriberConfig holds durable consumer settings.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
}

// DefaultSubscriberConfig returns production defaults for the run-events
// consumer.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		DurableName:      "reconcile-sync",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    100,
		CloseTimeout:     30 * time.Second,
	}
}

// Subscriber is a durable JetStream consumer of run events.
type Subscriber struct {
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
}

// NewSubscriber creates a durable subscriber bound to the run-events stream.
func NewSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Subscriber disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Subscriber reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(cfg.MaxAckPending),
		natsgo.AckWait(cfg.AckWaitTimeout),
		// New events only. The scheduled safety sync covers anything
		// published while no consumer existed.
		natsgo.DeliverNew(),
		natsgo.BindStream(StreamName),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false, // bound to the pre-created stream
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Subscriber{subscriber: sub, logger: logger}, nil
}

// Run consumes run-completed events until context cancellation, invoking the
// syncer for each merge run's report date. Malformed events are acked and
// dropped; sync failures are nacked for redelivery.
func (s *Subscriber) Run(ctx context.Context, syncer CanonicalSyncer) error {
	messages, err := s.subscriber.Subscribe(ctx, TopicRunCompleted)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", TopicRunCompleted, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.handle(ctx, syncer, msg)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, syncer CanonicalSyncer, msg *message.Message) {
	start := time.Now()

	var event models.RunCompleted
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		s.logger.Error("Dropping undecodable run event", err, watermill.LogFields{
			"message_uuid": msg.UUID,
		})
		msg.Ack()
		return
	}

	if event.Job != models.JobMerge {
		msg.Ack()
		return
	}

	date, err := time.ParseInLocation(models.DateFormat, event.ReportDate, time.UTC)
	if err != nil {
		s.logger.Error("Dropping run event with bad report date", err, watermill.LogFields{
			"message_uuid": msg.UUID,
			"report_date":  event.ReportDate,
		})
		msg.Ack()
		return
	}

	synced, skipped, err := syncer.SyncFromCanonical(ctx, date)
	if err != nil {
		s.logger.Error("Daily report sync failed, will redeliver", err, watermill.LogFields{
			"run_id":      event.RunID,
			"report_date": event.ReportDate,
		})
		msg.Nack()
		return
	}

	s.logger.Info("Daily report synced from run event", watermill.LogFields{
		"run_id":      event.RunID,
		"report_date": event.ReportDate,
		"synced":      synced,
		"skipped":     skipped,
	})
	metrics.RecordEventConsumed(TopicRunCompleted, time.Since(start))
	msg.Ack()
}

// Close shuts down the subscriber.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}
