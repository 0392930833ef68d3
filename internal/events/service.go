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

	"github.com/adreckon/adreckon/internal/config"
	"github.com/adreckon/adreckon/internal/logging"
)

const provisionTimeout = 15 * time.Second

// Service owns the run-events bus: the optional embedded NATS server, the
// stream, the publisher the merge manager uses, and the reconciliation
// subscriber. Serve runs the consumer loop under the supervision tree.
type Service struct {
	cfg        config.EventsConfig
	syncer     CanonicalSyncer
	server     *EmbeddedServer
	publisher  *Publisher
	subscriber *Subscriber
}

// NewService brings the bus up synchronously: embedded server if configured,
// stream provisioning, publisher, subscriber. The publisher is usable as soon
// as NewService returns, so the merge manager can be wired before the
// supervisor starts.
func NewService(cfg config.EventsConfig, syncer CanonicalSyncer) (*Service, error) {
	s := &Service{cfg: cfg, syncer: syncer}
	logger := newWatermillLogger(logging.WithComponent("events"))

	url := cfg.URL
	if cfg.EmbeddedServer {
		opts, err := ServerOptionsFromURL(cfg.URL, cfg.StoreDir, cfg.MaxMemory, cfg.MaxStore)
		if err != nil {
			return nil, err
		}
		srv, err := NewEmbeddedServer(opts)
		if err != nil {
			return nil, err
		}
		s.server = srv
		url = srv.ClientURL()
	}

	if err := s.provisionStream(url); err != nil {
		s.teardown()
		return nil, err
	}

	pub, err := NewPublisher(url, logger)
	if err != nil {
		s.teardown()
		return nil, err
	}
	s.publisher = pub

	subCfg := DefaultSubscriberConfig(url)
	if cfg.DurableName != "" {
		subCfg.DurableName = cfg.DurableName
	}
	if cfg.SubscribersCount > 0 {
		subCfg.SubscribersCount = cfg.SubscribersCount
	}
	sub, err := NewSubscriber(subCfg, logger)
	if err != nil {
		s.teardown()
		return nil, err
	}
	s.subscriber = sub

	logging.Info().
		Str("component", "events").
		Str("url", url).
		Bool("embedded", cfg.EmbeddedServer).
		Str("stream", StreamName).
		Msg("Run-events bus ready")

	return s, nil
}

// provisionStream creates the stream over a short-lived connection so the
// publisher and subscriber can bind to it.
func (s *Service) provisionStream(url string) error {
	nc, err := nats.Connect(url, nats.RetryOnFailedConnect(true), nats.Timeout(provisionTimeout))
	if err != nil {
		return fmt.Errorf("connect for stream provisioning: %w", err)
	}
	defer nc.Close()

	mgr, err := NewStreamManager(nc, s.cfg.StreamRetentionDays)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), provisionTimeout)
	defer cancel()
	if _, err := mgr.EnsureStream(ctx); err != nil {
		return err
	}
	return nil
}

// Publisher returns the run-completed publisher for manager wiring.
func (s *Service) Publisher() *Publisher {
	return s.publisher
}

// Serve consumes run events until context cancellation. Implements
// suture.Service; a transient subscribe failure returns an error and the
// supervisor restarts the loop against the still-running bus.
func (s *Service) Serve(ctx context.Context) error {
	err := s.subscriber.Run(ctx, s.syncer)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// String implements fmt.Stringer for supervisor logging.
func (s *Service) String() string {
	return "run-events"
}

// Close tears the bus down: publisher, subscriber, then the embedded server.
func (s *Service) Close() error {
	return s.teardown()
}

func (s *Service) teardown() error {
	var firstErr error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.publisher = nil
	}
	if s.subscriber != nil {
		if err := s.subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.subscriber = nil
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.server.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		cancel()
		s.server = nil
	}
	return firstErr
}
