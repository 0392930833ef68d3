// Adreckon - Ad Spend ETL and Reconciliation Engine
// Copyright 2026 Adreckon Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adreckon/adreckon

package events

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const serverReadyTimeout = 30 * time.Second

// EmbeddedServer wraps an in-process NATS server with lifecycle management.
// It gives single-binary deployments a self-contained JetStream instance
// without an external broker.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// ServerOptions configure the embedded NATS server.
type ServerOptions struct {
	Host      string
	Port      int
	StoreDir  string
	MaxMemory int64
	MaxStore  int64
}

// ServerOptionsFromURL derives listen host/port from a NATS URL like
// nats://127.0.0.1:4222. Port -1 asks the server for a random port,
// which tests use.
func ServerOptionsFromURL(rawURL, storeDir string, maxMemory, maxStore int64) (ServerOptions, error) {
	opts := ServerOptions{
		Host:      "127.0.0.1",
		Port:      4222,
		StoreDir:  storeDir,
		MaxMemory: maxMemory,
		MaxStore:  maxStore,
	}
	if rawURL == "" {
		return opts, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ServerOptions{}, fmt.Errorf("parse NATS URL %q: %w", rawURL, err)
	}
	if h := u.Hostname(); h != "" {
		opts.Host = h
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return ServerOptions{}, fmt.Errorf("parse NATS port %q: %w", p, err)
		}
		opts.Port = port
	}
	return opts, nil
}

// NewEmbeddedServer creates and starts an embedded NATS server with
// JetStream enabled. Returns an error if the server is not accepting
// connections within 30 seconds.
func NewEmbeddedServer(opts ServerOptions) (*EmbeddedServer, error) {
	srvOpts := &server.Options{
		ServerName:         "adreckon-events",
		Host:               opts.Host,
		Port:               opts.Port,
		JetStream:          true,
		StoreDir:           opts.StoreDir,
		JetStreamMaxMemory: opts.MaxMemory,
		JetStreamMaxStore:  opts.MaxStore,
		DontListen:         false,
		Debug:              false,
		Trace:              false,
		NoLog:              false,
		MaxPayload:         1 * 1024 * 1024, // run events are tiny; 1MB is generous
	}

	ns, err := server.NewServer(srvOpts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	ns.ConfigureLogger()

	go ns.Start()

	if !ns.ReadyForConnections(serverReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within %s", serverReadyTimeout)
	}

	return &EmbeddedServer{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the connection URL for clients. When the server was
// started with a random port this is the only way to learn it.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server, waiting for in-flight messages unless the
// context is already done.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.server.WaitForShutdown()
		return nil
	}
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// JetStreamEnabled reports whether JetStream came up.
func (s *EmbeddedServer) JetStreamEnabled() bool {
	return s.server.JetStreamEnabled()
}
