// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/threatcast/internal/logging"
)

// NATSServer is the embedded nats-server lifecycle.
type NATSServer interface {
	Shutdown(ctx context.Context) error
	IsRunning() bool
}

// EmbeddedNATSService keeps an embedded NATS server alive for the lifetime of
// the tree and shuts it down on stop.
//
// The server is started before the tree, so a server that dies cannot be
// restarted from here; the service reports it and stops with
// suture.ErrDoNotRestart. Consumers keep reconnecting on their own.
type EmbeddedNATSService struct {
	server          NATSServer
	shutdownTimeout time.Duration
	checkInterval   time.Duration
	name            string
}

// NewEmbeddedNATSService wraps server.
func NewEmbeddedNATSService(server NATSServer, shutdownTimeout time.Duration) *EmbeddedNATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EmbeddedNATSService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		checkInterval:   5 * time.Second,
		name:            "nats-server",
	}
}

// Serve implements suture.Service.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("NATS server shutdown failed: %w", err)
			}
			return ctx.Err()

		case <-ticker.C:
			if !s.server.IsRunning() {
				logging.Error().Msg("embedded NATS server stopped unexpectedly")
				return fmt.Errorf("%w: embedded NATS server is not running", suture.ErrDoNotRestart)
			}
		}
	}
}

func (s *EmbeddedNATSService) String() string {
	return s.name
}
