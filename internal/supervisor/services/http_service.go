// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/threatcast/internal/logging"
)

// HTTPServer is the subset of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server under supervision.
//
// Listener failures are the only process-fatal condition in the broker, so a
// ListenAndServe error is wrapped in suture.ErrTerminateSupervisorTree instead
// of being retried.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPServerService wraps server. A non-positive timeout defaults to 10s.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Serve implements suture.Service.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- h.listen() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	if err := h.shutdown(); err != nil {
		return err
	}
	<-done
	return ctx.Err()
}

// listen maps a clean close to nil and any other listener error to one that
// stops the whole tree.
func (h *HTTPServerService) listen() error {
	err := h.server.ListenAndServe()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	logging.Error().Err(err).Str("service", h.name).Msg("HTTP listener failed")
	return fmt.Errorf("%w: %s: %v", suture.ErrTerminateSupervisorTree, h.name, err)
}

func (h *HTTPServerService) shutdown() error {
	// the Serve context is already canceled
	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	start := time.Now()
	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown: %w", h.name, err)
	}
	logging.Info().Str("service", h.name).Dur("took", time.Since(start)).Msg("HTTP server drained")
	return nil
}

func (h *HTTPServerService) String() string {
	return h.name
}
