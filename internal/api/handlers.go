// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package api

import (
	"context"
	"time"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/middleware"
	"github.com/tomtom215/threatcast/internal/models"
	"github.com/tomtom215/threatcast/internal/store"
)

// ReadinessCheck reports whether an optional component can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// HandlerConfig tunes the REST handlers.
type HandlerConfig struct {
	// IngestBodyLimit caps POST /api/v1/ingest bodies in bytes.
	IngestBodyLimit int64
	// DefaultLimit is used when ?limit= is absent.
	DefaultLimit int
	// TopK bounds the source ranking in buffer-computed stats.
	TopK int
	// StoreTimeout bounds one store query.
	StoreTimeout time.Duration
}

func (c *HandlerConfig) applyDefaults() {
	if c.IngestBodyLimit <= 0 {
		c.IngestBodyLimit = 1 << 20
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 100
	}
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
}

// Dependencies are the broker components the handlers read from.
// Store, Latency and Checks are optional.
type Dependencies struct {
	Registry    *broker.Registry
	Events      *broker.EventBuffer
	Broadcaster *broker.Broadcaster
	Ingestor    *broker.Ingestor
	Store       store.Store
	Liveness    []*broker.LivenessMonitor
	Latency     *middleware.LatencyMonitor
	Checks      map[string]ReadinessCheck
}

// Handler serves the REST endpoints.
type Handler struct {
	cfg         HandlerConfig
	registry    *broker.Registry
	events      *broker.EventBuffer
	broadcaster *broker.Broadcaster
	ingestor    *broker.Ingestor
	store       store.Store
	liveness    map[models.Transport]*broker.LivenessMonitor
	latency     *middleware.LatencyMonitor
	checks      map[string]ReadinessCheck
	startTime   time.Time
	now         func() time.Time
}

// NewHandler creates the REST handler set.
func NewHandler(cfg HandlerConfig, deps Dependencies) *Handler {
	cfg.applyDefaults()

	liveness := make(map[models.Transport]*broker.LivenessMonitor, len(deps.Liveness))
	for _, m := range deps.Liveness {
		if m != nil {
			liveness[m.Transport()] = m
		}
	}

	return &Handler{
		cfg:         cfg,
		registry:    deps.Registry,
		events:      deps.Events,
		broadcaster: deps.Broadcaster,
		ingestor:    deps.Ingestor,
		store:       deps.Store,
		liveness:    liveness,
		latency:     deps.Latency,
		checks:      deps.Checks,
		startTime:   time.Now(),
		now:         time.Now,
	}
}
