// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/metrics"
	"github.com/tomtom215/threatcast/internal/models"
	"github.com/tomtom215/threatcast/internal/resilience"
)

// ResilientStore guards a Store with a circuit breaker and a per-call
// timeout. Every failure, including a rejected call, is reported as
// broker.ErrCollaboratorUnavailable.
type ResilientStore struct {
	next    Store
	breaker *resilience.Breaker
	timeout time.Duration
}

// NewResilientStore wraps next. A non-positive timeout defaults to 5s.
func NewResilientStore(next Store, cfg resilience.BreakerConfig, timeout time.Duration) *ResilientStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ResilientStore{next: next, breaker: resilience.NewBreaker(cfg), timeout: timeout}
}

func (s *ResilientStore) call(ctx context.Context, op string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	metrics.RecordStoreOperation(op, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: store %s: %v", broker.ErrCollaboratorUnavailable, op, err)
	}
	return result, nil
}

// Save implements Store.
func (s *ResilientStore) Save(ctx context.Context, e *models.Event) error {
	_, err := s.call(ctx, "save", func(ctx context.Context) (interface{}, error) {
		return nil, s.next.Save(ctx, e)
	})
	return err
}

// Recent implements Store.
func (s *ResilientStore) Recent(ctx context.Context, n int) ([]*models.Event, error) {
	return resilience.Cast[[]*models.Event](s.call(ctx, "recent", func(ctx context.Context) (interface{}, error) {
		return s.next.Recent(ctx, n)
	}))
}

// Find implements Store.
func (s *ResilientStore) Find(ctx context.Context, n int, match func(*models.Event) bool) ([]*models.Event, error) {
	return resilience.Cast[[]*models.Event](s.call(ctx, "find", func(ctx context.Context) (interface{}, error) {
		return s.next.Find(ctx, n, match)
	}))
}

// Stats implements Store.
func (s *ResilientStore) Stats(ctx context.Context, windowHours int) (*models.StoredStats, error) {
	return resilience.Cast[*models.StoredStats](s.call(ctx, "stats", func(ctx context.Context) (interface{}, error) {
		return s.next.Stats(ctx, windowHours)
	}))
}

// Close implements Store. It bypasses the breaker.
func (s *ResilientStore) Close() error {
	return s.next.Close()
}

// BreakerState reports the breaker state for the readiness probe.
func (s *ResilientStore) BreakerState() string {
	return s.breaker.State()
}
