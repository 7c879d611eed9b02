// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package store

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/metrics"
	"github.com/tomtom215/threatcast/internal/models"
)

// DefaultQueueSize bounds the persistence backlog.
const DefaultQueueSize = 4096

// Persister saves accepted events in the background. It implements
// broker.EventSink: Enqueue never blocks and drops the event when the queue
// is full. Store failures are logged (throttled) and the event is lost; the
// broker keeps serving from memory.
type Persister struct {
	store        Store
	queue        chan *models.Event
	drainTimeout time.Duration

	failLog rate.Sometimes
	dropLog rate.Sometimes
}

// NewPersister creates a persister over s.
func NewPersister(s Store, queueSize int) *Persister {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Persister{
		store:        s,
		queue:        make(chan *models.Event, queueSize),
		drainTimeout: 5 * time.Second,
		failLog:      rate.Sometimes{First: 5, Interval: 30 * time.Second},
		dropLog:      rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

// Enqueue implements broker.EventSink.
func (p *Persister) Enqueue(e *models.Event) {
	select {
	case p.queue <- e:
		metrics.PersistQueueDepth.Set(float64(len(p.queue)))
	default:
		metrics.PersistDropped.Inc()
		p.dropLog.Do(func() {
			logging.Warn().Int("capacity", cap(p.queue)).Msg("persistence queue full, dropping events")
		})
	}
}

// Pending returns the queue depth.
func (p *Persister) Pending() int {
	return len(p.queue)
}

// Serve saves queued events until ctx is canceled, then drains what is left
// within the drain timeout.
func (p *Persister) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return ctx.Err()
		case e := <-p.queue:
			p.save(ctx, e)
		}
	}
}

func (p *Persister) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), p.drainTimeout)
	defer cancel()

	saved := 0
	for {
		select {
		case e := <-p.queue:
			p.save(ctx, e)
			saved++
		default:
			if saved > 0 {
				logging.Info().Int("events", saved).Msg("drained persistence queue")
			}
			return
		}
		if ctx.Err() != nil {
			logging.Warn().Int("abandoned", len(p.queue)).Msg("persistence drain timed out")
			return
		}
	}
}

func (p *Persister) save(ctx context.Context, e *models.Event) {
	metrics.PersistQueueDepth.Set(float64(len(p.queue)))
	if err := p.store.Save(ctx, e); err != nil {
		p.failLog.Do(func() {
			logging.Warn().Err(err).Str("event_id", e.ID).Msg("failed to persist event, continuing from memory")
		})
	}
}

// String names the service for supervisor logs.
func (p *Persister) String() string {
	return "event-persister"
}
