// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import (
	"sync"
	"time"

	"github.com/tomtom215/threatcast/internal/models"
)

// Default buffer capacities.
const (
	DefaultStreamCapacity = 1000
	DefaultAlertCapacity  = 50
)

// EventBuffer is a fixed-capacity ring of the most recent events.
// The oldest event is evicted when a new one arrives at capacity.
//
// Append is O(1). Reads copy the requested window under a read lock so a
// concurrent append can never corrupt a returned slice. Stored events are
// shared pointers and must not be mutated.
type EventBuffer struct {
	mu    sync.RWMutex
	ring  []*models.Event
	head  int // index of the next write
	size  int
	total uint64
}

// NewEventBuffer creates a buffer holding up to capacity events.
// Non-positive capacities fall back to DefaultStreamCapacity.
func NewEventBuffer(capacity int) *EventBuffer {
	if capacity <= 0 {
		capacity = DefaultStreamCapacity
	}
	return &EventBuffer{ring: make([]*models.Event, capacity)}
}

// Append adds an event, evicting the oldest when full.
func (b *EventBuffer) Append(e *models.Event) {
	b.mu.Lock()
	b.ring[b.head] = e
	b.head = (b.head + 1) % len(b.ring)
	if b.size < len(b.ring) {
		b.size++
	}
	b.total++
	b.mu.Unlock()
}

// Recent returns up to k events, most recent first.
func (b *EventBuffer) Recent(k int) []*models.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if k > b.size {
		k = b.size
	}
	if k <= 0 {
		return []*models.Event{}
	}

	out := make([]*models.Event, k)
	idx := b.head
	for i := 0; i < k; i++ {
		idx--
		if idx < 0 {
			idx = len(b.ring) - 1
		}
		out[i] = b.ring[idx]
	}
	return out
}

// Since returns events received at or after t, most recent first.
func (b *EventBuffer) Since(t time.Time) []*models.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*models.Event, 0)
	idx := b.head
	for i := 0; i < b.size; i++ {
		idx--
		if idx < 0 {
			idx = len(b.ring) - 1
		}
		e := b.ring[idx]
		if e.ReceivedAt.Before(t) {
			break
		}
		out = append(out, e)
	}
	return out
}

// Len returns the number of events currently held.
func (b *EventBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the buffer capacity.
func (b *EventBuffer) Cap() int {
	return len(b.ring)
}

// Total returns the number of events ever appended, including evicted ones.
func (b *EventBuffer) Total() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}
