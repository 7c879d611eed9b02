// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package cache

import (
	"container/list"
	"sync"
	"time"
)

type seenEntry struct {
	id        string
	expiresAt time.Time
}

// IDWindow remembers recently ingested event ids so a producer retransmit or
// a NATS redelivery is not broadcast twice.
//
// Entries expire after ttl and the least recently seen id is evicted once
// capacity is reached. All operations are O(1).
type IDWindow struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // front = most recently seen
	now      func() time.Time

	hits   int64
	misses int64
}

// NewIDWindow creates a window holding up to capacity ids for ttl each.
func NewIDWindow(capacity int, ttl time.Duration) *IDWindow {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &IDWindow{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

// Seen reports whether id was recorded within the ttl. A new id is recorded.
func (w *IDWindow) Seen(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if el, ok := w.items[id]; ok {
		entry := el.Value.(*seenEntry)
		if now.Before(entry.expiresAt) {
			w.order.MoveToFront(el)
			w.hits++
			return true
		}
		w.order.Remove(el)
		delete(w.items, id)
	}

	w.items[id] = w.order.PushFront(&seenEntry{id: id, expiresAt: now.Add(w.ttl)})
	for len(w.items) > w.capacity {
		w.evictOldest()
	}
	w.misses++
	return false
}

// Forget removes an id so it can be ingested again.
func (w *IDWindow) Forget(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	el, ok := w.items[id]
	if !ok {
		return false
	}
	w.order.Remove(el)
	delete(w.items, id)
	return true
}

// CleanupExpired drops expired ids and returns how many were removed.
func (w *IDWindow) CleanupExpired() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	removed := 0
	for el := w.order.Back(); el != nil; {
		prev := el.Prev()
		entry := el.Value.(*seenEntry)
		if !now.Before(entry.expiresAt) {
			w.order.Remove(el)
			delete(w.items, entry.id)
			removed++
		}
		el = prev
	}
	return removed
}

// Len returns the number of remembered ids.
func (w *IDWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// Stats returns duplicate hits, first sightings and current size.
func (w *IDWindow) Stats() (hits, misses int64, size int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hits, w.misses, len(w.items)
}

func (w *IDWindow) evictOldest() {
	el := w.order.Back()
	if el == nil {
		return
	}
	w.order.Remove(el)
	delete(w.items, el.Value.(*seenEntry).id)
}
