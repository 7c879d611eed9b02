// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestIDWindow_Seen(t *testing.T) {
	w := NewIDWindow(10, time.Minute)

	if w.Seen("evt-1") {
		t.Error("first sighting should not be a duplicate")
	}
	if !w.Seen("evt-1") {
		t.Error("second sighting should be a duplicate")
	}
	if w.Seen("evt-2") {
		t.Error("different id should not be a duplicate")
	}

	hits, misses, size := w.Stats()
	if hits != 1 || misses != 2 || size != 2 {
		t.Errorf("Stats() = (%d, %d, %d), want (1, 2, 2)", hits, misses, size)
	}
}

func TestIDWindow_Expiry(t *testing.T) {
	w := NewIDWindow(10, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	w.Seen("evt-1")
	now = now.Add(59 * time.Second)
	if !w.Seen("evt-1") {
		t.Error("id should still be remembered before ttl")
	}

	now = now.Add(2 * time.Minute)
	if w.Seen("evt-1") {
		t.Error("expired id should be treated as new")
	}
}

func TestIDWindow_CapacityEviction(t *testing.T) {
	w := NewIDWindow(3, time.Hour)

	for i := 0; i < 4; i++ {
		w.Seen(fmt.Sprintf("evt-%d", i))
	}

	if w.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", w.Len())
	}
	if w.Seen("evt-0") {
		t.Error("oldest id should have been evicted")
	}
}

func TestIDWindow_CleanupExpired(t *testing.T) {
	w := NewIDWindow(10, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	w.Seen("a")
	w.Seen("b")
	now = now.Add(30 * time.Second)
	w.Seen("c")
	now = now.Add(45 * time.Second)

	if removed := w.CleanupExpired(); removed != 2 {
		t.Errorf("CleanupExpired() = %d, want 2", removed)
	}
	if w.Len() != 1 {
		t.Errorf("Len() = %d, want 1", w.Len())
	}
}

func TestIDWindow_Forget(t *testing.T) {
	w := NewIDWindow(10, time.Minute)
	w.Seen("evt-1")

	if !w.Forget("evt-1") {
		t.Error("Forget should report a removed id")
	}
	if w.Forget("evt-1") {
		t.Error("Forget of an unknown id should report false")
	}
	if w.Seen("evt-1") {
		t.Error("forgotten id should be new again")
	}
}

func TestIDWindow_Concurrent(t *testing.T) {
	w := NewIDWindow(1000, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !w.Seen("shared") {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firsts != 1 {
		t.Errorf("exactly one goroutine should see the id first, got %d", firsts)
	}
}
