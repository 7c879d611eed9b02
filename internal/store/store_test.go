// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/models"
	"github.com/tomtom215/threatcast/internal/resilience"
)

//nolint:gochecknoinits // quiet logs in tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

var (
	_ Store            = (*BadgerStore)(nil)
	_ Store            = (*ResilientStore)(nil)
	_ broker.EventSink = (*Persister)(nil)
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.now = func() time.Time { return baseTime }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func event(id string, at time.Time, sev models.Severity, score float64) *models.Event {
	return &models.Event{
		ID:                 id,
		Timestamp:          at,
		ReceivedAt:         at,
		SourceAddress:      "198.51.100." + id,
		DestinationAddress: "10.0.0.1",
		Category:           "PORT_SCAN",
		Severity:           sev,
		Score:              score,
	}
}

func TestBadgerStore_RecentNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// saved out of order; keys sort by ReceivedAt
	for _, i := range []int{3, 1, 4, 2, 5} {
		e := event(fmt.Sprint(i), baseTime.Add(time.Duration(i)*time.Second), models.SeverityLow, 0.1)
		if err := s.Save(ctx, e); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	got, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	want := []string{"5", "4", "3"}
	if len(got) != len(want) {
		t.Fatalf("Recent() returned %d events, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Recent()[%d] = %s, want %s", i, got[i].ID, id)
		}
	}

	all, _ := s.Recent(ctx, 100)
	if len(all) != 5 {
		t.Errorf("Recent(100) = %d events, want 5", len(all))
	}
	if none, _ := s.Recent(ctx, 0); len(none) != 0 {
		t.Errorf("Recent(0) = %d events", len(none))
	}
}

func TestBadgerStore_FindFillsLimitWithMatches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// newest six: three CRITICAL interleaved with LOW, then older CRITICALs
	for i := 1; i <= 10; i++ {
		sev := models.SeverityLow
		if i%2 == 0 {
			sev = models.SeverityCritical
		}
		e := event(fmt.Sprint(i), baseTime.Add(time.Duration(i)*time.Second), sev, 0.1)
		if err := s.Save(ctx, e); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	critical := func(e *models.Event) bool { return e.Severity == models.SeverityCritical }
	got, err := s.Find(ctx, 4, critical)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	want := []string{"10", "8", "6", "4"}
	if len(got) != len(want) {
		t.Fatalf("Find() returned %d events, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Find()[%d] = %s, want %s", i, got[i].ID, id)
		}
	}

	if all, _ := s.Find(ctx, 100, nil); len(all) != 10 {
		t.Errorf("Find(nil match) = %d events, want 10", len(all))
	}
}

func TestBadgerStore_SameInstantDistinctIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, event("a", baseTime, models.SeverityLow, 0))
	_ = s.Save(ctx, event("b", baseTime, models.SeverityLow, 0))

	got, _ := s.Recent(ctx, 10)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
}

func TestBadgerStore_Stats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := event("1", baseTime.Add(-3*time.Hour), models.SeverityCritical, 1)
	recent := []*models.Event{
		event("2", baseTime.Add(-30*time.Minute), models.SeverityHigh, 0.7),
		event("3", baseTime.Add(-20*time.Minute), models.SeverityLow, 0.1),
		event("3b", baseTime.Add(-10*time.Minute), models.SeverityLow, 0.1),
	}
	recent[2].SourceAddress = recent[1].SourceAddress
	recent[2].Blocked = true
	recent[2].Category = ""

	for _, e := range append(recent, old) {
		if err := s.Save(ctx, e); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	stats, err := s.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.WindowHours != 1 || stats.TotalEvents != 3 {
		t.Errorf("window = %d total = %d, want 1 and 3", stats.WindowHours, stats.TotalEvents)
	}
	if stats.BySeverity["CRITICAL"] != 0 || stats.BySeverity["HIGH"] != 1 || stats.BySeverity["LOW"] != 2 {
		t.Errorf("BySeverity = %v", stats.BySeverity)
	}
	if _, ok := stats.BySeverity["MEDIUM"]; !ok {
		t.Error("BySeverity should carry every severity key")
	}
	if stats.ByCategory["PORT_SCAN"] != 2 {
		t.Errorf("ByCategory = %v", stats.ByCategory)
	}
	if stats.Blocked != 1 {
		t.Errorf("Blocked = %d, want 1", stats.Blocked)
	}
	if stats.MeanScore < 0.29 || stats.MeanScore > 0.31 {
		t.Errorf("MeanScore = %v, want 0.3", stats.MeanScore)
	}
	if len(stats.TopSources) == 0 || stats.TopSources[0].Count != 2 {
		t.Errorf("TopSources = %+v", stats.TopSources)
	}

	wide, _ := s.Stats(ctx, 0)
	if wide.WindowHours != 24 || wide.TotalEvents != 4 {
		t.Errorf("default window: hours=%d total=%d", wide.WindowHours, wide.TotalEvents)
	}
}

func TestBadgerStore_Closed(t *testing.T) {
	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := s.Save(context.Background(), event("x", baseTime, models.SeverityLow, 0)); !errors.Is(err, ErrClosed) {
		t.Errorf("Save() after close = %v, want ErrClosed", err)
	}
	if _, err := s.Recent(context.Background(), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Recent() after close = %v, want ErrClosed", err)
	}
}

func TestBadgerStore_NilEvent(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Errorf("err = %v, want ErrNilEvent", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"in memory without path", Config{InMemory: true}, false},
		{"missing path", Config{}, true},
		{"negative retention", Config{InMemory: true, Retention: -time.Second}, true},
		{"gc ratio too high", Config{InMemory: true, GCRatio: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// memStore is an in-process Store for resilience and persister tests.
type memStore struct {
	mu     sync.Mutex
	events []*models.Event
	err    error
	saved  chan struct{}
}

func newMemStore() *memStore {
	return &memStore{saved: make(chan struct{}, 1024)}
}

func (m *memStore) Save(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	m.saved <- struct{}{}
	return nil
}

func (m *memStore) Recent(ctx context.Context, n int) ([]*models.Event, error) {
	return m.Find(ctx, n, nil)
}

func (m *memStore) Find(_ context.Context, n int, match func(*models.Event) bool) ([]*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*models.Event, 0, n)
	for i := len(m.events) - 1; i >= 0 && len(out) < n; i-- {
		if match == nil || match(m.events[i]) {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memStore) Stats(_ context.Context, windowHours int) (*models.StoredStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &models.StoredStats{WindowHours: windowHours, TotalEvents: len(m.events)}, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestResilientStore_WrapsFailures(t *testing.T) {
	inner := newMemStore()
	cfg := resilience.DefaultBreakerConfig("store-test")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	s := NewResilientStore(inner, cfg, time.Second)
	ctx := context.Background()

	if err := s.Save(ctx, event("1", baseTime, models.SeverityLow, 0)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Recent(ctx, 5)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent() = %d events, %v", len(got), err)
	}
	stats, err := s.Stats(ctx, 2)
	if err != nil || stats.WindowHours != 2 {
		t.Fatalf("Stats() = %+v, %v", stats, err)
	}

	inner.setErr(errors.New("disk full"))
	for i := 0; i < 2; i++ {
		if err := s.Save(ctx, event("x", baseTime, models.SeverityLow, 0)); !errors.Is(err, broker.ErrCollaboratorUnavailable) {
			t.Fatalf("Save() error = %v, want ErrCollaboratorUnavailable", err)
		}
	}
	if s.BreakerState() != "open" {
		t.Fatalf("BreakerState() = %s, want open", s.BreakerState())
	}

	inner.setErr(nil)
	if _, err := s.Recent(ctx, 1); !errors.Is(err, broker.ErrCollaboratorUnavailable) {
		t.Errorf("open breaker should reject, got %v", err)
	}
}

func TestPersister_SavesQueuedEvents(t *testing.T) {
	inner := newMemStore()
	p := NewPersister(inner, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()

	for i := 0; i < 5; i++ {
		p.Enqueue(event(fmt.Sprint(i), baseTime, models.SeverityLow, 0))
	}
	for i := 0; i < 5; i++ {
		select {
		case <-inner.saved:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d events persisted", inner.count())
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestPersister_DropsWhenFull(t *testing.T) {
	inner := newMemStore()
	p := NewPersister(inner, 2)

	for i := 0; i < 5; i++ {
		p.Enqueue(event(fmt.Sprint(i), baseTime, models.SeverityLow, 0))
	}
	if p.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", p.Pending())
	}
}

func TestPersister_DrainsOnShutdown(t *testing.T) {
	inner := newMemStore()
	p := NewPersister(inner, 8)
	for i := 0; i < 3; i++ {
		p.Enqueue(event(fmt.Sprint(i), baseTime, models.SeverityLow, 0))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Serve(ctx)

	if inner.count() != 3 {
		t.Errorf("persisted %d events after drain, want 3", inner.count())
	}
}

func TestPersister_StoreFailureIsNotFatal(t *testing.T) {
	inner := newMemStore()
	inner.setErr(errors.New("offline"))
	p := NewPersister(inner, 8)
	p.Enqueue(event("1", baseTime, models.SeverityLow, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v", err)
	}
	if p.Pending() != 0 {
		t.Errorf("failed event left in queue")
	}
}
