// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/models"
)

// Keys are prefix + big-endian ReceivedAt nanoseconds + event id, so a
// forward scan is chronological.
const prefixEvent = "evt:"

// BadgerStore is a Store backed by BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	config Config

	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// Open opens (or creates) the event database.
func Open(cfg Config) (*BadgerStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = DefaultConfig().QueryLimit
	}
	if cfg.GCRatio == 0 {
		cfg.GCRatio = DefaultConfig().GCRatio
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("retention", cfg.Retention).
		Msg("event store opened")

	return &BadgerStore{db: db, config: cfg, now: time.Now}, nil
}

func eventKey(e *models.Event) []byte {
	key := make([]byte, 0, len(prefixEvent)+8+len(e.ID))
	key = append(key, prefixEvent...)
	key = binary.BigEndian.AppendUint64(key, uint64(e.ReceivedAt.UnixNano()))
	return append(key, e.ID...)
}

// seekEnd is past every event key; reverse iteration starts here.
func seekEnd() []byte {
	key := []byte(prefixEvent)
	for i := 0; i < 9; i++ {
		key = append(key, 0xff)
	}
	return key
}

func (s *BadgerStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Save implements Store.
func (s *BadgerStore) Save(ctx context.Context, e *models.Event) error {
	if e == nil {
		return ErrNilEvent
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(eventKey(e), data)
		if s.config.Retention > 0 {
			entry = entry.WithTTL(s.config.Retention)
		}
		return txn.SetEntry(entry)
	})
}

// scanNewest walks events newest first until fn returns false.
func (s *BadgerStore) scanNewest(ctx context.Context, fn func(e *models.Event) bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixEvent)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seekEnd()); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e models.Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", fmt.Sprintf("%x", it.Item().Key())).Msg("skipping unreadable stored event")
				continue
			}
			if !fn(&e) {
				return nil
			}
		}
		return nil
	})
}

// Recent implements Store.
func (s *BadgerStore) Recent(ctx context.Context, n int) ([]*models.Event, error) {
	return s.Find(ctx, n, nil)
}

// Find implements Store. At most QueryLimit events are scanned, matching or
// not, so a selective match over a large store may return fewer than n.
func (s *BadgerStore) Find(ctx context.Context, n int, match func(*models.Event) bool) ([]*models.Event, error) {
	if n <= 0 {
		return []*models.Event{}, nil
	}
	if n > s.config.QueryLimit {
		n = s.config.QueryLimit
	}

	out := make([]*models.Event, 0, n)
	scanned := 0
	err := s.scanNewest(ctx, func(e *models.Event) bool {
		scanned++
		if match == nil || match(e) {
			out = append(out, e)
		}
		return len(out) < n && scanned < s.config.QueryLimit
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent events: %w", err)
	}
	return out, nil
}

// Stats implements Store.
func (s *BadgerStore) Stats(ctx context.Context, windowHours int) (*models.StoredStats, error) {
	if windowHours <= 0 {
		windowHours = 24
	}
	cutoff := s.now().Add(-time.Duration(windowHours) * time.Hour)

	stats := &models.StoredStats{
		WindowHours: windowHours,
		BySeverity:  make(map[string]int, len(models.AllSeverities)),
		ByCategory:  make(map[string]int),
	}
	for _, sev := range models.AllSeverities {
		stats.BySeverity[sev.String()] = 0
	}

	sources := make(map[string]int)
	var scoreSum float64
	err := s.scanNewest(ctx, func(e *models.Event) bool {
		if e.ReceivedAt.Before(cutoff) {
			return false
		}
		stats.TotalEvents++
		stats.BySeverity[e.Severity.String()]++
		if e.Category != "" {
			stats.ByCategory[e.Category]++
		}
		if e.Blocked {
			stats.Blocked++
		}
		scoreSum += e.Score
		sources[e.SourceAddress]++
		return stats.TotalEvents < s.config.QueryLimit
	})
	if err != nil {
		return nil, fmt.Errorf("scan stats window: %w", err)
	}

	if stats.TotalEvents > 0 {
		stats.MeanScore = scoreSum / float64(stats.TotalEvents)
	}
	stats.TopSources = broker.TopSources(sources, 10)
	return stats, nil
}

// RunGC reclaims value-log space until Badger reports nothing to rewrite.
func (s *BadgerStore) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.config.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(s.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Serve runs value-log GC on the configured interval until ctx is canceled.
func (s *BadgerStore) Serve(ctx context.Context) error {
	if s.config.GCInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(s.config.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("event store GC failed")
			}
		}
	}
}

// String names the GC service for supervisor logs.
func (s *BadgerStore) String() string {
	return "event-store-gc"
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
