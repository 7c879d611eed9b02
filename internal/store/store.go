// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

// Package store is the persistence collaborator. The broker never reads from
// it on the hot path; events are saved asynchronously by the Persister and
// read back only by the REST API.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/threatcast/internal/models"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")

	// ErrNilEvent is returned when Save is called with a nil event.
	ErrNilEvent = errors.New("event cannot be nil")
)

// Store persists events and answers historical queries.
type Store interface {
	Save(ctx context.Context, e *models.Event) error
	// Recent returns up to n events, newest first.
	Recent(ctx context.Context, n int) ([]*models.Event, error)
	// Find returns up to n events admitted by match, newest first. A nil
	// match admits every event.
	Find(ctx context.Context, n int, match func(*models.Event) bool) ([]*models.Event, error)
	// Stats aggregates events received in the trailing windowHours.
	Stats(ctx context.Context, windowHours int) (*models.StoredStats, error)
	Close() error
}

// Config holds BadgerDB settings.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// Retention is the TTL applied to every saved event. Zero keeps events forever.
	Retention  time.Duration
	SyncWrites bool
	// GCInterval is how often value-log GC runs. Zero disables it.
	GCInterval time.Duration
	GCRatio    float64
	// QueryLimit caps the number of events Recent, Find and Stats scan.
	QueryLimit int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Path:       "/data/threatcast/events",
		Retention:  7 * 24 * time.Hour,
		GCInterval: 10 * time.Minute,
		GCRatio:    0.5,
		QueryLimit: 100000,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return fmt.Errorf("store path is required unless running in memory")
	}
	if c.Retention < 0 {
		return fmt.Errorf("store retention must not be negative")
	}
	if c.GCRatio < 0 || c.GCRatio >= 1 {
		return fmt.Errorf("store gc ratio must be in [0,1), got %v", c.GCRatio)
	}
	return nil
}
