// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import (
	"math"
	"testing"
	"time"

	"github.com/tomtom215/threatcast/internal/models"
)

func TestComputeStats(t *testing.T) {
	now := baseTime.Add(time.Minute)
	mk := func(src string, sev models.Severity, score float64, blocked bool, age time.Duration) *models.Event {
		e := testEvent("", sev, score)
		e.SourceAddress = src
		e.Blocked = blocked
		e.ReceivedAt = now.Add(-age)
		return e
	}

	events := []*models.Event{
		mk("a", models.SeverityHigh, 0.7, true, 5*time.Second),
		mk("b", models.SeverityLow, 0.1, false, 10*time.Second),
		mk("a", models.SeverityCritical, 0.9, false, 20*time.Second),
		mk("c", models.SeverityCritical, 0.9, false, 2*time.Minute), // outside window
	}

	stats := ComputeStats(events, time.Minute, 10, now)

	if stats.TotalEvents != 3 {
		t.Errorf("TotalEvents = %d, want 3", stats.TotalEvents)
	}
	if stats.EventsPerMinute != 3 {
		t.Errorf("EventsPerMinute = %v, want 3", stats.EventsPerMinute)
	}
	if stats.BlockedCount != 1 {
		t.Errorf("BlockedCount = %d, want 1", stats.BlockedCount)
	}
	if math.Abs(stats.MeanScore-(0.7+0.1+0.9)/3) > 1e-9 {
		t.Errorf("MeanScore = %v", stats.MeanScore)
	}
	want := map[string]int{"LOW": 1, "MEDIUM": 0, "HIGH": 1, "CRITICAL": 1}
	for k, v := range want {
		if stats.BySeverity[k] != v {
			t.Errorf("BySeverity[%s] = %d, want %d", k, stats.BySeverity[k], v)
		}
	}
	if len(stats.TopSources) != 2 || stats.TopSources[0].Address != "a" || stats.TopSources[0].Count != 2 {
		t.Errorf("TopSources = %+v", stats.TopSources)
	}
	if stats.WindowSeconds != 60 {
		t.Errorf("WindowSeconds = %d", stats.WindowSeconds)
	}
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(nil, 0, 5, baseTime)
	if stats.TotalEvents != 0 || stats.MeanScore != 0 || stats.EventsPerMinute != 0 {
		t.Errorf("empty stats = %+v", stats)
	}
	if len(stats.BySeverity) != 4 {
		t.Errorf("BySeverity keys = %d, want 4", len(stats.BySeverity))
	}
	if stats.TopSources == nil {
		t.Error("TopSources should be empty, not nil")
	}
}

func TestTopSources_TiesAndLimit(t *testing.T) {
	got := TopSources(map[string]int{"z": 3, "b": 3, "a": 1, "c": 5}, 3)
	want := []string{"c", "b", "z"}
	if len(got) != len(want) {
		t.Fatalf("TopSources() = %+v", got)
	}
	for i, w := range want {
		if got[i].Address != w {
			t.Errorf("TopSources[%d] = %s, want %s", i, got[i].Address, w)
		}
	}
}

func TestComputeStoredStats(t *testing.T) {
	now := baseTime.Add(48 * time.Hour)
	mk := func(src, cat string, sev models.Severity, age time.Duration) *models.Event {
		e := testEvent("", sev, 0.5)
		e.SourceAddress = src
		e.Category = cat
		e.ReceivedAt = now.Add(-age)
		return e
	}

	events := []*models.Event{
		mk("a", "scan", models.SeverityHigh, time.Hour),
		mk("a", "scan", models.SeverityLow, 2*time.Hour),
		mk("b", "", models.SeverityMedium, 3*time.Hour),
		mk("c", "dos", models.SeverityCritical, 30*time.Hour), // outside window
	}

	stats := ComputeStoredStats(events, 24, 1, now)

	if stats.WindowHours != 24 {
		t.Errorf("WindowHours = %d, want 24", stats.WindowHours)
	}
	if stats.TotalEvents != 3 {
		t.Errorf("TotalEvents = %d, want 3", stats.TotalEvents)
	}
	if stats.ByCategory["scan"] != 2 || len(stats.ByCategory) != 1 {
		t.Errorf("ByCategory = %v, want only scan=2", stats.ByCategory)
	}
	if stats.BySeverity["CRITICAL"] != 0 {
		t.Errorf("BySeverity[CRITICAL] = %d, want 0", stats.BySeverity["CRITICAL"])
	}
	if len(stats.TopSources) != 1 || stats.TopSources[0].Address != "a" {
		t.Errorf("TopSources = %v, want [a]", stats.TopSources)
	}

	if got := ComputeStoredStats(nil, 0, 10, now); got.WindowHours != 24 || got.TotalEvents != 0 {
		t.Errorf("empty = %+v, want default window and no events", got)
	}
}
