// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import (
	"sort"
	"time"

	"github.com/tomtom215/threatcast/internal/models"
)

// ComputeStats aggregates events that fall in the trailing window ending at now.
// Events outside the window are ignored. BySeverity always carries all four keys.
func ComputeStats(events []*models.Event, window time.Duration, topK int, now time.Time) *models.RealTimeStats {
	if window <= 0 {
		window = time.Minute
	}
	cutoff := now.Add(-window)

	stats := &models.RealTimeStats{
		WindowSeconds: int(window / time.Second),
		BySeverity:    make(map[string]int, len(models.AllSeverities)),
		TopSources:    []models.SourceCount{},
		GeneratedAt:   now,
	}
	for _, s := range models.AllSeverities {
		stats.BySeverity[s.String()] = 0
	}

	sources := make(map[string]int)
	var scoreSum float64
	for _, e := range events {
		if e.ReceivedAt.Before(cutoff) {
			continue
		}
		stats.TotalEvents++
		stats.BySeverity[e.Severity.String()]++
		scoreSum += e.Score
		if e.Blocked {
			stats.BlockedCount++
		}
		sources[e.SourceAddress]++
	}

	if stats.TotalEvents > 0 {
		stats.MeanScore = scoreSum / float64(stats.TotalEvents)
	}
	stats.EventsPerMinute = float64(stats.TotalEvents) / window.Minutes()
	stats.TopSources = TopSources(sources, topK)
	return stats
}

// TopSources ranks addresses by count, breaking ties by address.
func TopSources(counts map[string]int, k int) []models.SourceCount {
	ranked := make([]models.SourceCount, 0, len(counts))
	for addr, n := range counts {
		ranked = append(ranked, models.SourceCount{Address: addr, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Address < ranked[j].Address
	})
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// ComputeStoredStats builds the store-shaped aggregates from buffered events.
// It answers historical stats queries while the store is unavailable; the
// result only covers what the ring buffer still holds.
func ComputeStoredStats(events []*models.Event, windowHours, topK int, now time.Time) *models.StoredStats {
	if windowHours <= 0 {
		windowHours = 24
	}
	cutoff := now.Add(-time.Duration(windowHours) * time.Hour)

	stats := &models.StoredStats{
		WindowHours: windowHours,
		BySeverity:  make(map[string]int, len(models.AllSeverities)),
		ByCategory:  make(map[string]int),
		TopSources:  []models.SourceCount{},
	}
	for _, s := range models.AllSeverities {
		stats.BySeverity[s.String()] = 0
	}

	sources := make(map[string]int)
	var scoreSum float64
	for _, e := range events {
		if e.ReceivedAt.Before(cutoff) {
			continue
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
	}

	if stats.TotalEvents > 0 {
		stats.MeanScore = scoreSum / float64(stats.TotalEvents)
	}
	stats.TopSources = TopSources(sources, topK)
	return stats
}
