// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/threatcast/internal/logging"
)

// DefaultSlowRequest is the latency above which a request is logged.
const DefaultSlowRequest = time.Second

// RequestSample is one observed request.
type RequestSample struct {
	Endpoint   string    `json:"endpoint"`
	Method     string    `json:"method"`
	DurationMS float64   `json:"duration_ms"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
}

// EndpointLatency aggregates the samples of one endpoint.
type EndpointLatency struct {
	Endpoint     string  `json:"endpoint"`
	RequestCount int     `json:"request_count"`
	AvgMS        float64 `json:"avg_ms"`
	P50MS        float64 `json:"p50_ms"`
	P95MS        float64 `json:"p95_ms"`
	P99MS        float64 `json:"p99_ms"`
	MaxMS        float64 `json:"max_ms"`
}

// LatencyMonitor keeps a sliding window of request samples for the
// /api/v1/latency endpoint and logs slow requests.
type LatencyMonitor struct {
	mu      sync.RWMutex
	samples []RequestSample
	max     int
	slow    time.Duration
}

// NewLatencyMonitor creates a monitor that keeps the last maxSamples requests.
func NewLatencyMonitor(maxSamples int, slow time.Duration) *LatencyMonitor {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	if slow <= 0 {
		slow = DefaultSlowRequest
	}
	return &LatencyMonitor{samples: make([]RequestSample, 0, maxSamples), max: maxSamples, slow: slow}
}

// Record adds a sample, dropping the oldest when the window is full.
func (m *LatencyMonitor) Record(s RequestSample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.samples) == m.max {
		copy(m.samples, m.samples[1:])
		m.samples = m.samples[:m.max-1]
	}
	m.samples = append(m.samples, s)
}

// Stats returns per-endpoint latency, busiest endpoint first.
func (m *LatencyMonitor) Stats() []EndpointLatency {
	m.mu.RLock()
	grouped := make(map[string][]float64)
	for _, s := range m.samples {
		key := s.Method + " " + s.Endpoint
		grouped[key] = append(grouped[key], s.DurationMS)
	}
	m.mu.RUnlock()

	stats := make([]EndpointLatency, 0, len(grouped))
	for endpoint, durations := range grouped {
		sort.Float64s(durations)
		var sum float64
		for _, d := range durations {
			sum += d
		}
		stats = append(stats, EndpointLatency{
			Endpoint:     endpoint,
			RequestCount: len(durations),
			AvgMS:        sum / float64(len(durations)),
			P50MS:        percentile(durations, 0.50),
			P95MS:        percentile(durations, 0.95),
			P99MS:        percentile(durations, 0.99),
			MaxMS:        durations[len(durations)-1],
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].RequestCount != stats[j].RequestCount {
			return stats[i].RequestCount > stats[j].RequestCount
		}
		return stats[i].Endpoint < stats[j].Endpoint
	})
	return stats
}

// Middleware records every request passing through it.
func (m *LatencyMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		elapsed := time.Since(start)
		endpoint := routePattern(r)
		m.Record(RequestSample{
			Endpoint:   endpoint,
			Method:     r.Method,
			DurationMS: float64(elapsed.Microseconds()) / 1000,
			StatusCode: wrapper.statusCode,
			Timestamp:  start,
		})

		if elapsed > m.slow {
			logging.Warn().
				Str("method", r.Method).
				Str("endpoint", endpoint).
				Dur("duration", elapsed).
				Str("request_id", GetRequestID(r)).
				Msg("Slow request detected")
		}
	})
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}
