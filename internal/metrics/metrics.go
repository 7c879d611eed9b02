// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - event ingestion and buffering
// - WebSocket connections and fan-out
// - liveness eviction
// - collaborator calls (store, scorer) and their circuit breakers
// - NATS ingestion
// - HTTP API latency

var (
	// Ingestion Metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcast_events_ingested_total",
			Help: "Total number of events accepted by the ingestion adapter",
		},
		[]string{"source", "severity"},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcast_events_rejected_total",
			Help: "Total number of malformed producer events dropped",
		},
		[]string{"source", "field"},
	)

	BufferSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threatcast_buffer_events",
			Help: "Number of events currently held in each ring buffer",
		},
		[]string{"buffer"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threatcast_websocket_connections",
			Help: "Current number of WebSocket connections",
		},
		[]string{"transport"},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcast_websocket_messages_sent_total",
			Help: "Total number of frames enqueued to WebSocket clients",
		},
		[]string{"transport", "kind"},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcast_websocket_messages_received_total",
			Help: "Total number of frames received from WebSocket clients",
		},
		[]string{"transport"},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcast_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"transport", "error_type"},
	)

	LivenessEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcast_liveness_evictions_total",
			Help: "Total number of connections evicted after a missed heartbeat",
		},
		[]string{"transport"},
	)

	BroadcastDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threatcast_broadcast_duration_seconds",
			Help:    "Duration of one broadcast pass",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"cadence"},
	)

	// Collaborator Metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcast_store_operations_total",
			Help: "Total number of persistence store operations",
		},
		[]string{"operation", "status"},
	)

	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threatcast_store_operation_duration_seconds",
			Help:    "Duration of persistence store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	PersistQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threatcast_persist_queue_depth",
			Help: "Number of events waiting to be persisted",
		},
	)

	PersistDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatcast_persist_dropped_total",
			Help: "Total number of events not persisted because the queue was full",
		},
	)

	ScorerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcast_scorer_calls_total",
			Help: "Total number of scorer collaborator calls",
		},
		[]string{"status"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "threatcast_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcast_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcast_circuit_breaker_requests_total",
			Help: "Total number of calls through a circuit breaker by outcome",
		},
		[]string{"name", "result"},
	)

	// NATS Metrics
	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatcast_nats_messages_consumed_total",
			Help: "Total number of messages consumed from NATS",
		},
	)

	NATSMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "threatcast_nats_messages_published_total",
			Help: "Total number of messages published to NATS",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcast_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "threatcast_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "threatcast_api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)

	APIRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threatcast_api_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiters",
		},
		[]string{"group"},
	)
)

// RecordIngested records an accepted event.
func RecordIngested(source, severity string) {
	EventsIngested.WithLabelValues(source, severity).Inc()
}

// RecordRejected records a dropped malformed event.
func RecordRejected(source, field string) {
	if field == "" {
		field = "unknown"
	}
	EventsRejected.WithLabelValues(source, field).Inc()
}

// RecordSent records a frame enqueued to a client.
func RecordSent(transport, kind string) {
	WSMessagesSent.WithLabelValues(transport, kind).Inc()
}

// RecordSendError records a failed enqueue or write.
func RecordSendError(transport, errorType string) {
	WSErrors.WithLabelValues(transport, errorType).Inc()
}

// RecordEviction records a liveness eviction.
func RecordEviction(transport string) {
	LivenessEvictions.WithLabelValues(transport).Inc()
}

// RecordBroadcast records how long one broadcast pass took.
func RecordBroadcast(cadence string, duration time.Duration) {
	BroadcastDuration.WithLabelValues(cadence).Observe(duration.Seconds())
}

// RecordStoreOperation records a store call and its outcome.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StoreOperations.WithLabelValues(operation, status).Inc()
	StoreDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordScorerCall records a scorer call outcome.
func RecordScorerCall(err error) {
	if err != nil {
		ScorerCalls.WithLabelValues("error").Inc()
		return
	}
	ScorerCalls.WithLabelValues("success").Inc()
}

// RecordBreakerTransition records a circuit breaker state change.
// States are encoded 0=closed, 1=half-open, 2=open.
func RecordBreakerTransition(name, from, to string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordBreakerRequest records the outcome of a call made through a circuit
// breaker: success, failure or rejected.
func RecordBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordNATSConsumed records a message taken from the ingest subject.
func RecordNATSConsumed() {
	NATSMessagesConsumed.Inc()
}

// RecordNATSPublish records a message published by a producer.
func RecordNATSPublish() {
	NATSMessagesPublished.Inc()
}

// RecordRateLimited records a request rejected by a rate limiter group.
func RecordRateLimited(group string) {
	APIRateLimited.WithLabelValues(group).Inc()
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
