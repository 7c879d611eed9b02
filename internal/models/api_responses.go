// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package models

import (
	"time"
)

// APIResponse is the envelope every REST endpoint returns.
//
// Status is "success" with Data populated, or "error" with Error populated.
//
//	{
//	  "status": "success",
//	  "data": [{"id": "...", "severity": "HIGH", ...}],
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z", "source": "buffer"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata.
//
// Source records where event data came from: "store" when the persistence
// collaborator answered, "buffer" when the broker fell back to its in-memory
// ring (degraded mode).
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Source      string    `json:"source,omitempty"`
	Degraded    bool      `json:"degraded,omitempty"`
}

// APIError represents an error response with structured details.
//
// Common error codes:
//   - VALIDATION_ERROR: invalid input parameters or event body
//   - STORE_UNAVAILABLE: persistence collaborator is down
//   - RATE_LIMIT_EXCEEDED: too many requests
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// IngestResponse reports the outcome of a batch ingest request.
type IngestResponse struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	IDs      []string `json:"ids"`
	Errors   []string `json:"errors,omitempty"`
}

// HealthResponse is returned by the readiness probe.
type HealthResponse struct {
	Status      string            `json:"status"`
	Components  map[string]string `json:"components"`
	BufferSize  int               `json:"bufferSize"`
	Connections int               `json:"connections"`
	Uptime      string            `json:"uptime"`
}
