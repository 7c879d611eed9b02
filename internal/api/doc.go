// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package api provides the HTTP surface of the broker.

The Router mounts three groups of routes on a Chi router:

  - Health probes: /api/v1/health/live and /api/v1/health/ready
  - Read-only REST views of broker state: recent events and alerts,
    historical stats, the current topology and real-time stats snapshots,
    live connections with their heartbeat status, and per-endpoint latency
  - Ingestion: POST /api/v1/ingest for batch producers, plus the three
    WebSocket endpoints /ws/rooms, /ws/stream and /ws/ingest

Prometheus metrics are served on /metrics.

# Middleware

Every route passes through request ID assignment, real IP extraction,
panic recovery and CORS. API routes add per-IP rate limiting via
go-chi/httprate, security headers, Prometheus instrumentation, latency
sampling and gzip compression. WebSocket upgrades have their own, stricter
rate limit and are never compressed.

# Responses

All REST handlers answer with models.APIResponse:

	{
	  "status": "success",
	  "data": {...},
	  "metadata": {"timestamp": "...", "source": "store"}
	}

When the persistence store is unavailable, history and stats queries fall
back to the in-memory event buffer and set metadata.degraded.
*/
package api
