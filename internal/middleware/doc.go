// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package middleware provides HTTP middleware for the REST API.

Key Components:

  - RequestID: X-Request-ID propagation into the logging context
  - PrometheusMetrics: request count, latency and in-flight gauge labeled
    by chi route pattern
  - Compression: gzip for REST responses of MinCompressSize bytes or more;
    WebSocket upgrades are skipped
  - LatencyMonitor: sliding window of request latencies served on
    /api/v1/latency, with slow-request logging

RequestID, PrometheusMetrics and Compression use the http.HandlerFunc
signature; the api package adapts them to chi's r.Use.
*/
package middleware
