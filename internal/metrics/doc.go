// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package metrics provides Prometheus instrumentation for Threatcast.

Metrics are registered with the default registry through promauto and are
exposed on /metrics by the API router:

	curl http://localhost:8088/metrics

Callers use the Record* helpers rather than touching the collectors directly,
so label cardinality stays bounded (transport, severity, cadence and error
type are all small closed sets).
*/
package metrics
