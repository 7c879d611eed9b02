// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package cache provides bounded in-memory structures used on the ingest path.

# IDWindow

IDWindow remembers producer-supplied event ids for a fixed TTL so that a
retransmitted envelope (WebSocket reconnect, NATS redelivery) is admitted
once:

	seen := cache.NewIDWindow(10000, 5*time.Minute)
	if seen.Seen(id) {
	    // duplicate, drop it
	}

Capacity is a hard bound: the least recently seen id is evicted first, and
expired ids are dropped lazily on lookup. Hit and miss counts are exported
for metrics.

# Thread Safety

All methods are safe for concurrent use.
*/
package cache
