// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package main is the entry point for the Threatcast broker.

Threatcast accepts threat events from producers (WebSocket, HTTP or NATS),
keeps a bounded window of recent events in memory and fans them out to
dashboard subscribers over two WebSocket transports: a room-based protocol
(/ws/rooms) and a typed stream protocol (/ws/stream).

# Application Architecture

Long-running components run under a Suture v4 supervisor tree:

	RootSupervisor ("threatcast")
	├── DataSupervisor ("data-layer")
	│   ├── Event store GC (optional, STORE_ENABLED)
	│   └── Persister (optional, STORE_ENABLED)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Rooms and stream hubs
	│   ├── Event, topology and stats cadences
	│   ├── Liveness monitors (one per transport)
	│   └── Embedded NATS server and ingest consumer (optional, NATS_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (REST, WebSocket and /metrics)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog, bridged to slog for the supervisor
 3. Broker core: event and alert buffers, registry, broadcaster
 4. Event store: BadgerDB behind a circuit breaker (optional)
 5. Ingestor: validation, dedup, scoring, buffering
 6. WebSocket hubs and NATS ingestion (optional)
 7. HTTP router and supervisor tree

# Failure Handling

Optional collaborators never stop the broker. A failing store or scorer is
isolated by a circuit breaker and REST queries fall back to the in-memory
buffer. The only fatal condition is the HTTP listener failing to bind, which
terminates the tree and exits with status 1.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains within
SHUTDOWN_TIMEOUT, pending events are flushed to the store and the
embedded NATS server is shut down.

# Example Usage

	export STORE_PATH=/var/lib/threatcast/events
	export CORS_ORIGINS=https://soc.example.com
	./threatcast

With NATS ingestion on an embedded server:

	export NATS_ENABLED=true
	export NATS_EMBEDDED=true
	./threatcast
*/
package main
