// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package websocket serves the dashboard and producer WebSocket endpoints.

Key Components:

  - Client: one upgraded gorilla/websocket connection implementing
    broker.Conn, with a bounded send queue drained by a single write pump
  - Hub: per-transport lifecycle loop that registers clients with the broker
    registry and the transport's liveness monitor
  - Server: HTTP handlers for /ws/rooms, /ws/stream and /ws/ingest

Architecture:

	            ┌──────────────┐
	producer ──►│ /ws/ingest   │──► broker.Ingestor ──► EventBuffer
	            └──────────────┘                          │
	                                                      ▼
	┌──────────┐   register   ┌──────────┐   fan-out  ┌──────────────┐
	│ Hub      │─────────────►│ Registry │◄───────────│ Broadcaster  │
	│ (rooms)  │              └──────────┘            └──────┬───────┘
	│ (stream) │◄──── evict ── LivenessMonitor               │ Send
	└──────────┘                                             ▼
	                                                  Client.send chan
	                                                         │
	                                                   WritePump ──► socket

Each client runs a read pump on the handler goroutine and a write pump on
its own goroutine. Frames are serialized by the broadcaster once per
transport and queued without blocking; a full queue reports
broker.ErrSendBufferFull and the liveness monitor pings the connection out
of cycle.

Heartbeats on dashboard connections come from the liveness monitor rather
than the write pump, so a missed pong evicts the connection within one
ping period. Producer connections ping on their own ticker.
*/
package websocket
