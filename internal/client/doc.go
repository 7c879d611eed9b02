// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package client is the Go client for the broker's WebSocket endpoints.

ReconnectingConn owns one socket and keeps it open:

	DISCONNECTED -> CONNECTING -> CONNECTED -> RECONNECTING -> CONNECTED
	                                                       \-> DISCONNECTED (on Close)

Reconnection uses a fixed delay (5s by default) and never gives up. Every
successful (re)connect runs the OnConnect hook so subscriptions are replayed
on the new socket.

DashboardClient holds one connection per transport, subscribes to every room
and decodes frames into callbacks. Producer sends envelopes to /ws/ingest.

The Sampler rates the overall link every 10 seconds: all connections alive is
excellent, some is good, none is poor. The result is then capped by the worst
measured round trip (under 100ms excellent, under 300ms good, under 1s fair,
otherwise poor).
*/
package client
