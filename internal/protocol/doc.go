// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package protocol defines the wire format of both dashboard transports.

Two message profiles share one broker core:

Rooms transport (/ws/rooms) frames every message as

	{"event": "<name>", "data": <json>}

Clients send join-threat-room, join-analytics-room, join-network-room,
update-filters, leave-room and ping. The server sends connect, joined-room,
threatUpdate, threatBatchUpdate, criticalThreatAlert, realTimeStatsUpdate,
networkTopologyUpdate and pong. Unknown events and unjoinable rooms are
ignored.

Stream transport (/ws/stream) frames every message as

	{"type": "<TYPE>", "data": <json>}

Clients send SUBSCRIBE_THREAT_STREAM, SUBSCRIBE_NETWORK_TOPOLOGY,
REQUEST_REAL_TIME_STATS and UNSUBSCRIBE. The server sends connected,
THREAT_STREAM_UPDATE, NETWORK_TOPOLOGY_UPDATE, REAL_TIME_STATS_UPDATE,
SUBSCRIPTION_CONFIRMED, and an error frame for malformed requests.

# Inbound Messages

Client frames decode exactly once into the closed Inbound set (JoinRoom,
UpdateFilters, LeaveRoom, Ping, RequestStats) which handlers dispatch with
a type switch:

	msg, err := protocol.DecodeStreamFrame(raw)
	if err != nil {
	    // reply with an error frame
	}
	switch m := msg.(type) {
	case protocol.JoinRoom:
	    registry.Join(id, m.Room, m.Filter)
	}

# Outbound Frames

RoomCodec and StreamCodec implement broker.Codec so the broadcaster can
serialize each payload once per transport. They also encode the
connection-scoped control frames (connect, joined-room, confirmation,
error, pong).
*/
package protocol
