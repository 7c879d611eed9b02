// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package models

import "time"

// Room names a broadcast group a connection can join.
type Room string

const (
	RoomEvents   Room = "events"
	RoomTopology Room = "topology"
	RoomStats    Room = "aggregate-stats"
)

// Valid reports whether r is a joinable room.
func (r Room) Valid() bool {
	switch r {
	case RoomEvents, RoomTopology, RoomStats:
		return true
	}
	return false
}

// Transport identifies which wire protocol a connection speaks.
type Transport string

const (
	// TransportRooms is the room-based pub/sub protocol ({event, data} frames).
	TransportRooms Transport = "rooms"
	// TransportStream is the raw low-latency protocol ({type, data} frames).
	TransportStream Transport = "stream"
)

// AddressKind classifies a network address for topology rendering.
type AddressKind string

const (
	AddressInternal AddressKind = "internal"
	AddressExternal AddressKind = "external"
	AddressServer   AddressKind = "server"
)

// TopologyNode is one address seen in the recent event window.
type TopologyNode struct {
	ID          string      `json:"id"`
	Kind        AddressKind `json:"kind"`
	EventCount  int         `json:"eventCount"`
	MaxSeverity Severity    `json:"maxSeverity"`
}

// TopologyEdge aggregates all events between one (source, destination) pair.
type TopologyEdge struct {
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Count        int       `json:"count"`
	BlockedCount int       `json:"blockedCount"`
	MaxSeverity  Severity  `json:"maxSeverity"`
	LastSeen     time.Time `json:"lastSeen"`
}

// Topology is a full node/edge snapshot, never a diff.
type Topology struct {
	Nodes            []TopologyNode `json:"nodes"`
	Edges            []TopologyEdge `json:"edges"`
	EventsConsidered int            `json:"eventsConsidered"`
	GeneratedAt      time.Time      `json:"generatedAt"`
}

// SourceCount is one entry of a top-K source ranking.
type SourceCount struct {
	Address string `json:"address"`
	Count   int    `json:"count"`
}

// RealTimeStats are the aggregates pushed on every stats tick.
type RealTimeStats struct {
	WindowSeconds    int               `json:"windowSeconds"`
	TotalEvents      int               `json:"totalEvents"`
	EventsPerMinute  float64           `json:"eventsPerMinute"`
	BySeverity       map[string]int    `json:"bySeverity"`
	MeanScore        float64           `json:"meanScore"`
	BlockedCount     int               `json:"blockedCount"`
	TopSources       []SourceCount     `json:"topSources"`
	ConnectedClients map[Transport]int `json:"connectedClients"`
	GeneratedAt      time.Time         `json:"generatedAt"`
}

// StoredStats are the aggregates reported by the persistence store over a window of hours.
type StoredStats struct {
	WindowHours int            `json:"windowHours"`
	TotalEvents int            `json:"totalEvents"`
	BySeverity  map[string]int `json:"bySeverity"`
	ByCategory  map[string]int `json:"byCategory"`
	MeanScore   float64        `json:"meanScore"`
	Blocked     int            `json:"blocked"`
	TopSources  []SourceCount  `json:"topSources"`
}

// ConnectionInfo describes one live connection for the admin API.
type ConnectionInfo struct {
	ID          string    `json:"id"`
	Transport   Transport `json:"transport"`
	Rooms       []Room    `json:"rooms"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastPongAt  time.Time `json:"lastPongAt"`
	Alive       bool      `json:"alive"`
}
