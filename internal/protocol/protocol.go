// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package protocol

import (
	"errors"

	"github.com/goccy/go-json"

	"github.com/tomtom215/threatcast/internal/models"
)

// Rooms transport event names.
const (
	EventConnect           = "connect"
	EventJoinThreatRoom    = "join-threat-room"
	EventJoinAnalyticsRoom = "join-analytics-room"
	EventJoinNetworkRoom   = "join-network-room"
	EventUpdateFilters     = "update-filters"
	EventLeaveRoom         = "leave-room"
	EventPing              = "ping"

	EventJoinedRoom          = "joined-room"
	EventThreatUpdate        = "threatUpdate"
	EventThreatBatchUpdate   = "threatBatchUpdate"
	EventCriticalThreatAlert = "criticalThreatAlert"
	EventRealTimeStats       = "realTimeStatsUpdate"
	EventNetworkTopology     = "networkTopologyUpdate"
	EventPong                = "pong"
)

// Stream transport message types.
const (
	TypeSubscribeThreatStream    = "SUBSCRIBE_THREAT_STREAM"
	TypeSubscribeNetworkTopology = "SUBSCRIBE_NETWORK_TOPOLOGY"
	TypeRequestRealTimeStats     = "REQUEST_REAL_TIME_STATS"
	TypeUnsubscribe              = "UNSUBSCRIBE"
	TypePing                     = "PING"

	TypeConnected             = "connected"
	TypeThreatStreamUpdate    = "THREAT_STREAM_UPDATE"
	TypeNetworkTopologyUpdate = "NETWORK_TOPOLOGY_UPDATE"
	TypeRealTimeStatsUpdate   = "REAL_TIME_STATS_UPDATE"
	TypeSubscriptionConfirmed = "SUBSCRIPTION_CONFIRMED"
	TypeError                 = "error"
	TypePong                  = "PONG"
)

var (
	// ErrMalformedFrame is returned when a frame is not valid JSON or lacks its discriminator.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownMessage is returned for a well-formed frame with an unrecognized name.
	ErrUnknownMessage = errors.New("unknown message")
)

// RoomFrame is the rooms transport envelope.
type RoomFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StreamFrame is the stream transport envelope. Control frames carry their
// payload in the dedicated top-level fields.
type StreamFrame struct {
	Type         string          `json:"type"`
	Data         json.RawMessage `json:"data,omitempty"`
	Alert        bool            `json:"alert,omitempty"`
	ClientID     string          `json:"clientId,omitempty"`
	Subscription *Subscription   `json:"subscription,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// Subscription describes a confirmed stream subscription.
type Subscription struct {
	Room    models.Room        `json:"room"`
	Filters *models.FilterSpec `json:"filters,omitempty"`
}

// ConnectData is the payload of the rooms connect event.
type ConnectData struct {
	ClientID string `json:"clientId"`
}

// JoinedRoomData is the payload of the rooms joined-room event.
type JoinedRoomData struct {
	Room    models.Room        `json:"room"`
	Filters *models.FilterSpec `json:"filters,omitempty"`
}

// PongData is the payload of a pong.
type PongData struct {
	Timestamp int64 `json:"timestamp"`
}
