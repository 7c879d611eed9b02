// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package protocol

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/threatcast/internal/models"
)

// RoomCodec encodes rooms transport frames.
type RoomCodec struct{}

func encodeRoom(event string, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(RoomFrame{Event: event, Data: payload})
}

// EventBatch encodes a threatBatchUpdate.
func (RoomCodec) EventBatch(events []*models.Event) ([]byte, error) {
	return encodeRoom(EventThreatBatchUpdate, events)
}

// EventUpdate encodes a single threatUpdate.
func (RoomCodec) EventUpdate(e *models.Event) ([]byte, error) {
	return encodeRoom(EventThreatUpdate, e)
}

// Alert encodes a criticalThreatAlert.
func (RoomCodec) Alert(e *models.Event) ([]byte, error) {
	return encodeRoom(EventCriticalThreatAlert, e)
}

// Topology encodes a networkTopologyUpdate.
func (RoomCodec) Topology(t *models.Topology) ([]byte, error) {
	return encodeRoom(EventNetworkTopology, t)
}

// Stats encodes a realTimeStatsUpdate.
func (RoomCodec) Stats(s *models.RealTimeStats) ([]byte, error) {
	return encodeRoom(EventRealTimeStats, s)
}

// Connect encodes the greeting sent right after the upgrade.
func (RoomCodec) Connect(clientID string) ([]byte, error) {
	return encodeRoom(EventConnect, ConnectData{ClientID: clientID})
}

// JoinedRoom confirms a room join.
func (RoomCodec) JoinedRoom(room models.Room, filter *models.FilterSpec) ([]byte, error) {
	return encodeRoom(EventJoinedRoom, JoinedRoomData{Room: room, Filters: filter})
}

// Pong answers an application-level ping.
func (RoomCodec) Pong(now time.Time) ([]byte, error) {
	return encodeRoom(EventPong, PongData{Timestamp: now.UnixMilli()})
}
