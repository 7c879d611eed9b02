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

// StreamCodec encodes stream transport frames.
//
// The stream transport has no dedicated alert type: an immediate alert is a
// single-element THREAT_STREAM_UPDATE flagged with "alert": true.
type StreamCodec struct{}

func encodeStream(f StreamFrame, data interface{}) ([]byte, error) {
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.Type, err)
		}
		f.Data = payload
	}
	return json.Marshal(f)
}

// EventBatch encodes a THREAT_STREAM_UPDATE.
func (StreamCodec) EventBatch(events []*models.Event) ([]byte, error) {
	return encodeStream(StreamFrame{Type: TypeThreatStreamUpdate}, events)
}

// EventUpdate encodes a single-event THREAT_STREAM_UPDATE.
func (StreamCodec) EventUpdate(e *models.Event) ([]byte, error) {
	return encodeStream(StreamFrame{Type: TypeThreatStreamUpdate}, []*models.Event{e})
}

// Alert encodes a single-event THREAT_STREAM_UPDATE marked as an alert.
func (StreamCodec) Alert(e *models.Event) ([]byte, error) {
	return encodeStream(StreamFrame{Type: TypeThreatStreamUpdate, Alert: true}, []*models.Event{e})
}

// Topology encodes a NETWORK_TOPOLOGY_UPDATE.
func (StreamCodec) Topology(t *models.Topology) ([]byte, error) {
	return encodeStream(StreamFrame{Type: TypeNetworkTopologyUpdate}, t)
}

// Stats encodes a REAL_TIME_STATS_UPDATE.
func (StreamCodec) Stats(s *models.RealTimeStats) ([]byte, error) {
	return encodeStream(StreamFrame{Type: TypeRealTimeStatsUpdate}, s)
}

// Connected encodes the greeting sent right after the upgrade.
func (StreamCodec) Connected(clientID string) ([]byte, error) {
	return encodeStream(StreamFrame{Type: TypeConnected, ClientID: clientID}, nil)
}

// Confirmed acknowledges a subscription.
func (StreamCodec) Confirmed(room models.Room, filter *models.FilterSpec) ([]byte, error) {
	return encodeStream(StreamFrame{
		Type:         TypeSubscriptionConfirmed,
		Subscription: &Subscription{Room: room, Filters: filter},
	}, nil)
}

// Error reports a malformed client request.
func (StreamCodec) Error(message string) ([]byte, error) {
	return encodeStream(StreamFrame{Type: TypeError, Message: message}, nil)
}

// Pong answers an application-level ping.
func (StreamCodec) Pong(now time.Time) ([]byte, error) {
	return encodeStream(StreamFrame{Type: TypePong}, PongData{Timestamp: now.UnixMilli()})
}
