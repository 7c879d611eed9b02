// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package protocol

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/threatcast/internal/models"
	"github.com/tomtom215/threatcast/internal/validation"
)

// Inbound is a decoded client message. The set is closed.
type Inbound interface {
	inbound()
}

// JoinRoom subscribes the connection to a room, replacing any previous filter.
type JoinRoom struct {
	Room   models.Room
	Filter *models.FilterSpec
}

// UpdateFilters replaces the filter of the connection's events subscription.
type UpdateFilters struct {
	Filter *models.FilterSpec
}

// LeaveRoom removes one subscription, or every subscription when Room is empty.
type LeaveRoom struct {
	Room models.Room
}

// Ping asks for an application-level pong.
type Ping struct{}

// RequestStats asks for an immediate stats frame.
type RequestStats struct{}

func (JoinRoom) inbound()      {}
func (UpdateFilters) inbound() {}
func (LeaveRoom) inbound()     {}
func (Ping) inbound()          {}
func (RequestStats) inbound()  {}

// DecodeRoomFrame decodes one rooms transport frame.
// Unrecognized events return ErrUnknownMessage; callers ignore them.
func DecodeRoomFrame(raw []byte) (Inbound, error) {
	var f RoomFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	}

	switch f.Event {
	case EventJoinThreatRoom:
		filter, err := decodeRoomFilter(f.Data)
		if err != nil {
			return nil, err
		}
		return JoinRoom{Room: models.RoomEvents, Filter: filter}, nil
	case EventJoinAnalyticsRoom:
		return JoinRoom{Room: models.RoomStats}, nil
	case EventJoinNetworkRoom:
		return JoinRoom{Room: models.RoomTopology}, nil
	case EventUpdateFilters:
		filter, err := decodeRoomFilter(f.Data)
		if err != nil {
			return nil, err
		}
		return UpdateFilters{Filter: filter}, nil
	case EventLeaveRoom:
		room, err := decodeRoom(f.Data)
		if err != nil {
			return nil, err
		}
		return LeaveRoom{Room: room}, nil
	case EventPing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, f.Event)
	}
}

// DecodeStreamFrame decodes one stream transport frame.
// Any error should be answered with an error frame.
func DecodeStreamFrame(raw []byte) (Inbound, error) {
	var f StreamFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}

	switch f.Type {
	case TypeSubscribeThreatStream:
		filter, err := decodeFilter(f.Data)
		if err != nil {
			return nil, err
		}
		return JoinRoom{Room: models.RoomEvents, Filter: filter}, nil
	case TypeSubscribeNetworkTopology:
		return JoinRoom{Room: models.RoomTopology}, nil
	case TypeRequestRealTimeStats:
		return RequestStats{}, nil
	case TypeUnsubscribe:
		room, err := decodeRoom(f.Data)
		if err != nil {
			return nil, err
		}
		return LeaveRoom{Room: room}, nil
	case TypePing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, f.Type)
	}
}

// decodeRoomFilter accepts {"filters": {...}} or a bare filter object.
func decodeRoomFilter(data json.RawMessage) (*models.FilterSpec, error) {
	if isEmpty(data) {
		return nil, nil
	}
	var wrapped struct {
		Filters json.RawMessage `json:"filters"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: filters: %v", ErrMalformedFrame, err)
	}
	if !isEmpty(wrapped.Filters) {
		return decodeFilter(wrapped.Filters)
	}
	return decodeFilter(data)
}

func decodeFilter(data json.RawMessage) (*models.FilterSpec, error) {
	if isEmpty(data) {
		return nil, nil
	}
	var filter models.FilterSpec
	if err := json.Unmarshal(data, &filter); err != nil {
		return nil, fmt.Errorf("%w: filters: %v", ErrMalformedFrame, err)
	}
	if verr := validation.ValidateStruct(&filter); verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, verr)
	}
	if filter.IsEmpty() {
		return nil, nil
	}
	return &filter, nil
}

// decodeRoom accepts {"room": "..."}, a bare string, or nothing.
func decodeRoom(data json.RawMessage) (models.Room, error) {
	if isEmpty(data) {
		return "", nil
	}
	trimmed := bytes.TrimSpace(data)

	var name string
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return "", fmt.Errorf("%w: room: %v", ErrMalformedFrame, err)
		}
	} else {
		var wrapped struct {
			Room string `json:"room"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return "", fmt.Errorf("%w: room: %v", ErrMalformedFrame, err)
		}
		name = wrapped.Room
	}
	return models.Room(name), nil
}

func isEmpty(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}"))
}
