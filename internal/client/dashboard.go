// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package client

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/models"
	"github.com/tomtom215/threatcast/internal/protocol"
)

// Handlers receive decoded broker pushes. Any field may be nil.
type Handlers struct {
	OnBatch    func(t models.Transport, events []models.Event)
	OnAlert    func(t models.Transport, e models.Event)
	OnUpdate   func(t models.Transport, e models.Event)
	OnStats    func(t models.Transport, s models.RealTimeStats)
	OnTopology func(t models.Transport, topo models.Topology)
	OnError    func(t models.Transport, message string)
}

// DashboardConfig configures a DashboardClient.
type DashboardConfig struct {
	// BaseURL is the broker's HTTP or WebSocket base, e.g. http://localhost:3001.
	BaseURL string
	Filter  *models.FilterSpec
	Options Options
}

// DashboardClient subscribes to every room on both transports.
type DashboardClient struct {
	cfg      DashboardConfig
	handlers Handlers
	rooms    *ReconnectingConn
	stream   *ReconnectingConn

	mu        sync.Mutex
	clientIDs map[models.Transport]string
}

// NewDashboardClient builds both connections. Call Run to start them.
func NewDashboardClient(cfg DashboardConfig, h Handlers) (*DashboardClient, error) {
	roomsURL, err := EndpointURL(cfg.BaseURL, "/ws/rooms")
	if err != nil {
		return nil, err
	}
	streamURL, err := EndpointURL(cfg.BaseURL, "/ws/stream")
	if err != nil {
		return nil, err
	}

	d := &DashboardClient{cfg: cfg, handlers: h, clientIDs: make(map[models.Transport]string)}

	roomsOpts := cfg.Options
	roomsOpts.Name = string(models.TransportRooms)
	roomsOpts.OnConnect = d.subscribeRooms
	roomsOpts.OnMessage = d.handleRoomFrame
	d.rooms = NewReconnectingConn(roomsURL, roomsOpts)

	streamOpts := cfg.Options
	streamOpts.Name = string(models.TransportStream)
	streamOpts.OnConnect = d.subscribeStream
	streamOpts.OnMessage = d.handleStreamFrame
	d.stream = NewReconnectingConn(streamURL, streamOpts)

	return d, nil
}

// EndpointURL joins an http(s) or ws(s) base URL with a WebSocket path.
func EndpointURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}

// Run runs both connections until ctx is canceled.
func (d *DashboardClient) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, c := range d.Conns() {
		wg.Add(1)
		go func(c *ReconnectingConn) {
			defer wg.Done()
			_ = c.Run(ctx)
		}(c)
	}
	wg.Wait()
	return ctx.Err()
}

// Conns returns the rooms and stream connections.
func (d *DashboardClient) Conns() []*ReconnectingConn {
	return []*ReconnectingConn{d.rooms, d.stream}
}

// Links returns both connections for a Sampler.
func (d *DashboardClient) Links() []LinkStatus {
	return []LinkStatus{d.rooms, d.stream}
}

// ClientID returns the id the broker assigned on a transport.
func (d *DashboardClient) ClientID(t models.Transport) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clientIDs[t]
}

func (d *DashboardClient) setClientID(t models.Transport, id string) {
	d.mu.Lock()
	d.clientIDs[t] = id
	d.mu.Unlock()
}

func (d *DashboardClient) subscribeRooms(c *ReconnectingConn) error {
	frames := []protocol.RoomFrame{
		roomFrame(protocol.EventJoinThreatRoom, map[string]interface{}{"filters": d.cfg.Filter}),
		roomFrame(protocol.EventJoinNetworkRoom, nil),
		roomFrame(protocol.EventJoinAnalyticsRoom, nil),
	}
	for _, f := range frames {
		if err := c.Send(f); err != nil {
			return err
		}
	}
	return nil
}

func roomFrame(event string, data interface{}) protocol.RoomFrame {
	f := protocol.RoomFrame{Event: event}
	if data != nil {
		f.Data, _ = json.Marshal(data)
	}
	return f
}

func (d *DashboardClient) subscribeStream(c *ReconnectingConn) error {
	var filter json.RawMessage
	if d.cfg.Filter != nil {
		filter, _ = json.Marshal(d.cfg.Filter)
	}
	frames := []protocol.StreamFrame{
		{Type: protocol.TypeSubscribeThreatStream, Data: filter},
		{Type: protocol.TypeSubscribeNetworkTopology},
		{Type: protocol.TypeRequestRealTimeStats},
	}
	for _, f := range frames {
		if err := c.Send(f); err != nil {
			return err
		}
	}
	return nil
}

func (d *DashboardClient) handleRoomFrame(raw []byte) {
	const t = models.TransportRooms
	var f protocol.RoomFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		logging.Debug().Err(err).Msg("ignoring undecodable rooms frame")
		return
	}

	switch f.Event {
	case protocol.EventConnect:
		var hello protocol.ConnectData
		if json.Unmarshal(f.Data, &hello) == nil {
			d.setClientID(t, hello.ClientID)
		}
	case protocol.EventThreatBatchUpdate:
		var events []models.Event
		if json.Unmarshal(f.Data, &events) == nil && d.handlers.OnBatch != nil {
			d.handlers.OnBatch(t, events)
		}
	case protocol.EventCriticalThreatAlert:
		var e models.Event
		if json.Unmarshal(f.Data, &e) == nil && d.handlers.OnAlert != nil {
			d.handlers.OnAlert(t, e)
		}
	case protocol.EventThreatUpdate:
		var e models.Event
		if json.Unmarshal(f.Data, &e) == nil && d.handlers.OnUpdate != nil {
			d.handlers.OnUpdate(t, e)
		}
	case protocol.EventRealTimeStats:
		var s models.RealTimeStats
		if json.Unmarshal(f.Data, &s) == nil && d.handlers.OnStats != nil {
			d.handlers.OnStats(t, s)
		}
	case protocol.EventNetworkTopology:
		var topo models.Topology
		if json.Unmarshal(f.Data, &topo) == nil && d.handlers.OnTopology != nil {
			d.handlers.OnTopology(t, topo)
		}
	}
}

func (d *DashboardClient) handleStreamFrame(raw []byte) {
	const t = models.TransportStream
	var f protocol.StreamFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		logging.Debug().Err(err).Msg("ignoring undecodable stream frame")
		return
	}

	switch f.Type {
	case protocol.TypeConnected:
		d.setClientID(t, f.ClientID)
	case protocol.TypeThreatStreamUpdate:
		var events []models.Event
		if json.Unmarshal(f.Data, &events) != nil {
			return
		}
		if f.Alert && len(events) == 1 {
			if d.handlers.OnAlert != nil {
				d.handlers.OnAlert(t, events[0])
			}
			return
		}
		if d.handlers.OnBatch != nil {
			d.handlers.OnBatch(t, events)
		}
	case protocol.TypeRealTimeStatsUpdate:
		var s models.RealTimeStats
		if json.Unmarshal(f.Data, &s) == nil && d.handlers.OnStats != nil {
			d.handlers.OnStats(t, s)
		}
	case protocol.TypeNetworkTopologyUpdate:
		var topo models.Topology
		if json.Unmarshal(f.Data, &topo) == nil && d.handlers.OnTopology != nil {
			d.handlers.OnTopology(t, topo)
		}
	case protocol.TypeError:
		if d.handlers.OnError != nil {
			d.handlers.OnError(t, f.Message)
		}
	}
}
