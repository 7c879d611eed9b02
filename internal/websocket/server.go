// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/metrics"
	"github.com/tomtom215/threatcast/internal/models"
	"github.com/tomtom215/threatcast/internal/protocol"
)

// ServerConfig configures the WebSocket endpoints.
type ServerConfig struct {
	// AllowedOrigins lists browser origins accepted on the dashboard
	// endpoints. "*" accepts any origin.
	AllowedOrigins []string

	// AllowNoOrigin accepts dashboard connections without an Origin header
	// (non-browser clients such as cmd/watch).
	AllowNoOrigin bool

	SendBuffer       int
	HandshakeTimeout time.Duration

	// IngestKeepAlive is the ping interval for producer connections.
	IngestKeepAlive time.Duration
}

// Server serves the rooms, stream and ingest WebSocket endpoints.
type Server struct {
	cfg         ServerConfig
	rooms       *Hub
	stream      *Hub
	registry    *broker.Registry
	broadcaster *broker.Broadcaster
	ingestor    *broker.Ingestor

	roomCodec   protocol.RoomCodec
	streamCodec protocol.StreamCodec
	now         func() time.Time
}

// NewServer wires the two dashboard hubs to the broker.
func NewServer(cfg ServerConfig, rooms, stream *Hub, registry *broker.Registry, b *broker.Broadcaster, in *broker.Ingestor) *Server {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.IngestKeepAlive <= 0 {
		cfg.IngestKeepAlive = broker.DefaultPingPeriod
	}
	return &Server{
		cfg:         cfg,
		rooms:       rooms,
		stream:      stream,
		registry:    registry,
		broadcaster: b,
		ingestor:    in,
		now:         time.Now,
	}
}

func (s *Server) upgrader(requireOrigin bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		CheckOrigin: func(r *http.Request) bool {
			return s.checkOrigin(r, requireOrigin)
		},
	}
}

func (s *Server) checkOrigin(r *http.Request, requireOrigin bool) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		if requireOrigin && !s.cfg.AllowNoOrigin {
			logging.Warn().Str("path", r.URL.Path).Msg("websocket connection rejected: missing Origin header")
			return false
		}
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Str("path", r.URL.Path).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// accept upgrades and registers a dashboard connection.
func (s *Server) accept(w http.ResponseWriter, r *http.Request, hub *Hub) (*Client, bool) {
	up := s.upgrader(true)
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug().Err(err).Str("transport", string(hub.Transport())).Msg("websocket upgrade failed")
		metrics.RecordSendError(string(hub.Transport()), "upgrade_failed")
		return nil, false
	}

	var period time.Duration
	var onPong func(string)
	if hub.monitor != nil {
		period = hub.monitor.Period()
		onPong = func(id string) { hub.monitor.MarkPong(id) }
	}
	c := NewClient(conn, hub.Transport(), ClientOptions{
		SendBuffer:  s.cfg.SendBuffer,
		ReadTimeout: readTimeout(period),
		OnPong:      onPong,
	})

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if !hub.Register(ctx, c) {
		logging.Warn().Str("conn_id", c.ID()).Str("transport", string(hub.Transport())).Msg("websocket registration failed")
		hub.Unregister(c)
		_ = c.Close()
		return nil, false
	}
	return c, true
}

// readTimeout leaves room for one missed heartbeat cycle before the read
// deadline fires; liveness normally evicts first.
func readTimeout(period time.Duration) time.Duration {
	if period <= 0 {
		return 0
	}
	return 2*period + writeWait
}

// ServeRooms handles GET /ws/rooms.
func (s *Server) ServeRooms(w http.ResponseWriter, r *http.Request) {
	c, ok := s.accept(w, r, s.rooms)
	if !ok {
		return
	}
	defer s.rooms.Unregister(c)

	go c.WritePump()
	if frame, err := s.roomCodec.Connect(c.ID()); err == nil {
		_ = c.Send(frame)
	}

	ctx := logging.ContextWithConnID(context.Background(), c.ID())
	c.ReadPump(func(raw []byte) {
		s.handleRoomFrame(ctx, c, raw)
	})
}

func (s *Server) handleRoomFrame(ctx context.Context, c *Client, raw []byte) {
	msg, err := protocol.DecodeRoomFrame(raw)
	if err != nil {
		// unknown events and bad filters are ignored on this transport
		if !errors.Is(err, protocol.ErrUnknownMessage) {
			metrics.RecordSendError(string(c.Transport()), "malformed_frame")
		}
		logging.Ctx(ctx).Debug().Err(err).Msg("ignoring rooms frame")
		return
	}

	switch m := msg.(type) {
	case protocol.JoinRoom:
		if !s.registry.Join(c.ID(), m.Room, m.Filter) {
			return
		}
		s.reply(c, func() ([]byte, error) { return s.roomCodec.JoinedRoom(m.Room, m.Filter) })
		s.primeRoom(c, m.Room)
	case protocol.UpdateFilters:
		if !s.registry.UpdateFilter(c.ID(), models.RoomEvents, m.Filter) {
			return
		}
		s.reply(c, func() ([]byte, error) { return s.roomCodec.JoinedRoom(models.RoomEvents, m.Filter) })
	case protocol.LeaveRoom:
		s.leave(c, m.Room)
	case protocol.Ping:
		s.reply(c, func() ([]byte, error) { return s.roomCodec.Pong(s.now()) })
	case protocol.RequestStats:
		s.broadcaster.SendStats(c)
	}
}

// ServeStream handles GET /ws/stream.
func (s *Server) ServeStream(w http.ResponseWriter, r *http.Request) {
	c, ok := s.accept(w, r, s.stream)
	if !ok {
		return
	}
	defer s.stream.Unregister(c)

	go c.WritePump()
	if frame, err := s.streamCodec.Connected(c.ID()); err == nil {
		_ = c.Send(frame)
	}

	ctx := logging.ContextWithConnID(context.Background(), c.ID())
	c.ReadPump(func(raw []byte) {
		s.handleStreamFrame(ctx, c, raw)
	})
}

func (s *Server) handleStreamFrame(ctx context.Context, c *Client, raw []byte) {
	msg, err := protocol.DecodeStreamFrame(raw)
	if err != nil {
		metrics.RecordSendError(string(c.Transport()), "malformed_frame")
		logging.Ctx(ctx).Debug().Err(err).Msg("rejecting stream frame")
		s.reply(c, func() ([]byte, error) { return s.streamCodec.Error(err.Error()) })
		return
	}

	switch m := msg.(type) {
	case protocol.JoinRoom:
		if !s.registry.Join(c.ID(), m.Room, m.Filter) {
			s.reply(c, func() ([]byte, error) { return s.streamCodec.Error("cannot subscribe to " + string(m.Room)) })
			return
		}
		s.reply(c, func() ([]byte, error) { return s.streamCodec.Confirmed(m.Room, m.Filter) })
		if m.Room == models.RoomEvents {
			s.broadcaster.ReplayAlerts(c, m.Filter)
		}
		s.primeRoom(c, m.Room)
	case protocol.UpdateFilters:
		if s.registry.UpdateFilter(c.ID(), models.RoomEvents, m.Filter) {
			s.reply(c, func() ([]byte, error) { return s.streamCodec.Confirmed(models.RoomEvents, m.Filter) })
		}
	case protocol.LeaveRoom:
		s.leave(c, m.Room)
	case protocol.RequestStats:
		s.broadcaster.SendStats(c)
	case protocol.Ping:
		s.reply(c, func() ([]byte, error) { return s.streamCodec.Pong(s.now()) })
	}
}

// primeRoom sends the current snapshot for rooms that otherwise wait a full cadence.
func (s *Server) primeRoom(c *Client, room models.Room) {
	switch room {
	case models.RoomTopology:
		s.broadcaster.SendTopology(c)
	case models.RoomStats:
		s.broadcaster.SendStats(c)
	}
}

func (s *Server) leave(c *Client, room models.Room) {
	if room == "" {
		s.registry.LeaveAll(c.ID())
		return
	}
	s.registry.Leave(c.ID(), room)
}

func (s *Server) reply(c *Client, build func() ([]byte, error)) {
	frame, err := build()
	if err != nil {
		logging.Error().Err(err).Str("conn_id", c.ID()).Msg("failed to encode reply")
		return
	}
	if err := c.Send(frame); err != nil {
		metrics.RecordSendError(string(c.Transport()), "reply_dropped")
	}
}

// ServeIngest handles GET /ws/ingest. Each frame is a producer envelope.
// Malformed events are dropped and counted; the connection stays open.
func (s *Server) ServeIngest(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader(false)
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug().Err(err).Msg("ingest upgrade failed")
		return
	}

	c := NewClient(conn, "ingest", ClientOptions{
		SendBuffer:  8,
		ReadTimeout: readTimeout(s.cfg.IngestKeepAlive),
		KeepAlive:   s.cfg.IngestKeepAlive,
	})
	go c.WritePump()

	logging.Info().Str("conn_id", c.ID()).Str("remote", r.RemoteAddr).Msg("producer connected")
	c.ReadPump(func(raw []byte) {
		res := s.ingestor.IngestEnvelope(r.Context(), broker.SourceWebSocket, raw)
		if res.Rejected > 0 {
			logging.Debug().Str("conn_id", c.ID()).Int("accepted", len(res.Accepted)).Int("rejected", res.Rejected).Msg("producer frame partially rejected")
		}
	})
	logging.Info().Str("conn_id", c.ID()).Msg("producer disconnected")
}
