// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package client

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatcast/internal/logging"
)

const (
	// DefaultRetryDelay is the fixed wait between reconnection attempts.
	DefaultRetryDelay = 5 * time.Second

	// DefaultPingPeriod is how often the client pings the server.
	DefaultPingPeriod = 30 * time.Second

	writeWait      = 10 * time.Second
	maxMessageSize = 4 * 1024 * 1024
)

// ErrNotConnected is returned by Send while no socket is open.
var ErrNotConnected = errors.New("not connected")

// Options configures a ReconnectingConn.
type Options struct {
	// Name labels log lines, e.g. "rooms" or "stream".
	Name   string
	Header http.Header

	RetryDelay       time.Duration
	PingPeriod       time.Duration
	HandshakeTimeout time.Duration

	// OnMessage receives every data frame. It runs on the read goroutine.
	OnMessage func(frame []byte)
	// OnConnect runs after every successful dial, before frames are read.
	// Returning an error drops the socket and schedules a reconnect.
	OnConnect func(c *ReconnectingConn) error
	// OnStateChange observes lifecycle transitions.
	OnStateChange func(ConnState)
}

// Status is a point-in-time view of the connection.
type Status struct {
	Name       string
	State      ConnState
	RTT        time.Duration
	HasRTT     bool
	LastPongAt time.Time
	Connects   int
}

// ReconnectingConn is a client WebSocket that reconnects with a fixed delay
// and unbounded retries.
type ReconnectingConn struct {
	url    string
	opts   Options
	dialer websocket.Dialer

	mu       sync.RWMutex
	state    ConnState
	conn     *websocket.Conn
	rtt      time.Duration
	hasRTT   bool
	lastPong time.Time
	connects int

	writeMu sync.Mutex
	now     func() time.Time
}

// NewReconnectingConn creates a connection to url. Call Run to connect.
func NewReconnectingConn(url string, opts Options) *ReconnectingConn {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.Name == "" {
		opts.Name = url
	}
	return &ReconnectingConn{
		url:    url,
		opts:   opts,
		dialer: websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
		state:  StateDisconnected,
		now:    time.Now,
	}
}

// Run connects and keeps the connection open until ctx is canceled.
// It always returns ctx.Err().
func (c *ReconnectingConn) Run(ctx context.Context) error {
	defer c.setState(StateDisconnected)

	c.setState(StateConnecting)
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.setState(StateReconnecting)
		logging.Warn().
			Err(err).
			Str("conn", c.opts.Name).
			Dur("retry_in", c.opts.RetryDelay).
			Msg("websocket connection lost, reconnecting")

		timer := time.NewTimer(c.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session dials once and reads until the socket fails.
func (c *ReconnectingConn) session(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessCtx.Done()
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(payload string) error {
		c.recordPong(payload)
		c.extendDeadline(conn)
		return nil
	})
	conn.SetPingHandler(func(payload string) error {
		c.touch()
		c.extendDeadline(conn)
		err := conn.WriteControl(websocket.PongMessage, []byte(payload), c.now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	c.mu.Lock()
	c.conn = conn
	c.connects++
	c.lastPong = c.now()
	c.mu.Unlock()
	defer c.dropConn(conn)

	c.setState(StateConnected)
	logging.Info().Str("conn", c.opts.Name).Str("url", c.url).Msg("websocket connected")

	if c.opts.OnConnect != nil {
		if err := c.opts.OnConnect(c); err != nil {
			return fmt.Errorf("on connect: %w", err)
		}
	}

	if c.opts.PingPeriod > 0 {
		go c.pingLoop(sessCtx, conn)
	}

	c.extendDeadline(conn)
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.extendDeadline(conn)
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(frame)
		}
	}
}

func (c *ReconnectingConn) extendDeadline(conn *websocket.Conn) {
	if c.opts.PingPeriod <= 0 {
		return
	}
	_ = conn.SetReadDeadline(c.now().Add(2*c.opts.PingPeriod + writeWait))
}

func (c *ReconnectingConn) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload := binary.BigEndian.AppendUint64(nil, uint64(c.now().UnixNano()))
			if err := conn.WriteControl(websocket.PingMessage, payload, c.now().Add(writeWait)); err != nil {
				logging.Debug().Err(err).Str("conn", c.opts.Name).Msg("client ping failed")
				_ = conn.Close()
				return
			}
		}
	}
}

// touch records that the server is still talking to us.
func (c *ReconnectingConn) touch() {
	now := c.now()
	c.mu.Lock()
	c.lastPong = now
	c.mu.Unlock()
}

// recordPong measures the round trip from the timestamp carried in our ping.
func (c *ReconnectingConn) recordPong(payload string) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPong = now
	if len(payload) == 8 {
		sent := time.Unix(0, int64(binary.BigEndian.Uint64([]byte(payload))))
		if rtt := now.Sub(sent); rtt >= 0 {
			c.rtt = rtt
			c.hasRTT = true
		}
	}
}

func (c *ReconnectingConn) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *ReconnectingConn) setState(s ConnState) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed && c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

// Send encodes v as JSON and writes it as one text frame.
func (c *ReconnectingConn) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return c.SendRaw(data)
}

// SendRaw writes one text frame.
func (c *ReconnectingConn) SendRaw(frame []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(c.now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// State returns the lifecycle state.
func (c *ReconnectingConn) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Alive reports whether the socket is connected and has heard from the
// server within two ping periods.
func (c *ReconnectingConn) Alive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected {
		return false
	}
	if c.opts.PingPeriod <= 0 {
		return true
	}
	return c.now().Sub(c.lastPong) <= 2*c.opts.PingPeriod
}

// Status returns a snapshot of the connection.
func (c *ReconnectingConn) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		Name:       c.opts.Name,
		State:      c.state,
		RTT:        c.rtt,
		HasRTT:     c.hasRTT,
		LastPongAt: c.lastPong,
		Connects:   c.connects,
	}
}
