// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package websocket

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/metrics"
	"github.com/tomtom215/threatcast/internal/models"
)

const (
	writeWait      = 10 * time.Second
	closeWait      = time.Second
	maxMessageSize = 512 * 1024 // 512 KB

	// DefaultSendBuffer is the per-connection outbound queue length.
	DefaultSendBuffer = 256
)

// ClientOptions tunes a single connection.
type ClientOptions struct {
	// SendBuffer bounds the outbound queue. Send fails fast when it is full.
	SendBuffer int

	// ReadTimeout closes the connection when nothing (frame or pong) arrives
	// for this long. Zero disables the deadline.
	ReadTimeout time.Duration

	// KeepAlive makes the write pump ping on its own ticker. Dashboard
	// connections leave it zero and are pinged by their liveness monitor.
	KeepAlive time.Duration

	// OnPong is called with the client ID for every pong received.
	OnPong func(id string)
}

// Client is one upgraded WebSocket connection. It implements broker.Conn.
//
// The write pump owns every socket write, data and control frames alike, so
// Send, Ping and Close never wait on the network. Per-connection order is
// queue order. Close is idempotent: it stops the write pump, discards queued
// frames and closes the socket.
type Client struct {
	id        string
	transport models.Transport
	conn      *websocket.Conn
	opts      ClientOptions

	send      chan []byte
	ping      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	pumping   atomic.Bool
}

var _ broker.Conn = (*Client)(nil)

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, transport models.Transport, opts ClientOptions) *Client {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	return &Client{
		id:        uuid.NewString(),
		transport: transport,
		conn:      conn,
		opts:      opts,
		send:      make(chan []byte, opts.SendBuffer),
		ping:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Transport() models.Transport {
	return c.transport
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send queues a pre-serialized frame without blocking.
func (c *Client) Send(frame []byte) error {
	select {
	case <-c.done:
		return broker.ErrConnectionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return broker.ErrConnectionClosed
	default:
		return broker.ErrSendBufferFull
	}
}

// Ping asks the write pump for a heartbeat control frame and returns at
// once. At most one ping is pending; further requests coalesce with it.
func (c *Client) Ping() error {
	select {
	case <-c.done:
		return broker.ErrConnectionClosed
	default:
	}
	select {
	case c.ping <- struct{}{}:
	default:
	}
	return nil
}

// Close shuts the connection down without waiting on the peer. Queued frames
// are discarded. With a write pump running, a write stuck on a peer that
// stopped reading is cut short and the pump sends the close frame and closes
// the socket.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.pumping.Load() {
			if nc := c.conn.NetConn(); nc != nil {
				_ = nc.SetWriteDeadline(time.Now()) // unblocks a stalled WriteMessage
			}
			return
		}
		err = c.closeSocket()
	})
	return err
}

func (c *Client) closeSocket() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeWait))
	return c.conn.Close()
}

// ReadPump delivers every text or binary frame to handle until the socket
// fails or the client is closed. It closes the client before returning.
func (c *Client) ReadPump(handle func(frame []byte)) {
	defer func() {
		_ = c.Close() // best-effort cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.extendDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendDeadline()
		if c.opts.OnPong != nil {
			c.opts.OnPong(c.id)
		}
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("conn_id", c.id).Str("transport", string(c.transport)).Msg("unexpected websocket close")
				metrics.RecordSendError(string(c.transport), "read_failed")
			}
			return
		}
		c.extendDeadline()
		metrics.WSMessagesReceived.WithLabelValues(string(c.transport)).Inc()
		handle(frame)
	}
}

func (c *Client) extendDeadline() {
	if c.opts.ReadTimeout <= 0 {
		return
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout)); err != nil {
		logging.Debug().Err(err).Str("conn_id", c.id).Msg("failed to set read deadline")
	}
}

// WritePump drains the send queue and pending pings onto the socket until
// the client is closed, then closes the socket.
func (c *Client) WritePump() {
	c.pumping.Store(true)

	var tick <-chan time.Time
	if c.opts.KeepAlive > 0 {
		ticker := time.NewTicker(c.opts.KeepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}
	closed := false
	defer func() {
		_ = c.Close() // best-effort cleanup
		if closed {
			_ = c.closeSocket()
		} else {
			_ = c.conn.Close()
		}
	}()

	for {
		select {
		case <-c.done:
			closed = true
			return

		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Debug().Err(err).Str("conn_id", c.id).Msg("failed to set write deadline")
				return
			}
			// Close may have cut the deadline short before it was reset above.
			select {
			case <-c.done:
				closed = true
				return
			default:
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					logging.Debug().Err(err).Str("conn_id", c.id).Msg("websocket write failed")
				}
				metrics.RecordSendError(string(c.transport), "write_failed")
				return
			}

		case <-c.ping:
			if err := c.writePing(); err != nil {
				return
			}

		case <-tick:
			if err := c.writePing(); err != nil {
				return
			}
		}
	}
}

func (c *Client) writePing() error {
	err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		logging.Debug().Err(err).Str("conn_id", c.id).Msg("websocket ping failed")
	}
	return err
}
