// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/metrics"
	"github.com/tomtom215/threatcast/internal/models"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// unregisterTimeout bounds how long a closing connection waits for the hub
// loop before removing itself inline.
const unregisterTimeout = 2 * time.Second

type registration struct {
	client *Client
	ack    chan bool
}

// Hub owns the connection lifecycle of one transport. Registration and
// removal are serialized through its run loop; the broker registry and the
// transport's liveness monitor are updated from there.
type Hub struct {
	transport models.Transport
	registry  *broker.Registry
	monitor   *broker.LivenessMonitor

	register   chan registration
	unregister chan *Client

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a hub for one transport. monitor may be nil.
func NewHub(transport models.Transport, registry *broker.Registry, monitor *broker.LivenessMonitor) *Hub {
	return &Hub{
		transport:  transport,
		registry:   registry,
		monitor:    monitor,
		register:   make(chan registration),
		unregister: make(chan *Client, 64),
		clients:    make(map[string]*Client),
	}
}

// Register hands a new client to the hub loop and waits until it is in the
// registry. Returns false if ctx ends first or the id is already taken.
func (h *Hub) Register(ctx context.Context, c *Client) bool {
	ack := make(chan bool, 1)
	select {
	case h.register <- registration{client: c, ack: ack}:
	case <-ctx.Done():
		return false
	}
	select {
	case ok := <-ack:
		return ok
	case <-ctx.Done():
		return false
	}
}

// Unregister removes a client. Unknown or already removed clients are ignored.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-time.After(unregisterTimeout):
		h.remove(c)
	}
}

// RunWithContext serves registrations until ctx is canceled, then closes
// every client. Designed to run under a suture supervisor.
//
// Shutdown is checked first on every iteration, then pending lifecycle events.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case reg := <-h.register:
			reg.ack <- h.add(reg.client)
		case c := <-h.unregister:
			h.remove(c)
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

func (h *Hub) String() string {
	return "websocket-hub-" + string(h.transport)
}

func (h *Hub) add(c *Client) bool {
	if !h.registry.Register(c) {
		return false
	}

	h.mu.Lock()
	h.clients[c.ID()] = c
	n := len(h.clients)
	h.mu.Unlock()

	if h.monitor != nil {
		h.monitor.Track(c)
	}
	metrics.WSConnections.WithLabelValues(string(h.transport)).Set(float64(n))
	logging.Info().
		Str("conn_id", c.ID()).
		Str("transport", string(h.transport)).
		Int("total_clients", n).
		Msg("websocket client connected")
	return true
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID()]
	delete(h.clients, c.ID())
	n := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	h.registry.Unregister(c.ID())
	if h.monitor != nil {
		h.monitor.Untrack(c.ID())
	}
	_ = c.Close() // best-effort, may already be closed by liveness

	metrics.WSConnections.WithLabelValues(string(h.transport)).Set(float64(n))
	logging.Info().
		Str("conn_id", c.ID()).
		Str("transport", string(h.transport)).
		Int("total_clients", n).
		Msg("websocket client disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].ID() < clients[j].ID() })
	for _, c := range clients {
		h.remove(c)
	}

	logging.Info().
		Str("component", h.String()).
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Transport returns the transport served by this hub.
func (h *Hub) Transport() models.Transport {
	return h.transport
}
