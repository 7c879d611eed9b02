// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/metrics"
	"github.com/tomtom215/threatcast/internal/models"
)

// DefaultPingPeriod is the heartbeat interval for both transports.
const DefaultPingPeriod = 30 * time.Second

// LivenessState is the heartbeat state of one connection.
type LivenessState int

const (
	StateAlive LivenessState = iota
	StateAwaitingPong
	StateDead
)

func (s LivenessState) String() string {
	switch s {
	case StateAlive:
		return "ALIVE"
	case StateAwaitingPong:
		return "AWAITING_PONG"
	case StateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

type peer struct {
	conn       Conn
	state      LivenessState
	lastPingAt time.Time
	lastPongAt time.Time
	rtt        time.Duration
}

// PeerStatus is a point-in-time view of a tracked connection.
type PeerStatus struct {
	State      LivenessState
	LastPongAt time.Time
	RTT        time.Duration
}

// LivenessMonitor pings every tracked connection once per period and evicts
// the ones that did not answer the previous ping.
//
//	ALIVE -(ping)-> AWAITING_PONG -(pong)-> ALIVE
//	AWAITING_PONG -(next tick, no pong)-> DEAD -> evicted
//
// Eviction unregisters the connection from the registry, closes it and runs
// the OnEvict callbacks. A ping issued by MarkSuspect less than half a period
// before a tick is given one more cycle.
type LivenessMonitor struct {
	transport models.Transport
	period    time.Duration
	registry  *Registry

	mu      sync.Mutex
	peers   map[string]*peer
	onEvict []func(Conn)
	now     func() time.Time
}

// NewLivenessMonitor creates a monitor for one transport.
func NewLivenessMonitor(transport models.Transport, period time.Duration, registry *Registry) *LivenessMonitor {
	if period <= 0 {
		period = DefaultPingPeriod
	}
	return &LivenessMonitor{
		transport: transport,
		period:    period,
		registry:  registry,
		peers:     make(map[string]*peer),
		now:       time.Now,
	}
}

// OnEvict registers a callback run after a connection is evicted.
func (m *LivenessMonitor) OnEvict(fn func(Conn)) {
	m.mu.Lock()
	m.onEvict = append(m.onEvict, fn)
	m.mu.Unlock()
}

// Period returns the ping period.
func (m *LivenessMonitor) Period() time.Duration {
	return m.period
}

// Transport returns the transport this monitor watches.
func (m *LivenessMonitor) Transport() models.Transport {
	return m.transport
}

// Track starts monitoring a connection in the ALIVE state.
func (m *LivenessMonitor) Track(c Conn) {
	now := m.now()
	m.mu.Lock()
	m.peers[c.ID()] = &peer{conn: c, state: StateAlive, lastPongAt: now}
	m.mu.Unlock()
}

// Untrack stops monitoring a connection. Unknown ids are ignored.
func (m *LivenessMonitor) Untrack(id string) {
	m.mu.Lock()
	delete(m.peers, id)
	m.mu.Unlock()
}

// MarkPong records a heartbeat response and returns the measured round trip.
func (m *LivenessMonitor) MarkPong(id string) (time.Duration, bool) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.peers[id]
	if !ok {
		return 0, false
	}
	if p.state == StateAwaitingPong && !p.lastPingAt.IsZero() {
		p.rtt = now.Sub(p.lastPingAt)
	}
	p.state = StateAlive
	p.lastPongAt = now
	return p.rtt, true
}

// MarkSuspect asks for an out-of-cycle heartbeat after a send failure.
// An ALIVE connection gets a ping requested and moves to AWAITING_PONG.
func (m *LivenessMonitor) MarkSuspect(id string) {
	now := m.now()
	m.mu.Lock()
	p, ok := m.peers[id]
	if !ok || p.state != StateAlive {
		m.mu.Unlock()
		return
	}
	p.state = StateAwaitingPong
	p.lastPingAt = now
	conn := p.conn
	m.mu.Unlock()

	if err := conn.Ping(); err != nil {
		logging.Debug().Err(err).Str("conn_id", id).Msg("suspect ping failed")
	}
}

// Status returns the current heartbeat status of a connection.
func (m *LivenessMonitor) Status(id string) (PeerStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.peers[id]
	if !ok {
		return PeerStatus{State: StateDead}, false
	}
	return PeerStatus{State: p.state, LastPongAt: p.lastPongAt, RTT: p.rtt}, true
}

// Tracked returns the number of monitored connections.
func (m *LivenessMonitor) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.peers)
}

// Tick runs one heartbeat cycle and returns the ids evicted during it.
func (m *LivenessMonitor) Tick() []string {
	now := m.now()
	grace := m.period / 2

	m.mu.Lock()
	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var dead, ping []Conn
	for _, id := range ids {
		p := m.peers[id]
		switch p.state {
		case StateAwaitingPong:
			if now.Sub(p.lastPingAt) < grace {
				continue
			}
			p.state = StateDead
			delete(m.peers, id)
			dead = append(dead, p.conn)
		case StateAlive:
			p.state = StateAwaitingPong
			p.lastPingAt = now
			ping = append(ping, p.conn)
		}
	}
	callbacks := append([]func(Conn){}, m.onEvict...)
	m.mu.Unlock()

	evicted := make([]string, 0, len(dead))
	for _, c := range dead {
		m.evict(c, callbacks)
		evicted = append(evicted, c.ID())
	}

	for _, c := range ping {
		if err := c.Ping(); err != nil {
			logging.Debug().
				Err(err).
				Str("conn_id", c.ID()).
				Str("transport", string(m.transport)).
				Msg("heartbeat ping failed")
		}
	}
	return evicted
}

func (m *LivenessMonitor) evict(c Conn, callbacks []func(Conn)) {
	if m.registry != nil {
		m.registry.Unregister(c.ID())
	}
	_ = c.Close() // best-effort, the socket may already be gone

	metrics.RecordEviction(string(m.transport))
	logging.Info().
		Str("component", "liveness").
		Str("conn_id", c.ID()).
		Str("transport", string(m.transport)).
		Dur("period", m.period).
		Msg("evicted connection after missed heartbeat")

	for _, fn := range callbacks {
		fn(c)
	}
}

// Run ticks every period until ctx is canceled.
func (m *LivenessMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Tick()
		}
	}
}

// String names the monitor for supervisor logs.
func (m *LivenessMonitor) String() string {
	return "liveness-" + string(m.transport)
}
