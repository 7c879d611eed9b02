// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/threatcast/internal/models"
)

// Conn is a live transport handle as seen by the broker.
//
// None of the methods may block on the network: the broker calls them while
// holding the ingest lock and from every cadence. Send enqueues a
// pre-serialized frame or returns ErrSendBufferFull / ErrConnectionClosed.
// Ping requests a heartbeat control frame. Close is idempotent and discards
// queued frames.
type Conn interface {
	ID() string
	Transport() models.Transport
	Send(frame []byte) error
	Ping() error
	Close() error
}

// Subscriber pairs a connection with its filter for one room.
type Subscriber struct {
	Conn   Conn
	Filter *models.FilterSpec
}

type connEntry struct {
	conn        Conn
	seq         uint64
	connectedAt time.Time
	rooms       map[models.Room]*models.FilterSpec
}

// Registry tracks live connections and their room subscriptions.
//
// All mutations go through its methods. Operations on an unknown connection
// id are no-ops that report false, since disconnect races are expected.
// Iteration results are ordered by registration sequence.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connEntry
	seq   uint64
	now   func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*connEntry),
		now:   time.Now,
	}
}

// Register adds a connection with no subscriptions.
// Returns false if a connection with the same id is already registered.
func (r *Registry) Register(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[c.ID()]; exists {
		return false
	}
	r.seq++
	r.conns[c.ID()] = &connEntry{
		conn:        c,
		seq:         r.seq,
		connectedAt: r.now(),
		rooms:       make(map[models.Room]*models.FilterSpec),
	}
	return true
}

// Unregister removes a connection and all of its subscriptions.
func (r *Registry) Unregister(id string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	return entry.conn, true
}

// Join subscribes a connection to a room. Rejoining a room replaces the filter.
func (r *Registry) Join(id string, room models.Room, filter *models.FilterSpec) bool {
	if !room.Valid() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[id]
	if !ok {
		return false
	}
	entry.rooms[room] = filter.Clone()
	return true
}

// UpdateFilter replaces the filter of an existing subscription.
// Returns false if the connection is unknown or not in the room.
func (r *Registry) UpdateFilter(id string, room models.Room, filter *models.FilterSpec) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[id]
	if !ok {
		return false
	}
	if _, joined := entry.rooms[room]; !joined {
		return false
	}
	entry.rooms[room] = filter.Clone()
	return true
}

// Leave removes one subscription.
func (r *Registry) Leave(id string, room models.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[id]
	if !ok {
		return false
	}
	if _, joined := entry.rooms[room]; !joined {
		return false
	}
	delete(entry.rooms, room)
	return true
}

// LeaveAll removes every subscription of a connection and returns how many there were.
// The connection itself stays registered.
func (r *Registry) LeaveAll(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[id]
	if !ok {
		return 0
	}
	n := len(entry.rooms)
	entry.rooms = make(map[models.Room]*models.FilterSpec)
	return n
}

// SubscribersOf returns every subscriber of a room.
func (r *Registry) SubscribersOf(room models.Room) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*connEntry, 0, len(r.conns))
	for _, entry := range r.conns {
		if _, joined := entry.rooms[room]; joined {
			entries = append(entries, entry)
		}
	}
	sortEntries(entries)

	out := make([]Subscriber, len(entries))
	for i, entry := range entries {
		out[i] = Subscriber{Conn: entry.conn, Filter: entry.rooms[room]}
	}
	return out
}

// Connections returns every registered connection.
func (r *Registry) Connections() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*connEntry, 0, len(r.conns))
	for _, entry := range r.conns {
		entries = append(entries, entry)
	}
	sortEntries(entries)

	out := make([]Conn, len(entries))
	for i, entry := range entries {
		out[i] = entry.conn
	}
	return out
}

// Get returns the connection registered under id.
func (r *Registry) Get(id string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return entry.conn, true
}

// Filter returns a copy of the filter a connection uses in a room.
func (r *Registry) Filter(id string, room models.Room) (*models.FilterSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	f, joined := entry.rooms[room]
	if !joined {
		return nil, false
	}
	return f.Clone(), true
}

// Rooms returns the rooms a connection has joined, sorted by name.
func (r *Registry) Rooms(id string) []models.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.conns[id]
	if !ok {
		return nil
	}
	rooms := make([]models.Room, 0, len(entry.rooms))
	for room := range entry.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms
}

// ConnectedAt returns when a connection was registered.
func (r *Registry) ConnectedAt(id string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.conns[id]
	if !ok {
		return time.Time{}, false
	}
	return entry.connectedAt, true
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CountByTransport returns the number of connections per transport.
// Both transports are always present in the result.
func (r *Registry) CountByTransport() map[models.Transport]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := map[models.Transport]int{
		models.TransportRooms:  0,
		models.TransportStream: 0,
	}
	for _, entry := range r.conns {
		out[entry.conn.Transport()]++
	}
	return out
}

func sortEntries(entries []*connEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})
}
