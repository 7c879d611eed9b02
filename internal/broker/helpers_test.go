// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// fakeConn records frames instead of writing to a socket.
type fakeConn struct {
	id        string
	transport models.Transport

	mu      sync.Mutex
	frames  []string
	pings   int
	closed  bool
	sendErr error
	pingErr error
}

func newFakeConn(id string, t models.Transport) *fakeConn {
	return &fakeConn{id: id, transport: t}
}

func (c *fakeConn) ID() string                  { return c.id }
func (c *fakeConn) Transport() models.Transport { return c.transport }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, string(frame))
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return c.pingErr
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func (c *fakeConn) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) setSendErr(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// textCodec renders frames as "<transport>:<kind>:<ids>" and counts encodes.
type textCodec struct {
	name string

	mu      sync.Mutex
	encodes map[string]int
}

func newTextCodec(name string) *textCodec {
	return &textCodec{name: name, encodes: make(map[string]int)}
}

func (c *textCodec) count(kind string) {
	c.mu.Lock()
	c.encodes[kind]++
	c.mu.Unlock()
}

func (c *textCodec) Encodes(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encodes[kind]
}

func ids(events []*models.Event) string {
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = e.ID
	}
	return strings.Join(parts, ",")
}

func (c *textCodec) EventBatch(events []*models.Event) ([]byte, error) {
	c.count(KindBatch)
	return []byte(fmt.Sprintf("%s:batch:%s", c.name, ids(events))), nil
}

func (c *textCodec) EventUpdate(e *models.Event) ([]byte, error) {
	c.count(KindUpdate)
	return []byte(fmt.Sprintf("%s:update:%s", c.name, e.ID)), nil
}

func (c *textCodec) Alert(e *models.Event) ([]byte, error) {
	c.count(KindAlert)
	return []byte(fmt.Sprintf("%s:alert:%s", c.name, e.ID)), nil
}

func (c *textCodec) Topology(t *models.Topology) ([]byte, error) {
	c.count(KindTopology)
	return []byte(fmt.Sprintf("%s:topology:%d", c.name, len(t.Edges))), nil
}

func (c *textCodec) Stats(s *models.RealTimeStats) ([]byte, error) {
	c.count(KindStats)
	return []byte(fmt.Sprintf("%s:stats:%d", c.name, s.TotalEvents)), nil
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testEvent(id string, sev models.Severity, score float64) *models.Event {
	return &models.Event{
		ID:                 id,
		Timestamp:          baseTime,
		ReceivedAt:         baseTime,
		SourceAddress:      "10.0.0.5",
		DestinationAddress: "203.0.113.9",
		Category:           "MALWARE",
		Severity:           sev,
		Score:              score,
	}
}

func floatPtr(v float64) *float64 { return &v }
