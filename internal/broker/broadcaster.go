// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/metrics"
	"github.com/tomtom215/threatcast/internal/models"
)

// Frame kinds used as metric labels.
const (
	KindBatch    = "batch"
	KindUpdate   = "update"
	KindAlert    = "alert"
	KindTopology = "topology"
	KindStats    = "stats"
)

// Codec serializes broker payloads into one transport's wire frames.
type Codec interface {
	EventBatch(events []*models.Event) ([]byte, error)
	EventUpdate(e *models.Event) ([]byte, error)
	Alert(e *models.Event) ([]byte, error)
	Topology(t *models.Topology) ([]byte, error)
	Stats(s *models.RealTimeStats) ([]byte, error)
}

type suspectMarker interface {
	MarkSuspect(id string)
}

// BroadcasterConfig holds the cadences and window sizes of the broadcaster.
type BroadcasterConfig struct {
	EventInterval    time.Duration
	TopologyInterval time.Duration
	StatsInterval    time.Duration

	// BatchSize is k in Recent(k) for the event-stream tick.
	BatchSize int
	// TopologyWindow is how many recent events feed a topology snapshot.
	TopologyWindow int
	StatsWindow    time.Duration
	TopK           int

	// ImmediateUpdates pushes every admitted event to rooms-transport
	// subscribers as a single threatUpdate in addition to the batched tick.
	ImmediateUpdates bool
}

// DefaultBroadcasterConfig returns the standard cadences.
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		EventInterval:    2 * time.Second,
		TopologyInterval: 10 * time.Second,
		StatsInterval:    5 * time.Second,
		BatchSize:        50,
		TopologyWindow:   DefaultStreamCapacity,
		StatsWindow:      time.Minute,
		TopK:             10,
	}
}

func (c *BroadcasterConfig) applyDefaults() {
	d := DefaultBroadcasterConfig()
	if c.EventInterval <= 0 {
		c.EventInterval = d.EventInterval
	}
	if c.TopologyInterval <= 0 {
		c.TopologyInterval = d.TopologyInterval
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = d.StatsInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.TopologyWindow <= 0 {
		c.TopologyWindow = d.TopologyWindow
	}
	if c.StatsWindow <= 0 {
		c.StatsWindow = d.StatsWindow
	}
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
}

// Broadcaster pushes buffered events, alerts, topology snapshots and stats
// to registered connections.
//
// Each frame is serialized once per transport (and per filter for filtered
// payloads) within a pass. A failed send to one connection is logged,
// counted and reported to that transport's liveness monitor; the pass
// continues with the remaining connections.
type Broadcaster struct {
	cfg        BroadcasterConfig
	registry   *Registry
	events     *EventBuffer
	alerts     *EventBuffer
	classifier AddressClassifier
	codecs     map[models.Transport]Codec
	suspects   map[models.Transport]suspectMarker
	now        func() time.Time
}

// NewBroadcaster creates a broadcaster over the given registry and buffers.
func NewBroadcaster(cfg BroadcasterConfig, registry *Registry, events, alerts *EventBuffer, classifier AddressClassifier) *Broadcaster {
	cfg.applyDefaults()
	if alerts == nil {
		alerts = NewEventBuffer(DefaultAlertCapacity)
	}
	return &Broadcaster{
		cfg:        cfg,
		registry:   registry,
		events:     events,
		alerts:     alerts,
		classifier: classifier,
		codecs:     make(map[models.Transport]Codec),
		suspects:   make(map[models.Transport]suspectMarker),
		now:        time.Now,
	}
}

// SetCodec installs the frame codec for a transport.
// Connections of a transport without a codec receive nothing.
func (b *Broadcaster) SetCodec(t models.Transport, c Codec) {
	b.codecs[t] = c
}

// AttachLiveness routes send failures on the monitor's transport to it.
func (b *Broadcaster) AttachLiveness(m *LivenessMonitor) {
	b.suspects[m.Transport()] = m
}

// Config returns the effective configuration.
func (b *Broadcaster) Config() BroadcasterConfig {
	return b.cfg
}

// Alerts returns the alert buffer.
func (b *Broadcaster) Alerts() *EventBuffer {
	return b.alerts
}

// NotifyNewEvent is called by the ingestion adapter after e has been appended
// to the event buffer. HIGH and CRITICAL events are recorded in the alert
// buffer and pushed at once to every events-room subscriber on both
// transports, gated by severity only.
func (b *Broadcaster) NotifyNewEvent(e *models.Event) {
	if b.cfg.ImmediateUpdates {
		b.pushUpdate(e)
	}
	if !e.Severity.IsPriority() {
		return
	}

	b.alerts.Append(e)
	metrics.BufferSize.WithLabelValues("alerts").Set(float64(b.alerts.Len()))

	frames := make(map[models.Transport][]byte, len(b.codecs))
	for _, sub := range b.registry.SubscribersOf(models.RoomEvents) {
		if !MatchesSeverity(e, sub.Filter) {
			continue
		}
		t := sub.Conn.Transport()
		frame, ok := frames[t]
		if !ok {
			frame = b.encode(t, KindAlert, func(c Codec) ([]byte, error) { return c.Alert(e) })
			frames[t] = frame
		}
		if frame != nil {
			b.deliver(sub.Conn, frame, KindAlert)
		}
	}
}

func (b *Broadcaster) pushUpdate(e *models.Event) {
	codec, ok := b.codecs[models.TransportRooms]
	if !ok {
		return
	}
	var frame []byte
	for _, sub := range b.registry.SubscribersOf(models.RoomEvents) {
		if sub.Conn.Transport() != models.TransportRooms || !Matches(e, sub.Filter) {
			continue
		}
		if frame == nil {
			var err error
			if frame, err = codec.EventUpdate(e); err != nil {
				logging.Error().Err(err).Str("event_id", e.ID).Msg("failed to encode event update")
				return
			}
		}
		b.deliver(sub.Conn, frame, KindUpdate)
	}
}

type memoFrame struct {
	frame []byte
	empty bool
}

// BroadcastEvents runs one event-stream pass: every events-room subscriber
// receives Recent(BatchSize) filtered by its own filter, or nothing when the
// filtered batch is empty.
func (b *Broadcaster) BroadcastEvents() int {
	start := time.Now()
	defer func() { metrics.RecordBroadcast("events", time.Since(start)) }()

	subs := b.registry.SubscribersOf(models.RoomEvents)
	if len(subs) == 0 {
		return 0
	}

	snapshot := b.events.Recent(b.cfg.BatchSize)
	memo := make(map[string]memoFrame)
	sent := 0
	for _, sub := range subs {
		t := sub.Conn.Transport()
		key := string(t) + "\x00" + sub.Filter.Fingerprint()

		m, ok := memo[key]
		if !ok {
			batch := FilterEvents(snapshot, sub.Filter)
			if len(batch) == 0 {
				m = memoFrame{empty: true}
			} else {
				m = memoFrame{frame: b.encode(t, KindBatch, func(c Codec) ([]byte, error) { return c.EventBatch(batch) })}
				m.empty = m.frame == nil
			}
			memo[key] = m
		}
		if m.empty {
			continue
		}
		if b.deliver(sub.Conn, m.frame, KindBatch) {
			sent++
		}
	}
	return sent
}

// Topology builds a snapshot from the most recent TopologyWindow events.
func (b *Broadcaster) Topology() *models.Topology {
	return BuildTopology(b.events.Recent(b.cfg.TopologyWindow), b.classifier, b.now())
}

// BroadcastTopology pushes a full topology snapshot to the topology room.
func (b *Broadcaster) BroadcastTopology() int {
	start := time.Now()
	defer func() { metrics.RecordBroadcast("topology", time.Since(start)) }()

	subs := b.registry.SubscribersOf(models.RoomTopology)
	if len(subs) == 0 {
		return 0
	}

	topo := b.Topology()
	conns := make([]Conn, len(subs))
	for i := range subs {
		conns[i] = subs[i].Conn
	}
	return b.fanOut(conns, KindTopology, func(c Codec) ([]byte, error) { return c.Topology(topo) })
}

// Stats computes aggregates over the trailing stats window.
func (b *Broadcaster) Stats() *models.RealTimeStats {
	now := b.now()
	stats := ComputeStats(b.events.Since(now.Add(-b.cfg.StatsWindow)), b.cfg.StatsWindow, b.cfg.TopK, now)
	stats.ConnectedClients = b.registry.CountByTransport()
	return stats
}

// BroadcastStats pushes aggregate stats to every connection regardless of room.
func (b *Broadcaster) BroadcastStats() int {
	start := time.Now()
	defer func() { metrics.RecordBroadcast("stats", time.Since(start)) }()

	conns := b.registry.Connections()
	if len(conns) == 0 {
		return 0
	}

	stats := b.Stats()
	return b.fanOut(conns, KindStats, func(c Codec) ([]byte, error) { return c.Stats(stats) })
}

// SendStats pushes current stats to a single connection.
func (b *Broadcaster) SendStats(c Conn) bool {
	stats := b.Stats()
	frame := b.encode(c.Transport(), KindStats, func(cd Codec) ([]byte, error) { return cd.Stats(stats) })
	return frame != nil && b.deliver(c, frame, KindStats)
}

// SendTopology pushes a current topology snapshot to a single connection.
func (b *Broadcaster) SendTopology(c Conn) bool {
	topo := b.Topology()
	frame := b.encode(c.Transport(), KindTopology, func(cd Codec) ([]byte, error) { return cd.Topology(topo) })
	return frame != nil && b.deliver(c, frame, KindTopology)
}

// ReplayAlerts sends the buffered alerts admitted by the severity rule of f
// to a newly subscribed connection as one batch.
func (b *Broadcaster) ReplayAlerts(c Conn, f *models.FilterSpec) bool {
	recent := b.alerts.Recent(b.alerts.Cap())
	batch := make([]*models.Event, 0, len(recent))
	for _, e := range recent {
		if MatchesSeverity(e, f) {
			batch = append(batch, e)
		}
	}
	if len(batch) == 0 {
		return false
	}
	frame := b.encode(c.Transport(), KindBatch, func(cd Codec) ([]byte, error) { return cd.EventBatch(batch) })
	return frame != nil && b.deliver(c, frame, KindBatch)
}

func (b *Broadcaster) fanOut(conns []Conn, kind string, build func(Codec) ([]byte, error)) int {
	frames := make(map[models.Transport][]byte, len(b.codecs))
	sent := 0
	for _, c := range conns {
		t := c.Transport()
		frame, ok := frames[t]
		if !ok {
			frame = b.encode(t, kind, build)
			frames[t] = frame
		}
		if frame == nil {
			continue
		}
		if b.deliver(c, frame, kind) {
			sent++
		}
	}
	return sent
}

func (b *Broadcaster) encode(t models.Transport, kind string, build func(Codec) ([]byte, error)) []byte {
	codec, ok := b.codecs[t]
	if !ok {
		return nil
	}
	frame, err := build(codec)
	if err != nil {
		logging.Error().Err(err).Str("transport", string(t)).Str("kind", kind).Msg("failed to encode frame")
		return nil
	}
	return frame
}

func (b *Broadcaster) deliver(c Conn, frame []byte, kind string) bool {
	if err := c.Send(frame); err != nil {
		b.sendFailed(c, kind, err)
		return false
	}
	metrics.RecordSent(string(c.Transport()), kind)
	return true
}

func (b *Broadcaster) sendFailed(c Conn, kind string, err error) {
	errType := "write_failed"
	switch {
	case errors.Is(err, ErrSendBufferFull):
		errType = "buffer_full"
	case errors.Is(err, ErrConnectionClosed):
		errType = "closed"
	}
	metrics.RecordSendError(string(c.Transport()), errType)

	logging.Warn().
		Err(&TransportSendError{ConnID: c.ID(), Err: err}).
		Str("transport", string(c.Transport())).
		Str("kind", kind).
		Msg("broadcast send failed")

	if m, ok := b.suspects[c.Transport()]; ok {
		m.MarkSuspect(c.ID())
	}
}

// Cadence is one periodic broadcast loop.
type Cadence struct {
	name   string
	period time.Duration
	tick   func()
}

// Run ticks every period until ctx is canceled.
func (c *Cadence) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.tick()
		}
	}
}

// Period returns the tick period.
func (c *Cadence) Period() time.Duration {
	return c.period
}

// String names the cadence for supervisor logs.
func (c *Cadence) String() string {
	return c.name
}

// Cadences returns the three independent broadcast loops.
func (b *Broadcaster) Cadences() []*Cadence {
	return []*Cadence{
		{name: "broadcast-events", period: b.cfg.EventInterval, tick: func() { b.BroadcastEvents() }},
		{name: "broadcast-topology", period: b.cfg.TopologyInterval, tick: func() { b.BroadcastTopology() }},
		{name: "broadcast-stats", period: b.cfg.StatsInterval, tick: func() { b.BroadcastStats() }},
	}
}
