// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tomtom215/threatcast/internal/cache"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/metrics"
	"github.com/tomtom215/threatcast/internal/models"
	"github.com/tomtom215/threatcast/internal/validation"
)

// Ingestion sources used as metric labels.
const (
	SourceWebSocket = "websocket"
	SourceNATS      = "nats"
	SourceHTTP      = "http"
)

// ErrDuplicateEvent is returned when a producer resends an id seen recently.
var ErrDuplicateEvent = errors.New("duplicate event id")

// Scorer turns raw producer features into a score, severity and category.
type Scorer interface {
	Score(ctx context.Context, features map[string]float64) (models.Assessment, error)
}

// EventNotifier is told about every event right after it is buffered.
type EventNotifier interface {
	NotifyNewEvent(e *models.Event)
}

// EventSink receives accepted events for best-effort persistence.
// Enqueue must not block.
type EventSink interface {
	Enqueue(e *models.Event)
}

// RawEvent is the producer-supplied event shape. The "sourceIp",
// "destinationIp" and "type" aliases are accepted for agents that report
// raw network data.
type RawEvent struct {
	ID                 string             `json:"id" validate:"omitempty,max=128"`
	Timestamp          json.RawMessage    `json:"timestamp,omitempty"`
	SourceAddress      string             `json:"sourceAddress" validate:"required,max=256"`
	SourceIP           string             `json:"sourceIp,omitempty"`
	DestinationAddress string             `json:"destinationAddress" validate:"required,max=256"`
	DestinationIP      string             `json:"destinationIp,omitempty"`
	Category           string             `json:"category,omitempty" validate:"max=128"`
	Type               string             `json:"type,omitempty"`
	Severity           string             `json:"severity,omitempty" validate:"omitempty,severity"`
	Score              *float64           `json:"score,omitempty" validate:"omitempty,gte=0,lte=1"`
	Blocked            bool               `json:"blocked,omitempty"`
	Features           map[string]float64 `json:"features,omitempty"`
	Payload            json.RawMessage    `json:"payload,omitempty"`
}

func (r *RawEvent) normalize() {
	if r.SourceAddress == "" {
		r.SourceAddress = r.SourceIP
	}
	if r.DestinationAddress == "" {
		r.DestinationAddress = r.DestinationIP
	}
	if r.Category == "" {
		r.Category = r.Type
	}
}

// Envelope is the producer message shape: {type, data, timestamp} where data
// is one raw event or an array of them.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

// IngestResult summarizes one envelope or batch.
type IngestResult struct {
	Accepted []*models.Event
	Rejected int
	Errors   []error
}

// IngestorConfig configures the ingestion adapter.
type IngestorConfig struct {
	// DedupWindow is how long producer-supplied ids are remembered. Zero disables.
	DedupWindow time.Duration
	// DedupCapacity bounds the number of remembered ids.
	DedupCapacity int
	// ScorerTimeout bounds a single scorer call.
	ScorerTimeout time.Duration
}

// Ingestor validates producer events, appends them to the event buffer and
// notifies the broadcaster.
//
// Append and notify happen under one lock, so a subscriber notified of an
// event always finds it in the buffer and notifications follow buffer order.
// Ingest never blocks on consumers: the buffer drops its oldest event when
// full.
type Ingestor struct {
	buffer   *EventBuffer
	notifier EventNotifier
	scorer   Scorer
	sink     EventSink
	seen     *cache.IDWindow
	timeout  time.Duration

	mu   sync.Mutex
	last time.Time
	now  func() time.Time

	rejectLog rate.Sometimes
}

// NewIngestor creates an ingestion adapter. scorer and sink may be nil.
func NewIngestor(cfg IngestorConfig, buffer *EventBuffer, notifier EventNotifier, scorer Scorer, sink EventSink) *Ingestor {
	in := &Ingestor{
		buffer:    buffer,
		notifier:  notifier,
		scorer:    scorer,
		sink:      sink,
		timeout:   cfg.ScorerTimeout,
		now:       time.Now,
		rejectLog: rate.Sometimes{First: 10, Interval: time.Second},
	}
	if in.timeout <= 0 {
		in.timeout = 2 * time.Second
	}
	if cfg.DedupWindow > 0 {
		in.seen = cache.NewIDWindow(cfg.DedupCapacity, cfg.DedupWindow)
	}
	return in
}

// Ingest validates and buffers one raw event.
// Malformed input yields a *ValidationError; the caller logs and drops it.
func (in *Ingestor) Ingest(ctx context.Context, source string, raw *RawEvent) (*models.Event, error) {
	e, err := in.build(ctx, raw)
	if err != nil {
		in.reject(source, err)
		return nil, err
	}

	if raw.ID != "" && in.seen != nil && in.seen.Seen(raw.ID) {
		logging.Debug().Str("event_id", raw.ID).Str("source", source).Msg("dropping duplicate event")
		metrics.RecordRejected(source, "duplicate")
		return nil, ErrDuplicateEvent
	}

	in.mu.Lock()
	received := in.now().UTC()
	if received.Before(in.last) {
		received = in.last
	}
	in.last = received
	e.ReceivedAt = received
	if e.Timestamp.IsZero() {
		e.Timestamp = received
	}
	in.buffer.Append(e)
	if in.notifier != nil {
		in.notifier.NotifyNewEvent(e)
	}
	in.mu.Unlock()

	metrics.RecordIngested(source, e.Severity.String())
	metrics.BufferSize.WithLabelValues("events").Set(float64(in.buffer.Len()))

	if in.sink != nil {
		in.sink.Enqueue(e)
	}
	return e, nil
}

// IngestEnvelope decodes a producer envelope and ingests every event it carries.
// A body without a data field is treated as a bare event or array of events.
func (in *Ingestor) IngestEnvelope(ctx context.Context, source string, body []byte) IngestResult {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		raws, rawErr := decodeRawEvents(body)
		if rawErr != nil {
			verr := &ValidationError{Field: "envelope", Message: "malformed JSON", Err: err}
			in.reject(source, verr)
			return IngestResult{Rejected: 1, Errors: []error{verr}}
		}
		return in.ingestAll(ctx, source, raws, nil)
	}

	payload := env.Data
	if len(bytes.TrimSpace(payload)) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		payload = body
	}
	raws, err := decodeRawEvents(payload)
	if err != nil {
		verr := &ValidationError{Field: "data", Message: "expected an event object or array", Err: err}
		in.reject(source, verr)
		return IngestResult{Rejected: 1, Errors: []error{verr}}
	}
	return in.ingestAll(ctx, source, raws, env.Timestamp)
}

func (in *Ingestor) ingestAll(ctx context.Context, source string, raws []RawEvent, envTimestamp json.RawMessage) IngestResult {
	res := IngestResult{Accepted: make([]*models.Event, 0, len(raws))}
	for i := range raws {
		raw := &raws[i]
		if len(raw.Timestamp) == 0 && len(envTimestamp) > 0 {
			raw.Timestamp = envTimestamp
		}
		e, err := in.Ingest(ctx, source, raw)
		if err != nil {
			res.Rejected++
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Accepted = append(res.Accepted, e)
	}
	return res
}

func (in *Ingestor) build(ctx context.Context, raw *RawEvent) (*models.Event, error) {
	raw.normalize()

	if verr := validation.ValidateStruct(raw); verr != nil {
		field := ""
		if fields := verr.Fields(); len(fields) > 0 {
			field = fields[0]
		}
		return nil, &ValidationError{Field: field, Message: verr.Error(), Err: verr}
	}
	if raw.Severity == "" && raw.Score == nil && len(raw.Features) == 0 {
		return nil, &ValidationError{Field: "severity", Message: "severity or score is required"}
	}

	ts, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return nil, &ValidationError{Field: "timestamp", Message: err.Error(), Err: err}
	}

	e := &models.Event{
		ID:                 raw.ID,
		Timestamp:          ts,
		SourceAddress:      raw.SourceAddress,
		DestinationAddress: raw.DestinationAddress,
		Category:           raw.Category,
		Blocked:            raw.Blocked,
		Payload:            raw.Payload,
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	var assessed *models.Assessment
	if raw.Score == nil && raw.Severity == "" {
		a, err := in.score(ctx, raw.Features)
		if err != nil {
			return nil, err
		}
		assessed = &a
	}

	switch {
	case raw.Score != nil:
		e.Score = *raw.Score
	case assessed != nil:
		e.Score = assessed.Score
	}

	switch {
	case raw.Severity != "":
		// validated above
		e.Severity, _ = models.ParseSeverity(raw.Severity)
	case raw.Score != nil:
		e.Severity = models.SeverityFromScore(*raw.Score)
	case assessed != nil:
		e.Severity = assessed.Severity
	}

	if e.Category == "" && assessed != nil {
		e.Category = assessed.Category
	}
	return e, nil
}

func (in *Ingestor) score(ctx context.Context, features map[string]float64) (models.Assessment, error) {
	if in.scorer == nil {
		return models.Assessment{}, &ValidationError{Field: "score", Message: "features supplied but no scorer is configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	a, err := in.scorer.Score(ctx, features)
	metrics.RecordScorerCall(err)
	if err != nil {
		return models.Assessment{}, fmt.Errorf("%w: scorer: %v", ErrCollaboratorUnavailable, err)
	}
	if !a.Severity.Valid() {
		a.Severity = models.SeverityFromScore(a.Score)
	}
	return a, nil
}

func (in *Ingestor) reject(source string, err error) {
	var ve *ValidationError
	field := "collaborator"
	if errors.As(err, &ve) {
		field = ve.Field
	}
	metrics.RecordRejected(source, field)

	in.rejectLog.Do(func() {
		logging.Warn().Err(err).Str("source", source).Str("field", field).Msg("dropping producer event")
	})
}

// decodeRawEvents accepts a single JSON object or an array of objects.
func decodeRawEvents(data []byte) ([]RawEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}

	switch trimmed[0] {
	case '[':
		var raws []RawEvent
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, err
		}
		return raws, nil
	case '{':
		var raw RawEvent
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, err
		}
		return []RawEvent{raw}, nil
	default:
		return nil, fmt.Errorf("unexpected JSON token %q", trimmed[0])
	}
}

// maxEpochMillis is 9999-12-31T23:59:59.999Z.
const maxEpochMillis = 253402300799999

// parseTimestamp accepts an RFC 3339 string or a non-negative Unix epoch
// number in seconds or milliseconds, up to maxEpochMillis. An absent or
// null value yields the zero time.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return time.Time{}, nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp must be RFC 3339: %w", err)
		}
		return t.UTC(), nil
	}

	n, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be a string or number: %w", err)
	}
	if !(n >= 0 && n <= maxEpochMillis) {
		return time.Time{}, fmt.Errorf("timestamp %s is outside the epoch range", trimmed)
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC(), nil
	}
	sec := int64(n)
	return time.Unix(sec, int64((n-float64(sec))*1e9)).UTC(), nil
}
