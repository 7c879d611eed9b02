// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/threatcast/internal/broker"
)

// Producer sends event envelopes to the broker's /ws/ingest endpoint.
type Producer struct {
	conn *ReconnectingConn
}

// NewProducer creates a producer for the broker at baseURL.
func NewProducer(baseURL string, opts Options) (*Producer, error) {
	u, err := EndpointURL(baseURL, "/ws/ingest")
	if err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = "ingest"
	}
	return &Producer{conn: NewReconnectingConn(u, opts)}, nil
}

// Run keeps the producer connected until ctx is canceled.
func (p *Producer) Run(ctx context.Context) error {
	return p.conn.Run(ctx)
}

// Conn returns the underlying connection.
func (p *Producer) Conn() *ReconnectingConn {
	return p.conn
}

// Publish sends events as one envelope. It returns ErrNotConnected while the
// connection is down; callers drop or retry.
func (p *Producer) Publish(_ context.Context, events []broker.RawEvent, now time.Time) error {
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	return p.conn.Send(broker.Envelope{
		Type:      "REAL_NETWORK_DATA",
		Data:      data,
		Timestamp: json.RawMessage(fmt.Sprintf("%d", now.UnixMilli())),
	})
}
