// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package eventprocessor

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/metrics"
)

// EnvelopeIngester is the part of broker.Ingestor the consumer needs.
type EnvelopeIngester interface {
	IngestEnvelope(ctx context.Context, source string, body []byte) broker.IngestResult
}

// IngestConsumer feeds NATS messages into the ingestion adapter.
type IngestConsumer struct {
	subscriber message.Subscriber
	topic      string
	ingester   EnvelopeIngester
}

// NewIngestConsumer creates a consumer for topic.
func NewIngestConsumer(sub message.Subscriber, topic string, in EnvelopeIngester) *IngestConsumer {
	if topic == "" {
		topic = DefaultIngestSubject
	}
	return &IngestConsumer{subscriber: sub, topic: topic, ingester: in}
}

// Serve consumes until ctx is canceled or the subscription channel closes.
func (c *IngestConsumer) Serve(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}

	logging.Info().Str("topic", c.topic).Msg("NATS ingest consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *IngestConsumer) handle(ctx context.Context, msg *message.Message) {
	metrics.RecordNATSConsumed()

	res := c.ingester.IngestEnvelope(ctx, broker.SourceNATS, msg.Payload)
	if res.Rejected > 0 {
		logging.Debug().
			Str("message_uuid", msg.UUID).
			Int("accepted", len(res.Accepted)).
			Int("rejected", res.Rejected).
			Msg("NATS envelope partially rejected")
	}
	msg.Ack()
}

// Close closes the underlying subscriber.
func (c *IngestConsumer) Close() error {
	return c.subscriber.Close()
}

// String names the service for supervisor logs.
func (c *IngestConsumer) String() string {
	return "nats-ingest-consumer"
}
