// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package eventprocessor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/logging"
)

//nolint:gochecknoinits // quiet logs in tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type recordingIngester struct {
	mu     sync.Mutex
	bodies []string
	source string
}

func (r *recordingIngester) IngestEnvelope(_ context.Context, source string, body []byte) broker.IngestResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = source
	r.bodies = append(r.bodies, string(body))
	return broker.IngestResult{Rejected: 1}
}

func (r *recordingIngester) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestIngestConsumer_AcksEveryMessage(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{BlockPublishUntilSubscriberAck: true}, watermill.NopLogger{})
	defer pubsub.Close()

	in := &recordingIngester{}
	c := NewIngestConsumer(pubsub, "", in)
	if c.topic != DefaultIngestSubject {
		t.Fatalf("topic = %s, want default", c.topic)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	// gochannel drops messages published before the subscription exists
	waitFor(t, "subscription", func() bool {
		_ = pubsub.Publish(DefaultIngestSubject, message.NewMessage(watermill.NewUUID(), []byte(`{"probe":true}`)))
		return in.count() > 0
	})

	// BlockPublishUntilSubscriberAck returns only after Ack, so a malformed
	// body that the ingester rejects must still be acked.
	if err := pubsub.Publish(DefaultIngestSubject, message.NewMessage(watermill.NewUUID(), []byte(`garbage`))); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	in.mu.Lock()
	last, source := in.bodies[len(in.bodies)-1], in.source
	in.mu.Unlock()
	if last != "garbage" {
		t.Errorf("last body = %q", last)
	}
	if source != broker.SourceNATS {
		t.Errorf("source = %s, want %s", source, broker.SourceNATS)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestIngestConsumer_EmbeddedNATS(t *testing.T) {
	srv, err := NewEmbeddedServer(&ServerConfig{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	if !srv.IsRunning() {
		t.Fatal("embedded server not running")
	}

	subCfg := DefaultSubscriberConfig(srv.ClientURL())
	sub, err := NewSubscriber(&subCfg, logging.NewWatermillAdapter())
	if err != nil {
		t.Fatalf("NewSubscriber() error = %v", err)
	}

	events := broker.NewEventBuffer(100)
	ingestor := broker.NewIngestor(broker.IngestorConfig{}, events, nil, nil, nil)
	consumer := NewIngestConsumer(sub, "threats.test", ingestor)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = consumer.Serve(ctx) }()

	nc, err := natsgo.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)

	body := []byte(`{"type":"REAL_NETWORK_DATA","data":{"sourceIp":"203.0.113.7","destinationIp":"10.0.0.5","severity":"HIGH"}}`)
	waitFor(t, "event ingested from NATS", func() bool {
		_ = nc.Publish("threats.test", body)
		_ = nc.Flush()
		return events.Len() > 0
	})

	got := events.Recent(1)[0]
	if got.SourceAddress != "203.0.113.7" || got.Severity.String() != "HIGH" {
		t.Errorf("ingested event = %+v", got)
	}

	pub, err := NewPublisher(DefaultPublisherConfig(srv.ClientURL()), nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })

	before := events.Total()
	raw := []broker.RawEvent{{SourceAddress: "198.51.100.1", DestinationAddress: "10.0.0.9", Severity: "LOW"}}
	waitFor(t, "event published by Publisher", func() bool {
		_ = pub.PublishEvents(ctx, "threats.test", raw, time.Now())
		return events.Total() > before
	})
}

func TestPublisher_Closed(t *testing.T) {
	srv, err := NewEmbeddedServer(&ServerConfig{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	pub, err := NewPublisher(DefaultPublisherConfig(srv.ClientURL()), nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	err = pub.Publish(context.Background(), "x", message.NewMessage(watermill.NewUUID(), []byte("{}")))
	if !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("Publish() after close = %v", err)
	}
}
