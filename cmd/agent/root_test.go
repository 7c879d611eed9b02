// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package main

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/client"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/scoring"
)

//nolint:gochecknoinits // quiet logs in tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]broker.RawEvent
	failFor int
}

func (p *recordingPublisher) Publish(_ context.Context, events []broker.RawEvent, _ time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor > 0 {
		p.failFor--
		return client.ErrNotConnected
	}
	p.batches = append(p.batches, events)
	return nil
}

func TestProduce_StopsAtCount(t *testing.T) {
	pub := &recordingPublisher{}
	gen := scoring.NewGenerator(scoring.GeneratorConfig{Seed: 7})
	o := agentOptions{rate: 1000, batch: 4, count: 10}

	res := produce(context.Background(), pub, gen, o)

	if res.sent != 10 || res.dropped != 0 {
		t.Fatalf("produce() = %+v, want sent=10 dropped=0", res)
	}
	sizes := []int{4, 4, 2}
	if len(pub.batches) != len(sizes) {
		t.Fatalf("batches = %d, want %d", len(pub.batches), len(sizes))
	}
	for i, want := range sizes {
		if got := len(pub.batches[i]); got != want {
			t.Errorf("batch %d size = %d, want %d", i, got, want)
		}
	}
}

func TestProduce_CountsDrops(t *testing.T) {
	pub := &recordingPublisher{failFor: 2}
	gen := scoring.NewGenerator(scoring.GeneratorConfig{Seed: 7})
	o := agentOptions{rate: 1000, batch: 1, count: 3}

	res := produce(context.Background(), pub, gen, o)

	if res.sent != 3 || res.dropped != 2 {
		t.Errorf("produce() = %+v, want sent=3 dropped=2", res)
	}
}

func TestProduce_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := produce(ctx, &recordingPublisher{}, scoring.NewGenerator(scoring.GeneratorConfig{Seed: 1}), agentOptions{rate: 1, batch: 1})
	if res.sent != 0 {
		t.Errorf("sent = %d after cancel, want 0", res.sent)
	}
}

func TestAgentOptionsValidate(t *testing.T) {
	valid := agentOptions{transport: transportWS, rate: 1, batch: 1}

	tests := []struct {
		name    string
		mutate  func(o *agentOptions)
		wantErr bool
	}{
		{"valid", func(o *agentOptions) {}, false},
		{"nats", func(o *agentOptions) { o.transport = transportNATS }, false},
		{"unknown transport", func(o *agentOptions) { o.transport = "smtp" }, true},
		{"zero rate", func(o *agentOptions) { o.rate = 0 }, true},
		{"zero batch", func(o *agentOptions) { o.batch = 0 }, true},
		{"negative count", func(o *agentOptions) { o.count = -1 }, true},
		{"block rate above one", func(o *agentOptions) { o.blockRate = 1.5 }, true},
		{"debug logging", func(o *agentOptions) { o.logLevel = "DEBUG" }, false},
		{"unknown log level", func(o *agentOptions) { o.logLevel = "verbose" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			tt.mutate(&o)
			err := o.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
