// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package scoring

import (
	"context"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/tomtom215/threatcast/internal/broker"
)

// GeneratorConfig tunes the demo generator.
type GeneratorConfig struct {
	// Seed makes the sequence reproducible. Zero picks a random seed.
	Seed int64
	// InternalHosts is the pool of destination addresses.
	InternalHosts []string
	// AttackerPool bounds the number of distinct source addresses so the
	// topology shows repeated edges.
	AttackerPool int
	// BlockRate is the probability that an event is marked blocked.
	BlockRate float64
	// IncludeFeatures sends raw features instead of a precomputed score.
	IncludeFeatures bool
}

// DefaultGeneratorConfig returns a small office network.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		InternalHosts: []string{"10.0.0.10", "10.0.0.11", "10.0.0.20", "10.0.1.5", "192.168.1.50"},
		AttackerPool:  25,
		BlockRate:     0.3,
	}
}

// Generator produces randomized producer events. It is not safe for
// concurrent use.
type Generator struct {
	cfg       GeneratorConfig
	faker     *gofakeit.Faker
	attackers []string
	scorer    *DemoScorer
}

// NewGenerator creates a generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	d := DefaultGeneratorConfig()
	if len(cfg.InternalHosts) == 0 {
		cfg.InternalHosts = d.InternalHosts
	}
	if cfg.AttackerPool <= 0 {
		cfg.AttackerPool = d.AttackerPool
	}

	faker := gofakeit.New(cfg.Seed)
	attackers := make([]string, cfg.AttackerPool)
	for i := range attackers {
		attackers[i] = faker.IPv4Address()
	}
	return &Generator{cfg: cfg, faker: faker, attackers: attackers, scorer: NewDemoScorer()}
}

// Next returns one event stamped with now.
func (g *Generator) Next(now time.Time) broker.RawEvent {
	features := map[string]float64{
		FeaturePacketRate:     g.faker.Float64Range(0, 1),
		FeatureFailedLogins:   g.skewed(),
		FeaturePortEntropy:    g.skewed(),
		FeaturePayloadAnomaly: g.skewed(),
		FeatureReputation:     g.faker.Float64Range(0, 1),
	}

	raw := broker.RawEvent{
		ID:                 g.faker.UUID(),
		Timestamp:          []byte(`"` + now.UTC().Format(time.RFC3339Nano) + `"`),
		SourceAddress:      g.attackers[g.faker.Number(0, len(g.attackers)-1)],
		DestinationAddress: g.faker.RandomString(g.cfg.InternalHosts),
		Blocked:            g.faker.Float64Range(0, 1) < g.cfg.BlockRate,
	}

	if g.cfg.IncludeFeatures {
		raw.Features = features
		return raw
	}

	// DemoScorer cannot fail on a non-empty feature set.
	a, _ := g.scorer.Score(context.Background(), features)
	score := a.Score
	raw.Score = &score
	raw.Severity = a.Severity.String()
	raw.Category = a.Category
	return raw
}

// Batch returns n events.
func (g *Generator) Batch(n int, now time.Time) []broker.RawEvent {
	out := make([]broker.RawEvent, n)
	for i := range out {
		out[i] = g.Next(now)
	}
	return out
}

// skewed favors low values so most traffic is benign.
func (g *Generator) skewed() float64 {
	v := g.faker.Float64Range(0, 1)
	return v * v * v
}
