// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package scoring

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/models"
	"github.com/tomtom215/threatcast/internal/resilience"
)

// Feature names understood by DemoScorer. Values are expected in [0,1];
// anything outside is clamped.
const (
	FeaturePacketRate     = "packet_rate"
	FeatureFailedLogins   = "failed_logins"
	FeaturePortEntropy    = "port_entropy"
	FeaturePayloadAnomaly = "payload_anomaly"
	FeatureReputation     = "reputation"
)

// ErrNoFeatures is returned when there is nothing to score.
var ErrNoFeatures = errors.New("no features to score")

type featureRule struct {
	weight   float64
	category string
}

var demoRules = map[string]featureRule{
	FeaturePacketRate:     {weight: 1.0, category: "DDOS"},
	FeatureFailedLogins:   {weight: 1.5, category: "BRUTE_FORCE"},
	FeaturePortEntropy:    {weight: 1.2, category: "PORT_SCAN"},
	FeaturePayloadAnomaly: {weight: 2.0, category: "MALWARE"},
	FeatureReputation:     {weight: 1.8, category: "SUSPICIOUS_IP"},
}

// DemoScorer combines features into a weighted mean. The category is taken
// from the feature with the largest weighted contribution.
type DemoScorer struct{}

// NewDemoScorer returns the demo heuristic.
func NewDemoScorer() *DemoScorer {
	return &DemoScorer{}
}

// Score implements broker.Scorer.
func (s *DemoScorer) Score(ctx context.Context, features map[string]float64) (models.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return models.Assessment{}, err
	}
	if len(features) == 0 {
		return models.Assessment{}, ErrNoFeatures
	}

	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum, weights, best float64
	category := "ANOMALY"
	for _, name := range names {
		v := clamp(features[name])
		rule, ok := demoRules[name]
		if !ok {
			rule = featureRule{weight: 0.5}
		}
		sum += v * rule.weight
		weights += rule.weight
		if c := v * rule.weight; c > best && rule.category != "" {
			best = c
			category = rule.category
		}
	}

	score := math.Round(sum/weights*1000) / 1000
	return models.Assessment{
		Score:    score,
		Severity: models.SeverityFromScore(score),
		Category: category,
	}, nil
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// BreakerScorer guards a scorer with a circuit breaker.
type BreakerScorer struct {
	next    broker.Scorer
	breaker *resilience.Breaker
}

// NewBreakerScorer wraps next.
func NewBreakerScorer(next broker.Scorer, cfg resilience.BreakerConfig) *BreakerScorer {
	return &BreakerScorer{next: next, breaker: resilience.NewBreaker(cfg)}
}

// Score implements broker.Scorer. Calls are rejected without reaching the
// wrapped scorer while the breaker is open.
func (s *BreakerScorer) Score(ctx context.Context, features map[string]float64) (models.Assessment, error) {
	return resilience.Cast[models.Assessment](s.breaker.Execute(func() (interface{}, error) {
		return s.next.Score(ctx, features)
	}))
}

// State returns the breaker state.
func (s *BreakerScorer) State() string {
	return s.breaker.State()
}
