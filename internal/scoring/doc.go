// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package scoring provides the scorer collaborator used by the ingestion
adapter and the demo event generator used by cmd/agent.

Components:

  - DemoScorer: a weighted feature heuristic. It is a stand-in for a real
    detection model and makes no claim to statistical meaning.
  - BreakerScorer: wraps any scorer in a circuit breaker so a failing model
    sheds load instead of stalling ingestion.
  - Generator: produces randomized producer events with gofakeit.

Usage:

	scorer := scoring.NewBreakerScorer(scoring.NewDemoScorer(), resilience.DefaultBreakerConfig("scorer"))
	ingestor := broker.NewIngestor(cfg, events, broadcaster, scorer, persister)
*/
package scoring
