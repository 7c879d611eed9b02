// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package models defines the data structures shared across Threatcast.

Key Components:

  - Event: the canonical scored unit flowing through the broker
  - Severity: ordered LOW < MEDIUM < HIGH < CRITICAL, with SeverityFromScore
  - FilterSpec: per-subscription predicate (severity, category, min score, source)
  - Room and Transport: broadcast groups and the two wire protocols
  - Topology and RealTimeStats: payloads of the periodic broadcasts
  - APIResponse: REST envelope

Severity is encoded on the wire as its upper-case name and decoded
case-insensitively:

	{"severity": "critical"} -> SeverityCritical

Events are treated as immutable after ingestion. Code that needs to derive a
variant of an event must copy it first.
*/
package models
