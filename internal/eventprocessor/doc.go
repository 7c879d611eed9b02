// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

// Package eventprocessor connects the broker to NATS.
//
// Producers that cannot hold a WebSocket open publish envelopes to the
// ingest subject (default "threats.ingest"). The IngestConsumer reads them
// through Watermill's NATS subscriber and hands each payload to the
// ingestion adapter, exactly like a frame received on /ws/ingest:
//
//	┌──────────────┐     ┌──────────────┐     ┌──────────────────┐
//	│ cmd/agent    │────▶│ NATS         │────▶│ IngestConsumer   │
//	│ (Publisher)  │     │ threats.>    │     │ (watermill sub)  │
//	└──────────────┘     └──────────────┘     └────────┬─────────┘
//	                                                   ▼
//	                                          broker.Ingestor
//
// Messages are always acked: a malformed envelope is dropped and counted by
// the ingestor, and redelivering it would not help.
//
// Core NATS is used by default. Setting JetStream makes the consumer durable
// so events published while the broker restarts are not lost.
//
// An embedded nats-server can be started in-process for single-node
// deployments and tests.
package eventprocessor
