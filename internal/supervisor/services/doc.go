// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package services provides suture.Service wrappers for broker components that
do not already expose Serve(ctx) error.

# Available Services

HTTP Server (HTTPServerService):
  - Converts ListenAndServe into Serve with graceful shutdown
  - A listen failure terminates the whole supervisor tree

Runner (RunnerService):
  - Adapts anything with Run(ctx) error, such as broker.Cadence and
    broker.LivenessMonitor
  - Keeps the component's own String() name for supervisor logs

Embedded NATS (EmbeddedNATSService):
  - Owns the lifetime of an in-process nats-server
  - Shuts the server down when the tree stops

Components that already implement suture.Service (websocket.Hub,
store.Persister, store.BadgerStore, eventprocessor.IngestConsumer) are added
to the tree directly.

# Usage

	tree.AddMessagingService(services.NewRunnerService(cadence))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
*/
package services
