// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package supervisor runs the broker's long-lived goroutines under a suture v4
supervision tree.

Every independent loop of the broker (the three broadcast cadences, the two
heartbeat monitors, the WebSocket hubs, the persister, the NATS consumer and
the HTTP server) is a suture.Service. A panicking or failing loop is
restarted with backoff while the others keep running, which is how the
broker keeps serving clients when a collaborator misbehaves.

# Tree

	threatcast (root)
	├── data-layer
	│   ├── badger-store        value-log GC
	│   └── persister           async store writes
	├── messaging-layer
	│   ├── hub-rooms, hub-stream
	│   ├── broadcast-events, broadcast-topology, broadcast-stats
	│   ├── liveness-rooms, liveness-stream
	│   ├── nats-server         (embedded, optional)
	│   └── nats-ingest-consumer (optional)
	└── api-layer
	    └── http-server

Supervisor events (restarts, backoff, timeouts) are logged through
sutureslog into the zerolog-backed slog handler from the logging package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddBroker(supervisor.BrokerServices{
	    Hubs:     []suture.Service{roomsHub, streamHub},
	    Cadences: broadcaster.Cadences(),
	    Liveness: []*broker.LivenessMonitor{roomsMon, streamMon},
	    HTTP:     services.NewHTTPServerService(srv, 10*time.Second),
	})
	return tree.Serve(ctx)

A listen failure in the HTTP server wraps suture.ErrTerminateSupervisorTree
and stops the whole tree; nothing else is process-fatal.
*/
package supervisor
