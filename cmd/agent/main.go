// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

// Package main is a demo producer that generates synthetic threat events and
// sends them to a Threatcast broker over WebSocket or NATS.
//
//	threatcast-agent --url http://localhost:3001 --rate 20 --batch 5
//	threatcast-agent --transport nats --nats-url nats://127.0.0.1:4222
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
