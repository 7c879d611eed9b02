// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

// Package main is a terminal dashboard that subscribes to a Threatcast broker
// on both WebSocket transports and prints what it receives.
//
//	threatcast-watch --url http://localhost:3001 --severity HIGH,CRITICAL
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
