// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package client

import "time"

// ConnState is the lifecycle state of a ReconnectingConn.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Quality is the coarse link rating shown to users. Higher is better.
type Quality int

const (
	QualityPoor Quality = iota
	QualityFair
	QualityGood
	QualityExcellent
)

func (q Quality) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityFair:
		return "fair"
	default:
		return "poor"
	}
}

// QualityFromRTT buckets a round trip time.
func QualityFromRTT(rtt time.Duration) Quality {
	switch {
	case rtt < 100*time.Millisecond:
		return QualityExcellent
	case rtt < 300*time.Millisecond:
		return QualityGood
	case rtt < time.Second:
		return QualityFair
	default:
		return QualityPoor
	}
}

// QualityFromAlive rates the link by how many connections are alive.
func QualityFromAlive(alive, total int) Quality {
	switch {
	case total == 0 || alive == 0:
		return QualityPoor
	case alive >= total:
		return QualityExcellent
	default:
		return QualityGood
	}
}

// worse returns the lower of two ratings.
func worse(a, b Quality) Quality {
	if a < b {
		return a
	}
	return b
}
