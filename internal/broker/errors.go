// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import (
	"errors"
	"fmt"
)

var (
	// ErrSendBufferFull is returned by Conn.Send when the connection's outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrConnectionClosed is returned by Conn.Send after the connection has been closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrCollaboratorUnavailable marks a failed call to the store or scorer.
	// The broker keeps running from its in-memory buffer when this occurs.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// ValidationError reports a malformed producer event.
// It is logged and counted at the transport boundary, never returned to producers as fatal.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid event: " + e.Message
	}
	return fmt.Sprintf("invalid event: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransportSendError wraps a per-connection write failure.
type TransportSendError struct {
	ConnID string
	Err    error
}

func (e *TransportSendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.ConnID, e.Err)
}

func (e *TransportSendError) Unwrap() error {
	return e.Err
}
