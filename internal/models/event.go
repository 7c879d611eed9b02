// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Severity is the ordered priority of a threat event.
// The zero value is SeverityLow.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}

// AllSeverities lists every severity in ascending order.
var AllSeverities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// String returns the upper-case wire name of the severity.
func (s Severity) String() string {
	if s < SeverityLow || s > SeverityCritical {
		return fmt.Sprintf("SEVERITY(%d)", int(s))
	}
	return severityNames[s]
}

// Valid reports whether s is one of the four defined severities.
func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

// IsPriority reports whether events of this severity trigger an immediate alert.
func (s Severity) IsPriority() bool {
	return s >= SeverityHigh
}

// ParseSeverity parses a severity name case-insensitively.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "LOW":
		return SeverityLow, nil
	case "MEDIUM":
		return SeverityMedium, nil
	case "HIGH":
		return SeverityHigh, nil
	case "CRITICAL":
		return SeverityCritical, nil
	default:
		return SeverityLow, fmt.Errorf("unknown severity %q", name)
	}
}

// SeverityFromScore maps a score in [0,1] to a severity using fixed thresholds:
// >=0.8 CRITICAL, >=0.6 HIGH, >=0.3 MEDIUM, otherwise LOW.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 0.8:
		return SeverityCritical
	case score >= 0.6:
		return SeverityHigh
	case score >= 0.3:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// MarshalJSON encodes the severity as its wire name.
func (s Severity) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity from its wire name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("severity must be a string: %w", err)
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Event is one scored network or security observation flowing through the broker.
// Events are immutable once appended to a buffer.
type Event struct {
	ID                 string          `json:"id"`
	Timestamp          time.Time       `json:"timestamp"`
	ReceivedAt         time.Time       `json:"receivedAt"`
	SourceAddress      string          `json:"sourceAddress"`
	DestinationAddress string          `json:"destinationAddress"`
	Category           string          `json:"category,omitempty"`
	Severity           Severity        `json:"severity"`
	Score              float64         `json:"score"`
	Blocked            bool            `json:"blocked"`
	Payload            json.RawMessage `json:"payload,omitempty"`
}

// Assessment is what a scoring collaborator reports for a set of raw features.
type Assessment struct {
	Score    float64  `json:"score"`
	Severity Severity `json:"severity"`
	Category string   `json:"category,omitempty"`
}
