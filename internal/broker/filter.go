// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import "github.com/tomtom215/threatcast/internal/models"

// Matches reports whether e passes every populated rule of f.
// A nil or empty filter admits every event. Matches is pure.
func Matches(e *models.Event, f *models.FilterSpec) bool {
	if f == nil {
		return true
	}
	if !MatchesSeverity(e, f) {
		return false
	}
	if len(f.Categories) > 0 && !containsString(f.Categories, e.Category) {
		return false
	}
	if f.MinScore != nil && e.Score < *f.MinScore {
		return false
	}
	if len(f.SourceAddresses) > 0 && !containsString(f.SourceAddresses, e.SourceAddress) {
		return false
	}
	return true
}

// MatchesSeverity applies only the severity rule of f. Alerts are gated this way.
func MatchesSeverity(e *models.Event, f *models.FilterSpec) bool {
	if f == nil || len(f.Severities) == 0 {
		return true
	}
	for _, s := range f.Severities {
		if s == e.Severity {
			return true
		}
	}
	return false
}

// FilterEvents returns the events of in admitted by f, preserving order.
func FilterEvents(in []*models.Event, f *models.FilterSpec) []*models.Event {
	if f.IsEmpty() {
		return in
	}
	out := make([]*models.Event, 0, len(in))
	for _, e := range in {
		if Matches(e, f) {
			out = append(out, e)
		}
	}
	return out
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
