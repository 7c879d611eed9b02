// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import (
	"testing"

	"github.com/tomtom215/threatcast/internal/models"
)

func TestMatches(t *testing.T) {
	event := &models.Event{
		ID:            "e1",
		SourceAddress: "1.2.3.4",
		Category:      "MALWARE",
		Severity:      models.SeverityHigh,
		Score:         0.7,
	}

	tests := []struct {
		name   string
		filter *models.FilterSpec
		want   bool
	}{
		{"nil filter", nil, true},
		{"empty filter", &models.FilterSpec{}, true},
		{"severity admitted", &models.FilterSpec{Severities: []models.Severity{models.SeverityHigh, models.SeverityCritical}}, true},
		{"severity rejected", &models.FilterSpec{Severities: []models.Severity{models.SeverityCritical}}, false},
		{"category admitted", &models.FilterSpec{Categories: []string{"MALWARE"}}, true},
		{"category rejected", &models.FilterSpec{Categories: []string{"DDOS"}}, false},
		{"score at threshold", &models.FilterSpec{MinScore: floatPtr(0.7)}, true},
		{"score below threshold", &models.FilterSpec{MinScore: floatPtr(0.71)}, false},
		{"zero threshold", &models.FilterSpec{MinScore: floatPtr(0)}, true},
		{"source admitted", &models.FilterSpec{SourceAddresses: []string{"9.9.9.9", "1.2.3.4"}}, true},
		{"source rejected", &models.FilterSpec{SourceAddresses: []string{"9.9.9.9"}}, false},
		{
			"all rules admit",
			&models.FilterSpec{
				Severities:      []models.Severity{models.SeverityHigh},
				Categories:      []string{"MALWARE"},
				MinScore:        floatPtr(0.5),
				SourceAddresses: []string{"1.2.3.4"},
			},
			true,
		},
		{
			"one rule rejects",
			&models.FilterSpec{
				Severities:      []models.Severity{models.SeverityHigh},
				Categories:      []string{"MALWARE"},
				MinScore:        floatPtr(0.9),
				SourceAddresses: []string{"1.2.3.4"},
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(event, tt.filter); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatches_Deterministic(t *testing.T) {
	event := testEvent("e1", models.SeverityMedium, 0.4)
	filter := &models.FilterSpec{
		Severities: []models.Severity{models.SeverityMedium},
		MinScore:   floatPtr(0.3),
	}
	before := filter.Fingerprint()

	first := Matches(event, filter)
	for i := 0; i < 100; i++ {
		if Matches(event, filter) != first {
			t.Fatal("Matches returned different results for the same inputs")
		}
	}
	if filter.Fingerprint() != before {
		t.Error("Matches mutated the filter")
	}
	if event.Severity != models.SeverityMedium || event.Score != 0.4 {
		t.Error("Matches mutated the event")
	}
}

func TestMatchesSeverity_IgnoresOtherRules(t *testing.T) {
	event := testEvent("e1", models.SeverityCritical, 0.1)
	filter := &models.FilterSpec{
		Severities: []models.Severity{models.SeverityCritical},
		Categories: []string{"DDOS"},
		MinScore:   floatPtr(0.9),
	}

	if Matches(event, filter) {
		t.Error("full filter should reject the event")
	}
	if !MatchesSeverity(event, filter) {
		t.Error("severity-only gate should admit the event")
	}
}

func TestFilterEvents_PreservesOrder(t *testing.T) {
	in := []*models.Event{
		testEvent("c", models.SeverityHigh, 0.7),
		testEvent("b", models.SeverityLow, 0.1),
		testEvent("a", models.SeverityCritical, 0.9),
	}
	got := FilterEvents(in, &models.FilterSpec{Severities: []models.Severity{models.SeverityHigh, models.SeverityCritical}})
	if ids(got) != "c,a" {
		t.Errorf("FilterEvents() = %s, want c,a", ids(got))
	}
}
