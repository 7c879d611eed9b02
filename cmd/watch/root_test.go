// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package main

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/threatcast/internal/client"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/models"
)

//nolint:gochecknoinits // quiet logs in tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name    string
		opts    watchOptions
		wantNil bool
		wantErr bool
		check   func(t *testing.T, f *models.FilterSpec)
	}{
		{
			name:    "no flags",
			opts:    watchOptions{minScore: -1},
			wantNil: true,
		},
		{
			name: "severities are case-insensitive",
			opts: watchOptions{severities: []string{"high", " CRITICAL "}, minScore: -1},
			check: func(t *testing.T, f *models.FilterSpec) {
				if len(f.Severities) != 2 || f.Severities[0] != models.SeverityHigh {
					t.Errorf("Severities = %v", f.Severities)
				}
			},
		},
		{
			name: "min score",
			opts: watchOptions{minScore: 0.5},
			check: func(t *testing.T, f *models.FilterSpec) {
				if f.MinScore == nil || *f.MinScore != 0.5 {
					t.Errorf("MinScore = %v, want 0.5", f.MinScore)
				}
			},
		},
		{
			name: "blank entries dropped",
			opts: watchOptions{categories: []string{"", "scan"}, minScore: -1},
			check: func(t *testing.T, f *models.FilterSpec) {
				if len(f.Categories) != 1 || f.Categories[0] != "scan" {
					t.Errorf("Categories = %v", f.Categories)
				}
			},
		},
		{
			name:    "unknown severity",
			opts:    watchOptions{severities: []string{"SEVERE"}, minScore: -1},
			wantErr: true,
		},
		{
			name:    "min score out of range",
			opts:    watchOptions{minScore: 1.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := tt.opts.buildFilter()
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildFilter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (f == nil) != tt.wantNil {
				t.Fatalf("buildFilter() = %v, wantNil %v", f, tt.wantNil)
			}
			if tt.check != nil {
				tt.check(t, f)
			}
		})
	}
}

func testEvent() models.Event {
	return models.Event{
		ID:                 "evt-1",
		Timestamp:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		SourceAddress:      "203.0.113.7",
		DestinationAddress: "10.0.0.10",
		Category:           "brute_force",
		Severity:           models.SeverityCritical,
		Score:              0.93,
		Blocked:            true,
	}
}

func TestPrinter_Text(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, false, false)
	h := p.handlers()

	h.OnAlert(models.TransportStream, testEvent())
	h.OnBatch(models.TransportRooms, []models.Event{testEvent(), testEvent()})
	h.OnTopology(models.TransportRooms, models.Topology{Nodes: make([]models.TopologyNode, 2)})

	out := buf.String()
	for _, want := range []string{
		"[stream] ALERT  03:04:05 CRITICAL 0.93 203.0.113.7 -> 10.0.0.10 brute_force blocked",
		"[rooms ] batch of 2",
		"topology 2 nodes, 0 edges",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestPrinter_QuietKeepsAlerts(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, false, true)
	h := p.handlers()

	h.OnBatch(models.TransportRooms, []models.Event{testEvent()})
	h.OnStats(models.TransportRooms, models.RealTimeStats{TotalEvents: 3})
	h.OnAlert(models.TransportRooms, testEvent())
	p.sample(client.Sample{Quality: client.QualityGood, Alive: 2, Total: 2})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "ALERT") {
		t.Errorf("line 0 = %q, want alert", lines[0])
	}
	if lines[1] != "quality good (2/2 alive, worst rtt n/a)" {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestPrinter_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, true, false)

	p.handlers().OnUpdate(models.TransportRooms, testEvent())

	var got struct {
		Kind      string       `json:"kind"`
		Transport string       `json:"transport"`
		Data      models.Event `json:"data"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("output is not one JSON object: %v\n%s", err, buf.String())
	}
	if got.Kind != "update" || got.Transport != "rooms" || got.Data.ID != "evt-1" {
		t.Errorf("got %+v", got)
	}
}
