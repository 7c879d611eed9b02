// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package client

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeLink struct {
	alive bool
	rtt   time.Duration
}

func (f fakeLink) Alive() bool { return f.alive }

func (f fakeLink) Status() Status {
	return Status{RTT: f.rtt, HasRTT: f.rtt > 0}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		links []LinkStatus
		want  Quality
	}{
		{"both alive no rtt", []LinkStatus{fakeLink{alive: true}, fakeLink{alive: true}}, QualityExcellent},
		{"one alive", []LinkStatus{fakeLink{alive: true}, fakeLink{}}, QualityGood},
		{"none alive", []LinkStatus{fakeLink{}, fakeLink{}}, QualityPoor},
		{"no links", nil, QualityPoor},
		{"both alive fast", []LinkStatus{fakeLink{true, 20 * time.Millisecond}, fakeLink{true, 80 * time.Millisecond}}, QualityExcellent},
		{"both alive one slow", []LinkStatus{fakeLink{true, 20 * time.Millisecond}, fakeLink{true, 150 * time.Millisecond}}, QualityGood},
		{"both alive fair rtt", []LinkStatus{fakeLink{true, 500 * time.Millisecond}, fakeLink{alive: true}}, QualityFair},
		{"rtt over a second", []LinkStatus{fakeLink{true, 2 * time.Second}, fakeLink{alive: true}}, QualityPoor},
		{"one alive excellent rtt stays good", []LinkStatus{fakeLink{true, 10 * time.Millisecond}, fakeLink{}}, QualityGood},
		{"dead link rtt ignored", []LinkStatus{fakeLink{alive: true}, fakeLink{false, 3 * time.Second}}, QualityGood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Evaluate(tt.links, time.Now())
			if s.Quality != tt.want {
				t.Errorf("Quality = %s, want %s", s.Quality, tt.want)
			}
			if s.Total != len(tt.links) || len(s.Conns) != len(tt.links) {
				t.Errorf("Total = %d, Conns = %d", s.Total, len(s.Conns))
			}
		})
	}
}

func TestQualityFromRTT_Boundaries(t *testing.T) {
	tests := []struct {
		rtt  time.Duration
		want Quality
	}{
		{99 * time.Millisecond, QualityExcellent},
		{100 * time.Millisecond, QualityGood},
		{299 * time.Millisecond, QualityGood},
		{300 * time.Millisecond, QualityFair},
		{999 * time.Millisecond, QualityFair},
		{time.Second, QualityPoor},
	}
	for _, tt := range tests {
		if got := QualityFromRTT(tt.rtt); got != tt.want {
			t.Errorf("QualityFromRTT(%v) = %s, want %s", tt.rtt, got, tt.want)
		}
	}
}

func TestSampler(t *testing.T) {
	samples := make(chan Sample, 4)
	s := NewSampler(10*time.Millisecond, func(sm Sample) {
		select {
		case samples <- sm:
		default:
		}
	}, fakeLink{alive: true})

	if got := s.SampleNow(); got.Quality != QualityExcellent {
		t.Fatalf("SampleNow() = %s", got.Quality)
	}
	<-samples

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	select {
	case <-samples:
	case <-time.After(2 * time.Second):
		t.Fatal("sampler did not tick")
	}
	cancel()

	if NewSampler(0, nil).interval != DefaultSampleInterval {
		t.Error("default interval not applied")
	}
}

// switchLink is a link whose liveness can be flipped while a sampler runs.
type switchLink struct {
	alive atomic.Bool
}

func (l *switchLink) Alive() bool    { return l.alive.Load() }
func (l *switchLink) Status() Status { return Status{} }

func TestSampler_DropIsReportedOnNextTick(t *testing.T) {
	rooms, stream := &switchLink{}, &switchLink{}
	rooms.alive.Store(true)
	stream.alive.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	samples := make(chan Sample)
	resume := make(chan struct{})
	s := NewSampler(50*time.Millisecond, func(sm Sample) {
		select {
		case samples <- sm:
		case <-ctx.Done():
			return
		}
		select {
		case <-resume:
		case <-ctx.Done():
		}
	}, rooms, stream)
	go func() { _ = s.Run(ctx) }()

	next := func() Sample {
		t.Helper()
		select {
		case sm := <-samples:
			return sm
		case <-time.After(2 * time.Second):
			t.Fatal("sampler did not tick")
			return Sample{}
		}
	}

	if first := next(); first.Quality != QualityExcellent || first.Alive != 2 {
		t.Fatalf("first sample = %s (%d alive), want excellent with 2 alive", first.Quality, first.Alive)
	}

	// the stream transport drops between ticks
	stream.alive.Store(false)
	select {
	case sm := <-samples:
		t.Fatalf("sample %s reported before the next tick", sm.Quality)
	case <-time.After(20 * time.Millisecond):
	}
	close(resume)

	if second := next(); second.Quality != QualityGood || second.Alive != 1 {
		t.Errorf("sample after drop = %s (%d alive), want good with 1 alive", second.Quality, second.Alive)
	}
}

func TestStateStrings(t *testing.T) {
	if StateReconnecting.String() != "RECONNECTING" || ConnState(9).String() != "UNKNOWN" {
		t.Error("unexpected ConnState names")
	}
	if QualityFair.String() != "fair" || QualityExcellent.String() != "excellent" {
		t.Error("unexpected Quality names")
	}
}
