// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package client

import (
	"context"
	"time"
)

// DefaultSampleInterval is how often connection quality is evaluated.
const DefaultSampleInterval = 10 * time.Second

// Sample is one connection-quality evaluation.
type Sample struct {
	At       time.Time
	Quality  Quality
	Alive    int
	Total    int
	WorstRTT time.Duration
	Conns    []Status
}

// LinkStatus is what the sampler needs from a connection.
type LinkStatus interface {
	Alive() bool
	Status() Status
}

// Evaluate rates a set of connections. The alive count gives the base
// rating and the slowest measured round trip among alive connections caps it.
func Evaluate(links []LinkStatus, now time.Time) Sample {
	s := Sample{At: now, Total: len(links), Conns: make([]Status, 0, len(links))}

	hasRTT := false
	for _, l := range links {
		st := l.Status()
		s.Conns = append(s.Conns, st)
		if !l.Alive() {
			continue
		}
		s.Alive++
		if st.HasRTT && st.RTT > s.WorstRTT {
			s.WorstRTT = st.RTT
		}
		hasRTT = hasRTT || st.HasRTT
	}

	s.Quality = QualityFromAlive(s.Alive, s.Total)
	if hasRTT {
		s.Quality = worse(s.Quality, QualityFromRTT(s.WorstRTT))
	}
	return s
}

// Sampler evaluates connection quality on a fixed interval.
type Sampler struct {
	links    []LinkStatus
	interval time.Duration
	onSample func(Sample)
	now      func() time.Time
}

// NewSampler creates a sampler. A non-positive interval uses DefaultSampleInterval.
func NewSampler(interval time.Duration, onSample func(Sample), links ...LinkStatus) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{links: links, interval: interval, onSample: onSample, now: time.Now}
}

// SampleNow evaluates once and reports the result.
func (s *Sampler) SampleNow() Sample {
	sample := Evaluate(s.links, s.now())
	if s.onSample != nil {
		s.onSample(sample)
	}
	return sample
}

// Run samples until ctx is canceled.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SampleNow()
		}
	}
}
