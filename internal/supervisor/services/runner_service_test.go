// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/models"
)

type countingRunner struct {
	runs atomic.Int32
	fail int32
}

func (r *countingRunner) Run(ctx context.Context) error {
	if n := r.runs.Add(1); n <= r.fail {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

var _ suture.Service = (*RunnerService)(nil)

func TestRunnerService_Name(t *testing.T) {
	monitor := broker.NewLivenessMonitor(models.TransportStream, time.Minute, nil)
	if got := NewRunnerService(monitor).String(); got != "liveness-stream" {
		t.Errorf("String() = %q, want liveness-stream", got)
	}
	if got := NewRunnerService(&countingRunner{}).String(); got != "runner" {
		t.Errorf("String() = %q, want runner", got)
	}
	if got := NewNamedRunnerService("cadence-events", &countingRunner{}).String(); got != "cadence-events" {
		t.Errorf("String() = %q, want cadence-events", got)
	}
}

func TestRunnerService_RestartedBySupervisor(t *testing.T) {
	runner := &countingRunner{fail: 2}
	sup := suture.New("runner-test", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   5 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewRunnerService(runner))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for runner.runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-errCh

	if runner.runs.Load() < 3 {
		t.Errorf("Run called %d times, want at least 3", runner.runs.Load())
	}
}
