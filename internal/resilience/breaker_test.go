// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package resilience

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/metrics"
)

//nolint:gochecknoinits // quiet logs in tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	cfg := DefaultBreakerConfig("test-open")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	b := NewBreaker(cfg)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want boom", i, err)
		}
	}
	if b.State() != "open" {
		t.Fatalf("State() = %s, want open", b.State())
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !IsRejected(err) {
		t.Errorf("err = %v, want rejection", err)
	}
	if called {
		t.Error("fn ran while the breaker was open")
	}

	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("test-open")); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues("test-open", "rejected")); got != 1 {
		t.Errorf("rejected counter = %v, want 1", got)
	}
}

func TestBreaker_SuccessKeepsClosed(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig("test-closed"))
	v, err := Cast[string](b.Execute(func() (interface{}, error) { return "ok", nil }))
	if err != nil || v != "ok" {
		t.Fatalf("Execute() = %q, %v", v, err)
	}
	if b.State() != "closed" {
		t.Errorf("State() = %s", b.State())
	}
	if b.Name() != "test-closed" {
		t.Errorf("Name() = %s", b.Name())
	}
}

func TestCast_WrongType(t *testing.T) {
	if _, err := Cast[int]("x", nil); err == nil {
		t.Error("expected type error")
	}
}

func TestStateHelpers(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		name  string
		code  int
	}{
		{gobreaker.StateClosed, "closed", 0},
		{gobreaker.StateHalfOpen, "half-open", 1},
		{gobreaker.StateOpen, "open", 2},
	}
	for _, tt := range tests {
		if got := StateName(tt.state); got != tt.name {
			t.Errorf("StateName(%v) = %s", tt.state, got)
		}
		if got := StateCode(tt.state); got != tt.code {
			t.Errorf("StateCode(%v) = %d", tt.state, got)
		}
	}
}
