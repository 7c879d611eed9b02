// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordIngested(t *testing.T) {
	before := testutil.ToFloat64(EventsIngested.WithLabelValues("websocket", "HIGH"))
	RecordIngested("websocket", "HIGH")
	after := testutil.ToFloat64(EventsIngested.WithLabelValues("websocket", "HIGH"))

	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestRecordRejected_DefaultsField(t *testing.T) {
	before := testutil.ToFloat64(EventsRejected.WithLabelValues("nats", "unknown"))
	RecordRejected("nats", "")
	after := testutil.ToFloat64(EventsRejected.WithLabelValues("nats", "unknown"))

	if after-before != 1 {
		t.Errorf("expected unknown field counter to increase by 1, got %v", after-before)
	}
}

func TestRecordRateLimited(t *testing.T) {
	before := testutil.ToFloat64(APIRateLimited.WithLabelValues("ingest"))
	RecordRateLimited("ingest")
	if got := testutil.ToFloat64(APIRateLimited.WithLabelValues("ingest")) - before; got != 1 {
		t.Errorf("expected ingest counter to increase by 1, got %v", got)
	}
}

func TestRecordStoreOperation(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{"success", nil, "success"},
		{"failure", errors.New("disk full"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(StoreOperations.WithLabelValues("save", tt.status))
			RecordStoreOperation("save", 3*time.Millisecond, tt.err)
			after := testutil.ToFloat64(StoreOperations.WithLabelValues("save", tt.status))
			if after-before != 1 {
				t.Errorf("expected %s counter to increase by 1, got %v", tt.status, after-before)
			}
		})
	}
}

func TestRecordBreakerTransition(t *testing.T) {
	RecordBreakerTransition("store", "closed", "open", 2)

	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("store")); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}

	RecordBreakerTransition("store", "open", "half-open", 1)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("store")); got != 1 {
		t.Errorf("state gauge = %v, want 1", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	TrackActiveRequest(false)
	after := testutil.ToFloat64(APIActiveRequests)

	if after-before != 1 {
		t.Errorf("expected net +1 active requests, got %v", after-before)
	}
	TrackActiveRequest(false)
}

func TestConcurrentMetricRecording(t *testing.T) {
	before := testutil.ToFloat64(WSMessagesSent.WithLabelValues("stream", "batch"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RecordSent("stream", "batch")
			RecordBroadcast("events", time.Millisecond)
			RecordAPIRequest("GET", "/api/v1/stats", 200, time.Millisecond)
		}()
	}
	wg.Wait()

	after := testutil.ToFloat64(WSMessagesSent.WithLabelValues("stream", "batch"))
	if after-before != 50 {
		t.Errorf("expected 50 sends recorded, got %v", after-before)
	}
}
