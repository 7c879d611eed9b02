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
)

type fakeNATSServer struct {
	running   atomic.Bool
	shutdowns atomic.Int32
}

func (f *fakeNATSServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.running.Store(false)
	return nil
}

func (f *fakeNATSServer) IsRunning() bool {
	return f.running.Load()
}

var _ suture.Service = (*EmbeddedNATSService)(nil)

func TestEmbeddedNATSService_ShutsDownOnCancel(t *testing.T) {
	server := &fakeNATSServer{}
	server.running.Store(true)
	svc := NewEmbeddedNATSService(server, time.Second)
	svc.checkInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	if server.shutdowns.Load() != 1 {
		t.Errorf("Shutdown called %d times, want 1", server.shutdowns.Load())
	}
}

func TestEmbeddedNATSService_StoppedServerIsNotRestarted(t *testing.T) {
	server := &fakeNATSServer{}
	svc := NewEmbeddedNATSService(server, time.Second)
	svc.checkInterval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() = %v, want ErrDoNotRestart", err)
	}
	if svc.String() != "nats-server" {
		t.Errorf("String() = %q", svc.String())
	}
}
