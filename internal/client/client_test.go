// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatcast/internal/logging"
)

//nolint:gochecknoinits // quiet logs in tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type stateRecorder struct {
	mu     sync.Mutex
	states []ConnState
}

func (r *stateRecorder) record(s ConnState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) snapshot() []ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnState(nil), r.states...)
}

// testServer upgrades every request and hands the socket to handle.
func testServer(t *testing.T, handle func(n int, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	var count int32
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(int(atomic.AddInt32(&count, 1)), conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestReconnectingConn_Lifecycle(t *testing.T) {
	srv := testServer(t, func(n int, conn *websocket.Conn) {
		if n == 1 {
			return // drop the first connection immediately
		}
		drain(conn)
	})

	rec := &stateRecorder{}
	c := NewReconnectingConn(wsURL(srv), Options{
		Name:          "test",
		RetryDelay:    20 * time.Millisecond,
		OnStateChange: rec.record,
	})
	if c.State() != StateDisconnected {
		t.Fatalf("initial state = %s", c.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, "second connection", func() bool { return c.Status().Connects == 2 && c.State() == StateConnected })
	cancel()
	<-done

	want := []ConnState{StateConnecting, StateConnected, StateReconnecting, StateConnected, StateDisconnected}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("state[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestReconnectingConn_RetriesUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	var attempts int32
	c := NewReconnectingConn(url, Options{
		RetryDelay: 5 * time.Millisecond,
		OnStateChange: func(s ConnState) {
			if s == StateReconnecting {
				atomic.AddInt32(&attempts, 1)
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = c.Run(ctx)

	// state only changes once; the loop keeps dialing while RECONNECTING
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("entered RECONNECTING %d times, want 1", attempts)
	}
	if c.Status().Connects != 0 {
		t.Errorf("Connects = %d", c.Status().Connects)
	}
	if c.State() != StateDisconnected {
		t.Errorf("final state = %s", c.State())
	}
}

func TestReconnectingConn_OnConnectReplays(t *testing.T) {
	var mu sync.Mutex
	firstFrames := make(map[int]string)
	srv := testServer(t, func(n int, conn *websocket.Conn) {
		_, frame, err := conn.ReadMessage()
		if err == nil {
			mu.Lock()
			firstFrames[n] = string(frame)
			mu.Unlock()
		}
		if n == 1 {
			return
		}
		drain(conn)
	})

	c := NewReconnectingConn(wsURL(srv), Options{
		RetryDelay: 10 * time.Millisecond,
		OnConnect: func(c *ReconnectingConn) error {
			return c.Send(map[string]string{"event": "join-threat-room"})
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	waitFor(t, "subscription replay", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(firstFrames) == 2
	})
	for n, f := range firstFrames {
		if !strings.Contains(f, "join-threat-room") {
			t.Errorf("connection %d first frame = %s", n, f)
		}
	}
}

func TestReconnectingConn_SendWhileDisconnected(t *testing.T) {
	c := NewReconnectingConn("ws://127.0.0.1:1/ws", Options{})
	if err := c.Send(map[string]string{"event": "ping"}); err != ErrNotConnected {
		t.Errorf("Send() = %v, want ErrNotConnected", err)
	}
	if c.Alive() {
		t.Error("disconnected conn reported alive")
	}
}

func TestReconnectingConn_MeasuresRTT(t *testing.T) {
	srv := testServer(t, func(_ int, conn *websocket.Conn) { drain(conn) })

	c := NewReconnectingConn(wsURL(srv), Options{PingPeriod: 15 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	waitFor(t, "round trip measurement", func() bool { return c.Status().HasRTT })
	st := c.Status()
	if st.RTT <= 0 || st.RTT > time.Second {
		t.Errorf("RTT = %v", st.RTT)
	}
	if !c.Alive() {
		t.Error("connection with fresh pong should be alive")
	}
}

func TestReconnectingConn_ServerPingRefreshesLiveness(t *testing.T) {
	srv := testServer(t, func(_ int, conn *websocket.Conn) {
		pongs := make(chan struct{}, 1)
		conn.SetPongHandler(func(string) error {
			pongs <- struct{}{}
			return nil
		})
		go drain(conn)
		_ = conn.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second))
		select {
		case <-pongs:
			_ = conn.WriteMessage(websocket.TextMessage, []byte("pong-received"))
		case <-time.After(2 * time.Second):
		}
		time.Sleep(100 * time.Millisecond)
	})

	got := make(chan string, 1)
	c := NewReconnectingConn(wsURL(srv), Options{
		OnMessage: func(frame []byte) { got <- string(frame) },
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	select {
	case msg := <-got:
		if msg != "pong-received" {
			t.Errorf("message = %s", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never received a pong")
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		base, want string
	}{
		{"http://localhost:3001", "ws://localhost:3001/ws/rooms"},
		{"https://broker.example/", "wss://broker.example/ws/rooms"},
		{"ws://10.0.0.1:8080/base", "ws://10.0.0.1:8080/base/ws/rooms"},
	}
	for _, tt := range tests {
		got, err := EndpointURL(tt.base, "/ws/rooms")
		if err != nil {
			t.Fatalf("EndpointURL(%s) error = %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("EndpointURL(%s) = %s, want %s", tt.base, got, tt.want)
		}
	}
}
