// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import (
	"fmt"
	"sync"
	"testing"

	"github.com/tomtom215/threatcast/internal/models"
)

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn("c1", models.TransportRooms)

	if !r.Register(c) {
		t.Fatal("first Register returned false")
	}
	if r.Register(c) {
		t.Error("duplicate Register returned true")
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn("c1", models.TransportRooms)
	r.Register(c)

	for i := 0; i < 3; i++ {
		if !r.Join("c1", models.RoomEvents, nil) {
			t.Fatalf("Join #%d returned false", i)
		}
	}
	if subs := r.SubscribersOf(models.RoomEvents); len(subs) != 1 {
		t.Errorf("SubscribersOf() = %d entries, want 1", len(subs))
	}
}

func TestRegistry_JoinReplacesFilter(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeConn("c1", models.TransportStream))

	r.Join("c1", models.RoomEvents, &models.FilterSpec{Categories: []string{"DDOS"}})
	r.Join("c1", models.RoomEvents, &models.FilterSpec{Categories: []string{"MALWARE"}})

	f, ok := r.Filter("c1", models.RoomEvents)
	if !ok {
		t.Fatal("Filter() reported no subscription")
	}
	if len(f.Categories) != 1 || f.Categories[0] != "MALWARE" {
		t.Errorf("filter categories = %v, want [MALWARE]", f.Categories)
	}
}

func TestRegistry_FilterIsCopied(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeConn("c1", models.TransportRooms))

	filter := &models.FilterSpec{Categories: []string{"MALWARE"}}
	r.Join("c1", models.RoomEvents, filter)
	filter.Categories[0] = "CHANGED"

	f, _ := r.Filter("c1", models.RoomEvents)
	if f.Categories[0] != "MALWARE" {
		t.Errorf("registry filter followed caller mutation: %v", f.Categories)
	}
}

func TestRegistry_UnknownConnectionIsNoOp(t *testing.T) {
	r := NewRegistry()

	if r.Join("ghost", models.RoomEvents, nil) {
		t.Error("Join on unknown connection returned true")
	}
	if r.UpdateFilter("ghost", models.RoomEvents, nil) {
		t.Error("UpdateFilter on unknown connection returned true")
	}
	if r.Leave("ghost", models.RoomEvents) {
		t.Error("Leave on unknown connection returned true")
	}
	if n := r.LeaveAll("ghost"); n != 0 {
		t.Errorf("LeaveAll on unknown connection = %d", n)
	}
	if _, ok := r.Unregister("ghost"); ok {
		t.Error("Unregister on unknown connection returned true")
	}
	if rooms := r.Rooms("ghost"); rooms != nil {
		t.Errorf("Rooms on unknown connection = %v", rooms)
	}
}

func TestRegistry_InvalidRoomRejected(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeConn("c1", models.TransportRooms))

	if r.Join("c1", models.Room("lobby"), nil) {
		t.Error("Join accepted an unknown room")
	}
}

func TestRegistry_UpdateFilterRequiresMembership(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeConn("c1", models.TransportRooms))

	if r.UpdateFilter("c1", models.RoomEvents, &models.FilterSpec{}) {
		t.Error("UpdateFilter succeeded without a subscription")
	}
	r.Join("c1", models.RoomEvents, nil)
	if !r.UpdateFilter("c1", models.RoomEvents, &models.FilterSpec{Categories: []string{"DDOS"}}) {
		t.Error("UpdateFilter failed on an existing subscription")
	}
}

func TestRegistry_LeaveAndUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeConn("c1", models.TransportRooms))
	r.Join("c1", models.RoomEvents, nil)
	r.Join("c1", models.RoomTopology, nil)

	if !r.Leave("c1", models.RoomTopology) {
		t.Error("Leave returned false for a joined room")
	}
	if r.Leave("c1", models.RoomTopology) {
		t.Error("second Leave returned true")
	}
	if got := r.Rooms("c1"); len(got) != 1 || got[0] != models.RoomEvents {
		t.Errorf("Rooms() = %v, want [events]", got)
	}

	r.Unregister("c1")
	if len(r.SubscribersOf(models.RoomEvents)) != 0 {
		t.Error("unregistered connection still subscribed")
	}
}

func TestRegistry_LeaveAllKeepsConnection(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeConn("c1", models.TransportStream))
	r.Join("c1", models.RoomEvents, nil)
	r.Join("c1", models.RoomStats, nil)

	if n := r.LeaveAll("c1"); n != 2 {
		t.Errorf("LeaveAll() = %d, want 2", n)
	}
	if _, ok := r.Get("c1"); !ok {
		t.Error("LeaveAll removed the connection")
	}
}

func TestRegistry_OrderedByRegistration(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("c%02d", 19-i)
		r.Register(newFakeConn(id, models.TransportRooms))
		r.Join(id, models.RoomEvents, nil)
	}

	subs := r.SubscribersOf(models.RoomEvents)
	for i, s := range subs {
		if want := fmt.Sprintf("c%02d", 19-i); s.Conn.ID() != want {
			t.Fatalf("subscriber %d = %s, want %s", i, s.Conn.ID(), want)
		}
	}
}

func TestRegistry_CountByTransport(t *testing.T) {
	r := NewRegistry()
	counts := r.CountByTransport()
	if counts[models.TransportRooms] != 0 || counts[models.TransportStream] != 0 || len(counts) != 2 {
		t.Errorf("empty CountByTransport() = %v", counts)
	}

	r.Register(newFakeConn("a", models.TransportRooms))
	r.Register(newFakeConn("b", models.TransportStream))
	r.Register(newFakeConn("c", models.TransportStream))

	counts = r.CountByTransport()
	if counts[models.TransportRooms] != 1 || counts[models.TransportStream] != 2 {
		t.Errorf("CountByTransport() = %v", counts)
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			r.Register(newFakeConn(id, models.TransportRooms))
			r.Join(id, models.RoomEvents, nil)
			_ = r.SubscribersOf(models.RoomEvents)
			if i%2 == 0 {
				r.Unregister(id)
			}
		}(i)
	}
	wg.Wait()

	if r.Count() != 25 {
		t.Errorf("Count() = %d, want 25", r.Count())
	}
}
