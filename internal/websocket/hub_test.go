// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/thermoshare/thermoshare/internal/models"
	"github.com/thermoshare/thermoshare/internal/schedule"
)

// fakePresence records claim traffic without any aggregation logic.
type fakePresence struct {
	mu       sync.Mutex
	names    []string
	released []string
}

func (f *fakePresence) Claim(name string)   {}
func (f *fakePresence) Rename(_, _ string)  {}
func (f *fakePresence) Count() int          { return len(f.Names()) }
func (f *fakePresence) Release(name string) {
	f.mu.Lock()
	f.released = append(f.released, name)
	f.mu.Unlock()
}

func (f *fakePresence) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.names...)
}

func (f *fakePresence) releasedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...)
}

func newTestHub(t *testing.T, cfg Config) (*Hub, *schedule.Store, *fakePresence) {
	t.Helper()
	store := schedule.NewStore(nil)
	presence := &fakePresence{}
	return NewHub(cfg, store, presence), store, presence
}

func mustCreate(t *testing.T, store *schedule.Store, start, end string) *models.ScheduleEntry {
	t.Helper()
	entry, err := store.Create(models.ScheduleCandidate{
		OwnerID:   "owner",
		StartTime: start,
		EndTime:   end,
		Date:      "2026-09-01",
	})
	if err != nil {
		t.Fatalf("Create(%s-%s) error = %v", start, end, err)
	}
	return entry
}

func TestHubJoinSnapshotFirst(t *testing.T) {
	hub, store, _ := newTestHub(t, Config{SendBuffer: 8})

	pre := mustCreate(t, store, "09:00", "10:00")

	client := NewClient(hub, nil)
	hub.handleRegister(client)

	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	select {
	case msg := <-client.send:
		if msg.Type != models.EventFullState {
			t.Fatalf("first frame type = %q, want %q", msg.Type, models.EventFullState)
		}
		state, ok := msg.Data.(models.FullState)
		if !ok {
			t.Fatalf("full_state payload type %T", msg.Data)
		}
		if len(state.Schedules) != 1 || state.Schedules[0].ID != pre.ID {
			t.Errorf("snapshot schedules = %v, want the pre-join entry", state.Schedules)
		}
		if state.Counts.TotalSchedules != 1 {
			t.Errorf("snapshot counts = %+v, want TotalSchedules 1", state.Counts)
		}
	default:
		t.Fatal("no snapshot queued on join")
	}
}

func TestHubBroadcastOrderPerSession(t *testing.T) {
	hub, _, _ := newTestHub(t, Config{SendBuffer: 8})

	client := NewClient(hub, nil)
	hub.handleRegister(client)
	<-client.send // drain the snapshot

	hub.broadcastToClients(Message{Type: models.EventScheduleCreated})
	hub.broadcastToClients(Message{Type: models.EventScheduleDeleted})

	first := <-client.send
	second := <-client.send
	if first.Type != models.EventScheduleCreated || second.Type != models.EventScheduleDeleted {
		t.Fatalf("frame order = %q, %q; want created then deleted", first.Type, second.Type)
	}
}

func TestHubDropsSlowSession(t *testing.T) {
	hub, _, presence := newTestHub(t, Config{SendBuffer: 1})

	slow := NewClient(hub, nil)
	slow.setName("Alex")
	fast := NewClient(hub, nil)

	hub.handleRegister(slow) // snapshot fills the 1-slot queue
	hub.handleRegister(fast)
	<-fast.send // fast drains its snapshot

	hub.broadcastToClients(Message{Type: models.EventScheduleCreated})

	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d after slow drop, want 1", hub.ClientCount())
	}
	// The buffered snapshot drains first, then the channel reports closed.
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("slow session's send channel not closed")
	}

	// The fast session still got the broadcast.
	msg := <-fast.send
	if msg.Type != models.EventScheduleCreated {
		t.Errorf("fast session frame = %q, want schedule_created", msg.Type)
	}

	// The dropped session's presence claim was released.
	released := presence.releasedNames()
	if len(released) != 1 || released[0] != "Alex" {
		t.Errorf("released names = %v, want [Alex]", released)
	}
}

func TestHubUnregisterReleasesPresence(t *testing.T) {
	hub, _, presence := newTestHub(t, Config{SendBuffer: 8})

	client := NewClient(hub, nil)
	client.setName("Maria")
	hub.handleRegister(client)
	hub.handleUnregister(client)

	if hub.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d, want 0", hub.ClientCount())
	}
	released := presence.releasedNames()
	if len(released) != 1 || released[0] != "Maria" {
		t.Errorf("released names = %v, want [Maria]", released)
	}

	// Double unregister is a no-op.
	hub.handleUnregister(client)
	if got := presence.releasedNames(); len(got) != 1 {
		t.Errorf("double unregister released again: %v", got)
	}
}

func TestHubUnregisterAnonymousSkipsRelease(t *testing.T) {
	hub, _, presence := newTestHub(t, Config{SendBuffer: 8})

	client := NewClient(hub, nil)
	hub.handleRegister(client)
	hub.handleUnregister(client)

	if got := presence.releasedNames(); len(got) != 0 {
		t.Errorf("nameless session released %v, want nothing", got)
	}
}

func TestHubServeShutdownClosesSessions(t *testing.T) {
	hub, _, _ := newTestHub(t, Config{SendBuffer: 8})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	client := NewClient(hub, nil)
	hub.Register <- client
	<-client.send // snapshot

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	if _, ok := <-client.send; ok {
		t.Error("session send channel not closed on shutdown")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after shutdown, want 0", hub.ClientCount())
	}
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	hub, _, _ := newTestHub(t, Config{SendBuffer: 1, BroadcastBuffer: 1})

	// Nothing drains hub.broadcast; the second call must drop, not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		data, _ := json.Marshal(models.ScheduleEvent{})
		hub.Broadcast(models.EventScheduleCreated, data)
		hub.Broadcast(models.EventScheduleCreated, data)
		hub.Broadcast(models.EventScheduleCreated, data)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked with a full intake queue")
	}
}
