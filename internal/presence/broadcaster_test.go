package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/rs/zerolog"
)

type fakeHub struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakeHub) Broadcast(message []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
}

func (f *fakeHub) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeHub) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1]
}

func TestRosterBroadcastOnlyWhenDirty(t *testing.T) {
	tracker := NewTracker()
	register(tracker, "a1", "sales")
	hub := &fakeHub{}
	broadcaster := NewRosterBroadcaster(tracker, hub, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go broadcaster.Start(ctx)

	// No mutation, no broadcast
	time.Sleep(50 * time.Millisecond)
	if hub.count() != 0 {
		t.Fatalf("expected no broadcasts while clean, got %d", hub.count())
	}

	broadcaster.MarkDirty()
	deadline := time.Now().Add(time.Second)
	for hub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.count() != 1 {
		t.Fatalf("expected 1 broadcast after dirty mark, got %d", hub.count())
	}

	var snapshot types.RosterSnapshot
	if err := json.Unmarshal(hub.last(), &snapshot); err != nil {
		t.Fatalf("invalid snapshot payload: %v", err)
	}
	if snapshot.Type != "roster" || len(snapshot.Agents) != 1 {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
}

func TestRosterBroadcastDebounced(t *testing.T) {
	tracker := NewTracker()
	hub := &fakeHub{}
	broadcaster := NewRosterBroadcaster(tracker, hub, 30*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go broadcaster.Start(ctx)

	// A burst of mutations collapses into at most two ticks' worth
	for i := 0; i < 20; i++ {
		broadcaster.MarkDirty()
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)

	if hub.count() > 3 {
		t.Errorf("expected debounced broadcasts, got %d", hub.count())
	}
	if hub.count() == 0 {
		t.Error("expected at least one broadcast")
	}
}

func TestSweeperMarksDirtyOnChange(t *testing.T) {
	tracker := NewTracker()
	register(tracker, "a1", "sales")
	hub := &fakeHub{}
	broadcaster := NewRosterBroadcaster(tracker, hub, 10*time.Millisecond, zerolog.Nop())
	sweeper := NewSweeper(tracker, broadcaster, 10*time.Millisecond, time.Minute, zerolog.Nop())

	tracker.mu.Lock()
	tracker.agents["a1"].lastSeen = time.Now().Add(-StaleThreshold - time.Second)
	tracker.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go broadcaster.Start(ctx)
	go sweeper.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for hub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.count() == 0 {
		t.Fatal("expected sweep to trigger a roster broadcast")
	}
}
