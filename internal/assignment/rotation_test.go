package assignment

import (
	"sync"
	"testing"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/rs/zerolog"
)

func TestReconcileOrderAppendsNewAtTail(t *testing.T) {
	state := &types.RotationState{
		QueueID:           "q1",
		AgentOrder:        []string{"a1", "a2"},
		LastAssignedIndex: 1,
	}
	pool := []types.AssignableAgent{
		{AgentID: "a2"},
		{AgentID: "a3"},
		{AgentID: "a1"},
	}

	reconcileOrder(state, pool)

	want := []string{"a1", "a2", "a3"}
	if len(state.AgentOrder) != len(want) {
		t.Fatalf("expected order %v, got %v", want, state.AgentOrder)
	}
	for i, id := range want {
		if state.AgentOrder[i] != id {
			t.Errorf("position %d: expected %s, got %s", i, id, state.AgentOrder[i])
		}
	}
}

func TestReconcileOrderDropsDeparted(t *testing.T) {
	state := &types.RotationState{
		QueueID:           "q1",
		AgentOrder:        []string{"a1", "a2", "a3"},
		LastAssignedIndex: 2,
	}
	pool := []types.AssignableAgent{{AgentID: "a2"}}

	reconcileOrder(state, pool)

	if len(state.AgentOrder) != 1 || state.AgentOrder[0] != "a2" {
		t.Fatalf("expected order [a2], got %v", state.AgentOrder)
	}
	// Cursor validity is the walk's concern, not reconciliation's
	if state.LastAssignedIndex != 2 {
		t.Errorf("expected cursor untouched, got %d", state.LastAssignedIndex)
	}
}

func TestWalkRestartsOnOutOfRangeCursor(t *testing.T) {
	engine := NewEngine(nil, nil, DefaultOptions(), zerolog.Nop())
	state := &types.RotationState{
		QueueID:           "q1",
		AgentOrder:        []string{"a1", "a2"},
		LastAssignedIndex: 7,
	}
	pool := []types.AssignableAgent{
		availableAgent("a1", 0, 10),
		availableAgent("a2", 0, 10),
	}

	selected, _ := engine.walkRotation(state, pool)
	if selected == nil {
		t.Fatal("expected a selection")
	}
	if selected.agentID != "a1" || selected.seqIndex != 0 {
		t.Errorf("expected restart at head (a1, 0), got (%s, %d)", selected.agentID, selected.seqIndex)
	}
}

func TestBuildSequenceWeighted(t *testing.T) {
	engine := NewEngine(nil, nil, Options{EnableWeighted: true, CapacityThreshold: 0.9, MaxRetryRounds: 3}, zerolog.Nop())
	byID := map[string]types.AssignableAgent{
		"a1": {AgentID: "a1", PriorityWeight: 3},
		"a2": {AgentID: "a2"}, // no weight, minimum 1
	}

	seq := engine.buildSequence([]string{"a1", "a2"}, byID)
	if len(seq) != 4 {
		t.Fatalf("expected 4 probes, got %d", len(seq))
	}
	counts := make(map[string]int)
	for _, id := range seq {
		counts[id]++
	}
	if counts["a1"] != 3 || counts["a2"] != 1 {
		t.Errorf("expected a1 x3 and a2 x1, got %v", counts)
	}
}

func TestWeightedAssignmentBias(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	heavy := availableAgent("a1", 0, 100)
	heavy.PriorityWeight = 3
	agents.add("q1", heavy)
	agents.add("q1", availableAgent("a2", 0, 100))
	engine := newTestEngine(agents, store, Options{
		CapacityThreshold: 0.9,
		MaxRetryRounds:    3,
		EnableWeighted:    true,
	})

	// Ten full cycles over the expanded sequence [a1 a1 a1 a2]. The cursor
	// persists between calls in sequence coordinates, so the walk must keep
	// reaching a2 even though its position exceeds the unexpanded order
	// length.
	counts := make(map[string]int)
	for i := 0; i < 40; i++ {
		decision, err := engine.Assign(types.WorkItem{WorkItemID: "w"}, "q1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		counts[decision.AgentID]++
	}
	if counts["a1"] != 30 || counts["a2"] != 10 {
		t.Errorf("expected 3:1 split (a1 30, a2 10), got %v", counts)
	}
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	locks := newKeyedLocks()

	unlockA := locks.lock("a")
	done := make(chan struct{})
	go func() {
		// A different key must not block
		unlockB := locks.lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on independent key blocked")
	}
	unlockA()
}

func TestKeyedLocksSerializesSameKey(t *testing.T) {
	locks := newKeyedLocks()
	var mu sync.Mutex
	var order []int

	unlock := locks.lock("q")
	go func() {
		u := locks.lock("q")
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		u()
	}()

	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	unlock()

	// Wait for the goroutine by re-acquiring
	u := locks.lock("q")
	u()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("expected serialized order [1 2], got %v", order)
	}
}
