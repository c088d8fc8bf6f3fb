package presence

import (
	"testing"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
)

func register(t *Tracker, id string, queues ...string) {
	t.Register(types.AgentRegistration{
		AgentID:     id,
		QueueIDs:    queues,
		Status:      types.StatusAvailable,
		MaxCapacity: 3,
	})
}

func TestListAssignableByQueueMembership(t *testing.T) {
	tracker := NewTracker()
	register(tracker, "a1", "sales")
	register(tracker, "a2", "sales", "support")
	register(tracker, "a3", "support")

	sales, err := tracker.ListAssignable("sales")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 sales agents, got %d", len(sales))
	}
	// Deterministic ordering by agent id
	if sales[0].AgentID != "a1" || sales[1].AgentID != "a2" {
		t.Errorf("unexpected order: %s, %s", sales[0].AgentID, sales[1].AgentID)
	}

	support, _ := tracker.ListAssignable("support")
	if len(support) != 2 {
		t.Errorf("expected 2 support agents, got %d", len(support))
	}
}

func TestListAssignableExcludesDisconnected(t *testing.T) {
	tracker := NewTracker()
	register(tracker, "a1", "sales")
	register(tracker, "a2", "sales")
	tracker.SetConnected("a2", false)

	agents, _ := tracker.ListAssignable("sales")
	if len(agents) != 1 || agents[0].AgentID != "a1" {
		t.Errorf("expected only a1, got %+v", agents)
	}
}

func TestLoadTracking(t *testing.T) {
	tracker := NewTracker()
	register(tracker, "a1", "sales") // max capacity 3

	for i := 0; i < 3; i++ {
		if err := tracker.IncrementLoad("a1"); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}
	agent, _ := tracker.GetByID("a1")
	if agent.Status != types.StatusAtCapacity {
		t.Errorf("expected at_capacity at full load, got %s", agent.Status)
	}
	if agent.CurrentLoad != 3 {
		t.Errorf("expected load 3, got %d", agent.CurrentLoad)
	}

	if err := tracker.DecrementLoad("a1"); err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	agent, _ = tracker.GetByID("a1")
	if agent.Status != types.StatusAvailable {
		t.Errorf("expected available after freeing headroom, got %s", agent.Status)
	}

	if err := tracker.IncrementLoad("ghost"); err == nil {
		t.Error("expected error for unknown agent")
	}
}

func TestReRegistrationKeepsLoad(t *testing.T) {
	tracker := NewTracker()
	register(tracker, "a1", "sales")
	tracker.IncrementLoad("a1")
	tracker.IncrementLoad("a1")

	// Reconnect re-registers the agent
	register(tracker, "a1", "sales")
	agent, _ := tracker.GetByID("a1")
	if agent.CurrentLoad != 2 {
		t.Errorf("re-registration must keep in-flight load, got %d", agent.CurrentLoad)
	}
}

func TestUpdateStatus(t *testing.T) {
	tracker := NewTracker()
	register(tracker, "a1", "sales")

	err := tracker.UpdateStatus(types.StatusUpdate{AgentID: "a1", Status: types.StatusAway})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	agent, _ := tracker.GetByID("a1")
	if agent.Status != types.StatusAway {
		t.Errorf("expected away, got %s", agent.Status)
	}

	if err := tracker.UpdateStatus(types.StatusUpdate{AgentID: "ghost", Status: types.StatusAway}); err == nil {
		t.Error("expected error for unknown agent")
	}
}

func TestGetByIDUnknownReturnsNil(t *testing.T) {
	tracker := NewTracker()
	agent, err := tracker.GetByID("ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent != nil {
		t.Error("expected nil for unknown agent")
	}
}

func TestStaleSweepAndEviction(t *testing.T) {
	tracker := NewTracker()
	register(tracker, "a1", "sales")
	register(tracker, "a2", "sales")

	// Backdate a1's heartbeat past the stale threshold
	tracker.mu.Lock()
	tracker.agents["a1"].lastSeen = time.Now().Add(-StaleThreshold - time.Second)
	tracker.mu.Unlock()

	if marked := tracker.CheckStaleAgents(); marked != 1 {
		t.Fatalf("expected 1 stale agent, got %d", marked)
	}
	agents, _ := tracker.ListAssignable("sales")
	if len(agents) != 1 || agents[0].AgentID != "a2" {
		t.Errorf("stale agent must leave the assignable pool, got %+v", agents)
	}

	// A heartbeat revives the stale agent
	tracker.Heartbeat("a1")
	agents, _ = tracker.ListAssignable("sales")
	if len(agents) != 2 {
		t.Errorf("expected revived agent back in pool, got %d", len(agents))
	}

	// Long-disconnected agents are evicted
	tracker.SetConnected("a1", false)
	tracker.mu.Lock()
	tracker.agents["a1"].lastSeen = time.Now().Add(-time.Hour)
	tracker.mu.Unlock()
	if removed := tracker.RemoveDisconnected(5 * time.Minute); removed != 1 {
		t.Fatalf("expected 1 evicted agent, got %d", removed)
	}
	if tracker.Count() != 1 {
		t.Errorf("expected 1 agent left, got %d", tracker.Count())
	}
}

func TestConnectionStats(t *testing.T) {
	tracker := NewTracker()
	register(tracker, "a1", "sales")
	register(tracker, "a2", "sales")
	register(tracker, "a3", "sales")
	tracker.SetConnected("a2", false)
	tracker.mu.Lock()
	tracker.agents["a3"].connection = StatusStale
	tracker.mu.Unlock()

	connected, stale, disconnected := tracker.ConnectionStats()
	if connected != 1 || stale != 1 || disconnected != 1 {
		t.Errorf("expected 1/1/1, got %d/%d/%d", connected, stale, disconnected)
	}
}
