package websocket

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/rs/zerolog"
)

// fakeRoster records roster mutations from the hub loop
type fakeRoster struct {
	mu          sync.Mutex
	registered  []string
	heartbeats  []string
	statuses    []types.StatusUpdate
	decrements  []string
	connections map[string]bool
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{connections: make(map[string]bool)}
}

func (f *fakeRoster) Register(reg types.AgentRegistration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, reg.AgentID)
}

func (f *fakeRoster) UpdateStatus(update types.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, update)
	return nil
}

func (f *fakeRoster) Heartbeat(agentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats = append(f.heartbeats, agentID)
}

func (f *fakeRoster) SetConnected(agentID string, connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connections[agentID] = connected
}

func (f *fakeRoster) DecrementLoad(agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decrements = append(f.decrements, agentID)
	return nil
}

func (f *fakeRoster) snapshot() fakeRoster {
	f.mu.Lock()
	defer f.mu.Unlock()
	connections := make(map[string]bool, len(f.connections))
	for k, v := range f.connections {
		connections[k] = v
	}
	return fakeRoster{
		registered:  append([]string(nil), f.registered...),
		heartbeats:  append([]string(nil), f.heartbeats...),
		statuses:    append([]types.StatusUpdate(nil), f.statuses...),
		decrements:  append([]string(nil), f.decrements...),
		connections: connections,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAgentHubFeedsRoster(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	roster := newFakeRoster()
	hub := NewAgentHub(roster, nil, logger)
	go hub.Run()

	hub.registrations <- types.AgentRegistration{AgentID: "a1", QueueIDs: []string{"q1"}}
	hub.heartbeats <- "a1"
	hub.statusChanges <- types.StatusUpdate{AgentID: "a1", Status: types.StatusAway}
	hub.workComplete <- workCompleteMsg{Type: "work_complete", AgentID: "a1", WorkItemID: "w1"}

	waitFor(t, func() bool { return len(roster.snapshot().decrements) == 1 })

	got := roster.snapshot()
	if len(got.registered) != 1 || got.registered[0] != "a1" {
		t.Errorf("unexpected registrations: %v", got.registered)
	}
	if len(got.heartbeats) != 1 {
		t.Errorf("unexpected heartbeats: %v", got.heartbeats)
	}
	if len(got.statuses) != 1 || got.statuses[0].Status != types.StatusAway {
		t.Errorf("unexpected statuses: %+v", got.statuses)
	}
}

func TestAgentHubConnectionLifecycle(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	roster := newFakeRoster()
	changes := 0
	var changeMu sync.Mutex
	hub := NewAgentHub(roster, func() {
		changeMu.Lock()
		changes++
		changeMu.Unlock()
	}, logger)
	go hub.Run()

	client := &AgentClient{agentID: "a1", hub: hub, send: make(chan []byte, 1), done: make(chan struct{})}
	hub.register <- client
	waitFor(t, func() bool { return hub.AgentCount() == 1 })

	if connected := roster.snapshot().connections["a1"]; !connected {
		t.Error("expected a1 marked connected")
	}

	hub.unregister <- client
	waitFor(t, func() bool { return hub.AgentCount() == 0 })
	if connected := roster.snapshot().connections["a1"]; connected {
		t.Error("expected a1 marked disconnected")
	}

	changeMu.Lock()
	defer changeMu.Unlock()
	if changes < 2 {
		t.Errorf("expected change notifications for connect and disconnect, got %d", changes)
	}
}

func TestNotifyAssignment(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewAgentHub(newFakeRoster(), nil, logger)
	go hub.Run()

	client := &AgentClient{agentID: "a1", hub: hub, send: make(chan []byte, 4), done: make(chan struct{})}
	hub.register <- client
	waitFor(t, func() bool { return hub.AgentCount() == 1 })

	decision := types.AssignmentDecision{
		DecisionID: "d1", WorkItemID: "w1", QueueID: "q1", AgentID: "a1",
		Outcome: types.OutcomeAssigned,
	}
	if !hub.NotifyAssignment(decision) {
		t.Fatal("expected push to connected agent to succeed")
	}

	select {
	case msg := <-client.send:
		if !bytes.Contains(msg, []byte(`"assignment"`)) || !bytes.Contains(msg, []byte("w1")) {
			t.Errorf("unexpected push payload: %s", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("agent did not receive assignment push")
	}

	// No connection, no push
	if hub.NotifyAssignment(types.AssignmentDecision{AgentID: "ghost", WorkItemID: "w2"}) {
		t.Error("expected push to unknown agent to fail")
	}
}
