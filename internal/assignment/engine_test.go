package assignment

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/rs/zerolog"
)

// fakeAgentStore is an in-memory AgentStore for tests
type fakeAgentStore struct {
	agents map[string]*types.AssignableAgent
	queues map[string][]string
	failOn string // method name that should fail
}

func newFakeAgentStore() *fakeAgentStore {
	return &fakeAgentStore{
		agents: make(map[string]*types.AssignableAgent),
		queues: make(map[string][]string),
	}
}

func (f *fakeAgentStore) add(queueID string, agent types.AssignableAgent) {
	f.agents[agent.AgentID] = &agent
	f.queues[queueID] = append(f.queues[queueID], agent.AgentID)
}

func (f *fakeAgentStore) ListAssignable(queueID string) ([]types.AssignableAgent, error) {
	if f.failOn == "ListAssignable" {
		return nil, errors.New("store down")
	}
	out := make([]types.AssignableAgent, 0, len(f.queues[queueID]))
	for _, id := range f.queues[queueID] {
		out = append(out, *f.agents[id])
	}
	return out, nil
}

func (f *fakeAgentStore) GetByID(agentID string) (*types.AssignableAgent, error) {
	if f.failOn == "GetByID" {
		return nil, errors.New("store down")
	}
	a, ok := f.agents[agentID]
	if !ok {
		return nil, nil
	}
	snapshot := *a
	return &snapshot, nil
}

func (f *fakeAgentStore) IncrementLoad(agentID string) error {
	if f.failOn == "IncrementLoad" {
		return errors.New("store down")
	}
	f.agents[agentID].CurrentLoad++
	return nil
}

func (f *fakeAgentStore) UpdateLastAssigned(agentID string, t time.Time) error {
	f.agents[agentID].LastAssignedAt = &t
	return nil
}

// fakeRotationStore is an in-memory RotationStore for tests
type fakeRotationStore struct {
	states    map[string]types.RotationState
	decisions []types.AssignmentDecision
	saves     int
	onRecord  func() // called before each RecordDecision append
}

func newFakeRotationStore() *fakeRotationStore {
	return &fakeRotationStore{states: make(map[string]types.RotationState)}
}

func (f *fakeRotationStore) GetRotationState(queueID string) (*types.RotationState, error) {
	s, ok := f.states[queueID]
	if !ok {
		return nil, nil
	}
	snapshot := s
	return &snapshot, nil
}

func (f *fakeRotationStore) SaveRotationState(state types.RotationState) error {
	f.states[state.QueueID] = state
	f.saves++
	return nil
}

func (f *fakeRotationStore) RecordDecision(d types.AssignmentDecision) error {
	if f.onRecord != nil {
		f.onRecord()
	}
	f.decisions = append(f.decisions, d)
	return nil
}

func newTestEngine(agents *fakeAgentStore, store *fakeRotationStore, opts Options) *Engine {
	return NewEngine(agents, store, opts, zerolog.Nop())
}

func availableAgent(id string, load, capacity int) types.AssignableAgent {
	return types.AssignableAgent{
		AgentID:     id,
		Status:      types.StatusAvailable,
		CurrentLoad: load,
		MaxCapacity: capacity,
	}
}

func TestAssignRotationFairness(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	for _, id := range []string{"a1", "a2", "a3", "a4"} {
		agents.add("q1", availableAgent(id, 0, 10))
	}
	engine := newTestEngine(agents, store, DefaultOptions())

	// Four assignments must visit every agent exactly once
	seen := make(map[string]int)
	for i := 0; i < 4; i++ {
		decision, err := engine.Assign(types.WorkItem{WorkItemID: "w"}, "q1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if decision.Outcome != types.OutcomeAssigned {
			t.Fatalf("expected assigned, got %s (%s)", decision.Outcome, decision.Reason)
		}
		seen[decision.AgentID]++
	}
	for _, id := range []string{"a1", "a2", "a3", "a4"} {
		if seen[id] != 1 {
			t.Errorf("expected agent %s visited once, got %d", id, seen[id])
		}
	}

	// A fifth assignment wraps back to the first agent in order
	decision, err := engine.Assign(types.WorkItem{WorkItemID: "w5"}, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentID != "a1" {
		t.Errorf("expected wrap to a1, got %s", decision.AgentID)
	}
}

func TestAssignSkipsAgentsAtCapacity(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	agents.add("q1", availableAgent("a1", 0, 1))
	agents.add("q1", availableAgent("a2", 1, 1)) // fully loaded
	engine := newTestEngine(agents, store, DefaultOptions())

	// First assignment goes to a1, not the loaded a2
	decision, err := engine.Assign(types.WorkItem{WorkItemID: "w1"}, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentID != "a1" {
		t.Fatalf("expected a1, got %s", decision.AgentID)
	}

	// a1 is now at capacity; free a2 and the next assignment picks it
	agents.agents["a2"].CurrentLoad = 0
	decision, err = engine.Assign(types.WorkItem{WorkItemID: "w2"}, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentID != "a2" {
		t.Errorf("expected a2, got %s", decision.AgentID)
	}
}

func TestAssignNeverSelectsAboveThreshold(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	agents.add("q1", availableAgent("a1", 9, 10)) // utilization 0.9 == threshold
	agents.add("q1", availableAgent("a2", 5, 10))
	engine := newTestEngine(agents, store, DefaultOptions())

	for i := 0; i < 3; i++ {
		decision, err := engine.Assign(types.WorkItem{WorkItemID: "w"}, "q1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if decision.AgentID == "a1" {
			t.Fatal("selected an agent at the capacity threshold")
		}
	}
}

func TestAssignRejectedWhenAllAtCapacity(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	agents.add("q1", availableAgent("a1", 1, 1))
	agents.add("q1", availableAgent("a2", 2, 2))
	engine := newTestEngine(agents, store, DefaultOptions())

	decision, err := engine.Assign(types.WorkItem{WorkItemID: "w1"}, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Outcome != types.OutcomeRejected {
		t.Fatalf("expected rejected, got %s", decision.Outcome)
	}
	if decision.Reason != "all agents at capacity" {
		t.Errorf("unexpected reason: %s", decision.Reason)
	}
	// Rejection is bookkept but the cursor is untouched
	if len(store.decisions) != 1 {
		t.Errorf("expected 1 recorded decision, got %d", len(store.decisions))
	}
	if store.saves != 0 {
		t.Errorf("expected no rotation saves, got %d", store.saves)
	}
	for _, c := range decision.Considered {
		if c.SkipReason != "at capacity" {
			t.Errorf("expected at capacity skip reason, got %q", c.SkipReason)
		}
	}
}

func TestAssignEmptyPoolNoWrites(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	agents.add("q1", types.AssignableAgent{AgentID: "a1", Status: types.StatusOffline, MaxCapacity: 5})
	engine := newTestEngine(agents, store, DefaultOptions())

	decision, err := engine.Assign(types.WorkItem{WorkItemID: "w1"}, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Outcome != types.OutcomeRejected {
		t.Fatalf("expected rejected, got %s", decision.Outcome)
	}
	if len(store.decisions) != 0 || store.saves != 0 {
		t.Error("expected no repository writes for empty pool")
	}
}

func TestAssignZeroCapacityAlwaysSkipped(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	agents.add("q1", availableAgent("a1", 0, 0)) // zero capacity
	agents.add("q1", availableAgent("a2", 0, 2))
	engine := newTestEngine(agents, store, DefaultOptions())

	decision, err := engine.Assign(types.WorkItem{WorkItemID: "w1"}, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentID != "a2" {
		t.Errorf("expected a2, got %s", decision.AgentID)
	}
}

func TestAssignContinuityPreferredAgent(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	agents.add("q1", availableAgent("a1", 0, 5))
	agents.add("q1", availableAgent("a2", 0, 5))
	engine := newTestEngine(agents, store, DefaultOptions())

	item := types.WorkItem{WorkItemID: "w1", PreferredAgentID: "a2"}
	decision, err := engine.Assign(item, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Outcome != types.OutcomePreferredAgent {
		t.Fatalf("expected preferred_agent, got %s", decision.Outcome)
	}
	if decision.AgentID != "a2" {
		t.Errorf("expected a2, got %s", decision.AgentID)
	}
	// Continuity must not touch rotation state
	if store.saves != 0 {
		t.Errorf("expected no rotation saves, got %d", store.saves)
	}
	if agents.agents["a2"].CurrentLoad != 1 {
		t.Errorf("expected load increment on a2, got %d", agents.agents["a2"].CurrentLoad)
	}
}

func TestAssignContinuityFallsBackToRotation(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	agents.add("q1", availableAgent("a1", 0, 5))
	busy := availableAgent("a2", 0, 5)
	busy.Status = types.StatusBusy
	agents.add("q1", busy)
	engine := newTestEngine(agents, store, DefaultOptions())

	item := types.WorkItem{WorkItemID: "w1", PreferredAgentID: "a2"}
	decision, err := engine.Assign(item, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Outcome != types.OutcomeAssigned {
		t.Fatalf("expected assigned via rotation, got %s", decision.Outcome)
	}
	if decision.AgentID != "a1" {
		t.Errorf("expected a1, got %s", decision.AgentID)
	}
}

func TestAssignSkillAndLanguageFiltering(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	a1 := availableAgent("a1", 0, 5)
	a1.Skills = []string{"cardiology"}
	a1.Languages = []string{"de"}
	a2 := availableAgent("a2", 0, 5)
	a2.Skills = []string{"cardiology", "triage"}
	a2.Languages = []string{"de", "en"}
	agents.add("q1", a1)
	agents.add("q1", a2)
	engine := newTestEngine(agents, store, DefaultOptions())

	item := types.WorkItem{WorkItemID: "w1", RequiredSkills: []string{"triage"}, Language: "en"}
	decision, err := engine.Assign(item, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentID != "a2" {
		t.Errorf("expected a2, got %s", decision.AgentID)
	}
}

func TestAssignCollaboratorFaultSurfacesError(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	agents.add("q1", availableAgent("a1", 0, 5))
	agents.failOn = "ListAssignable"
	engine := newTestEngine(agents, store, DefaultOptions())

	if _, err := engine.Assign(types.WorkItem{WorkItemID: "w1"}, "q1"); err == nil {
		t.Fatal("expected error from failing store")
	}
}

func TestAssignReleasesLockBeforeAudit(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	agents.add("q1", availableAgent("a1", 0, 5))
	engine := newTestEngine(agents, store, DefaultOptions())

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store.onRecord = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	assignDone := make(chan error, 1)
	go func() {
		_, err := engine.Assign(types.WorkItem{WorkItemID: "w1"}, "q1")
		assignDone <- err
	}()
	<-entered

	// The assignment is parked inside the decision audit write; the queue
	// lock must already be free for other rotation operations
	resetDone := make(chan error, 1)
	go func() { resetDone <- engine.ResetState("q1") }()
	select {
	case err := <-resetDone:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queue lock held across the decision audit write")
	}

	close(release)
	if err := <-assignDone; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResetStateRewindsCursor(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	agents.add("q1", availableAgent("a1", 0, 5))
	agents.add("q1", availableAgent("a2", 0, 5))
	engine := newTestEngine(agents, store, DefaultOptions())

	if _, err := engine.Assign(types.WorkItem{WorkItemID: "w1"}, "q1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := engine.ResetState("q1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// After reset the rotation starts over at the first agent
	decision, err := engine.Assign(types.WorkItem{WorkItemID: "w2"}, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentID != "a1" {
		t.Errorf("expected a1 after reset, got %s", decision.AgentID)
	}
}

func TestReorderReplacesOrder(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	agents.add("q1", availableAgent("a1", 0, 5))
	agents.add("q1", availableAgent("a2", 0, 5))
	engine := newTestEngine(agents, store, DefaultOptions())

	if err := engine.Reorder("q1", []string{"a2", "a1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decision, err := engine.Assign(types.WorkItem{WorkItemID: "w1"}, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentID != "a2" {
		t.Errorf("expected a2 first after reorder, got %s", decision.AgentID)
	}
}

func TestAssignReconcilesDepartedAgents(t *testing.T) {
	agents := newFakeAgentStore()
	store := newFakeRotationStore()
	agents.add("q1", availableAgent("a1", 0, 5))
	agents.add("q1", availableAgent("a2", 0, 5))
	agents.add("q1", availableAgent("a3", 0, 5))
	engine := newTestEngine(agents, store, DefaultOptions())

	if _, err := engine.Assign(types.WorkItem{WorkItemID: "w1"}, "q1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a2 leaves the roster; the next call reconciles without error
	agents.queues["q1"] = []string{"a1", "a3"}
	delete(agents.agents, "a2")

	decision, err := engine.Assign(types.WorkItem{WorkItemID: "w2"}, "q1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.AgentID != "a3" {
		t.Errorf("expected a3 after a2 departed, got %s", decision.AgentID)
	}
}
