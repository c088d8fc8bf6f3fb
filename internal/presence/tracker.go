package presence

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
)

// ConnectionStatus tracks transport-level liveness, separate from the
// agent's declared availability status
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusStale        ConnectionStatus = "stale"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// StaleThreshold is the duration after which a connected agent with no
// heartbeat is considered stale (3 missed heartbeats)
const StaleThreshold = 6 * time.Second

type agentRecord struct {
	agent      types.AssignableAgent
	queues     map[string]struct{}
	connection ConnectionStatus
	lastSeen   time.Time
}

// Tracker maintains the live agent roster: who is registered, which queues
// they serve, their declared status, and their current load. It is the
// agent repository behind the assignment engine.
type Tracker struct {
	mu     sync.RWMutex
	agents map[string]*agentRecord
}

// NewTracker creates an empty roster tracker
func NewTracker() *Tracker {
	return &Tracker{agents: make(map[string]*agentRecord)}
}

// Register adds or replaces an agent on the roster
func (t *Tracker) Register(reg types.AgentRegistration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := reg.Status
	if status == "" {
		status = types.StatusAvailable
	}
	queues := make(map[string]struct{}, len(reg.QueueIDs))
	for _, q := range reg.QueueIDs {
		queues[q] = struct{}{}
	}

	// Re-registration keeps the current load so a reconnect does not
	// erase in-flight work
	currentLoad := 0
	if existing, exists := t.agents[reg.AgentID]; exists {
		currentLoad = existing.agent.CurrentLoad
	}

	t.agents[reg.AgentID] = &agentRecord{
		agent: types.AssignableAgent{
			AgentID:        reg.AgentID,
			Status:         status,
			CurrentLoad:    currentLoad,
			MaxCapacity:    reg.MaxCapacity,
			Team:           reg.Team,
			Skills:         reg.Skills,
			Languages:      reg.Languages,
			PriorityWeight: reg.PriorityWeight,
		},
		queues:     queues,
		connection: StatusConnected,
		lastSeen:   time.Now(),
	}
}

// UpdateStatus applies a presence change for a registered agent
func (t *Tracker) UpdateStatus(update types.StatusUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, exists := t.agents[update.AgentID]
	if !exists {
		return fmt.Errorf("agent %s not registered", update.AgentID)
	}
	record.agent.Status = update.Status
	record.connection = StatusConnected
	record.lastSeen = time.Now()
	return nil
}

// Heartbeat refreshes the agent's liveness timestamp
func (t *Tracker) Heartbeat(agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if record, exists := t.agents[agentID]; exists {
		record.lastSeen = time.Now()
		if record.connection == StatusStale {
			record.connection = StatusConnected
		}
	}
}

// SetConnected flips the transport-level status of an agent
func (t *Tracker) SetConnected(agentID string, connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, exists := t.agents[agentID]
	if !exists {
		return
	}
	if connected {
		record.connection = StatusConnected
	} else {
		record.connection = StatusDisconnected
	}
	record.lastSeen = time.Now()
}

// ListAssignable returns snapshots of connected agents serving the queue.
// Eligibility filtering beyond queue membership is the caller's concern.
func (t *Tracker) ListAssignable(queueID string) ([]types.AssignableAgent, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.AssignableAgent, 0)
	for _, record := range t.agents {
		if record.connection != StatusConnected {
			continue
		}
		if _, member := record.queues[queueID]; !member {
			continue
		}
		out = append(out, record.agent)
	}
	// Deterministic order for stable rotation reconciliation
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

// GetByID returns a snapshot of the agent, or nil when unknown
func (t *Tracker) GetByID(agentID string) (*types.AssignableAgent, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	record, exists := t.agents[agentID]
	if !exists {
		return nil, nil
	}
	snapshot := record.agent
	return &snapshot, nil
}

// IncrementLoad adds one unit of work to the agent. An agent reaching max
// capacity flips to at_capacity.
func (t *Tracker) IncrementLoad(agentID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, exists := t.agents[agentID]
	if !exists {
		return fmt.Errorf("agent %s not registered", agentID)
	}
	record.agent.CurrentLoad++
	if record.agent.MaxCapacity > 0 && record.agent.CurrentLoad >= record.agent.MaxCapacity {
		record.agent.Status = types.StatusAtCapacity
	}
	return nil
}

// DecrementLoad releases one unit of work. An at_capacity agent with freed
// headroom goes back to available.
func (t *Tracker) DecrementLoad(agentID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, exists := t.agents[agentID]
	if !exists {
		return fmt.Errorf("agent %s not registered", agentID)
	}
	if record.agent.CurrentLoad > 0 {
		record.agent.CurrentLoad--
	}
	if record.agent.Status == types.StatusAtCapacity &&
		(record.agent.MaxCapacity <= 0 || record.agent.CurrentLoad < record.agent.MaxCapacity) {
		record.agent.Status = types.StatusAvailable
	}
	return nil
}

// UpdateLastAssigned stamps the agent's most recent assignment time
func (t *Tracker) UpdateLastAssigned(agentID string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, exists := t.agents[agentID]
	if !exists {
		return fmt.Errorf("agent %s not registered", agentID)
	}
	record.agent.LastAssignedAt = &at
	return nil
}

// CheckStaleAgents marks connected agents without a recent heartbeat as
// stale, dropping them from assignment consideration
func (t *Tracker) CheckStaleAgents() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	threshold := time.Now().Add(-StaleThreshold)
	marked := 0
	for _, record := range t.agents {
		if record.connection == StatusConnected && record.lastSeen.Before(threshold) {
			record.connection = StatusStale
			marked++
		}
	}
	return marked
}

// RemoveDisconnected drops agents that have been disconnected longer than
// maxAge and returns how many were removed
func (t *Tracker) RemoveDisconnected(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	threshold := time.Now().Add(-maxAge)
	removed := 0
	for id, record := range t.agents {
		if record.connection == StatusDisconnected && record.lastSeen.Before(threshold) {
			delete(t.agents, id)
			removed++
		}
	}
	return removed
}

// Snapshot returns the full roster for dashboard broadcasts, sorted by
// agent id
func (t *Tracker) Snapshot() []types.AssignableAgent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.AssignableAgent, 0, len(t.agents))
	for _, record := range t.agents {
		out = append(out, record.agent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// Count returns the number of tracked agents
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.agents)
}

// ConnectionStats returns per-connection-status counts
func (t *Tracker) ConnectionStats() (connected, stale, disconnected int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, record := range t.agents {
		switch record.connection {
		case StatusConnected:
			connected++
		case StatusStale:
			stale++
		case StatusDisconnected:
			disconnected++
		}
	}
	return
}
