package websocket

import (
	"encoding/json"
	"sync"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/rs/zerolog"
)

// RosterSink receives agent lifecycle events from the socket layer. The
// presence tracker implements it.
type RosterSink interface {
	Register(reg types.AgentRegistration)
	UpdateStatus(update types.StatusUpdate) error
	Heartbeat(agentID string)
	SetConnected(agentID string, connected bool)
	DecrementLoad(agentID string) error
}

// workCompleteMsg reports that an agent finished a work item
type workCompleteMsg struct {
	Type       string `json:"type"`
	AgentID    string `json:"agentId"`
	WorkItemID string `json:"workItemId"`
}

// serverAck acknowledges an agent registration
type serverAck struct {
	Type    string `json:"type"`
	AgentID string `json:"agentId"`
}

// assignmentPush notifies an agent of a work item routed to them
type assignmentPush struct {
	Type       string `json:"type"`
	WorkItemID string `json:"workItemId"`
	QueueID    string `json:"queueId"`
	DecisionID string `json:"decisionId"`
}

// forceDisconnectMsg tells an agent the server is dropping the connection
type forceDisconnectMsg struct {
	Type    string `json:"type"`
	AgentID string `json:"agentId"`
}

// AgentHub maintains the set of active agent WebSocket connections and
// feeds their lifecycle events into the roster
type AgentHub struct {
	// Registered agent clients
	agents map[string]*AgentClient // agentID -> client

	// Register requests from agent clients
	register chan *AgentClient

	// Unregister requests from agent clients
	unregister chan *AgentClient

	// Inbound agent messages
	registrations chan types.AgentRegistration
	heartbeats    chan string
	statusChanges chan types.StatusUpdate
	workComplete  chan workCompleteMsg

	// Mutex to protect agents map
	mu sync.RWMutex

	// Logger
	logger zerolog.Logger

	// Roster backing the assignment engine
	roster RosterSink

	// Called after any roster mutation (debounced broadcast trigger)
	onChange func()
}

// NewAgentHub creates a new AgentHub. onChange may be nil.
func NewAgentHub(roster RosterSink, onChange func(), logger zerolog.Logger) *AgentHub {
	return &AgentHub{
		agents:        make(map[string]*AgentClient),
		register:      make(chan *AgentClient),
		unregister:    make(chan *AgentClient),
		registrations: make(chan types.AgentRegistration, 100),
		heartbeats:    make(chan string, 1000),
		statusChanges: make(chan types.StatusUpdate, 500),
		workComplete:  make(chan workCompleteMsg, 500),
		logger:        logger,
		roster:        roster,
		onChange:      onChange,
	}
}

func (h *AgentHub) rosterChanged() {
	if h.onChange != nil {
		h.onChange()
	}
}

// Run starts the hub's main loop
func (h *AgentHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			// Remove existing client with same agentID if any
			if existing, ok := h.agents[client.agentID]; ok {
				existing.Close()
				delete(h.agents, client.agentID)
			}
			h.agents[client.agentID] = client
			h.mu.Unlock()

			h.roster.SetConnected(client.agentID, true)
			h.rosterChanged()

			h.logger.Debug().
				Str("agent_id", client.agentID).
				Int("total_agents", len(h.agents)).
				Msg("agent connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if existing, ok := h.agents[client.agentID]; ok && existing == client {
				delete(h.agents, client.agentID)
				client.Close()
				h.roster.SetConnected(client.agentID, false)
				h.rosterChanged()

				h.logger.Debug().
					Str("agent_id", client.agentID).
					Int("total_agents", len(h.agents)).
					Msg("agent disconnected")
			}
			h.mu.Unlock()

		case reg := <-h.registrations:
			h.roster.Register(reg)
			h.rosterChanged()

		case agentID := <-h.heartbeats:
			h.roster.Heartbeat(agentID)

		case update := <-h.statusChanges:
			if err := h.roster.UpdateStatus(update); err != nil {
				h.logger.Warn().Err(err).Str("agent_id", update.AgentID).Msg("status update rejected")
				continue
			}
			h.rosterChanged()

		case wc := <-h.workComplete:
			if err := h.roster.DecrementLoad(wc.AgentID); err != nil {
				h.logger.Warn().Err(err).Str("agent_id", wc.AgentID).Msg("work complete rejected")
				continue
			}
			h.rosterChanged()
		}
	}
}

// NotifyAssignment pushes an assignment decision to the selected agent.
// Returns false when the agent has no live connection.
func (h *AgentHub) NotifyAssignment(decision types.AssignmentDecision) bool {
	if decision.AgentID == "" {
		return false
	}
	msg := assignmentPush{
		Type:       "assignment",
		WorkItemID: decision.WorkItemID,
		QueueID:    decision.QueueID,
		DecisionID: decision.DecisionID,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal assignment push")
		return false
	}
	return h.SendToAgent(decision.AgentID, data)
}

// ForceDisconnect sends a force_disconnect message to the agent, then closes
// the connection
func (h *AgentHub) ForceDisconnect(agentID string) bool {
	msg := forceDisconnectMsg{
		Type:    "force_disconnect",
		AgentID: agentID,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal force_disconnect")
		return false
	}

	// Send the message first
	h.SendToAgent(agentID, data)

	// Then close the connection
	h.mu.Lock()
	client, ok := h.agents[agentID]
	if ok {
		delete(h.agents, agentID)
		client.Close()
		h.roster.SetConnected(agentID, false)
		h.rosterChanged()
		h.logger.Info().Str("agent_id", agentID).Msg("agent force-disconnected")
	}
	h.mu.Unlock()

	return ok
}

// AgentCount returns the number of connected agents
func (h *AgentHub) AgentCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.agents)
}

// SendToAgent sends a message to a specific agent
func (h *AgentHub) SendToAgent(agentID string, message []byte) bool {
	h.mu.RLock()
	client, ok := h.agents[agentID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	return client.safeSend(message)
}
