package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/presence"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RosterHandler exposes the live agent roster and agent admin actions
type RosterHandler struct {
	tracker  *presence.Tracker
	agentHub *websocket.AgentHub
	logger   zerolog.Logger
}

// NewRosterHandler creates a new RosterHandler. agentHub may be nil when
// the agent socket layer is disabled.
func NewRosterHandler(tracker *presence.Tracker, agentHub *websocket.AgentHub, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		tracker:  tracker,
		agentHub: agentHub,
		logger:   logger.With().Str("component", "roster_api").Logger(),
	}
}

// GetRoster handles GET /api/roster
func (h *RosterHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(types.RosterSnapshot{
		Type:      "roster",
		Timestamp: time.Now(),
		Agents:    h.tracker.Snapshot(),
	})
}

// GetConnectionStats handles GET /api/roster/connections
func (h *RosterHandler) GetConnectionStats(w http.ResponseWriter, r *http.Request) {
	connected, stale, disconnected := h.tracker.ConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"connected":    connected,
		"stale":        stale,
		"disconnected": disconnected,
	})
}

// GetAgent handles GET /api/agents/{agentId}
func (h *RosterHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	agent, err := h.tracker.GetByID(agentID)
	if err != nil {
		http.Error(w, "failed to load agent", http.StatusInternalServerError)
		return
	}
	if agent == nil {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agent)
}

// RegisterAgents handles POST /api/roster, a bulk pre-registration used by
// workforce tools to seed the roster before agents connect
func (h *RosterHandler) RegisterAgents(w http.ResponseWriter, r *http.Request) {
	var regs []types.AgentRegistration
	if err := json.NewDecoder(r.Body).Decode(&regs); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	registered := 0
	for _, reg := range regs {
		if reg.AgentID == "" {
			continue
		}
		h.tracker.Register(reg)
		registered++
	}

	h.logger.Info().Int("registered", registered).Msg("roster received")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"registered": registered})
}

// LogoutAgent handles POST /api/agents/{agentId}/logout. It force-closes
// the agent's socket; presence flips to disconnected via the hub.
func (h *RosterHandler) LogoutAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	disconnected := false
	if h.agentHub != nil {
		disconnected = h.agentHub.ForceDisconnect(agentID)
	}
	if !disconnected {
		// No live socket, mark presence directly
		h.tracker.SetConnected(agentID, false)
	}

	h.logger.Info().Str("agent_id", agentID).Bool("had_socket", disconnected).Msg("agent logged out")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"agentId":      agentID,
		"disconnected": true,
	})
}
