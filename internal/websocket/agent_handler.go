package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// agentUpgrader upgrades agent workstation and connector sockets. No origin
// check: the /internal routes are only reachable from inside the deployment.
var agentUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AgentHandler upgrades incoming agent connections onto the agent hub
type AgentHandler struct {
	hub    *AgentHub
	logger zerolog.Logger
}

// NewAgentHandler creates a new AgentHandler
func NewAgentHandler(hub *AgentHub, logger zerolog.Logger) *AgentHandler {
	return &AgentHandler{
		hub:    hub,
		logger: logger,
	}
}

// ServeHTTP upgrades a single-agent workstation socket. The roster
// registration follows as the client's first message.
func (h *AgentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := agentUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade agent connection")
		return
	}

	client := NewAgentClient(h.hub, conn, h.logger)
	h.hub.register <- client
	client.Start()
}

// ServeMultiplexedHTTP upgrades a connector socket carrying many agents,
// e.g. a PBX bridging a whole site. Agents register individually over the
// shared connection, so nothing joins the hub at upgrade time.
func (h *AgentHandler) ServeMultiplexedHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := agentUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade multiplexed agent connection")
		return
	}

	client := NewMultiplexedAgentClient(h.hub, conn, h.logger)
	client.Start()
}
