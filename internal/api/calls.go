package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/auth"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/livecall"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/metrics"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CallsHandler provides REST endpoints for live-call monitoring, handoffs
// and supervisor sessions
type CallsHandler struct {
	coordinator *livecall.Coordinator
	sessions    *livecall.SessionManager
	logger      zerolog.Logger
}

// NewCallsHandler creates a new CallsHandler
func NewCallsHandler(coordinator *livecall.Coordinator, sessions *livecall.SessionManager, logger zerolog.Logger) *CallsHandler {
	return &CallsHandler{
		coordinator: coordinator,
		sessions:    sessions,
		logger:      logger.With().Str("component", "calls_api").Logger(),
	}
}

type registerCallRequest struct {
	CallID      string              `json:"callId"`
	Direction   types.CallDirection `json:"direction"`
	AssistantID string              `json:"assistantId,omitempty"`
}

// RegisterCall handles POST /api/calls
func (h *CallsHandler) RegisterCall(w http.ResponseWriter, r *http.Request) {
	var req registerCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.CallID == "" {
		http.Error(w, "callId is required", http.StatusBadRequest)
		return
	}
	if req.Direction == "" {
		req.Direction = types.DirectionInbound
	}

	call := h.coordinator.RegisterCall(req.CallID, req.Direction, req.AssistantID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(call)
}

// GetCall handles GET /api/calls/{callId}
func (h *CallsHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")

	call, ok := h.coordinator.GetCall(callID)
	if !ok {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(call)
}

type callStateRequest struct {
	State types.CallState `json:"state"`
}

// UpdateState handles POST /api/calls/{callId}/state
func (h *CallsHandler) UpdateState(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")

	var req callStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	switch req.State {
	case types.CallRinging, types.CallConnected, types.CallOnHold, types.CallTransferring, types.CallEnded:
	default:
		http.Error(w, "unknown call state", http.StatusBadRequest)
		return
	}

	if err := h.coordinator.UpdateState(callID, req.State); err != nil {
		h.writeCallError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"callId": callID, "state": string(req.State)})
}

// AppendTranscript handles POST /api/calls/{callId}/transcript
func (h *CallsHandler) AppendTranscript(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")

	var entry types.TranscriptEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if entry.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	if err := h.coordinator.AppendTranscript(callID, entry); err != nil {
		h.writeCallError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type sentimentRequest struct {
	Score float64 `json:"score"`
}

// UpdateSentiment handles POST /api/calls/{callId}/sentiment
func (h *CallsHandler) UpdateSentiment(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")

	var req sentimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Score < -1 || req.Score > 1 {
		http.Error(w, "score must be between -1 and 1", http.StatusBadRequest)
		return
	}

	if err := h.coordinator.UpdateSentiment(callID, req.Score); err != nil {
		h.writeCallError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EndCall handles DELETE /api/calls/{callId}
func (h *CallsHandler) EndCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")

	if !h.coordinator.EndCall(callID) {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}
	detached := h.sessions.DetachFromCall(callID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"callId":           callID,
		"sessionsDetached": detached,
	})
}

// RequestHandoff handles POST /api/calls/{callId}/handoff
func (h *CallsHandler) RequestHandoff(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")

	var req types.HandoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	req.CallID = callID

	record, err := h.coordinator.RequestHandoff(req)
	if err != nil {
		h.writeCallError(w, err)
		return
	}
	metrics.Get().RecordHandoffRequested()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(record)
}

type completeHandoffRequest struct {
	AgentID string `json:"agentId"`
}

// CompleteHandoff handles POST /api/calls/{callId}/handoff/complete
func (h *CallsHandler) CompleteHandoff(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")

	var req completeHandoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		http.Error(w, "agentId is required", http.StatusBadRequest)
		return
	}

	record, err := h.coordinator.CompleteHandoff(callID, req.AgentID)
	if err != nil {
		h.writeCallError(w, err)
		return
	}
	metrics.Get().RecordHandoffCompleted()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// PendingHandoffs handles GET /api/handoffs/pending
func (h *CallsHandler) PendingHandoffs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.coordinator.PendingHandoffs())
}

// HandoffHistory handles GET /api/handoffs?since=RFC3339
func (h *CallsHandler) HandoffHistory(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.coordinator.HandoffHistory(since))
}

// CreateSession handles POST /api/sessions. The monitoring role comes from
// the caller's token, not the request body.
func (h *CallsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	session, err := h.sessions.CreateSession(claims.Email, claims.SupervisorRole())
	if err != nil {
		h.logger.Warn().Err(err).Str("supervisor", claims.Email).Msg("session creation failed")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(session)
}

type monitorRequest struct {
	CallID string               `json:"callId"`
	Mode   types.MonitoringMode `json:"mode"`
}

// StartMonitoring handles POST /api/sessions/{sessionId}/monitor
func (h *CallsHandler) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	var req monitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	result := h.sessions.StartMonitoring(sessionID, req.CallID, req.Mode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForResult(result))
	json.NewEncoder(w).Encode(result)
}

// StopMonitoring handles POST /api/sessions/{sessionId}/stop
func (h *CallsHandler) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	result := h.sessions.StopMonitoring(sessionID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForResult(result))
	json.NewEncoder(w).Encode(result)
}

// EndSession handles DELETE /api/sessions/{sessionId}
func (h *CallsHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	if !h.sessions.EndSession(sessionID) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"sessionId": sessionID, "status": "ended"})
}

func (h *CallsHandler) writeCallError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, livecall.ErrCallNotFound):
		http.Error(w, "call not found", http.StatusNotFound)
	case errors.Is(err, livecall.ErrNoPendingHandoff):
		http.Error(w, "no pending handoff", http.StatusConflict)
	default:
		h.logger.Error().Err(err).Msg("call operation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
