package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/assignment"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/metrics"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/storage"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AssignmentHandler provides REST endpoints for work-item assignment
type AssignmentHandler struct {
	engine   *assignment.Engine
	agentHub *websocket.AgentHub
	store    storage.Store
	logger   zerolog.Logger
}

// NewAssignmentHandler creates a new AssignmentHandler. agentHub may be nil
// when assignment pushes are disabled.
func NewAssignmentHandler(engine *assignment.Engine, agentHub *websocket.AgentHub, store storage.Store, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		engine:   engine,
		agentHub: agentHub,
		store:    store,
		logger:   logger.With().Str("component", "assignment_api").Logger(),
	}
}

type assignRequest struct {
	QueueID string         `json:"queueId"`
	Item    types.WorkItem `json:"item"`
}

// Assign handles POST /api/assignments
func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.QueueID == "" || req.Item.WorkItemID == "" {
		http.Error(w, "queueId and item.workItemId are required", http.StatusBadRequest)
		return
	}

	decision, err := h.engine.Assign(req.Item, req.QueueID)
	if err != nil {
		metrics.Get().RecordAssignmentError()
		h.logger.Error().Err(err).Str("work_item_id", req.Item.WorkItemID).Msg("assignment failed")
		http.Error(w, "assignment failed", http.StatusInternalServerError)
		return
	}
	metrics.Get().RecordAssignment(decision.Outcome)

	// Best-effort push to the selected agent's workstation
	if h.agentHub != nil && decision.AgentID != "" {
		h.agentHub.NotifyAssignment(decision)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decision)
}

type assignBatchRequest struct {
	QueueID string           `json:"queueId"`
	Items   []types.WorkItem `json:"items"`
}

// AssignBatch handles POST /api/assignments/batch
func (h *AssignmentHandler) AssignBatch(w http.ResponseWriter, r *http.Request) {
	var req assignBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.QueueID == "" || len(req.Items) == 0 {
		http.Error(w, "queueId and items are required", http.StatusBadRequest)
		return
	}

	decisions := h.engine.AssignBatch(req.Items, req.QueueID)
	for _, d := range decisions {
		metrics.Get().RecordAssignment(d.Outcome)
		if h.agentHub != nil && d.AgentID != "" {
			h.agentHub.NotifyAssignment(d)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decisions)
}

// QueueStats handles GET /api/queues/{queueId}/stats?date=YYYY-MM-DD
func (h *AssignmentHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "queueId")
	dateKey := r.URL.Query().Get("date")
	if dateKey == "" {
		dateKey = time.Now().Format("2006-01-02")
	}

	decisions, err := h.store.GetDecisions(dateKey)
	if err != nil {
		h.logger.Error().Err(err).Str("date", dateKey).Msg("failed to load decisions")
		http.Error(w, "failed to load decisions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(storage.ComputeStats(queueID, decisions))
}

// ResetRotation handles POST /api/queues/{queueId}/rotation/reset
func (h *AssignmentHandler) ResetRotation(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "queueId")
	if queueID == "" {
		http.Error(w, "queueId is required", http.StatusBadRequest)
		return
	}

	if err := h.engine.ResetState(queueID); err != nil {
		h.logger.Error().Err(err).Str("queue_id", queueID).Msg("rotation reset failed")
		http.Error(w, "rotation reset failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "rotation reset", "queueId": queueID})
}

type reorderRequest struct {
	AgentOrder []string `json:"agentOrder"`
}

// Reorder handles PUT /api/queues/{queueId}/rotation/order
func (h *AssignmentHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "queueId")

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.engine.Reorder(queueID, req.AgentOrder); err != nil {
		h.logger.Error().Err(err).Str("queue_id", queueID).Msg("reorder failed")
		http.Error(w, "reorder failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "rotation order replaced",
		"queueId": queueID,
		"agents":  len(req.AgentOrder),
	})
}
