package api

import (
	"encoding/json"
	"net/http"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/breach"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/metrics"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/storage"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// BreachHandler provides REST endpoints for the breach-event lifecycle
type BreachHandler struct {
	handler *breach.Handler
	store   storage.Store
	logger  zerolog.Logger
}

// NewBreachHandler creates a new BreachHandler
func NewBreachHandler(handler *breach.Handler, store storage.Store, logger zerolog.Logger) *BreachHandler {
	return &BreachHandler{
		handler: handler,
		store:   store,
		logger:  logger.With().Str("component", "breach_api").Logger(),
	}
}

// statusForResult maps a structured action result onto an HTTP status.
// Duplicates answer 200 so retrying callers see success.
func statusForResult(result types.ActionResult) int {
	if result.OK {
		return http.StatusOK
	}
	switch result.Reason {
	case types.ReasonValidationError:
		return http.StatusBadRequest
	case types.ReasonPermissionDenied:
		return http.StatusForbidden
	case types.ReasonRejected:
		return http.StatusConflict
	case types.ReasonDuplicate:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// HandleAction handles POST /api/breaches/actions
func (h *BreachHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	var req types.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	result := h.handler.HandleAction(req)
	if result.OK {
		metrics.Get().RecordBreachAction("ok")
	} else {
		metrics.Get().RecordBreachAction(string(result.Reason))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForResult(result))
	json.NewEncoder(w).Encode(result)
}

type breachBatchRequest struct {
	Events  []types.QueueEvent `json:"events"`
	Options types.BatchOptions `json:"options"`
}

// HandleBatch handles POST /api/breaches/batch
func (h *BreachHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req breachBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Events) == 0 {
		http.Error(w, "events are required", http.StatusBadRequest)
		return
	}

	result := h.handler.HandleBatch(req.Events, req.Options)
	h.logger.Info().
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("breach batch processed")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetEvent handles GET /api/breaches/{eventId}
func (h *BreachHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	event, err := h.store.GetEvent(eventID)
	if err != nil {
		h.logger.Error().Err(err).Str("event_id", eventID).Msg("failed to load event")
		http.Error(w, "failed to load event", http.StatusInternalServerError)
		return
	}
	if event == nil {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(event)
}
