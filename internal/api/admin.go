package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/auth"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/presence"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/storage"
	"github.com/rs/zerolog"
)

// AdminHandler handles privileged maintenance endpoints
type AdminHandler struct {
	tracker *presence.Tracker
	store   storage.Store
	logger  zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(tracker *presence.Tracker, store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		tracker: tracker,
		store:   store,
		logger:  logger.With().Str("component", "admin_api").Logger(),
	}
}

// RequireAdmin middleware, only admin role allowed
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, "admin") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSupervisorOrAdmin middleware, supervisor or admin role allowed
func RequireSupervisorOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || (claims.Role != "admin" && claims.Role != "supervisor") {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"error":"supervisor or admin role required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SweepRoster evicts disconnected agents from the presence tracker
func (h *AdminHandler) SweepRoster(w http.ResponseWriter, r *http.Request) {
	maxAge := 5 * time.Minute
	if raw := r.URL.Query().Get("maxAge"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			http.Error(w, `{"error":"maxAge must be a duration"}`, http.StatusBadRequest)
			return
		}
		maxAge = parsed
	}

	stale := h.tracker.CheckStaleAgents()
	removed := h.tracker.RemoveDisconnected(maxAge)

	h.logger.Info().Int("stale", stale).Int("removed", removed).Msg("roster swept via admin")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "roster swept",
		"stale":   stale,
		"removed": removed,
	})
}

// WipeStorage truncates all persistence tables
func (h *AdminHandler) WipeStorage(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate storage")
		http.Error(w, fmt.Sprintf(`{"error":"failed to truncate: %s"}`, err), http.StatusInternalServerError)
		return
	}

	h.logger.Info().Msg("storage truncated")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "storage truncated",
	})
}
