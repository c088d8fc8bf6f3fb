package livecall

import (
	"fmt"
	"sync"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CallDirectory answers whether a call is currently live
type CallDirectory interface {
	HasCall(callID string) bool
}

// SessionManager owns supervisor monitoring sessions. Session capacity is
// capped; permission checks derive from the session's role and never from
// the request.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*types.SupervisorSession
	calls    CallDirectory
	maxSlots int
	logger   zerolog.Logger
}

// NewSessionManager creates a session manager bound to a call directory
func NewSessionManager(calls CallDirectory, maxSlots int, logger zerolog.Logger) *SessionManager {
	if maxSlots <= 0 {
		maxSlots = 100
	}
	return &SessionManager{
		sessions: make(map[string]*types.SupervisorSession),
		calls:    calls,
		maxSlots: maxSlots,
		logger:   logger.With().Str("component", "supervisor").Logger(),
	}
}

// CreateSession opens a monitoring session for a supervisor
func (m *SessionManager) CreateSession(supervisorID string, role types.SupervisorRole) (*types.SupervisorSession, error) {
	modes := types.ModesForRole(role)
	if modes == nil {
		return nil, fmt.Errorf("unknown supervisor role %q", role)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSlots {
		return nil, fmt.Errorf("session pool exhausted (%d active)", len(m.sessions))
	}

	session := &types.SupervisorSession{
		SessionID:    uuid.New().String(),
		SupervisorID: supervisorID,
		Role:         role,
		AllowedModes: modes,
		Mode:         types.ModeNone,
		CreatedAt:    time.Now(),
	}
	m.sessions[session.SessionID] = session

	m.logger.Info().
		Str("session_id", session.SessionID).
		Str("supervisor_id", supervisorID).
		Str("role", string(role)).
		Msg("supervisor session created")

	snapshot := *session
	return &snapshot, nil
}

// GetSession returns a snapshot of a session
func (m *SessionManager) GetSession(sessionID string) (*types.SupervisorSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, false
	}
	snapshot := *session
	return &snapshot, true
}

// ActiveSessions returns the current session count
func (m *SessionManager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartMonitoring attaches a session to a call in the requested mode.
// A session follows at most one call at a time; switching modes on the
// same call is allowed.
func (m *SessionManager) StartMonitoring(sessionID, callID string, mode types.MonitoringMode) types.ActionResult {
	if mode != types.ModeListen && mode != types.ModeWhisper && mode != types.ModeBarge {
		return types.ActionResult{
			Reason: types.ReasonValidationError,
			Detail: fmt.Sprintf("unknown monitoring mode %q", mode),
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return types.ActionResult{
			Reason: types.ReasonProcessingError,
			Detail: "session not found",
		}
	}
	if !m.calls.HasCall(callID) {
		return types.ActionResult{
			Reason: types.ReasonProcessingError,
			Detail: "call not found",
		}
	}
	if !session.Allows(mode) {
		m.logger.Warn().
			Str("session_id", sessionID).
			Str("role", string(session.Role)).
			Str("mode", string(mode)).
			Msg("monitoring mode denied")
		return types.ActionResult{
			Reason: types.ReasonPermissionDenied,
			Detail: fmt.Sprintf("role %s may not use mode %s", session.Role, mode),
		}
	}
	if session.ActiveCallID != "" && session.ActiveCallID != callID {
		return types.ActionResult{
			Reason: types.ReasonRejected,
			Detail: fmt.Sprintf("session already monitoring call %s", session.ActiveCallID),
		}
	}

	if session.ActiveCallID != callID {
		session.CallsMonitored++
	}
	session.ActiveCallID = callID
	session.Mode = mode
	if mode == types.ModeWhisper || mode == types.ModeBarge {
		session.Interventions++
	}

	m.logger.Info().
		Str("session_id", sessionID).
		Str("call_id", callID).
		Str("mode", string(mode)).
		Msg("monitoring started")
	return types.ActionResult{OK: true}
}

// StopMonitoring detaches the session from its active call
func (m *SessionManager) StopMonitoring(sessionID string) types.ActionResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return types.ActionResult{
			Reason: types.ReasonProcessingError,
			Detail: "session not found",
		}
	}
	session.ActiveCallID = ""
	session.Mode = types.ModeNone
	return types.ActionResult{OK: true}
}

// EndSession closes a session and frees its slot
func (m *SessionManager) EndSession(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return false
	}
	delete(m.sessions, sessionID)
	m.logger.Info().Str("session_id", sessionID).Msg("supervisor session ended")
	return true
}

// DetachFromCall stops every session watching the given call. Used when a
// call ends while supervisors are attached.
func (m *SessionManager) DetachFromCall(callID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	detached := 0
	for _, session := range m.sessions {
		if session.ActiveCallID == callID {
			session.ActiveCallID = ""
			session.Mode = types.ModeNone
			detached++
		}
	}
	return detached
}
