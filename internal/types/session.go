package types

import "time"

// MonitoringMode is how a supervisor attaches to a live call
type MonitoringMode string

const (
	ModeNone    MonitoringMode = "none"
	ModeListen  MonitoringMode = "listen"
	ModeWhisper MonitoringMode = "whisper"
	ModeBarge   MonitoringMode = "barge"
)

// SupervisorRole gates which monitoring modes a session may use
type SupervisorRole string

const (
	RoleViewer     SupervisorRole = "viewer"
	RoleSupervisor SupervisorRole = "supervisor"
	RoleAdmin      SupervisorRole = "admin"
)

// ModesForRole returns the role-derived permission set.
// Permissions nest: listen ⊆ whisper ⊆ barge.
func ModesForRole(role SupervisorRole) []MonitoringMode {
	switch role {
	case RoleAdmin:
		return []MonitoringMode{ModeListen, ModeWhisper, ModeBarge}
	case RoleSupervisor:
		return []MonitoringMode{ModeListen, ModeWhisper}
	case RoleViewer:
		return []MonitoringMode{ModeListen}
	}
	return nil
}

// SupervisorSession is one supervisor's live monitoring session.
// At most one active call per session.
type SupervisorSession struct {
	SessionID      string           `json:"sessionId"`
	SupervisorID   string           `json:"supervisorId"`
	Role           SupervisorRole   `json:"role"`
	AllowedModes   []MonitoringMode `json:"allowedModes"`
	Mode           MonitoringMode   `json:"mode"`
	ActiveCallID   string           `json:"activeCallId,omitempty"`
	CallsMonitored int              `json:"callsMonitored"`
	Interventions  int              `json:"interventions"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Allows reports whether the session's role permits the given mode
func (s *SupervisorSession) Allows(mode MonitoringMode) bool {
	for _, m := range s.AllowedModes {
		if m == mode {
			return true
		}
	}
	return false
}
