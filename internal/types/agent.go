package types

import "time"

// AgentStatus represents the availability of an agent for new work
type AgentStatus string

const (
	StatusAvailable  AgentStatus = "available"
	StatusBusy       AgentStatus = "busy"
	StatusAway       AgentStatus = "away"
	StatusOffline    AgentStatus = "offline"
	StatusAtCapacity AgentStatus = "at_capacity"
)

// AssignableAgent is a point-in-time snapshot of an agent as seen by the
// assignment engine. The engine never holds a long-lived copy; load and
// timestamp mutations go back through the agent repository.
type AssignableAgent struct {
	AgentID        string      `json:"agentId"`
	Status         AgentStatus `json:"status"`
	CurrentLoad    int         `json:"currentLoad"`
	MaxCapacity    int         `json:"maxCapacity"`
	Team           string      `json:"team,omitempty"`
	Skills         []string    `json:"skills,omitempty"`
	Languages      []string    `json:"languages,omitempty"`
	LastAssignedAt *time.Time  `json:"lastAssignedAt,omitempty"`
	PriorityWeight int         `json:"priorityWeight,omitempty"`
}

// Utilization returns current load divided by max capacity.
// A capacity of zero counts as fully utilized.
func (a AssignableAgent) Utilization() float64 {
	if a.MaxCapacity <= 0 {
		return 1.0
	}
	return float64(a.CurrentLoad) / float64(a.MaxCapacity)
}

// HasSkills reports whether the agent covers every required skill
func (a AssignableAgent) HasSkills(required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range a.Skills {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SpeaksLanguage reports whether the agent speaks the given language.
// An empty language or an agent without a language list matches anything.
func (a AssignableAgent) SpeaksLanguage(lang string) bool {
	if lang == "" || len(a.Languages) == 0 {
		return true
	}
	for _, l := range a.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// AgentRegistration is sent when an agent joins the roster
type AgentRegistration struct {
	AgentID        string      `json:"agentId"`
	QueueIDs       []string    `json:"queueIds"`
	Status         AgentStatus `json:"status"`
	MaxCapacity    int         `json:"maxCapacity"`
	Team           string      `json:"team,omitempty"`
	Skills         []string    `json:"skills,omitempty"`
	Languages      []string    `json:"languages,omitempty"`
	PriorityWeight int         `json:"priorityWeight,omitempty"`
}

// StatusUpdate is a presence change for an already-registered agent
type StatusUpdate struct {
	AgentID   string      `json:"agentId"`
	Status    AgentStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

// RosterSnapshot is the presence payload broadcast to dashboard clients
type RosterSnapshot struct {
	Type      string            `json:"type"` // always "roster"
	Timestamp time.Time         `json:"timestamp"`
	Agents    []AssignableAgent `json:"agents"`
}
