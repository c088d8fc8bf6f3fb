package types

import "time"

// CallState represents the current state of a monitored call
type CallState string

const (
	CallRinging      CallState = "ringing"
	CallConnected    CallState = "connected"
	CallOnHold       CallState = "on_hold"
	CallTransferring CallState = "transferring"
	CallEnded        CallState = "ended"
)

// CallDirection distinguishes inbound from outbound calls
type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

// CallFlag marks a condition observed on a live call. Flags are additive
// until explicitly cleared.
type CallFlag string

const (
	FlagEscalationRequested CallFlag = "escalation_requested"
	FlagHighValueLead       CallFlag = "high_value_lead"
	FlagComplaint           CallFlag = "complaint"
	FlagLongHold            CallFlag = "long_hold"
	FlagSilenceDetected     CallFlag = "silence_detected"
	FlagAIHandoffNeeded     CallFlag = "ai_handoff_needed"
)

// TranscriptEntry is a single utterance in a call's rolling transcript
type TranscriptEntry struct {
	Role    string    `json:"role"` // "customer", "assistant" or "agent"
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// MonitoredCall is the in-memory record of an in-progress call. It lives
// only for the call's duration; history afterwards belongs to the
// repository collaborator.
type MonitoredCall struct {
	CallID      string            `json:"callId"`
	State       CallState         `json:"state"`
	Direction   CallDirection     `json:"direction"`
	Sentiment   *float64          `json:"sentiment,omitempty"`
	Transcript  []TranscriptEntry `json:"transcript,omitempty"`
	Flags       []CallFlag        `json:"flags,omitempty"`
	AssistantID string            `json:"assistantId,omitempty"`
	AgentID     string            `json:"agentId,omitempty"`
	HoldStart   *time.Time        `json:"holdStart,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
}

// HasFlag reports whether the flag is currently set on the call
func (c *MonitoredCall) HasFlag(flag CallFlag) bool {
	for _, f := range c.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// SetFlag adds the flag if absent and reports whether it was newly set
func (c *MonitoredCall) SetFlag(flag CallFlag) bool {
	if c.HasFlag(flag) {
		return false
	}
	c.Flags = append(c.Flags, flag)
	return true
}

// ClearFlag removes the flag and reports whether it was present
func (c *MonitoredCall) ClearFlag(flag CallFlag) bool {
	for i, f := range c.Flags {
		if f == flag {
			c.Flags = append(c.Flags[:i], c.Flags[i+1:]...)
			return true
		}
	}
	return false
}

// HandoffRequest asks for an AI-to-human transfer of a live call
type HandoffRequest struct {
	CallID   string            `json:"callId"`
	Reason   string            `json:"reason"`
	Priority int               `json:"priority,omitempty"`
	Skill    string            `json:"skill,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
}

// HandoffRecord tracks one handoff from request to completion
type HandoffRecord struct {
	HandoffID   string     `json:"handoffId"`
	DateKey     string     `json:"dateKey"` // YYYY-MM-DD, storage partition key
	CallID      string     `json:"callId"`
	Reason      string     `json:"reason"`
	Priority    int        `json:"priority,omitempty"`
	Skill       string     `json:"skill,omitempty"`
	RequestedAt time.Time  `json:"requestedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	AgentID     string     `json:"agentId,omitempty"`
}
