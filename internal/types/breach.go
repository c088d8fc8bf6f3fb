package types

import "time"

// BreachType classifies which operational threshold was violated
type BreachType string

const (
	BreachWaitTime          BreachType = "wait_time_exceeded"
	BreachQueueSize         BreachType = "queue_size_exceeded"
	BreachAbandonRate       BreachType = "abandon_rate_exceeded"
	BreachAgentAvailability BreachType = "agent_availability_low"
	BreachServiceLevel      BreachType = "service_level_missed"
)

// ValidBreachType reports whether t is a known breach type
func ValidBreachType(t BreachType) bool {
	switch t {
	case BreachWaitTime, BreachQueueSize, BreachAbandonRate, BreachAgentAvailability, BreachServiceLevel:
		return true
	}
	return false
}

// BreachSeverity represents the severity of a breach event
type BreachSeverity string

const (
	SeverityWarning  BreachSeverity = "warning"
	SeverityCritical BreachSeverity = "critical"
)

// BreachAction is a lifecycle action applied to a breach event
type BreachAction string

const (
	ActionRecordBreach BreachAction = "record_breach"
	ActionSendAlert    BreachAction = "send_alert"
	ActionEscalate     BreachAction = "escalate"
	ActionResolve      BreachAction = "resolve"
	ActionAcknowledge  BreachAction = "acknowledge"
)

// ValidBreachAction reports whether a is a known lifecycle action
func ValidBreachAction(a BreachAction) bool {
	switch a {
	case ActionRecordBreach, ActionSendAlert, ActionEscalate, ActionResolve, ActionAcknowledge:
		return true
	}
	return false
}

// QueueEvent is a breach-event record tracked through the
// alert/escalate/resolve lifecycle. AlertSent and Escalated are monotonic:
// once true they are never reset except by creating a new event. A set
// ResolvedAt means the event is terminal.
type QueueEvent struct {
	EventID        string            `json:"eventId"`
	QueueID        string            `json:"queueId,omitempty"`
	QueueName      string            `json:"queueName,omitempty"`
	BreachType     BreachType        `json:"breachType,omitempty"`
	Severity       BreachSeverity    `json:"severity,omitempty"`
	ThresholdValue float64           `json:"thresholdValue"`
	CurrentValue   float64           `json:"currentValue"`
	AlertSent      bool              `json:"alertSent"`
	Escalated      bool              `json:"escalated"`
	ResolvedAt     *time.Time        `json:"resolvedAt,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// ActionRequest asks the breach handler to apply one lifecycle action.
// Threshold/current values and queue identity are only read by
// record_breach, which upserts them onto the event.
type ActionRequest struct {
	Action         BreachAction   `json:"action"`
	EventID        string         `json:"eventId"`
	ActorID        string         `json:"actorId,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	CorrelationID  string         `json:"correlationId,omitempty"`
	QueueID        string         `json:"queueId,omitempty"`
	BreachType     BreachType     `json:"breachType,omitempty"`
	Severity       BreachSeverity `json:"severity,omitempty"`
	ThresholdValue float64        `json:"thresholdValue,omitempty"`
	CurrentValue   float64        `json:"currentValue,omitempty"`
}

// ResultReason is the typed reason attached to a non-success result
type ResultReason string

const (
	ReasonValidationError  ResultReason = "validation-error"
	ReasonProcessingError  ResultReason = "processing-error"
	ReasonDuplicate        ResultReason = "duplicate"
	ReasonRejected         ResultReason = "rejected"
	ReasonPermissionDenied ResultReason = "permission-denied"
)

// ActionResult is the structured outcome of one lifecycle action.
// Expected failures carry a reason instead of surfacing as an error.
type ActionResult struct {
	OK     bool         `json:"ok"`
	Reason ResultReason `json:"reason,omitempty"`
	Detail string       `json:"detail,omitempty"`
}

// BatchOptions controls batch breach-event processing
type BatchOptions struct {
	SkipInvalid bool `json:"skipInvalid"`
	Concurrency int  `json:"concurrency,omitempty"`
	Persist     bool `json:"persist"`
}

// BatchItemResult is the per-payload outcome, positioned by input index
type BatchItemResult struct {
	Index   int          `json:"index"`
	EventID string       `json:"eventId,omitempty"`
	OK      bool         `json:"ok"`
	Skipped bool         `json:"skipped,omitempty"`
	Reason  ResultReason `json:"reason,omitempty"`
	Detail  string       `json:"detail,omitempty"`
}

// BatchResult summarizes a batch run. Succeeded+Failed+Skipped == Total and
// Results is ordered by input index regardless of concurrency.
type BatchResult struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Results   []BatchItemResult `json:"results"`
}
