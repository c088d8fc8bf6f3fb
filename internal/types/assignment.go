package types

import "time"

// DecisionOutcome is the result class of one assignment attempt
type DecisionOutcome string

const (
	OutcomeAssigned       DecisionOutcome = "assigned"
	OutcomeQueued         DecisionOutcome = "queued"
	OutcomeRejected       DecisionOutcome = "rejected"
	OutcomePreferredAgent DecisionOutcome = "preferred_agent"
)

// RotationState is the persisted fair-distribution cursor for one queue.
// AgentOrder is append-only for new agents and filtered for departed ones.
// LastAssignedIndex indexes the probe sequence derived from AgentOrder
// (the order itself, or its weight-expanded form); a roster or weight
// change that puts it out of range restarts the walk before the head.
type RotationState struct {
	QueueID           string    `json:"queueId"`
	LastAssignedIndex int       `json:"lastAssignedIndex"`
	AgentOrder        []string  `json:"agentOrder"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ConsideredAgent annotates one agent evaluated during a decision
type ConsideredAgent struct {
	AgentID     string  `json:"agentId"`
	Utilization float64 `json:"utilization"`
	SkipReason  string  `json:"skipReason,omitempty"`
}

// AssignmentDecision is the immutable audit record for one assignment
// attempt. Written once, never mutated.
type AssignmentDecision struct {
	DecisionID   string            `json:"decisionId"`
	DateKey      string            `json:"dateKey"` // YYYY-MM-DD, storage partition key
	Timestamp    time.Time         `json:"timestamp"`
	WorkItemID   string            `json:"workItemId"`
	QueueID      string            `json:"queueId"`
	Outcome      DecisionOutcome   `json:"outcome"`
	AgentID      string            `json:"agentId,omitempty"`
	Reason       string            `json:"reason"`
	Considered   []ConsideredAgent `json:"considered,omitempty"`
	ProcessingMs float64           `json:"processingMs"`
}

// AssignmentStats aggregates decisions for a queue over a time range
type AssignmentStats struct {
	QueueID        string                  `json:"queueId"`
	From           time.Time               `json:"from"`
	To             time.Time               `json:"to"`
	TotalDecisions int                     `json:"totalDecisions"`
	ByOutcome      map[DecisionOutcome]int `json:"byOutcome"`
	ByAgent        map[string]int          `json:"byAgent"`
}
