package storage

import (
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
)

// Store is the persistence surface for the distribution core: rotation
// cursors, the assignment decision trail, breach events, and handoff
// records
type Store interface {
	GetRotationState(queueID string) (*types.RotationState, error)
	SaveRotationState(state types.RotationState) error

	RecordDecision(decision types.AssignmentDecision) error
	GetDecisions(dateKey string) ([]types.AssignmentDecision, error)

	GetEvent(eventID string) (*types.QueueEvent, error)
	SaveEvent(event types.QueueEvent) error

	SaveHandoffRecord(record types.HandoffRecord) error
	GetHandoffRecords(dateKey string) ([]types.HandoffRecord, error)

	TruncateAll() error
}

// ComputeStats aggregates a day's decisions for one queue. An empty queueID
// aggregates across all queues.
func ComputeStats(queueID string, decisions []types.AssignmentDecision) types.AssignmentStats {
	stats := types.AssignmentStats{
		QueueID:   queueID,
		ByOutcome: make(map[types.DecisionOutcome]int),
		ByAgent:   make(map[string]int),
	}

	var from, to time.Time
	for _, d := range decisions {
		if queueID != "" && d.QueueID != queueID {
			continue
		}
		stats.TotalDecisions++
		stats.ByOutcome[d.Outcome]++
		if d.AgentID != "" {
			stats.ByAgent[d.AgentID]++
		}
		if from.IsZero() || d.Timestamp.Before(from) {
			from = d.Timestamp
		}
		if d.Timestamp.After(to) {
			to = d.Timestamp
		}
	}
	stats.From = from
	stats.To = to
	return stats
}
