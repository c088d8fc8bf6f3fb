package assignment

import (
	"sort"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
)

// AssignBatch processes work items in descending priority order (ties keep
// input order) through the single-item path, then returns the decisions
// positioned by input index. Priority decides who reaches the rotation
// first, not the shape of the result; one item's collaborator fault never
// aborts its siblings.
func (e *Engine) AssignBatch(items []types.WorkItem, queueID string) []types.AssignmentDecision {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return items[order[i]].Priority > items[order[j]].Priority
	})

	decisions := make([]types.AssignmentDecision, len(items))
	for _, idx := range order {
		item := items[idx]
		decision, err := e.Assign(item, queueID)
		if err != nil {
			e.logger.Error().
				Err(err).
				Str("work_item_id", item.WorkItemID).
				Str("queue_id", queueID).
				Msg("batch item failed")
			decision = types.AssignmentDecision{
				WorkItemID: item.WorkItemID,
				QueueID:    queueID,
				Outcome:    types.OutcomeRejected,
				Reason:     "processing-error: " + err.Error(),
			}
		}
		decisions[idx] = decision
	}
	return decisions
}
