package assignment

import (
	"sync"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
)

// keyedLocks serializes access per queue while leaving different queues
// fully parallel
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the lock for the key and returns its unlock func
func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// reconcileOrder aligns the persisted agent order with the live pool:
// departed agents are dropped, new agents appended at the tail so existing
// members keep their rotation position. The cursor is left alone here: it
// indexes the probe sequence, whose length the walk only knows once
// weighting is applied, so the walk owns the out-of-range restart.
func reconcileOrder(state *types.RotationState, pool []types.AssignableAgent) {
	inPool := make(map[string]bool, len(pool))
	for _, a := range pool {
		inPool[a.AgentID] = true
	}

	kept := make([]string, 0, len(pool))
	seen := make(map[string]bool, len(pool))
	for _, id := range state.AgentOrder {
		if inPool[id] && !seen[id] {
			kept = append(kept, id)
			seen[id] = true
		}
	}
	for _, a := range pool {
		if !seen[a.AgentID] {
			kept = append(kept, a.AgentID)
			seen[a.AgentID] = true
		}
	}

	state.AgentOrder = kept
}

// selection is the walk result: the chosen agent and its position in the
// probe sequence
type selection struct {
	agentID  string
	seqIndex int
}

// walkRotation walks forward from the cursor, skipping agents at or above
// the capacity threshold, for at most len(sequence) * MaxRetryRounds
// probes. The cursor indexes the probe sequence, which equals AgentOrder
// unless weighting is enabled; an out-of-range cursor restarts before the
// head. Returns the selected position (nil if none) and the
// considered-agent annotations, one per distinct agent.
func (e *Engine) walkRotation(state *types.RotationState, pool []types.AssignableAgent) (*selection, []types.ConsideredAgent) {
	byID := make(map[string]types.AssignableAgent, len(pool))
	for _, a := range pool {
		byID[a.AgentID] = a
	}

	seq := e.buildSequence(state.AgentOrder, byID)
	if len(seq) == 0 {
		return nil, nil
	}

	start := state.LastAssignedIndex
	if start < 0 || start >= len(seq) {
		start = -1
	}

	var considered []types.ConsideredAgent
	noted := make(map[string]bool, len(pool))
	budget := len(seq) * e.opts.MaxRetryRounds

	for step := 1; step <= budget; step++ {
		idx := (start + step + len(seq)) % len(seq)
		id := seq[idx]
		agent := byID[id]
		util := agent.Utilization()

		if util >= e.opts.CapacityThreshold {
			if !noted[id] {
				considered = append(considered, types.ConsideredAgent{
					AgentID:     id,
					Utilization: util,
					SkipReason:  "at capacity",
				})
				noted[id] = true
			}
			continue
		}

		if !noted[id] {
			considered = append(considered, types.ConsideredAgent{
				AgentID:     id,
				Utilization: util,
			})
		}
		return &selection{agentID: id, seqIndex: idx}, considered
	}

	return nil, considered
}

// buildSequence expands the order for weighted distribution: each agent id
// repeats priorityWeight times (minimum 1). Without weighting the sequence
// is the order itself.
func (e *Engine) buildSequence(order []string, byID map[string]types.AssignableAgent) []string {
	if !e.opts.EnableWeighted {
		return order
	}
	seq := make([]string, 0, len(order))
	for _, id := range order {
		repeats := 1
		if a, ok := byID[id]; ok && a.PriorityWeight > 1 {
			repeats = a.PriorityWeight
		}
		for r := 0; r < repeats; r++ {
			seq = append(seq, id)
		}
	}
	return seq
}
