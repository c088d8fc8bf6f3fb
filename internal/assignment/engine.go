package assignment

import (
	"fmt"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AgentStore supplies agent snapshots for a queue and accepts load
// mutations. The engine never keeps a long-lived agent copy.
type AgentStore interface {
	ListAssignable(queueID string) ([]types.AssignableAgent, error)
	GetByID(agentID string) (*types.AssignableAgent, error)
	IncrementLoad(agentID string) error
	UpdateLastAssigned(agentID string, t time.Time) error
}

// RotationStore persists per-queue rotation cursors and the decision audit
// trail
type RotationStore interface {
	GetRotationState(queueID string) (*types.RotationState, error)
	SaveRotationState(state types.RotationState) error
	RecordDecision(decision types.AssignmentDecision) error
}

// Options controls engine behavior
type Options struct {
	CapacityThreshold float64 // skip agents at or above this utilization
	MaxRetryRounds    int     // probe budget multiplier over pool size
	EnableContinuity  bool    // honor WorkItem.PreferredAgentID
	EnableWeighted    bool    // expand rotation by priority weight
}

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{
		CapacityThreshold: 0.9,
		MaxRetryRounds:    3,
		EnableContinuity:  true,
	}
}

// Engine distributes work items to agents with capacity-aware round-robin
// rotation. Mutations to a queue's rotation state are serialized through a
// per-queue lock; assignments for different queues proceed in parallel.
type Engine struct {
	agents AgentStore
	store  RotationStore
	opts   Options
	locks  *keyedLocks
	logger zerolog.Logger
}

// NewEngine creates a new assignment engine
func NewEngine(agents AgentStore, store RotationStore, opts Options, logger zerolog.Logger) *Engine {
	if opts.CapacityThreshold <= 0 {
		opts.CapacityThreshold = 0.9
	}
	if opts.MaxRetryRounds <= 0 {
		opts.MaxRetryRounds = 3
	}
	return &Engine{
		agents: agents,
		store:  store,
		opts:   opts,
		locks:  newKeyedLocks(),
		logger: logger.With().Str("component", "assignment").Logger(),
	}
}

// Assign selects the next eligible agent for the work item on the given
// queue. Expected business outcomes (rejection, continuity hit) come back
// in the decision; only collaborator faults return an error.
func (e *Engine) Assign(item types.WorkItem, queueID string) (types.AssignmentDecision, error) {
	start := time.Now()

	// Continuity short-circuit: a returning work item goes back to its
	// previous agent when that agent can take it. Rotation state is not
	// touched on this path.
	var considered []types.ConsideredAgent
	if e.opts.EnableContinuity && item.PreferredAgentID != "" {
		agent, err := e.agents.GetByID(item.PreferredAgentID)
		if err != nil {
			return types.AssignmentDecision{}, fmt.Errorf("preferred agent lookup: %w", err)
		}
		if agent != nil && agent.Status == types.StatusAvailable && agent.Utilization() < e.opts.CapacityThreshold {
			decision := e.newDecision(item, queueID, start)
			decision.Outcome = types.OutcomePreferredAgent
			decision.AgentID = agent.AgentID
			decision.Reason = "continuity: preferred agent available"
			decision.Considered = []types.ConsideredAgent{{AgentID: agent.AgentID, Utilization: agent.Utilization()}}
			if err := e.commitAssignment(agent.AgentID, &decision, start); err != nil {
				return types.AssignmentDecision{}, err
			}
			return decision, nil
		}
		if agent != nil {
			considered = append(considered, types.ConsideredAgent{
				AgentID:     agent.AgentID,
				Utilization: agent.Utilization(),
				SkipReason:  "preferred agent unavailable",
			})
		}
	}

	pool, err := e.agents.ListAssignable(queueID)
	if err != nil {
		return types.AssignmentDecision{}, fmt.Errorf("list assignable agents: %w", err)
	}
	pool = filterEligible(pool, item)

	if len(pool) == 0 {
		// No repository writes on an empty pool
		decision := e.newDecision(item, queueID, start)
		decision.Outcome = types.OutcomeRejected
		decision.Reason = "no eligible agents"
		decision.Considered = considered
		decision.ProcessingMs = msSince(start)
		e.logger.Debug().
			Str("work_item_id", item.WorkItemID).
			Str("queue_id", queueID).
			Msg("no eligible agents for queue")
		return decision, nil
	}

	// Only the rotation read-modify-write holds the per-queue lock. The
	// agent list fetch runs before it, the load/audit writes after release.
	unlock := e.locks.lock(queueID)

	state, err := e.loadState(queueID)
	if err != nil {
		unlock()
		return types.AssignmentDecision{}, err
	}
	reconcileOrder(state, pool)

	selected, probes := e.walkRotation(state, pool)

	if selected != nil {
		state.LastAssignedIndex = selected.seqIndex
		state.UpdatedAt = time.Now()
		if err := e.store.SaveRotationState(*state); err != nil {
			unlock()
			return types.AssignmentDecision{}, fmt.Errorf("save rotation state: %w", err)
		}
	}
	unlock()

	considered = append(considered, probes...)

	decision := e.newDecision(item, queueID, start)
	decision.Considered = considered

	if selected == nil {
		decision.Outcome = types.OutcomeRejected
		decision.Reason = "all agents at capacity"
		decision.ProcessingMs = msSince(start)
		if err := e.store.RecordDecision(decision); err != nil {
			return types.AssignmentDecision{}, fmt.Errorf("record decision: %w", err)
		}
		e.logger.Debug().
			Str("work_item_id", item.WorkItemID).
			Str("queue_id", queueID).
			Int("pool_size", len(pool)).
			Msg("work item rejected, all agents at capacity")
		return decision, nil
	}

	decision.Outcome = types.OutcomeAssigned
	decision.AgentID = selected.agentID
	decision.Reason = "round-robin rotation"
	if err := e.commitAssignment(selected.agentID, &decision, start); err != nil {
		return types.AssignmentDecision{}, err
	}

	e.logger.Debug().
		Str("work_item_id", item.WorkItemID).
		Str("queue_id", queueID).
		Str("agent_id", selected.agentID).
		Int("cursor", state.LastAssignedIndex).
		Msg("work item assigned")
	return decision, nil
}

// commitAssignment applies the agent-side mutations and records the
// decision
func (e *Engine) commitAssignment(agentID string, decision *types.AssignmentDecision, start time.Time) error {
	if err := e.agents.IncrementLoad(agentID); err != nil {
		return fmt.Errorf("increment load for %s: %w", agentID, err)
	}
	if err := e.agents.UpdateLastAssigned(agentID, time.Now()); err != nil {
		return fmt.Errorf("update last assigned for %s: %w", agentID, err)
	}
	decision.ProcessingMs = msSince(start)
	if err := e.store.RecordDecision(*decision); err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// loadState fetches the queue's rotation state, lazily creating it before
// the first assignment
func (e *Engine) loadState(queueID string) (*types.RotationState, error) {
	state, err := e.store.GetRotationState(queueID)
	if err != nil {
		return nil, fmt.Errorf("get rotation state: %w", err)
	}
	if state == nil {
		state = &types.RotationState{
			QueueID:           queueID,
			LastAssignedIndex: -1,
		}
	}
	return state, nil
}

// ResetState recreates the queue's cursor at "before first agent". Operator
// use only; must not race in-flight assignments for the queue.
func (e *Engine) ResetState(queueID string) error {
	unlock := e.locks.lock(queueID)
	defer unlock()

	state, err := e.loadState(queueID)
	if err != nil {
		return err
	}
	state.LastAssignedIndex = -1
	state.UpdatedAt = time.Now()
	if err := e.store.SaveRotationState(*state); err != nil {
		return fmt.Errorf("save rotation state: %w", err)
	}
	e.logger.Info().Str("queue_id", queueID).Msg("rotation state reset")
	return nil
}

// Reorder replaces the queue's agent order and resets the cursor
func (e *Engine) Reorder(queueID string, newOrder []string) error {
	unlock := e.locks.lock(queueID)
	defer unlock()

	state, err := e.loadState(queueID)
	if err != nil {
		return err
	}
	state.AgentOrder = append([]string(nil), newOrder...)
	state.LastAssignedIndex = -1
	state.UpdatedAt = time.Now()
	if err := e.store.SaveRotationState(*state); err != nil {
		return fmt.Errorf("save rotation state: %w", err)
	}
	e.logger.Info().
		Str("queue_id", queueID).
		Int("agents", len(newOrder)).
		Msg("rotation order replaced")
	return nil
}

func (e *Engine) newDecision(item types.WorkItem, queueID string, start time.Time) types.AssignmentDecision {
	return types.AssignmentDecision{
		DecisionID: uuid.New().String(),
		DateKey:    start.Format("2006-01-02"),
		Timestamp:  start,
		WorkItemID: item.WorkItemID,
		QueueID:    queueID,
	}
}

// filterEligible keeps available agents matching the item's skill and
// language requirements
func filterEligible(pool []types.AssignableAgent, item types.WorkItem) []types.AssignableAgent {
	eligible := make([]types.AssignableAgent, 0, len(pool))
	for _, a := range pool {
		if a.Status != types.StatusAvailable {
			continue
		}
		if !a.HasSkills(item.RequiredSkills) {
			continue
		}
		if !a.SpeaksLanguage(item.Language) {
			continue
		}
		eligible = append(eligible, a)
	}
	return eligible
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
