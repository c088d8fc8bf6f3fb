package livecall

import (
	"errors"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/google/uuid"
)

// ErrNoPendingHandoff is returned when a completion has no matching request
var ErrNoPendingHandoff = errors.New("no pending handoff for call")

// RequestHandoff flags a live call for AI-to-human transfer and opens a
// handoff record. Repeated requests while one is pending return the
// pending record instead of opening another.
func (c *Coordinator) RequestHandoff(req types.HandoffRequest) (types.HandoffRecord, error) {
	c.mu.Lock()
	entry, exists := c.calls[req.CallID]
	if !exists {
		c.mu.Unlock()
		return types.HandoffRecord{}, ErrCallNotFound
	}

	if !entry.call.SetFlag(types.FlagAIHandoffNeeded) {
		if pending, ok := c.pendingHandoffLocked(req.CallID); ok {
			c.mu.Unlock()
			return pending, nil
		}
	}

	now := time.Now()
	record := types.HandoffRecord{
		HandoffID:   uuid.New().String(),
		DateKey:     now.Format("2006-01-02"),
		CallID:      req.CallID,
		Reason:      req.Reason,
		Priority:    req.Priority,
		Skill:       req.Skill,
		RequestedAt: now,
	}
	c.history = append(c.history, record)
	c.pruneHistoryLocked(now)
	c.mu.Unlock()

	if err := c.store.SaveHandoffRecord(record); err != nil {
		c.logger.Error().Err(err).Str("call_id", req.CallID).Msg("failed to persist handoff request")
	}

	c.logger.Info().
		Str("call_id", req.CallID).
		Str("handoff_id", record.HandoffID).
		Str("reason", req.Reason).
		Msg("handoff requested")
	return record, nil
}

// CompleteHandoff attaches the human agent to the call, clears the handoff
// flag, and closes the pending record
func (c *Coordinator) CompleteHandoff(callID, agentID string) (types.HandoffRecord, error) {
	c.mu.Lock()

	idx := -1
	for i := len(c.history) - 1; i >= 0; i-- {
		if c.history[i].CallID == callID && c.history[i].CompletedAt == nil {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return types.HandoffRecord{}, ErrNoPendingHandoff
	}

	now := time.Now()
	c.history[idx].CompletedAt = &now
	c.history[idx].AgentID = agentID
	record := c.history[idx]

	// The call may already have ended; the record still closes
	if entry, exists := c.calls[callID]; exists {
		entry.call.ClearFlag(types.FlagAIHandoffNeeded)
		entry.call.AgentID = agentID
		entry.call.State = types.CallConnected
	}
	c.mu.Unlock()

	if err := c.store.SaveHandoffRecord(record); err != nil {
		c.logger.Error().Err(err).Str("call_id", callID).Msg("failed to persist handoff completion")
	}

	c.logger.Info().
		Str("call_id", callID).
		Str("agent_id", agentID).
		Str("handoff_id", record.HandoffID).
		Msg("handoff completed")
	return record, nil
}

// HandoffHistory returns in-memory records requested at or after since,
// newest last
func (c *Coordinator) HandoffHistory(since time.Time) []types.HandoffRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.HandoffRecord, 0, len(c.history))
	for _, record := range c.history {
		if !record.RequestedAt.Before(since) {
			out = append(out, record)
		}
	}
	return out
}

// PendingHandoffs returns open records, oldest first
func (c *Coordinator) PendingHandoffs() []types.HandoffRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.HandoffRecord, 0)
	for _, record := range c.history {
		if record.CompletedAt == nil {
			out = append(out, record)
		}
	}
	return out
}

// pendingHandoffLocked finds the newest open record for a call.
// Caller holds c.mu.
func (c *Coordinator) pendingHandoffLocked(callID string) (types.HandoffRecord, bool) {
	for i := len(c.history) - 1; i >= 0; i-- {
		if c.history[i].CallID == callID && c.history[i].CompletedAt == nil {
			return c.history[i], true
		}
	}
	return types.HandoffRecord{}, false
}

// pruneHistoryLocked drops records older than the retention window.
// Caller holds c.mu.
func (c *Coordinator) pruneHistoryLocked(now time.Time) {
	cutoff := now.Add(-c.opts.HandoffRetention)
	kept := c.history[:0]
	for _, record := range c.history {
		if record.RequestedAt.After(cutoff) {
			kept = append(kept, record)
		}
	}
	c.history = kept
}
