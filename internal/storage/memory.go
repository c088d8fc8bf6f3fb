package storage

import (
	"sort"
	"sync"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
)

// MemoryStore is the in-process Store used when DynamoDB is disabled and in
// tests. State does not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	rotation  map[string]types.RotationState
	decisions map[string][]types.AssignmentDecision // dateKey -> decisions
	events    map[string]types.QueueEvent
	handoffs  map[string]map[string]types.HandoffRecord // dateKey -> handoffID -> record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rotation:  make(map[string]types.RotationState),
		decisions: make(map[string][]types.AssignmentDecision),
		events:    make(map[string]types.QueueEvent),
		handoffs:  make(map[string]map[string]types.HandoffRecord),
	}
}

func (s *MemoryStore) GetRotationState(queueID string) (*types.RotationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.rotation[queueID]
	if !ok {
		return nil, nil
	}
	snapshot := state
	snapshot.AgentOrder = append([]string(nil), state.AgentOrder...)
	return &snapshot, nil
}

func (s *MemoryStore) SaveRotationState(state types.RotationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.AgentOrder = append([]string(nil), state.AgentOrder...)
	s.rotation[state.QueueID] = state
	return nil
}

func (s *MemoryStore) RecordDecision(decision types.AssignmentDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.decisions[decision.DateKey] = append(s.decisions[decision.DateKey], decision)
	return nil
}

func (s *MemoryStore) GetDecisions(dateKey string) ([]types.AssignmentDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]types.AssignmentDecision(nil), s.decisions[dateKey]...), nil
}

func (s *MemoryStore) GetEvent(eventID string) (*types.QueueEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[eventID]
	if !ok {
		return nil, nil
	}
	snapshot := event
	return &snapshot, nil
}

func (s *MemoryStore) SaveEvent(event types.QueueEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.EventID] = event
	return nil
}

func (s *MemoryStore) SaveHandoffRecord(record types.HandoffRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.handoffs[record.DateKey]
	if !ok {
		day = make(map[string]types.HandoffRecord)
		s.handoffs[record.DateKey] = day
	}
	day[record.HandoffID] = record
	return nil
}

func (s *MemoryStore) GetHandoffRecords(dateKey string) ([]types.HandoffRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := s.handoffs[dateKey]
	out := make([]types.HandoffRecord, 0, len(day))
	for _, record := range day {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (s *MemoryStore) TruncateAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rotation = make(map[string]types.RotationState)
	s.decisions = make(map[string][]types.AssignmentDecision)
	s.events = make(map[string]types.QueueEvent)
	s.handoffs = make(map[string]map[string]types.HandoffRecord)
	return nil
}
