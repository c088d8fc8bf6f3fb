package storage

import "github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"

// NoopStore discards all writes and returns empty reads. Useful for
// validate-only deployments where no persistence is wanted at all.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) GetRotationState(_ string) (*types.RotationState, error)      { return nil, nil }
func (s *NoopStore) SaveRotationState(_ types.RotationState) error                { return nil }
func (s *NoopStore) RecordDecision(_ types.AssignmentDecision) error              { return nil }
func (s *NoopStore) GetDecisions(_ string) ([]types.AssignmentDecision, error)    { return nil, nil }
func (s *NoopStore) GetEvent(_ string) (*types.QueueEvent, error)                 { return nil, nil }
func (s *NoopStore) SaveEvent(_ types.QueueEvent) error                           { return nil }
func (s *NoopStore) SaveHandoffRecord(_ types.HandoffRecord) error                { return nil }
func (s *NoopStore) GetHandoffRecords(_ string) ([]types.HandoffRecord, error)    { return nil, nil }
func (s *NoopStore) TruncateAll() error                                           { return nil }
