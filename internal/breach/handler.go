package breach

import (
	"fmt"
	"sync"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/alerts"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/rs/zerolog"
)

// EventStore persists breach-event records
type EventStore interface {
	GetEvent(eventID string) (*types.QueueEvent, error)
	SaveEvent(event types.QueueEvent) error
}

// Options controls handler behavior
type Options struct {
	EnableDuplicateDetection bool
	DuplicateWindow          time.Duration
}

// Handler applies idempotent lifecycle actions to breach events. Mutations
// for one event id are serialized through a per-event lock; actions on
// different events proceed in parallel. send_alert and escalate notify the
// alert collaborator exactly once per false-to-true flag transition, even
// under concurrent retries: the flag check and set happen under the lock,
// and the durable save is ordered before the notification.
type Handler struct {
	store    EventStore
	notifier alerts.Notifier
	dedupe   *duplicateGuard
	locks    *keyedLocks
	logger   zerolog.Logger
}

// NewHandler creates a new breach lifecycle handler
func NewHandler(store EventStore, notifier alerts.Notifier, opts Options, logger zerolog.Logger) *Handler {
	h := &Handler{
		store:    store,
		notifier: notifier,
		locks:    newKeyedLocks(),
		logger:   logger.With().Str("component", "breach").Logger(),
	}
	if opts.EnableDuplicateDetection {
		window := opts.DuplicateWindow
		if window <= 0 {
			window = 60 * time.Second
		}
		h.dedupe = newDuplicateGuard(window)
	}
	return h
}

// HandleAction validates and applies one lifecycle action. Expected
// failures (bad input, missing event, duplicate delivery) come back as a
// non-OK result with a typed reason; only the result is returned, never a
// panic or error value.
func (h *Handler) HandleAction(req types.ActionRequest) types.ActionResult {
	if !types.ValidBreachAction(req.Action) {
		return types.ActionResult{OK: false, Reason: types.ReasonValidationError, Detail: fmt.Sprintf("unknown action %q", req.Action)}
	}
	if !validIdentifier(req.EventID) {
		return types.ActionResult{OK: false, Reason: types.ReasonValidationError, Detail: "eventId is not a valid identifier"}
	}

	// The duplicate window guards against upstream double-delivery and runs
	// before any transition logic. Legitimate repeats after the window rely
	// on per-transition idempotency below.
	if h.dedupe != nil && h.dedupe.isDuplicate(req.Action, req.EventID) {
		h.logger.Debug().
			Str("event_id", req.EventID).
			Str("action", string(req.Action)).
			Str("correlation_id", req.CorrelationID).
			Msg("duplicate action suppressed")
		return types.ActionResult{OK: false, Reason: types.ReasonDuplicate, Detail: "identical action within duplicate window"}
	}

	unlock := h.locks.lock(req.EventID)
	defer unlock()

	event, err := h.store.GetEvent(req.EventID)
	if err != nil {
		return types.ActionResult{OK: false, Reason: types.ReasonProcessingError, Detail: fmt.Sprintf("event lookup: %v", err)}
	}
	if event == nil {
		if req.Action != types.ActionRecordBreach {
			return types.ActionResult{OK: false, Reason: types.ReasonProcessingError, Detail: "event not found"}
		}
		event = &types.QueueEvent{EventID: req.EventID, CreatedAt: time.Now()}
	}

	switch req.Action {
	case types.ActionRecordBreach:
		return h.recordBreach(event, req)
	case types.ActionSendAlert:
		return h.sendAlert(event)
	case types.ActionEscalate:
		return h.escalate(event)
	case types.ActionResolve:
		return h.resolve(event)
	case types.ActionAcknowledge:
		return h.acknowledge(event, req)
	}
	return types.ActionResult{OK: false, Reason: types.ReasonValidationError, Detail: "unreachable action"}
}

// recordBreach upserts threshold and current values onto the event. No
// alert side effect.
func (h *Handler) recordBreach(event *types.QueueEvent, req types.ActionRequest) types.ActionResult {
	if req.QueueID != "" {
		event.QueueID = req.QueueID
	}
	if req.BreachType != "" {
		if !types.ValidBreachType(req.BreachType) {
			return types.ActionResult{OK: false, Reason: types.ReasonValidationError, Detail: fmt.Sprintf("unknown breach type %q", req.BreachType)}
		}
		event.BreachType = req.BreachType
	}
	if req.Severity != "" {
		event.Severity = req.Severity
	}
	event.ThresholdValue = req.ThresholdValue
	event.CurrentValue = req.CurrentValue
	event.UpdatedAt = time.Now()

	if err := h.store.SaveEvent(*event); err != nil {
		return types.ActionResult{OK: false, Reason: types.ReasonProcessingError, Detail: fmt.Sprintf("save event: %v", err)}
	}
	h.logger.Debug().
		Str("event_id", event.EventID).
		Str("breach_type", string(event.BreachType)).
		Float64("current", event.CurrentValue).
		Float64("threshold", event.ThresholdValue).
		Msg("breach recorded")
	return types.ActionResult{OK: true}
}

// sendAlert transitions AlertSent false→true at most once. A repeat call
// is a no-op success; idempotency is measured by notifications delivered,
// not calls accepted.
func (h *Handler) sendAlert(event *types.QueueEvent) types.ActionResult {
	if event.AlertSent {
		return types.ActionResult{OK: true}
	}

	event.AlertSent = true
	event.UpdatedAt = time.Now()
	if err := h.store.SaveEvent(*event); err != nil {
		// Save failed: the transition did not happen, so no alert goes out
		return types.ActionResult{OK: false, Reason: types.ReasonProcessingError, Detail: fmt.Sprintf("save event: %v", err)}
	}
	if err := h.notifier.SendAlert(*event); err != nil {
		return types.ActionResult{OK: false, Reason: types.ReasonProcessingError, Detail: fmt.Sprintf("send alert: %v", err)}
	}

	h.logger.Info().
		Str("event_id", event.EventID).
		Str("severity", string(event.Severity)).
		Msg("breach alert sent")
	return types.ActionResult{OK: true}
}

// escalate transitions Escalated false→true at most once, same rule as
// sendAlert
func (h *Handler) escalate(event *types.QueueEvent) types.ActionResult {
	if event.Escalated {
		return types.ActionResult{OK: true}
	}

	event.Escalated = true
	event.UpdatedAt = time.Now()
	if err := h.store.SaveEvent(*event); err != nil {
		return types.ActionResult{OK: false, Reason: types.ReasonProcessingError, Detail: fmt.Sprintf("save event: %v", err)}
	}
	if err := h.notifier.SendEscalation(*event); err != nil {
		return types.ActionResult{OK: false, Reason: types.ReasonProcessingError, Detail: fmt.Sprintf("send escalation: %v", err)}
	}

	h.logger.Info().
		Str("event_id", event.EventID).
		Msg("breach escalated")
	return types.ActionResult{OK: true}
}

// resolve stamps ResolvedAt once; later calls never move the timestamp
func (h *Handler) resolve(event *types.QueueEvent) types.ActionResult {
	if event.ResolvedAt != nil {
		return types.ActionResult{OK: true}
	}

	now := time.Now()
	event.ResolvedAt = &now
	event.UpdatedAt = now
	if err := h.store.SaveEvent(*event); err != nil {
		return types.ActionResult{OK: false, Reason: types.ReasonProcessingError, Detail: fmt.Sprintf("save event: %v", err)}
	}
	h.logger.Info().Str("event_id", event.EventID).Msg("breach resolved")
	return types.ActionResult{OK: true}
}

// acknowledge records the acknowledging actor in metadata; repeatable
func (h *Handler) acknowledge(event *types.QueueEvent, req types.ActionRequest) types.ActionResult {
	if event.Metadata == nil {
		event.Metadata = make(map[string]string)
	}
	event.Metadata["acknowledged"] = "true"
	if req.ActorID != "" {
		event.Metadata["acknowledged_by"] = req.ActorID
	}
	if req.Notes != "" {
		event.Metadata["notes"] = req.Notes
	}
	event.UpdatedAt = time.Now()

	if err := h.store.SaveEvent(*event); err != nil {
		return types.ActionResult{OK: false, Reason: types.ReasonProcessingError, Detail: fmt.Sprintf("save event: %v", err)}
	}
	return types.ActionResult{OK: true}
}

// validIdentifier accepts non-empty ids made of letters, digits, dash and
// underscore
func validIdentifier(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// keyedLocks serializes access per event id while leaving different events
// fully parallel
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

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
