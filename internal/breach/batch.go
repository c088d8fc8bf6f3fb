package breach

import (
	"fmt"
	"sync"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
)

const defaultBatchConcurrency = 4

// HandleBatch validates and optionally persists a list of raw breach-event
// payloads. With SkipInvalid set, payloads failing validation count as
// skipped; otherwise one invalid payload rejects the whole batch before any
// processing starts. Processing concurrency is bounded by
// Options.Concurrency, but results always come back in input order and
// Succeeded+Failed+Skipped == Total.
func (h *Handler) HandleBatch(payloads []types.QueueEvent, opts types.BatchOptions) types.BatchResult {
	result := types.BatchResult{
		Total:   len(payloads),
		Results: make([]types.BatchItemResult, len(payloads)),
	}

	// Validation pass first
	invalid := make([]string, 0)
	for i, payload := range payloads {
		if detail := validatePayload(payload); detail != "" {
			result.Results[i] = types.BatchItemResult{
				Index:   i,
				EventID: payload.EventID,
				Skipped: true,
				Reason:  types.ReasonValidationError,
				Detail:  detail,
			}
			invalid = append(invalid, payload.EventID)
		}
	}

	if len(invalid) > 0 && !opts.SkipInvalid {
		// Reject before any processing: valid siblings are not touched
		for i, payload := range payloads {
			if result.Results[i].Reason != "" {
				result.Results[i].Skipped = false
				result.Failed++
				continue
			}
			result.Results[i] = types.BatchItemResult{
				Index:   i,
				EventID: payload.EventID,
				Reason:  types.ReasonRejected,
				Detail:  "batch rejected: invalid sibling payloads",
			}
			result.Failed++
		}
		h.logger.Warn().
			Int("total", result.Total).
			Int("invalid", len(invalid)).
			Msg("batch rejected at validation stage")
		return result
	}

	result.Skipped = len(invalid)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	// Bounded worker pool; each worker writes only its own result slot so
	// input order is preserved regardless of completion order
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := range payloads {
		if result.Results[i].Reason != "" {
			continue // already marked skipped
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			result.Results[idx] = h.processPayload(idx, payloads[idx], opts)
		}(i)
	}
	wg.Wait()

	for i := range result.Results {
		if result.Results[i].Skipped {
			continue
		}
		if result.Results[i].OK {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	h.logger.Info().
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("batch processed")
	return result
}

func (h *Handler) processPayload(idx int, payload types.QueueEvent, opts types.BatchOptions) types.BatchItemResult {
	item := types.BatchItemResult{Index: idx, EventID: payload.EventID}

	if !opts.Persist {
		item.OK = true
		return item
	}

	unlock := h.locks.lock(payload.EventID)
	defer unlock()

	existing, err := h.store.GetEvent(payload.EventID)
	if err != nil {
		item.Reason = types.ReasonProcessingError
		item.Detail = fmt.Sprintf("event lookup: %v", err)
		return item
	}
	if existing != nil {
		// Monotonic flags survive re-ingestion
		payload.AlertSent = payload.AlertSent || existing.AlertSent
		payload.Escalated = payload.Escalated || existing.Escalated
		if payload.ResolvedAt == nil {
			payload.ResolvedAt = existing.ResolvedAt
		}
		payload.CreatedAt = existing.CreatedAt
	}
	if payload.CreatedAt.IsZero() {
		payload.CreatedAt = time.Now()
	}
	payload.UpdatedAt = time.Now()

	if err := h.store.SaveEvent(payload); err != nil {
		item.Reason = types.ReasonProcessingError
		item.Detail = fmt.Sprintf("save event: %v", err)
		return item
	}
	item.OK = true
	return item
}

// validatePayload returns an empty string for a valid payload, otherwise
// the validation failure detail
func validatePayload(payload types.QueueEvent) string {
	if !validIdentifier(payload.EventID) {
		return "eventId is not a valid identifier"
	}
	if payload.BreachType != "" && !types.ValidBreachType(payload.BreachType) {
		return fmt.Sprintf("unknown breach type %q", payload.BreachType)
	}
	if payload.Severity != "" && payload.Severity != types.SeverityWarning && payload.Severity != types.SeverityCritical {
		return fmt.Sprintf("unknown severity %q", payload.Severity)
	}
	return ""
}
