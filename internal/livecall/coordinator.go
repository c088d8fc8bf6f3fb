package livecall

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/alerts"
	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/rs/zerolog"
)

// ErrCallNotFound is returned when an operation references an unknown call
var ErrCallNotFound = errors.New("call not found")

// HandoffStore persists handoff lifecycle records for cross-restart
// durability. The coordinator's memory is the source of truth during a
// call's life; the store is the system of record afterward.
type HandoffStore interface {
	SaveHandoffRecord(record types.HandoffRecord) error
}

// Options controls the coordinator
type Options struct {
	HoldAlertThreshold time.Duration
	HoldCheckInterval  time.Duration
	TranscriptWindow   int
	Keywords           []string
	SentimentThreshold float64
	HandoffRetention   time.Duration
}

// DefaultOptions returns the coordinator defaults
func DefaultOptions() Options {
	return Options{
		HoldAlertThreshold: 2 * time.Minute,
		HoldCheckInterval:  10 * time.Second,
		TranscriptWindow:   50,
		Keywords:           []string{"manager", "refund", "lawyer", "complaint", "supervisor"},
		SentimentThreshold: -0.5,
		HandoffRetention:   7 * 24 * time.Hour,
	}
}

// callEntry pairs the in-memory call record with its hold-timer cancel
type callEntry struct {
	call   *types.MonitoredCall
	cancel context.CancelFunc
}

// Coordinator tracks in-progress calls, scans transcripts for escalation
// triggers, runs periodic hold checks, and books AI-to-human handoffs.
// Call records live only in memory and are dropped on call end.
type Coordinator struct {
	mu       sync.RWMutex
	calls    map[string]*callEntry
	history  []types.HandoffRecord
	store    HandoffStore
	notifier alerts.CallNotifier
	opts     Options
	keywords []string // lowercased
	ctx      context.Context
	cancel   context.CancelFunc
	logger   zerolog.Logger
}

// NewCoordinator creates a new live-call coordinator
func NewCoordinator(store HandoffStore, notifier alerts.CallNotifier, opts Options, logger zerolog.Logger) *Coordinator {
	defaults := DefaultOptions()
	if opts.HoldAlertThreshold <= 0 {
		opts.HoldAlertThreshold = defaults.HoldAlertThreshold
	}
	if opts.HoldCheckInterval <= 0 {
		opts.HoldCheckInterval = defaults.HoldCheckInterval
	}
	if opts.TranscriptWindow <= 0 {
		opts.TranscriptWindow = defaults.TranscriptWindow
	}
	if len(opts.Keywords) == 0 {
		opts.Keywords = defaults.Keywords
	}
	if opts.SentimentThreshold == 0 {
		opts.SentimentThreshold = defaults.SentimentThreshold
	}
	if opts.HandoffRetention <= 0 {
		opts.HandoffRetention = defaults.HandoffRetention
	}

	keywords := make([]string, 0, len(opts.Keywords))
	for _, kw := range opts.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		calls:    make(map[string]*callEntry),
		store:    store,
		notifier: notifier,
		opts:     opts,
		keywords: keywords,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With().Str("component", "livecall").Logger(),
	}
}

// RegisterCall starts tracking a call and arms its hold-check timer
func (c *Coordinator) RegisterCall(callID string, direction types.CallDirection, assistantID string) *types.MonitoredCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.calls[callID]; exists {
		snapshot := *entry.call
		return &snapshot
	}

	call := &types.MonitoredCall{
		CallID:      callID,
		State:       types.CallRinging,
		Direction:   direction,
		AssistantID: assistantID,
		StartedAt:   time.Now(),
	}
	callCtx, cancel := context.WithCancel(c.ctx)
	c.calls[callID] = &callEntry{call: call, cancel: cancel}

	go c.holdWatch(callCtx, callID)

	c.logger.Debug().
		Str("call_id", callID).
		Str("direction", string(direction)).
		Msg("call registered")

	snapshot := *call
	return &snapshot
}

// holdWatch periodically evaluates hold duration until the call ends
func (c *Coordinator) holdWatch(ctx context.Context, callID string) {
	ticker := time.NewTicker(c.opts.HoldCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkHold(callID)
		}
	}
}

// checkHold flags long-hold exactly once per hold episode. Already-flagged
// calls are never re-flagged or re-alerted while the episode lasts.
func (c *Coordinator) checkHold(callID string) {
	c.mu.Lock()
	entry, exists := c.calls[callID]
	if !exists {
		c.mu.Unlock()
		return
	}
	call := entry.call

	var alert *alerts.CallAlert
	if call.State == types.CallOnHold && call.HoldStart != nil {
		held := time.Since(*call.HoldStart)
		if held >= c.opts.HoldAlertThreshold && call.SetFlag(types.FlagLongHold) {
			alert = &alerts.CallAlert{
				CallID:   callID,
				Rule:     "long_hold",
				Severity: types.SeverityWarning,
				Message:  alerts.FormatHoldMessage(held),
				Time:     time.Now(),
			}
		}
	}
	c.mu.Unlock()

	// Notification happens outside the lock
	if alert != nil {
		if err := c.notifier.SendCallAlert(*alert); err != nil {
			c.logger.Error().Err(err).Str("call_id", callID).Msg("failed to send long-hold alert")
		}
	}
}

// UpdateState moves the call to a new state, tracking hold episodes.
// Leaving hold clears the long-hold flag so a later, separate hold episode
// can alert again.
func (c *Coordinator) UpdateState(callID string, state types.CallState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.calls[callID]
	if !exists {
		return ErrCallNotFound
	}
	call := entry.call

	if state == types.CallOnHold && call.State != types.CallOnHold {
		now := time.Now()
		call.HoldStart = &now
	}
	if state != types.CallOnHold && call.State == types.CallOnHold {
		call.HoldStart = nil
		call.ClearFlag(types.FlagLongHold)
	}
	call.State = state
	return nil
}

// AppendTranscript adds an utterance to the rolling window and scans
// customer utterances for escalation keywords
func (c *Coordinator) AppendTranscript(callID string, entry types.TranscriptEntry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	c.mu.Lock()
	callEntry, exists := c.calls[callID]
	if !exists {
		c.mu.Unlock()
		return ErrCallNotFound
	}
	call := callEntry.call

	call.Transcript = append(call.Transcript, entry)
	if len(call.Transcript) > c.opts.TranscriptWindow {
		// Oldest entries drop once the window is full
		call.Transcript = call.Transcript[len(call.Transcript)-c.opts.TranscriptWindow:]
	}

	var alert *alerts.CallAlert
	if entry.Role == "customer" {
		if matched := c.matchKeyword(entry.Content); matched != "" {
			if call.SetFlag(types.FlagEscalationRequested) {
				alert = &alerts.CallAlert{
					CallID:   callID,
					Rule:     "keyword_escalation",
					Severity: types.SeverityCritical,
					Message:  "escalation keyword: " + matched,
					Time:     time.Now(),
				}
			}
		}
	}
	c.mu.Unlock()

	if alert != nil {
		if err := c.notifier.SendCallAlert(*alert); err != nil {
			c.logger.Error().Err(err).Str("call_id", callID).Msg("failed to send escalation alert")
		}
	}
	return nil
}

// matchKeyword returns the first configured keyword found in the text,
// case-insensitively
func (c *Coordinator) matchKeyword(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

// UpdateSentiment records a sentiment score and raises an alert when the
// score crosses below the configured threshold. Flags are untouched.
func (c *Coordinator) UpdateSentiment(callID string, score float64) error {
	c.mu.Lock()
	entry, exists := c.calls[callID]
	if !exists {
		c.mu.Unlock()
		return ErrCallNotFound
	}
	call := entry.call

	crossed := score < c.opts.SentimentThreshold &&
		(call.Sentiment == nil || *call.Sentiment >= c.opts.SentimentThreshold)
	call.Sentiment = &score
	c.mu.Unlock()

	if crossed {
		alert := alerts.CallAlert{
			CallID:   callID,
			Rule:     "low_sentiment",
			Severity: types.SeverityWarning,
			Message:  "customer sentiment dropped below threshold",
			Time:     time.Now(),
		}
		if err := c.notifier.SendCallAlert(alert); err != nil {
			c.logger.Error().Err(err).Str("call_id", callID).Msg("failed to send sentiment alert")
		}
	}
	return nil
}

// GetCall returns a snapshot of a tracked call
func (c *Coordinator) GetCall(callID string) (*types.MonitoredCall, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.calls[callID]
	if !exists {
		return nil, false
	}
	snapshot := *entry.call
	return &snapshot, true
}

// HasCall reports whether the call is currently tracked
func (c *Coordinator) HasCall(callID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.calls[callID]
	return exists
}

// ActiveCount returns the number of tracked calls
func (c *Coordinator) ActiveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.calls)
}

// EndCall cancels the call's timer and drops it from active memory
func (c *Coordinator) EndCall(callID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.calls[callID]
	if !exists {
		return false
	}
	entry.cancel()
	delete(c.calls, callID)

	c.logger.Debug().Str("call_id", callID).Msg("call ended")
	return true
}

// Close cancels all timers and clears in-memory state
func (c *Coordinator) Close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.calls {
		entry.cancel()
	}
	c.calls = make(map[string]*callEntry)
}
