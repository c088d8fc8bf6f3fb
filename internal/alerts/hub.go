package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/rs/zerolog"
)

// Broadcaster is the subset of the websocket hub used for alert fan-out
type Broadcaster interface {
	Broadcast(message []byte)
}

// hubMessage is the JSON envelope pushed to dashboard clients
type hubMessage struct {
	Type      string    `json:"type"` // "breach_alert", "breach_escalation" or "call_alert"
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`

	Event *types.QueueEvent `json:"event,omitempty"`
	Call  *CallAlert        `json:"call,omitempty"`
}

// HubNotifier broadcasts alerts to connected dashboard clients through the
// websocket hub
type HubNotifier struct {
	hub    Broadcaster
	logger zerolog.Logger
}

// NewHubNotifier creates a new HubNotifier
func NewHubNotifier(hub Broadcaster, logger zerolog.Logger) *HubNotifier {
	return &HubNotifier{
		hub:    hub,
		logger: logger.With().Str("component", "alerts").Logger(),
	}
}

// SendAlert broadcasts a breach alert
func (n *HubNotifier) SendAlert(event types.QueueEvent) error {
	return n.send(hubMessage{
		Type:      "breach_alert",
		Timestamp: time.Now(),
		Message:   FormatBreachMessage(event),
		Event:     &event,
	})
}

// SendEscalation broadcasts a breach escalation
func (n *HubNotifier) SendEscalation(event types.QueueEvent) error {
	return n.send(hubMessage{
		Type:      "breach_escalation",
		Timestamp: time.Now(),
		Message:   FormatBreachMessage(event),
		Event:     &event,
	})
}

// SendCallAlert broadcasts a live-call alert
func (n *HubNotifier) SendCallAlert(alert CallAlert) error {
	return n.send(hubMessage{
		Type:      "call_alert",
		Timestamp: time.Now(),
		Message:   alert.Message,
		Call:      &alert,
	})
}

func (n *HubNotifier) send(msg hubMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", msg.Type, err)
	}
	n.hub.Broadcast(data)
	n.logger.Debug().Str("type", msg.Type).Msg("alert broadcast")
	return nil
}

// LogNotifier writes alerts to the log only. Used when no hub is wired.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alerts").Logger()}
}

func (n *LogNotifier) SendAlert(event types.QueueEvent) error {
	n.logger.Warn().
		Str("event_id", event.EventID).
		Str("breach_type", string(event.BreachType)).
		Str("severity", string(event.Severity)).
		Msg(FormatBreachMessage(event))
	return nil
}

func (n *LogNotifier) SendEscalation(event types.QueueEvent) error {
	n.logger.Error().
		Str("event_id", event.EventID).
		Str("breach_type", string(event.BreachType)).
		Msg("escalated: " + FormatBreachMessage(event))
	return nil
}

func (n *LogNotifier) SendCallAlert(alert CallAlert) error {
	n.logger.Warn().
		Str("call_id", alert.CallID).
		Str("rule", alert.Rule).
		Str("severity", string(alert.Severity)).
		Msg(alert.Message)
	return nil
}

// Fanout delivers every notification to all wrapped notifiers, returning
// the first error encountered
type Fanout struct {
	Notifiers []Notifier
}

func (f *Fanout) SendAlert(event types.QueueEvent) error {
	var firstErr error
	for _, n := range f.Notifiers {
		if err := n.SendAlert(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *Fanout) SendEscalation(event types.QueueEvent) error {
	var firstErr error
	for _, n := range f.Notifiers {
		if err := n.SendEscalation(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
