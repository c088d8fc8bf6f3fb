package alerts

import (
	"fmt"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
)

// Notifier delivers breach-event notifications. Each call is one delivery
// attempt; the breach handler guarantees it is invoked at most once per
// true state transition.
type Notifier interface {
	SendAlert(event types.QueueEvent) error
	SendEscalation(event types.QueueEvent) error
}

// CallAlert is a live-call alert raised by the escalation coordinator
type CallAlert struct {
	CallID   string               `json:"callId"`
	Rule     string               `json:"rule"`
	Severity types.BreachSeverity `json:"severity"`
	Message  string               `json:"message"`
	Time     time.Time            `json:"time"`
}

// CallNotifier delivers live-call alerts (keyword escalation, low
// sentiment, long hold)
type CallNotifier interface {
	SendCallAlert(alert CallAlert) error
}

// FormatBreachMessage renders a human-readable line for a breach event
func FormatBreachMessage(event types.QueueEvent) string {
	queue := event.QueueName
	if queue == "" {
		queue = event.QueueID
	}
	return fmt.Sprintf("%s on %s: current %.2f, threshold %.2f",
		event.BreachType, queue, event.CurrentValue, event.ThresholdValue)
}

// FormatHoldMessage renders a human-readable line for a long-hold alert
func FormatHoldMessage(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("on hold for %dh%dm", hours, mins)
	}
	return fmt.Sprintf("on hold for %dm%ds", mins, secs)
}
