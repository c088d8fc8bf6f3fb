package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Assignment metrics
	AssignmentsTotal      int64
	assignmentsByOutcome  map[types.DecisionOutcome]int64
	AssignmentErrorsTotal int64

	// Breach lifecycle metrics
	BreachActionsTotal    int64
	breachActionsByResult map[string]int64
	AlertsSentTotal       int64
	EscalationsTotal      int64

	// Handoff metrics
	HandoffsRequestedTotal int64
	HandoffsCompletedTotal int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	activeConnections            int64

	// Agent roster metrics
	agentsByStatus map[types.AgentStatus]int
	totalAgents    int

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			assignmentsByOutcome:  make(map[types.DecisionOutcome]int64),
			breachActionsByResult: make(map[string]int64),
			agentsByStatus:        make(map[types.AgentStatus]int),
			httpRequestsTotal:     make(map[string]map[int]int64),
			httpRequestDurations:  make(map[string][]float64),
			startTime:             time.Now(),
		}
	})
	return instance
}

// RecordAssignment records one assignment decision by outcome
func (m *Metrics) RecordAssignment(outcome types.DecisionOutcome) {
	m.mu.Lock()
	m.AssignmentsTotal++
	m.assignmentsByOutcome[outcome]++
	m.mu.Unlock()
}

// RecordAssignmentError increments the assignment error counter
func (m *Metrics) RecordAssignmentError() {
	m.mu.Lock()
	m.AssignmentErrorsTotal++
	m.mu.Unlock()
}

// RecordBreachAction records one breach lifecycle action and its result class
func (m *Metrics) RecordBreachAction(result string) {
	m.mu.Lock()
	m.BreachActionsTotal++
	m.breachActionsByResult[result]++
	m.mu.Unlock()
}

// RecordAlertSent increments the delivered-alert counter
func (m *Metrics) RecordAlertSent() {
	m.mu.Lock()
	m.AlertsSentTotal++
	m.mu.Unlock()
}

// RecordEscalation increments the escalation counter
func (m *Metrics) RecordEscalation() {
	m.mu.Lock()
	m.EscalationsTotal++
	m.mu.Unlock()
}

// RecordHandoffRequested increments the handoff request counter
func (m *Metrics) RecordHandoffRequested() {
	m.mu.Lock()
	m.HandoffsRequestedTotal++
	m.mu.Unlock()
}

// RecordHandoffCompleted increments the handoff completion counter
func (m *Metrics) RecordHandoffCompleted() {
	m.mu.Lock()
	m.HandoffsCompletedTotal++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// UpdateAgentStats updates agent distribution metrics
func (m *Metrics) UpdateAgentStats(agents []types.AssignableAgent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agentsByStatus = make(map[types.AgentStatus]int)
	m.totalAgents = len(agents)

	for _, agent := range agents {
		m.agentsByStatus[agent.Status]++
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("core_uptime_seconds", time.Since(m.startTime).Seconds())

		// Assignment metrics
		write("core_assignments_total", m.AssignmentsTotal)
		write("core_assignment_errors_total", m.AssignmentErrorsTotal)
		for outcome, count := range m.assignmentsByOutcome {
			write("core_assignments_by_outcome", count, "outcome", string(outcome))
		}

		// Breach metrics
		write("core_breach_actions_total", m.BreachActionsTotal)
		for result, count := range m.breachActionsByResult {
			write("core_breach_actions_by_result", count, "result", result)
		}
		write("core_alerts_sent_total", m.AlertsSentTotal)
		write("core_escalations_total", m.EscalationsTotal)

		// Handoff metrics
		write("core_handoffs_requested_total", m.HandoffsRequestedTotal)
		write("core_handoffs_completed_total", m.HandoffsCompletedTotal)

		// WebSocket metrics
		write("core_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("core_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("core_websocket_active_connections", m.activeConnections)

		// Agent metrics
		write("core_agents_total", m.totalAgents)
		for status, count := range m.agentsByStatus {
			write("core_agents_by_status", count, "status", string(status))
		}

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("core_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
