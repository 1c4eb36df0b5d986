package api

import (
	"sync/atomic"
	"time"
)

// Metrics collects in-memory server metrics using atomic counters.
type Metrics struct {
	startTime        time.Time
	requests         atomic.Int64
	serverErrors     atomic.Int64
	clientErrors     atomic.Int64
	socketsOpened    atomic.Int64
	socketEvents     atomic.Int64
	executions       atomic.Int64
	executionsFailed atomic.Int64
	devaiRequests    atomic.Int64
}

// MetricsSnapshot is a point-in-time view of server metrics.
type MetricsSnapshot struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Requests         int64   `json:"requests"`
	ServerErrors     int64   `json:"server_errors"`
	ClientErrors     int64   `json:"client_errors"`
	SocketsOpened    int64   `json:"sockets_opened"`
	SocketsConnected int     `json:"sockets_connected"`
	SocketEvents     int64   `json:"socket_events"`
	Executions       int64   `json:"executions"`
	ExecutionsFailed int64   `json:"executions_failed"`
	DevAIRequests    int64   `json:"devai_requests"`
}

// NewMetrics creates a new Metrics instance with the current time as start.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordRequest increments the total request counter.
func (m *Metrics) RecordRequest() {
	m.requests.Add(1)
}

// RecordError increments the server error (5xx) counter.
func (m *Metrics) RecordError() {
	m.serverErrors.Add(1)
}

// RecordClientError increments the client error (4xx) counter.
func (m *Metrics) RecordClientError() {
	m.clientErrors.Add(1)
}

// RecordSocketOpened counts an accepted WebSocket upgrade.
func (m *Metrics) RecordSocketOpened() {
	m.socketsOpened.Add(1)
}

// RecordSocketEvent counts an inbound socket frame.
func (m *Metrics) RecordSocketEvent() {
	m.socketEvents.Add(1)
}

// RecordExecution counts a remote code execution.
func (m *Metrics) RecordExecution(failed bool) {
	m.executions.Add(1)
	if failed {
		m.executionsFailed.Add(1)
	}
}

// RecordDevAIRequest counts a DevAi prompt sent upstream.
func (m *Metrics) RecordDevAIRequest() {
	m.devaiRequests.Add(1)
}

// Snapshot returns a point-in-time copy of the metrics. connected is the
// current number of open sockets.
func (m *Metrics) Snapshot(connected int) MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds:    time.Since(m.startTime).Seconds(),
		Requests:         m.requests.Load(),
		ServerErrors:     m.serverErrors.Load(),
		ClientErrors:     m.clientErrors.Load(),
		SocketsOpened:    m.socketsOpened.Load(),
		SocketsConnected: connected,
		SocketEvents:     m.socketEvents.Load(),
		Executions:       m.executions.Load(),
		ExecutionsFailed: m.executionsFailed.Load(),
		DevAIRequests:    m.devaiRequests.Load(),
	}
}
