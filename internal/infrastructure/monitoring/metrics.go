package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "termsync"

// Command modes and outcomes used as label values
const (
	ModeAsync = "async"
	ModeSync  = "sync"

	OutcomeSent      = "sent"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Command metrics
	CommandsTotal *prometheus.CounterVec
	CommandWait   *prometheus.HistogramVec

	// Watcher metrics
	WatchersActive    prometheus.Gauge
	WatcherPolls      prometheus.Counter
	WatcherReadErrors prometheus.Counter

	// Terminal metrics
	TerminalsActive prometheus.Gauge
	TerminalsTotal  prometheus.Counter

	// Tool metrics
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the JSON health endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current counter values for JSON responses
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	CommandsSent    int64   `json:"commands_sent"`
	CommandsFailed  int64   `json:"commands_failed"`
	ActiveTerminals int64   `json:"active_terminals"`
	ActiveWatchers  int64   `json:"active_watchers"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewMetrics registers all collectors with reg. Use prometheus.DefaultRegisterer
// in servers and a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Commands sent to terminals by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		CommandWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_wait_seconds",
				Help:      "Time spent waiting for synchronized commands",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300, 900},
			},
			[]string{"outcome"},
		),

		WatchersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "watchers_active",
				Help:      "Completion watchers currently polling",
			},
		),
		WatcherPolls: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watcher_polls_total",
				Help:      "Signal file polls performed",
			},
		),
		WatcherReadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watcher_read_errors_total",
				Help:      "Signal file reads that failed",
			},
		),

		TerminalsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "terminals_active",
				Help:      "Open terminal sessions",
			},
		),
		TerminalsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "terminals_total",
				Help:      "Terminal sessions created",
			},
		),

		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Tool executions by tool and status",
			},
			[]string{"tool", "status"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Tool execution duration in seconds",
				Buckets:   []float64{.001, .01, .1, .5, 1, 5, 30, 120},
			},
			[]string{"tool"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Active WebSocket stream connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "WebSocket messages by direction and type",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		m.uptime,
	)

	return m
}

func (m *Metrics) uptime() float64 {
	return time.Since(m.startTime).Seconds()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordCommand records a command submission and, for synchronized
// commands, how long the caller waited.
func (m *Metrics) RecordCommand(mode, outcome string, wait time.Duration) {
	m.CommandsTotal.WithLabelValues(mode, outcome).Inc()
	if mode == ModeSync {
		m.CommandWait.WithLabelValues(outcome).Observe(wait.Seconds())
	}

	m.mu.Lock()
	m.snapshot.CommandsSent++
	if outcome == OutcomeFailed || outcome == OutcomeError {
		m.snapshot.CommandsFailed++
	}
	m.mu.Unlock()
}

// RecordToolCall records a tool execution
func (m *Metrics) RecordToolCall(tool, status string, duration time.Duration) {
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// WatcherStarted implements completion.Observer
func (m *Metrics) WatcherStarted() {
	m.WatchersActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveWatchers++
	m.mu.Unlock()
}

// WatcherStopped implements completion.Observer
func (m *Metrics) WatcherStopped() {
	m.WatchersActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveWatchers--
	m.mu.Unlock()
}

// WatcherPolled implements completion.Observer
func (m *Metrics) WatcherPolled() {
	m.WatcherPolls.Inc()
}

// WatcherReadFailed implements completion.Observer
func (m *Metrics) WatcherReadFailed() {
	m.WatcherReadErrors.Inc()
}

// SessionOpened records a new terminal session
func (m *Metrics) SessionOpened() {
	m.TerminalsTotal.Inc()
	m.TerminalsActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveTerminals++
	m.mu.Unlock()
}

// SessionClosed records a terminal session ending
func (m *Metrics) SessionClosed() {
	m.TerminalsActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveTerminals--
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Snapshot returns current counter values
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()
	s.UptimeSeconds = m.uptime()
	return s
}
