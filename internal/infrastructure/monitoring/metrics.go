package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can take one optionally.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Shell metrics
	SessionsActive    prometheus.Gauge
	SessionsTotal     prometheus.Counter
	Executions        *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ProxyCalls        *prometheus.CounterVec
	URLDetections     prometheus.Counter
	StreamDrops       *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the JSON stats endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON stats endpoint
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActiveSessions    int64   `json:"active_sessions"`
	ActiveConnections int64   `json:"active_connections"`
	Executions        int64   `json:"executions"`
	ProxyExecutions   int64   `json:"proxy_executions"`
	URLDetections     int64   `json:"url_detections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics registers all collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shellbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shellbridge_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellbridge_sessions_active",
				Help: "Number of live shell sessions",
			},
		),
		SessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shellbridge_sessions_total",
				Help: "Total number of shell sessions started",
			},
		),
		Executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellbridge_executions_total",
				Help: "Coordinated executions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shellbridge_execution_duration_seconds",
				Help:    "Coordinated execution duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		ProxyCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellbridge_proxy_calls_total",
				Help: "Proxy endpoint calls by command and status",
			},
			[]string{"command", "status"},
		),
		URLDetections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shellbridge_url_detections_total",
				Help: "URLs published by background watchers",
			},
		),
		StreamDrops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellbridge_stream_dropped_chunks_total",
				Help: "Output chunks discarded by slow stream subscribers",
			},
			[]string{"subscriber"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellbridge_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellbridge_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "shellbridge_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SessionStarted counts a new live session
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveSessions++
	m.mu.Unlock()
}

// SessionEnded removes a live session
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveSessions--
	m.mu.Unlock()
}

// RecordExecution records a coordinated execution. kind is "native",
// "curl" or "fetch"; outcome is "ok", "nonzero", "degraded", "canceled",
// "timeout" or "error".
func (m *Metrics) RecordExecution(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(kind, outcome).Inc()
	m.ExecutionDuration.WithLabelValues(kind).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Executions++
	if kind != "native" {
		m.snapshot.ProxyExecutions++
	}
	m.mu.Unlock()
}

// RecordProxyCall records one /api/proxy request
func (m *Metrics) RecordProxyCall(command, status string) {
	if m == nil {
		return
	}
	m.ProxyCalls.WithLabelValues(command, status).Inc()
}

// IncURLDetections counts a published URL
func (m *Metrics) IncURLDetections() {
	if m == nil {
		return
	}
	m.URLDetections.Inc()
	m.mu.Lock()
	m.snapshot.URLDetections++
	m.mu.Unlock()
}

// AddStreamDrops counts chunks a subscriber discarded
func (m *Metrics) AddStreamDrops(subscriber string, chunks int) {
	if m == nil {
		return
	}
	m.StreamDrops.WithLabelValues(subscriber).Add(float64(chunks))
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns current values for the JSON stats endpoint
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
