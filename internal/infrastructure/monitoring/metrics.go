package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pagelens"

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Domain metrics
	CapturesTotal     *prometheus.CounterVec
	ExportsTotal      *prometheus.CounterVec
	FindingsTotal     *prometheus.CounterVec
	PentestRuns       *prometheus.CounterVec
	SitedataClears    *prometheus.CounterVec
	ClipboardCopies   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	SessionsActive prometheus.Gauge
	WSConnections  prometheus.Gauge
	WSEvents       *prometheus.CounterVec

	startTime time.Time

	mu       sync.RWMutex
	snapshot Snapshot
}

// Snapshot holds running totals for the JSON API.
type Snapshot struct {
	TotalRequests  int64   `json:"totalRequests"`
	TotalErrors    int64   `json:"totalErrors"`
	TotalCaptures  int64   `json:"totalCaptures"`
	TotalFindings  int64   `json:"totalFindings"`
	ActiveSessions int64   `json:"activeSessions"`
	ActiveFeeds    int64   `json:"activeFeeds"`
	AvgLatencyMs   float64 `json:"avgLatencyMs"`
	UptimeSeconds  float64 `json:"uptimeSeconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg, startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
	m.RequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"method", "path"},
	)
	m.ResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"method", "path"},
	)

	m.CapturesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Elements captured, by session source kind",
		},
		[]string{"source"},
	)
	m.ExportsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Export documents produced",
		},
		[]string{"format", "compression"},
	)
	m.FindingsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pentest_findings_total",
			Help:      "Checklist findings, by check and type",
		},
		[]string{"check", "type"},
	)
	m.PentestRuns = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pentest_runs_total",
			Help:      "Checklist runs, by outcome",
		},
		[]string{"outcome"},
	)
	m.SitedataClears = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sitedata_clears_total",
			Help:      "Site data clear operations, by outcome",
		},
		[]string{"outcome"},
	)
	m.ClipboardCopies = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clipboard_copies_total",
			Help:      "Clipboard copies, by writer that succeeded or \"none\"",
		},
		[]string{"writer"},
	)
	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of page operations",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation", "status"},
	)

	m.SessionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open capture sessions",
		},
	)
	m.WSConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Number of active session feeds",
		},
	)
	m.WSEvents = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_events_total",
			Help:      "Session feed events, by delivery result",
		},
		[]string{"result"},
	)
	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordCapture counts a captured element.
func (m *Metrics) RecordCapture(source string) {
	m.CapturesTotal.WithLabelValues(source).Inc()
	m.mu.Lock()
	m.snapshot.TotalCaptures++
	m.mu.Unlock()
}

// RecordExport counts an export document.
func (m *Metrics) RecordExport(format, compression string) {
	m.ExportsTotal.WithLabelValues(format, compression).Inc()
}

// RecordFinding counts a checklist finding.
func (m *Metrics) RecordFinding(check, findingType string) {
	m.FindingsTotal.WithLabelValues(check, findingType).Inc()
	m.mu.Lock()
	m.snapshot.TotalFindings++
	m.mu.Unlock()
}

// RecordPentestRun counts a finished checklist run.
func (m *Metrics) RecordPentestRun(outcome string) {
	m.PentestRuns.WithLabelValues(outcome).Inc()
}

// RecordSitedataClear counts a clear operation.
func (m *Metrics) RecordSitedataClear(outcome string) {
	m.SitedataClears.WithLabelValues(outcome).Inc()
}

// RecordClipboardCopy counts a copy by the writer that took it.
func (m *Metrics) RecordClipboardCopy(writer string) {
	if writer == "" {
		writer = "none"
	}
	m.ClipboardCopies.WithLabelValues(writer).Inc()
}

// RecordWSEvent counts a feed event as "sent" or "dropped".
func (m *Metrics) RecordWSEvent(result string) {
	m.WSEvents.WithLabelValues(result).Inc()
}

// SetSessionsActive sets the number of open sessions.
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// IncWSConnections increments the feed gauge.
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveFeeds++
	m.mu.Unlock()
}

// DecWSConnections decrements the feed gauge.
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveFeeds--
	m.mu.Unlock()
}

// Snapshot returns the running totals.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	if s.TotalRequests > 0 {
		s.AvgLatencyMs = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
