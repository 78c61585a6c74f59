package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Snippet run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	RunsActive  prometheus.Gauge

	// Capability metrics
	CapabilityCalls    *prometheus.CounterVec
	CapabilityDuration *prometheus.HistogramVec
	CapabilityFailures *prometheus.CounterVec

	// Provider metrics
	ProviderRequests *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates a metrics collector registered on reg.
// Passing nil registers on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketscript_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketscript_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketscript_runs_total",
				Help: "Total number of snippet runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketscript_run_duration_seconds",
				Help:    "Snippet run duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),
		RunsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketscript_runs_active",
				Help: "Number of snippet runs currently executing",
			},
		),

		CapabilityCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketscript_capability_calls_total",
				Help: "Total number of capability invocations",
			},
			[]string{"capability"},
		),
		CapabilityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketscript_capability_duration_seconds",
				Help:    "Capability invocation duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"capability"},
		),
		CapabilityFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketscript_capability_failures_total",
				Help: "Capability invocations absorbed into their null/empty contract",
			},
			[]string{"capability"},
		),

		ProviderRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketscript_provider_requests_total",
				Help: "Upstream market data requests by status",
			},
			[]string{"operation", "status"},
		),
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRun records a completed snippet run.
func (m *Metrics) RecordRun(outcome string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RunStarted marks a snippet run as active.
func (m *Metrics) RunStarted() {
	m.RunsActive.Inc()
}

// RunFinished marks a snippet run as finished.
func (m *Metrics) RunFinished() {
	m.RunsActive.Dec()
}

// RecordCapabilityCall records a capability invocation.
func (m *Metrics) RecordCapabilityCall(capability string, duration time.Duration, failed bool) {
	m.CapabilityCalls.WithLabelValues(capability).Inc()
	m.CapabilityDuration.WithLabelValues(capability).Observe(duration.Seconds())
	if failed {
		m.CapabilityFailures.WithLabelValues(capability).Inc()
	}
}

// RecordProviderRequest records an upstream provider request.
func (m *Metrics) RecordProviderRequest(operation, status string) {
	m.ProviderRequests.WithLabelValues(operation, status).Inc()
}

// Uptime returns time since metrics creation.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
