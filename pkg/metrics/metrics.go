package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the security layer.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitDecisions       *prometheus.CounterVec
	RateLimitFallbacks       *prometheus.CounterVec
	RateLimitBackendDuration *prometheus.HistogramVec

	// Credential cipher metrics
	CipherOperations *prometheus.CounterVec

	// Trust guard and cron gate metrics
	GuardDecisions *prometheus.CounterVec

	// Health check metrics
	HealthCheckStatus *prometheus.GaugeVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "travelsec_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "travelsec_http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "travelsec_http_requests_active",
				Help: "Number of active HTTP requests",
			},
			[]string{"method", "path"},
		),

		// Rate limiting metrics
		RateLimitDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "travelsec_ratelimit_decisions_total",
				Help: "Admission decisions by prefix, backend and outcome",
			},
			[]string{"prefix", "backend", "outcome"},
		),
		RateLimitFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "travelsec_ratelimit_fallbacks_total",
				Help: "Checks that fell back to the local limiter",
			},
			[]string{"prefix", "reason"},
		),
		RateLimitBackendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "travelsec_ratelimit_backend_duration_seconds",
				Help:    "Latency of limiter backend calls in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
			},
			[]string{"backend"},
		),

		// Credential cipher metrics
		CipherOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "travelsec_cipher_operations_total",
				Help: "Credential cipher operations by kind and outcome",
			},
			[]string{"operation", "outcome"},
		),

		// Guard metrics
		GuardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "travelsec_guard_decisions_total",
				Help: "Trust guard and cron gate decisions",
			},
			[]string{"guard", "outcome"},
		),

		// Health check metrics
		HealthCheckStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "travelsec_health_check_status",
				Help: "Health check status (1 = healthy, 0 = unhealthy)",
			},
			[]string{"check"},
		),
	}
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// ObserveRateLimit records an admission decision.
func (m *Metrics) ObserveRateLimit(prefix, backend string, allowed bool) {
	if m == nil {
		return
	}
	m.RateLimitDecisions.WithLabelValues(prefix, backend, outcome(allowed, "allowed", "denied")).Inc()
}

// ObserveFallback records a fallback to the local limiter.
func (m *Metrics) ObserveFallback(prefix, reason string) {
	if m == nil {
		return
	}
	m.RateLimitFallbacks.WithLabelValues(prefix, reason).Inc()
}

// ObserveBackend records the latency of a limiter backend call.
func (m *Metrics) ObserveBackend(backend string, d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitBackendDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// ObserveCipher records a cipher operation.
func (m *Metrics) ObserveCipher(operation string, err error) {
	if m == nil {
		return
	}
	m.CipherOperations.WithLabelValues(operation, outcome(err == nil, "ok", "error")).Inc()
}

// ObserveGuard records a guard decision.
func (m *Metrics) ObserveGuard(guard string, allowed bool) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(guard, outcome(allowed, "allowed", "denied")).Inc()
}

// NormalizePath normalizes the path for metrics labels to avoid high cardinality
func NormalizePath(path string) string {
	const maxLength = 50
	if len(path) > maxLength {
		return path[:maxLength] + "..."
	}
	return path
}
