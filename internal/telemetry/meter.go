package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Metrics holds the OTel instruments of the sidecar
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	httpActiveRequests  metric.Int64UpDownCounter

	admissionChecks metric.Int64Counter
}

// NewMetrics creates all instruments on the telemetry meter
func (t *Telemetry) NewMetrics() (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.httpRequestsTotal, err = t.meter.Int64Counter(
		"travelsec_otel_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total: %w", err)
	}

	m.httpRequestDuration, err = t.meter.Float64Histogram(
		"travelsec_otel_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration: %w", err)
	}

	m.httpActiveRequests, err = t.meter.Int64UpDownCounter(
		"travelsec_otel_http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_active_requests: %w", err)
	}

	m.admissionChecks, err = t.meter.Int64Counter(
		"travelsec_otel_admission_checks_total",
		metric.WithDescription("Admission checks served by the decision API"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create admission_checks_total: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		semconv.HTTPMethod(method),
		semconv.HTTPRoute(route),
		semconv.HTTPStatusCode(statusCode),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordHTTPActiveRequest adjusts the active request count
func (m *Metrics) RecordHTTPActiveRequest(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.httpActiveRequests.Add(ctx, delta)
}

// RecordAdmission records one decision API check
func (m *Metrics) RecordAdmission(ctx context.Context, prefix, backend string, allowed bool) {
	if m == nil {
		return
	}
	m.admissionChecks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("prefix", prefix),
		attribute.String("backend", backend),
		attribute.Bool("allowed", allowed),
	))
}
