package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistry(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if m.RateLimitDecisions == nil {
		t.Error("RateLimitDecisions is nil")
	}
	if m.RateLimitFallbacks == nil {
		t.Error("RateLimitFallbacks is nil")
	}
	if m.CipherOperations == nil {
		t.Error("CipherOperations is nil")
	}
	if m.GuardDecisions == nil {
		t.Error("GuardDecisions is nil")
	}
}

func TestObservers(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObserveRateLimit("api:login", "redis", true)
	m.ObserveRateLimit("api:login", "redis", false)
	m.ObserveRateLimit("api:login", "redis", false)
	if got := testutil.ToFloat64(m.RateLimitDecisions.WithLabelValues("api:login", "redis", "denied")); got != 2 {
		t.Errorf("expected 2 denied decisions, got %f", got)
	}

	m.ObserveFallback("api:login", "timeout")
	if got := testutil.ToFloat64(m.RateLimitFallbacks.WithLabelValues("api:login", "timeout")); got != 1 {
		t.Errorf("expected 1 fallback, got %f", got)
	}

	m.ObserveCipher("decrypt", errors.New("bad tag"))
	if got := testutil.ToFloat64(m.CipherOperations.WithLabelValues("decrypt", "error")); got != 1 {
		t.Errorf("expected 1 cipher error, got %f", got)
	}

	m.ObserveGuard("csrf", true)
	if got := testutil.ToFloat64(m.GuardDecisions.WithLabelValues("csrf", "allowed")); got != 1 {
		t.Errorf("expected 1 guard decision, got %f", got)
	}

	m.ObserveBackend("redis", 3*time.Millisecond)
	if got := testutil.CollectAndCount(m.RateLimitBackendDuration); got != 1 {
		t.Errorf("expected 1 histogram series, got %d", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRateLimit("p", "local", true)
	m.ObserveFallback("p", "error")
	m.ObserveBackend("redis", time.Millisecond)
	m.ObserveCipher("encrypt", nil)
	m.ObserveGuard("cron", false)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "short path",
			path:     "/v1/admission/check",
			expected: "/v1/admission/check",
		},
		{
			name:     "long path",
			path:     "/api/v1/users/12345678901234567890123456789012345678901234567890/profile/settings",
			expected: "/api/v1/users/123456789012345678901234567890123456...",
		},
		{
			name:     "exactly 50 chars",
			path:     "/api/v1/users/12345678901234567890123456789012345",
			expected: "/api/v1/users/12345678901234567890123456789012345",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizePath(tt.path)
			if result != tt.expected {
				t.Errorf("NormalizePath(%s) = %s, want %s", tt.path, result, tt.expected)
			}
		})
	}
}
