package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	pkgmetrics "travelsec/pkg/metrics"
)

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := pkgmetrics.NewWithRegistry(reg)
	m.ObserveRateLimit("api:login", "local", false)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(string(body), `travelsec_ratelimit_decisions_total{backend="local",outcome="denied",prefix="api:login"} 1`) {
		t.Errorf("metric not exposed:\n%s", body)
	}
}
