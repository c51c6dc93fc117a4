package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"travelsec/pkg/metrics"
)

func TestMiddleware(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/v1/admission/check", nil))

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/v1/admission/check", "429")); got != 1 {
		t.Errorf("expected 1 request, got %f", got)
	}
	if got := testutil.ToFloat64(m.ActiveRequests.WithLabelValues("POST", "/v1/admission/check")); got != 0 {
		t.Errorf("expected no active requests, got %f", got)
	}
}

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(Middleware(m)))
	router.HandleFunc("/v1/items/{id}", func(w http.ResponseWriter, r *http.Request) {}).Methods("GET")

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/items/42", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/items/43", nil))

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/v1/items/{id}", "200")); got != 2 {
		t.Errorf("expected 2 requests under the template label, got %f", got)
	}
}
