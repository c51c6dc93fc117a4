package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"travelsec/internal/middleware"
	"travelsec/pkg/metrics"
)

// routeLabel prefers the mux route template so path parameters do not
// explode label cardinality.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return metrics.NormalizePath(r.URL.Path)
}

// Middleware creates metrics collection middleware
func Middleware(m *metrics.Metrics) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := routeLabel(r)
			method := r.Method

			m.ActiveRequests.WithLabelValues(method, path).Inc()
			defer m.ActiveRequests.WithLabelValues(method, path).Dec()

			start := time.Now()
			rec := middleware.NewStatusRecorder(w)
			next.ServeHTTP(rec, r)

			status := strconv.Itoa(rec.Status)
			m.RequestsTotal.WithLabelValues(method, path, status).Inc()
			m.RequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}
