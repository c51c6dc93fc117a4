package telemetry

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"travelsec/internal/middleware"
)

// TraceIDHeader echoes the server span's trace id when tracing is on
const TraceIDHeader = "X-Trace-ID"

// Middleware wraps handlers with spans and OTel metrics
type Middleware struct {
	telemetry *Telemetry
	metrics   *Metrics
}

// NewMiddleware creates a new telemetry middleware. metrics may be nil.
func NewMiddleware(telemetry *Telemetry, metrics *Metrics) *Middleware {
	return &Middleware{
		telemetry: telemetry,
		metrics:   metrics,
	}
}

// WrapHTTP wraps an HTTP handler with telemetry
func (m *Middleware) WrapHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeTemplate(r)
		ctx, span := m.telemetry.StartHTTPServerSpan(r, route)
		r = r.WithContext(ctx)
		if id := ExtractTraceID(ctx); id != "" {
			w.Header().Set(TraceIDHeader, id)
		}

		m.metrics.RecordHTTPActiveRequest(ctx, 1)
		defer m.metrics.RecordHTTPActiveRequest(ctx, -1)

		rec := middleware.NewStatusRecorder(w)
		start := time.Now()

		next.ServeHTTP(rec, r)

		m.metrics.RecordHTTPRequest(ctx, r.Method, route, rec.Status, time.Since(start))
		EndHTTPServerSpan(span, rec.Status)
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
