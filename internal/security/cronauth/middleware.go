package cronauth

import (
	"context"
	"net/http"

	"travelsec/internal/middleware"
)

type resultKey struct{}

// FromContext returns the authorization result stored by Middleware
func FromContext(ctx context.Context) (Result, bool) {
	res, ok := ctx.Value(resultKey{}).(Result)
	return res, ok
}

// Middleware rejects requests the gate does not authorize
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := g.Authorize(r.Context(), r)
		if !res.Authorized {
			middleware.WriteJSON(w, res.Status, map[string]string{"error": res.Reason})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), resultKey{}, res)))
	})
}
