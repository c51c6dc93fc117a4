// Package csrf guards cookie-authenticated mutation endpoints against
// cross-site request forgery.
package csrf

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"travelsec/internal/middleware"
	"travelsec/internal/security/timingsafe"
	"travelsec/pkg/metrics"
)

// DefaultTokenHeader carries the shared mutation token
const DefaultTokenHeader = "x-csrf-token"

// ReasonFailed is returned to rejected callers
const ReasonFailed = "CSRF validation failed for admin mutation"

// TokenSource returns the configured shared token, or ""
type TokenSource interface {
	CSRFToken() string
}

// Guard decides whether a mutation request is same-origin
type Guard struct {
	tokens      TokenSource
	tokenHeader string
	trustProxy  bool
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Guard
type Option func(*Guard)

// WithTokenHeader overrides the header holding the shared token
func WithTokenHeader(name string) Option {
	return func(g *Guard) {
		if name != "" {
			g.tokenHeader = name
		}
	}
}

// WithTrustProxy controls whether X-Forwarded-Host and X-Forwarded-Proto
// define the expected origin. Enabled by default.
func WithTrustProxy(trust bool) Option {
	return func(g *Guard) { g.trustProxy = trust }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// WithMetrics records guard decisions
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// New creates a guard. tokens may be nil.
func New(tokens TokenSource, opts ...Option) *Guard {
	g := &Guard{
		tokens:      tokens,
		tokenHeader: DefaultTokenHeader,
		trustProxy:  true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "csrf")
	return g
}

// Passes reports whether r may perform a mutation
func (g *Guard) Passes(r *http.Request) bool {
	ok, check := g.passes(r)
	g.metrics.ObserveGuard("csrf", ok)
	if !ok {
		g.logger.Debug("CSRF check failed", "check", check, "path", r.URL.Path)
	}
	return ok
}

func (g *Guard) passes(r *http.Request) (bool, string) {
	if hasBearer(r.Header.Get("Authorization")) {
		return true, "bearer"
	}

	if g.tokens != nil {
		if token := g.tokens.CSRFToken(); token != "" {
			return timingsafe.Equal(strings.TrimSpace(r.Header.Get(g.tokenHeader)), token), "token"
		}
	}

	origin := r.Header.Get("Origin")
	referer := r.Header.Get("Referer")
	if origin == "" && referer == "" {
		return false, "origin"
	}

	scheme, host := g.expectedOrigin(r)
	if host == "" {
		return false, "origin"
	}
	if origin != "" && !sameOrigin(origin, scheme, host) {
		return false, "origin"
	}
	if referer != "" && !sameOrigin(referer, scheme, host) {
		return false, "referer"
	}
	return true, "origin"
}

func hasBearer(authorization string) bool {
	if len(authorization) < len("Bearer ") || !strings.EqualFold(authorization[:7], "Bearer ") {
		return false
	}
	return strings.TrimSpace(authorization[7:]) != ""
}

// expectedOrigin derives the request's own origin. The scheme is empty
// when the request does not reveal it.
func (g *Guard) expectedOrigin(r *http.Request) (scheme, host string) {
	host = r.Host
	if g.trustProxy {
		if fwd := firstValue(r.Header.Get("X-Forwarded-Host")); fwd != "" {
			host = fwd
		}
		scheme = strings.ToLower(firstValue(r.Header.Get("X-Forwarded-Proto")))
	}
	if scheme == "" && r.TLS != nil {
		scheme = "https"
	}
	return scheme, strings.ToLower(host)
}

func firstValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

func sameOrigin(raw, scheme, host string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	s := strings.ToLower(u.Scheme)
	if s != "http" && s != "https" {
		return false
	}
	if scheme != "" && s != scheme {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

// Middleware rejects requests that fail the guard with 403
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Passes(r) {
			middleware.WriteJSON(w, http.StatusForbidden, map[string]string{"error": ReasonFailed})
			return
		}
		next.ServeHTTP(w, r)
	})
}
