package ratelimit

import (
	"log/slog"
	"net/http"
	"strings"

	"travelsec/internal/middleware"
	"travelsec/internal/ratelimit"
	"travelsec/pkg/errors"
)

// Middleware creates rate limiting middleware. Every response carries the
// limit headers; denied requests get 429 with retry-after.
func Middleware(cfg *Config) middleware.Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ByIP
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enforce(cfg, w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PerRoute applies the most specific matching rule. Patterns ending in "*"
// match by prefix and the longest matching pattern wins; requests matching
// no rule pass through.
func PerRoute(rules map[string]*Config) middleware.Middleware {
	for _, cfg := range rules {
		if cfg.KeyFunc == nil {
			cfg.KeyFunc = ByIP
		}
		if cfg.Logger == nil {
			cfg.Logger = slog.Default()
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var cfg *Config
			best := -1
			for pattern, rule := range rules {
				if len(pattern) > best && matchPath(r.URL.Path, pattern) {
					cfg, best = rule, len(pattern)
				}
			}

			if cfg != nil && !enforce(cfg, w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enforce(cfg *Config, w http.ResponseWriter, r *http.Request) bool {
	key := cfg.KeyFunc(r)
	res := cfg.Controller.Check(r.Context(), ratelimit.Options{
		Identifier: key,
		Limit:      cfg.Limit,
		Window:     cfg.Window,
		Prefix:     cfg.Prefix,
	})

	ratelimit.WriteHeaders(w.Header(), res)
	if res.Success {
		return true
	}

	cfg.Logger.Warn("rate limit exceeded",
		"prefix", cfg.Prefix,
		"path", r.URL.Path,
		"method", r.Method,
	)
	ratelimit.WriteRetryAfter(w.Header(), res.Reset, cfg.Controller.Now())
	middleware.WriteError(w, cfg.Logger, errors.NewError(
		errors.ErrorTypeRateLimit,
		"Too many requests. Please retry later.",
	).WithDetail("prefix", cfg.Prefix))
	return false
}

// matchPath checks if a request path matches a pattern
func matchPath(requestPath, pattern string) bool {
	// Exact match
	if requestPath == pattern {
		return true
	}

	// Wildcard match
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(requestPath, prefix)
	}

	return false
}
