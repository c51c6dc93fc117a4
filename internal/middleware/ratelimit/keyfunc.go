package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extracts rate limit identifier from request
type KeyFunc func(*http.Request) string

// ClientIP returns the connection's remote host. Forwarding headers are
// ignored since any client can set them.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedClientIP returns the first X-Forwarded-For hop, then X-Real-IP,
// then the remote host. Use it only behind a proxy that overwrites those
// headers.
func ForwardedClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return ClientIP(r)
}

// ByIP rate limits by client IP address
func ByIP(r *http.Request) string {
	return ClientIP(r)
}

// ByForwardedIP rate limits by the proxy-reported client address
func ByForwardedIP(r *http.Request) string {
	return ForwardedClientIP(r)
}

// ByPath rate limits by request path
func ByPath(r *http.Request) string {
	return r.URL.Path
}

// ByIPAndPath rate limits by IP and path combination
func ByIPAndPath(r *http.Request) string {
	return ClientIP(r) + ":" + r.URL.Path
}

// ByForwardedIPAndPath is ByIPAndPath keyed on ForwardedClientIP
func ByForwardedIPAndPath(r *http.Request) string {
	return ForwardedClientIP(r) + ":" + r.URL.Path
}

// ByHeader rate limits by the value of a request header, falling back to
// the client IP when the header is absent.
func ByHeader(name string) KeyFunc {
	return func(r *http.Request) string {
		if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
			return v
		}
		return ClientIP(r)
	}
}
