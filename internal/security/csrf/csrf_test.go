package csrf

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticToken string

func (s staticToken) CSRFToken() string { return string(s) }

func newRequest(host string, headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/admin/ratelimit/reset", nil)
	r.Host = host
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestPassesOriginCheck(t *testing.T) {
	g := New(nil)

	tests := []struct {
		name    string
		host    string
		headers map[string]string
		want    bool
	}{
		{"same origin", "app.example", map[string]string{"Origin": "https://app.example"}, true},
		{"hostile origin", "app.example", map[string]string{"Origin": "https://evil.example"}, false},
		{"bearer with hostile origin", "app.example", map[string]string{
			"Authorization": "Bearer abc",
			"Origin":        "https://evil.example",
		}, true},
		{"empty bearer", "app.example", map[string]string{"Authorization": "Bearer ", "Origin": "https://evil.example"}, false},
		{"no origin or referer", "app.example", nil, false},
		{"same referer", "app.example", map[string]string{"Referer": "https://app.example/admin/page?x=1"}, true},
		{"hostile referer", "app.example", map[string]string{"Referer": "https://evil.example/app.example"}, false},
		{"origin ok referer hostile", "app.example", map[string]string{
			"Origin":  "https://app.example",
			"Referer": "https://evil.example/",
		}, false},
		{"port must match", "app.example:8443", map[string]string{"Origin": "https://app.example"}, false},
		{"port matches", "app.example:8443", map[string]string{"Origin": "https://app.example:8443"}, true},
		{"case insensitive host", "App.Example", map[string]string{"Origin": "https://app.example"}, true},
		{"null origin", "app.example", map[string]string{"Origin": "null"}, false},
		{"non web scheme", "app.example", map[string]string{"Origin": "ftp://app.example"}, false},
		{"forwarded host", "internal:8080", map[string]string{
			"X-Forwarded-Host": "app.example",
			"Origin":           "https://app.example",
		}, true},
		{"forwarded proto mismatch", "app.example", map[string]string{
			"X-Forwarded-Proto": "https",
			"Origin":            "http://app.example",
		}, false},
		{"forwarded proto list", "app.example", map[string]string{
			"X-Forwarded-Proto": "https, http",
			"Origin":            "https://app.example",
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Passes(newRequest(tt.host, tt.headers)); got != tt.want {
				t.Errorf("Passes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTLSDefinesScheme(t *testing.T) {
	g := New(nil)
	r := newRequest("app.example", map[string]string{"Origin": "http://app.example"})
	r.TLS = &tls.ConnectionState{}

	if g.Passes(r) {
		t.Error("plain http origin should fail on a TLS request")
	}
}

func TestUntrustedProxyIgnoresForwardedHost(t *testing.T) {
	g := New(nil, WithTrustProxy(false))
	r := newRequest("internal:8080", map[string]string{
		"X-Forwarded-Host": "app.example",
		"Origin":           "https://app.example",
	})

	if g.Passes(r) {
		t.Error("forwarded host should be ignored without a trusted proxy")
	}
}

func TestSharedToken(t *testing.T) {
	g := New(staticToken("mutation-token"))

	tests := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{"matching token", map[string]string{"x-csrf-token": "mutation-token"}, true},
		{"wrong token", map[string]string{"x-csrf-token": "mutation-tokem"}, false},
		{"missing token with same origin", map[string]string{"Origin": "https://app.example"}, false},
		{"bearer skips token", map[string]string{"Authorization": "Bearer t"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Passes(newRequest("app.example", tt.headers)); got != tt.want {
				t.Errorf("Passes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmptyTokenFallsBackToOrigin(t *testing.T) {
	g := New(staticToken(""))
	if !g.Passes(newRequest("app.example", map[string]string{"Origin": "https://app.example"})) {
		t.Error("empty configured token should fall back to origin verification")
	}
}

func TestMiddleware(t *testing.T) {
	g := New(nil)
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest("app.example", map[string]string{"Origin": "https://evil.example"}))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest("app.example", map[string]string{"Origin": "https://app.example"}))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
