package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"travelsec/internal/ratelimit"
	"travelsec/internal/storage"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newController(t *testing.T) *ratelimit.Controller {
	t.Helper()
	clock := storage.NewFixedClock(epoch)
	c := ratelimit.NewController(nil,
		ratelimit.NewLocalLimiter(&storage.LimiterStoreConfig{Clock: clock}),
		ratelimit.WithClock(clock),
		ratelimit.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	t.Cleanup(func() { c.Close() })
	return c
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestMiddleware(t *testing.T) {
	t.Run("admits within limit then denies", func(t *testing.T) {
		h := Middleware(&Config{
			Prefix:     "api:test",
			Limit:      2,
			Window:     time.Minute,
			Controller: newController(t),
		})(ok)

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
			}
			if rec.Header().Get("x-ratelimit-limit") != "2" {
				t.Errorf("missing limit header")
			}
		}

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if got := rec.Header().Get("retry-after"); got != "60" {
			t.Errorf("retry-after = %q, want 60", got)
		}
		if got := rec.Header().Get("x-ratelimit-remaining"); got != "0" {
			t.Errorf("remaining = %q, want 0", got)
		}
	})

	t.Run("different clients have separate limits", func(t *testing.T) {
		h := Middleware(&Config{
			Prefix:     "api:test",
			Limit:      1,
			Window:     time.Minute,
			Controller: newController(t),
		})(ok)

		for _, ip := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/test", nil)
			req.RemoteAddr = ip
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("%s: expected 200, got %d", ip, rec.Code)
			}
		}
	})
}

func TestPerRoute(t *testing.T) {
	c := newController(t)
	h := PerRoute(map[string]*Config{
		"/v1/credentials/*": {Prefix: "api:credentials", Limit: 1, Window: time.Minute, Controller: c},
	})(ok)

	serve := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))
		return rec.Code
	}

	if code := serve("/v1/credentials/seal"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := serve("/v1/credentials/open"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 sharing the route limit, got %d", code)
	}
	for i := 0; i < 3; i++ {
		if code := serve("/healthz"); code != http.StatusOK {
			t.Fatalf("unmatched route should pass, got %d", code)
		}
	}
}

func TestKeyFuncs(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/x", nil)
	req.RemoteAddr = "192.0.2.1:5555"

	if got := ByIP(req); got != "192.0.2.1" {
		t.Errorf("ByIP() = %q", got)
	}
	if got := ByPath(req); got != "/v1/x" {
		t.Errorf("ByPath() = %q", got)
	}
	if got := ByIPAndPath(req); got != "192.0.2.1:/v1/x" {
		t.Errorf("ByIPAndPath() = %q", got)
	}

	req.Header.Set("X-Real-IP", "198.51.100.2")
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	if got := ByIP(req); got != "192.0.2.1" {
		t.Errorf("ByIP() should ignore forwarding headers, got %q", got)
	}
	if got := ByForwardedIP(req); got != "203.0.113.9" {
		t.Errorf("X-Forwarded-For not used: %q", got)
	}
	if got := ByForwardedIPAndPath(req); got != "203.0.113.9:/v1/x" {
		t.Errorf("ByForwardedIPAndPath() = %q", got)
	}

	req.Header.Del("X-Forwarded-For")
	if got := ByForwardedIP(req); got != "198.51.100.2" {
		t.Errorf("X-Real-IP not used: %q", got)
	}
	req.Header.Del("X-Real-IP")
	if got := ByForwardedIP(req); got != "192.0.2.1" {
		t.Errorf("ByForwardedIP() fallback = %q", got)
	}

	byUser := ByHeader("X-User-Id")
	if got := byUser(req); got != "192.0.2.1" {
		t.Errorf("ByHeader fallback = %q", got)
	}
	req.Header.Set("X-User-Id", "user-7")
	if got := byUser(req); got != "user-7" {
		t.Errorf("ByHeader() = %q", got)
	}
}

func TestRotatingForwardedForSharesBudget(t *testing.T) {
	h := Middleware(&Config{
		Prefix:     "api:spoof",
		Limit:      2,
		Window:     time.Minute,
		KeyFunc:    ByIP,
		Controller: newController(t),
	})(ok)

	codes := make([]int, 0, 3)
	for _, hop := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodPost, "/v1/admission/check", nil)
		req.RemoteAddr = "192.0.2.50:40000"
		req.Header.Set("X-Forwarded-For", hop)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("first two calls should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("rotated X-Forwarded-For escaped the limit, got %v", codes)
	}
}

func TestMatchPath(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"/a", "/a", true},
		{"/a/b", "/a/*", true},
		{"/ab", "/a/*", false},
		{"/b", "/a", false},
	}
	for _, tt := range tests {
		if got := matchPath(tt.path, tt.pattern); got != tt.want {
			t.Errorf("matchPath(%q, %q) = %v", tt.path, tt.pattern, got)
		}
	}
}

func TestPerRouteMostSpecificWins(t *testing.T) {
	c := newController(t)
	h := PerRoute(map[string]*Config{
		"/v1/*":             {Prefix: "api:v1", Limit: 100, Window: time.Minute, Controller: c},
		"/v1/credentials/*": {Prefix: "api:credentials", Limit: 1, Window: time.Minute, Controller: c},
	})(ok)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/credentials/seal", nil))
		if rec.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rec.Code)
		}
		if got := rec.Header().Get("X-Ratelimit-Limit"); got != "1" {
			t.Errorf("request %d: limit header = %q, want the credentials rule", i, got)
		}
	}
}
