package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestRetryAfter(t *testing.T) {
	now := epoch
	tests := []struct {
		name  string
		reset time.Time
		want  int
	}{
		{"rounds up", now.Add(1500 * time.Millisecond), 2},
		{"exact second", now.Add(time.Second), 1},
		{"sub second", now.Add(10 * time.Millisecond), 1},
		{"already reset", now, 1},
		{"in the past", now.Add(-time.Minute), 1},
		{"long window", now.Add(24 * time.Hour), 86400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RetryAfter(tt.reset, now); got != tt.want {
				t.Errorf("RetryAfter() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteHeaders(t *testing.T) {
	h := http.Header{}
	reset := time.UnixMilli(1772366460000)
	WriteHeaders(h, Result{Success: false, Limit: 5, Remaining: 0, Reset: reset})
	WriteRetryAfter(h, reset, reset.Add(-30*time.Second))

	want := map[string]string{
		"x-ratelimit-limit":     "5",
		"x-ratelimit-remaining": "0",
		"x-ratelimit-reset":     "1772366460000",
		"retry-after":           "30",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestWriteQuotaHeaders(t *testing.T) {
	h := http.Header{}
	WriteQuotaHeaders(h, QuotaDecision{
		Burst: Result{Limit: 2, Remaining: 1, Reset: time.UnixMilli(1000)},
		Daily: Result{Limit: 20, Remaining: 19, Reset: time.UnixMilli(2000)},
	})

	if h.Get("x-ratelimit-limit") != "20" || h.Get("x-ratelimit-reset") != "2000" {
		t.Errorf("daily window should be primary: %v", h)
	}
	if h.Get("x-ratelimit-burst-limit") != "2" || h.Get("x-ratelimit-burst-remaining") != "1" || h.Get("x-ratelimit-burst-reset") != "1000" {
		t.Errorf("unexpected burst headers: %v", h)
	}
}
