package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// Response headers. Reset is epoch milliseconds; retry-after is seconds.
const (
	HeaderLimit      = "X-Ratelimit-Limit"
	HeaderRemaining  = "X-Ratelimit-Remaining"
	HeaderReset      = "X-Ratelimit-Reset"
	HeaderRetryAfter = "Retry-After"

	HeaderBurstLimit     = "X-Ratelimit-Burst-Limit"
	HeaderBurstRemaining = "X-Ratelimit-Burst-Remaining"
	HeaderBurstReset     = "X-Ratelimit-Burst-Reset"
)

// WriteHeaders sets the limit, remaining and reset headers for r.
func WriteHeaders(h http.Header, r Result) {
	h.Set(HeaderLimit, strconv.Itoa(r.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(r.Remaining))
	h.Set(HeaderReset, strconv.FormatInt(r.Reset.UnixMilli(), 10))
}

// WriteBurstHeaders sets the secondary burst-window headers.
func WriteBurstHeaders(h http.Header, r Result) {
	h.Set(HeaderBurstLimit, strconv.Itoa(r.Limit))
	h.Set(HeaderBurstRemaining, strconv.Itoa(r.Remaining))
	h.Set(HeaderBurstReset, strconv.FormatInt(r.Reset.UnixMilli(), 10))
}

// RetryAfter returns max(1, ceil((reset-now)/1s)).
func RetryAfter(reset, now time.Time) int {
	secs := int(math.Ceil(float64(reset.Sub(now).Milliseconds()) / 1000))
	if secs < 1 {
		return 1
	}
	return secs
}

// WriteRetryAfter sets the retry-after header.
func WriteRetryAfter(h http.Header, reset, now time.Time) {
	h.Set(HeaderRetryAfter, strconv.Itoa(RetryAfter(reset, now)))
}
