package ratelimit

import (
	"log/slog"
	"time"

	"travelsec/internal/ratelimit"
)

// Config defines rate limit configuration for one route or group
type Config struct {
	// Prefix names the limit, e.g. "api:credentials"
	Prefix string
	// Limit is the number of requests admitted per window
	Limit int
	// Window is the window length
	Window time.Duration
	// KeyFunc extracts the rate limit identifier from the request
	KeyFunc KeyFunc
	// Logger for logging
	Logger *slog.Logger
	// Controller performs the admission checks
	Controller *ratelimit.Controller
}
