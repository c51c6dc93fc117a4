// Package ratelimit implements the admission controller: a sliding-window
// limiter backed by Redis with an in-process fixed-window fallback.
package ratelimit

import (
	"time"
)

// DefaultWindow is used when Options.Window is not positive.
const DefaultWindow = time.Minute

// Options describes one admission check. Prefix names the limit
// (for example "api:login") and Identifier the subject within it.
type Options struct {
	Identifier string
	Limit      int
	Window     time.Duration
	Prefix     string
}

// Key returns the composite key "prefix:identifier".
func (o Options) Key() string {
	return o.Prefix + ":" + o.Identifier
}

// normalize clamps Limit to at least 1 and defaults Window.
func (o Options) normalize() Options {
	if o.Limit < 1 {
		o.Limit = 1
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	return o
}

// Result is the outcome of an admission check.
type Result struct {
	Success   bool
	Limit     int
	Remaining int
	Reset     time.Time
}
