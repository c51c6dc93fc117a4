package storage

import (
	"context"
	"time"
)

// LimiterStore defines the interface for rate limiter storage.
// Keys are opaque; callers compose them from a prefix and an identifier.
type LimiterStore interface {
	// Allow records one hit for key and reports whether it fits in limit
	// for the current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, resetAt time.Time, err error)

	// Reset clears the counters for the given key
	Reset(ctx context.Context, key string, window time.Duration) error

	// Close closes the store and releases resources
	Close() error
}

// NonceStore records single-use markers such as replay fingerprints.
type NonceStore interface {
	// Claim marks key as used for ttl. It returns false when the key was
	// already claimed and has not expired.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// LimiterStoreConfig defines common configuration for limiter stores
type LimiterStoreConfig struct {
	// CleanupInterval is how often to sweep expired entries in the
	// background (0 disables the sweeper)
	CleanupInterval time.Duration
	// MaxEntries is the map size at which expired entries are evicted
	// before a new key is inserted (0 = never)
	MaxEntries int
	// Clock overrides the time source
	Clock Clock
}

const (
	// DefaultSweepThreshold is the counter map size that triggers eviction.
	DefaultSweepThreshold = 5000
	// DefaultNonceSweepThreshold is the nonce map size that triggers eviction.
	DefaultNonceSweepThreshold = 4096
)

// DefaultConfig returns default configuration
func DefaultConfig() *LimiterStoreConfig {
	return &LimiterStoreConfig{
		CleanupInterval: 0,
		MaxEntries:      DefaultSweepThreshold,
		Clock:           SystemClock{},
	}
}

// ClockOrSystem returns the configured clock or the system clock.
func (c *LimiterStoreConfig) ClockOrSystem() Clock {
	if c == nil || c.Clock == nil {
		return SystemClock{}
	}
	return c.Clock
}
