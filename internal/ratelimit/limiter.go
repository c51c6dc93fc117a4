package ratelimit

import (
	"context"
	"time"

	"travelsec/internal/storage"
	"travelsec/internal/storage/memory"
	redisstore "travelsec/internal/storage/redis"
)

// Backend names used in logs and metrics.
const (
	BackendRedis = "redis"
	BackendLocal = "local"
)

// Limiter is one admission backend.
type Limiter interface {
	// Check records a hit and reports whether it is admitted.
	Check(ctx context.Context, opts Options) (Result, error)
	// Reset clears the counters for opts.
	Reset(ctx context.Context, opts Options) error
	// Name identifies the backend.
	Name() string
}

// LocalLimiter is a per-process fixed-window limiter. Two bursts around a
// window edge can admit up to twice the limit.
type LocalLimiter struct {
	store *memory.Store
}

// NewLocalLimiter creates a local limiter. A nil config uses
// storage.DefaultConfig.
func NewLocalLimiter(cfg *storage.LimiterStoreConfig) *LocalLimiter {
	return &LocalLimiter{store: memory.NewStore(cfg)}
}

// Check implements Limiter
func (l *LocalLimiter) Check(ctx context.Context, opts Options) (Result, error) {
	opts = opts.normalize()
	allowed, remaining, resetAt, err := l.store.Allow(ctx, opts.Key(), opts.Limit, opts.Window)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: allowed, Limit: opts.Limit, Remaining: remaining, Reset: resetAt}, nil
}

// Reset implements Limiter
func (l *LocalLimiter) Reset(ctx context.Context, opts Options) error {
	return l.store.Reset(ctx, opts.Key(), opts.Window)
}

// Name implements Limiter
func (l *LocalLimiter) Name() string { return BackendLocal }

// Close stops the local store
func (l *LocalLimiter) Close() error { return l.store.Close() }

// DistributedLimiter shares its sliding window across instances via Redis.
type DistributedLimiter struct {
	store *redisstore.Store
}

// NewDistributedLimiter creates a Redis-backed limiter. A nil config uses
// storage.DefaultConfig.
func NewDistributedLimiter(client redisstore.Client, cfg *storage.LimiterStoreConfig) *DistributedLimiter {
	return &DistributedLimiter{store: redisstore.NewStore(client, cfg)}
}

// Check implements Limiter. The window is rounded up to whole seconds.
func (l *DistributedLimiter) Check(ctx context.Context, opts Options) (Result, error) {
	opts = opts.normalize()
	window := roundUpSeconds(opts.Window)
	allowed, remaining, resetAt, err := l.store.Allow(ctx, opts.Key(), opts.Limit, window)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: allowed, Limit: opts.Limit, Remaining: remaining, Reset: resetAt}, nil
}

// Reset implements Limiter
func (l *DistributedLimiter) Reset(ctx context.Context, opts Options) error {
	opts = opts.normalize()
	return l.store.Reset(ctx, opts.Key(), roundUpSeconds(opts.Window))
}

// Name implements Limiter
func (l *DistributedLimiter) Name() string { return BackendRedis }

func roundUpSeconds(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	if rem := d % time.Second; rem != 0 {
		d += time.Second - rem
	}
	return d
}

var (
	_ Limiter = (*LocalLimiter)(nil)
	_ Limiter = (*DistributedLimiter)(nil)
)
