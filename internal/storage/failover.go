package storage

import (
	"context"
	"log/slog"
	"time"
)

// DefaultClaimTimeout bounds one primary claim before the fallback answers
const DefaultClaimTimeout = 250 * time.Millisecond

// FailoverNonceStore claims nonces in a primary store and falls back to a
// secondary store when the primary errors or exceeds its timeout.
type FailoverNonceStore struct {
	primary  NonceStore
	fallback NonceStore
	timeout  time.Duration
	logger   *slog.Logger
}

// NewFailoverNonceStore creates a failover store. A nil primary means
// every claim goes to the fallback. A non-positive timeout uses
// DefaultClaimTimeout.
func NewFailoverNonceStore(primary, fallback NonceStore, timeout time.Duration, logger *slog.Logger) *FailoverNonceStore {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultClaimTimeout
	}
	return &FailoverNonceStore{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger.With("component", "nonce-store"),
	}
}

// Claim implements NonceStore
func (s *FailoverNonceStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s.primary != nil {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		ok, err := s.primary.Claim(pctx, key, ttl)
		cancel()
		if err == nil {
			return ok, nil
		}
		s.logger.Warn("nonce store unavailable, falling back to in-memory",
			"key", key,
			"timeout", s.timeout,
			"error", err,
		)
	}
	return s.fallback.Claim(ctx, key, ttl)
}

// Close closes both stores
func (s *FailoverNonceStore) Close() error {
	var firstErr error
	if s.primary != nil {
		firstErr = s.primary.Close()
	}
	if err := s.fallback.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
