package memory

import (
	"context"
	"sync"
	"time"

	"travelsec/internal/storage"
)

// NonceStore implements storage.NonceStore in process memory. It is
// per-instance only; a replay against another instance is not detected.
type NonceStore struct {
	mu        sync.Mutex
	expiries  map[string]time.Time
	threshold int
	clock     storage.Clock
}

// NewNonceStore creates an in-memory nonce store. A threshold <= 0 uses
// storage.DefaultNonceSweepThreshold.
func NewNonceStore(threshold int, clock storage.Clock) *NonceStore {
	if threshold <= 0 {
		threshold = storage.DefaultNonceSweepThreshold
	}
	if clock == nil {
		clock = storage.SystemClock{}
	}
	return &NonceStore{
		expiries:  make(map[string]time.Time),
		threshold: threshold,
		clock:     clock,
	}
}

// Claim implements storage.NonceStore
func (s *NonceStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.expiries) >= s.threshold {
		for k, exp := range s.expiries {
			if !now.Before(exp) {
				delete(s.expiries, k)
			}
		}
	}

	if exp, ok := s.expiries[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.expiries[key] = now.Add(ttl)
	return true, nil
}

// Len returns the number of tracked nonces
func (s *NonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiries)
}

// Close implements storage.NonceStore
func (s *NonceStore) Close() error {
	return nil
}
