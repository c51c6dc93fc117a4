package redis

import (
	"context"
	"fmt"
	"time"
)

// NonceStore implements storage.NonceStore with SET NX EX.
type NonceStore struct {
	client Client
}

// NewNonceStore creates a Redis nonce store
func NewNonceStore(client Client) *NonceStore {
	return &NonceStore{client: client}
}

// Claim implements storage.NonceStore
func (s *NonceStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, "1", ttl)
	if err != nil {
		return false, fmt.Errorf("failed to claim nonce: %w", err)
	}
	return ok, nil
}

// Close is a no-op; the client is owned by the caller.
func (s *NonceStore) Close() error {
	return nil
}
