package health

import (
	"context"
	"fmt"
)

// Pinger is satisfied by the Redis client adapter
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisCheck pings the distributed limiter backend
func RedisCheck(p Pinger) Check {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		return nil
	}
}

// SelfTest adapts a context-free self test such as the cipher round trip
func SelfTest(name string, fn func() error) Check {
	return func(ctx context.Context) error {
		done := make(chan error, 1)
		go func() {
			done <- fn()
		}()

		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%s timeout: %w", name, ctx.Err())
		}
	}
}
