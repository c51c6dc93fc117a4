package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"travelsec/internal/storage"
)

// Client defines the interface for Redis operations
type Client interface {
	// Eval executes a Lua script
	Eval(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error)
	// SetNX sets key only if it does not exist
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	// Del deletes keys
	Del(ctx context.Context, keys ...string) error
	// Ping checks connectivity
	Ping(ctx context.Context) error
	// Close closes the connection
	Close() error
}

// slidingWindowScript approximates a sliding window with two fixed buckets.
// The previous bucket is weighted by the share of it still inside the
// window. Time comes from the Redis server so every instance agrees, and a
// denied hit does not increment. Bucket keys are derived from KEYS[1],
// which carries a hash tag so both buckets land in the same cluster slot.
//
// Returns {allowed, remaining, resetAtMillis}.
var slidingWindowScript = redis.NewScript(`
redis.replicate_commands()

local base   = KEYS[1]
local limit  = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local t   = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

local bucket      = math.floor(now / window)
local currentKey  = base .. ':' .. bucket
local previousKey = base .. ':' .. (bucket - 1)
local resetAt     = (bucket + 1) * window

local current  = tonumber(redis.call('GET', currentKey) or '0')
local previous = tonumber(redis.call('GET', previousKey) or '0')

local elapsed  = (now % window) / window
local weighted = math.floor((1 - elapsed) * previous)

if weighted + current >= limit then
  return {0, 0, resetAt}
end

local count = redis.call('INCR', currentKey)
if count == 1 then
  redis.call('PEXPIRE', currentKey, window * 2 + 1000)
end

local remaining = limit - (count + weighted)
if remaining < 0 then
  remaining = 0
end
return {1, remaining, resetAt}
`)

// Store implements LimiterStore using Redis
type Store struct {
	client Client
	config *storage.LimiterStoreConfig
	script *redis.Script
}

// NewStore creates a new Redis store
func NewStore(client Client, config *storage.LimiterStoreConfig) *Store {
	if config == nil {
		config = storage.DefaultConfig()
	}

	return &Store{
		client: client,
		config: config,
		script: slidingWindowScript,
	}
}

// Key returns the Redis key for a limiter key. The braces form a cluster
// hash tag shared by both window buckets.
func Key(key string) string {
	return fmt.Sprintf("ratelimit:{%s}", key)
}

// Allow checks if a request is allowed
func (s *Store) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time, error) {
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	result, err := s.client.Eval(ctx, s.script, []string{Key(key)}, limit, windowMs)
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to execute rate limit script: %w", err)
	}

	// Parse result
	res, ok := result.([]interface{})
	if !ok || len(res) != 3 {
		return false, 0, time.Time{}, errors.New("invalid rate limit script result")
	}

	allowed, ok1 := res[0].(int64)
	remaining, ok2 := res[1].(int64)
	resetMs, ok3 := res[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return false, 0, time.Time{}, errors.New("invalid rate limit script result types")
	}

	return allowed == 1, int(remaining), time.UnixMilli(resetMs), nil
}

// Reset deletes the current and previous buckets for key. Buckets are
// located with the store's clock rather than Redis time.
func (s *Store) Reset(ctx context.Context, key string, window time.Duration) error {
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}
	bucket := s.config.ClockOrSystem().Now().UnixMilli() / windowMs
	base := Key(key)
	return s.client.Del(ctx,
		fmt.Sprintf("%s:%d", base, bucket),
		fmt.Sprintf("%s:%d", base, bucket-1),
	)
}

// Close closes the store
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
