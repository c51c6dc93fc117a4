package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"travelsec/internal/storage"
)

// epoch is aligned to a minute so fixed and sliding windows share edges.
var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeRedis emulates the sliding window script against a fixed clock.
type fakeRedis struct {
	mu     sync.Mutex
	clock  storage.Clock
	counts map[string]int64
	err    error
	block  bool
	calls  int
}

func newFakeRedis(clock storage.Clock) *fakeRedis {
	return &fakeRedis{clock: clock, counts: make(map[string]int64)}
}

func (f *fakeRedis) Eval(ctx context.Context, _ *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	f.calls++
	block, err := f.block, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	limit := int64(args[0].(int))
	window := args[1].(int64)
	now := f.clock.Now().UnixMilli()
	bucket := now / window
	currentKey := fmt.Sprintf("%s:%d", keys[0], bucket)
	previousKey := fmt.Sprintf("%s:%d", keys[0], bucket-1)
	reset := (bucket + 1) * window

	current := f.counts[currentKey]
	elapsed := float64(now%window) / float64(window)
	weighted := int64(math.Floor((1 - elapsed) * float64(f.counts[previousKey])))

	if weighted+current >= limit {
		return []interface{}{int64(0), int64(0), reset}, nil
	}
	current++
	f.counts[currentKey] = current
	return []interface{}{int64(1), max(0, limit-(current+weighted)), reset}, nil
}

func (f *fakeRedis) SetNX(context.Context, string, interface{}, time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.counts, k)
	}
	return nil
}

func (f *fakeRedis) Ping(context.Context) error { return f.err }

func (f *fakeRedis) Close() error { return nil }

func (f *fakeRedis) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeRedis) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
