package memory

import (
	"context"
	"sync"
	"time"

	"travelsec/internal/storage"
)

// window is a fixed rate limit window
type window struct {
	count   int
	resetAt time.Time
}

// Store implements LimiterStore with an in-process fixed-window map
type Store struct {
	entries map[string]*window
	mu      sync.Mutex
	config  *storage.LimiterStoreConfig
	clock   storage.Clock
	done    chan struct{}
	once    sync.Once
}

// NewStore creates a new memory store
func NewStore(config *storage.LimiterStoreConfig) *Store {
	if config == nil {
		config = storage.DefaultConfig()
	}

	s := &Store{
		entries: make(map[string]*window),
		config:  config,
		clock:   config.ClockOrSystem(),
		done:    make(chan struct{}),
	}

	// Start cleanup routine
	if config.CleanupInterval > 0 {
		go s.cleanup()
	}

	return s
}

// Allow records a hit for key. A new or expired window starts at count 1;
// otherwise the count is incremented, even once the limit is exceeded.
func (s *Store) Allow(ctx context.Context, key string, limit int, win time.Duration) (bool, int, time.Time, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.entries[key]
	if !exists || !now.Before(w.resetAt) {
		if !exists && s.config.MaxEntries > 0 && len(s.entries) >= s.config.MaxEntries {
			s.evictExpiredLocked(now)
		}
		w = &window{count: 1, resetAt: now.Add(win)}
		s.entries[key] = w
	} else {
		w.count++
	}

	return w.count <= limit, max(0, limit-w.count), w.resetAt, nil
}

// Reset resets the counter for a key
func (s *Store) Reset(ctx context.Context, key string, _ time.Duration) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of tracked windows
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the cleanup routine
func (s *Store) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// cleanup periodically removes expired entries
func (s *Store) cleanup() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.evictExpiredLocked(s.clock.Now())
			s.mu.Unlock()
		}
	}
}

func (s *Store) evictExpiredLocked(now time.Time) {
	for key, w := range s.entries {
		if !now.Before(w.resetAt) {
			delete(s.entries, key)
		}
	}
}
