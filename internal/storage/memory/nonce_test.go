package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"travelsec/internal/storage"
)

func TestNonceStore_Claim(t *testing.T) {
	ctx := context.Background()
	clock := storage.NewFixedClock(epoch)
	store := NewNonceStore(0, clock)

	ok, err := store.Claim(ctx, "cron-replay:bearer:/api/cron/x:n1", 10*time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first claim to succeed, got ok=%v err=%v", ok, err)
	}
	if ok, _ := store.Claim(ctx, "cron-replay:bearer:/api/cron/x:n1", 10*time.Minute); ok {
		t.Fatal("expected replay to be rejected")
	}

	clock.Advance(10 * time.Minute)
	if ok, _ := store.Claim(ctx, "cron-replay:bearer:/api/cron/x:n1", 10*time.Minute); !ok {
		t.Fatal("expected claim to succeed after expiry")
	}
}

func TestNonceStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := storage.NewFixedClock(epoch)
	store := NewNonceStore(3, clock)

	for i := 0; i < 3; i++ {
		store.Claim(ctx, fmt.Sprintf("n-%d", i), time.Second)
	}
	clock.Advance(time.Minute)
	store.Claim(ctx, "fresh", time.Second)

	if got := store.Len(); got != 1 {
		t.Fatalf("expected expired nonces swept, have %d", got)
	}
}
