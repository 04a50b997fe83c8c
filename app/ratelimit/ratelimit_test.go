package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/relayq/relayq/app/cache"
)

func TestLimiterCeiling(t *testing.T) {
	t.Parallel()

	l := New(cache.NewMemory(), 3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ok, err := l.Allow(ctx, "providerA")
		if err != nil {
			t.Fatalf("Allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("expected call %d within the ceiling to pass", i)
		}
	}

	ok, err := l.Allow(ctx, "providerA")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatal("expected the call above the ceiling to be rejected")
	}
}

func TestLimiterIndependentProviders(t *testing.T) {
	t.Parallel()

	l := New(cache.NewMemory(), 1, time.Minute)
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, "providerA"); !ok {
		t.Fatal("expected providerA first call to pass")
	}
	if ok, _ := l.Allow(ctx, "providerA"); ok {
		t.Fatal("expected providerA second call to be rejected")
	}
	if ok, _ := l.Allow(ctx, "providerB"); !ok {
		t.Fatal("expected providerB to have its own window")
	}
}

func TestLimiterWindowResets(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := New(cache.NewRedis(client), 2, time.Second)
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, "providerA"); !ok {
		t.Fatal("expected first call to pass")
	}
	if ok, _ := l.Allow(ctx, "providerA"); !ok {
		t.Fatal("expected second call to pass")
	}
	if ok, _ := l.Allow(ctx, "providerA"); ok {
		t.Fatal("expected third call to be rejected")
	}

	mr.FastForward(2 * time.Second)

	if ok, _ := l.Allow(ctx, "providerA"); !ok {
		t.Fatal("expected a fresh window after expiry")
	}
}
