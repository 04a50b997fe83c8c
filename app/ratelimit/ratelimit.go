package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/relayq/relayq/app/cache"
)

// Limiter is a fixed-window counter per provider, built on the cache's
// atomic increment. Backed by Redis it shares one accurate window across
// process instances.
type Limiter struct {
	cache       cache.Cache
	maxRequests int64
	window      time.Duration
}

// New constructs a limiter with the given ceiling and window length.
func New(c cache.Cache, maxRequests int, window time.Duration) *Limiter {
	return &Limiter{cache: c, maxRequests: int64(maxRequests), window: window}
}

// Allow counts one request against the provider's window and reports
// whether it is within the ceiling. The first increment of a window
// attaches the window's expiry.
func (l *Limiter) Allow(ctx context.Context, providerName string) (bool, error) {
	key := fmt.Sprintf("rate_limit:%s", providerName)

	count, err := l.cache.Increment(ctx, key)
	if err != nil {
		return false, fmt.Errorf("increment %s: %w", key, err)
	}
	if count == 1 {
		if err := l.cache.Expire(ctx, key, l.window); err != nil {
			return false, fmt.Errorf("expire %s: %w", key, err)
		}
	}

	return count <= l.maxRequests, nil
}
