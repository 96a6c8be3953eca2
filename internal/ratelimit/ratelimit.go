// Package ratelimit provides token-bucket limiters keyed by guild or user id.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Keyed lazily creates one rate.Limiter per key. Limiters are never evicted;
// cardinality is bounded by keys seen during process lifetime.
type Keyed[K comparable] struct {
	mu       sync.Mutex
	limiters map[K]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewKeyed[K comparable](limit rate.Limit, burst int) *Keyed[K] {
	return &Keyed[K]{
		limiters: make(map[K]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether the key may proceed, consuming one token if so.
func (k *Keyed[K]) Allow(key K) bool {
	return k.limiter(key).Allow()
}

func (k *Keyed[K]) limiter(key K) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	limiter, ok := k.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(k.limit, k.burst)
		k.limiters[key] = limiter
	}
	return limiter
}

// PerMinute converts an events-per-minute budget to a rate.Limit.
func PerMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60)
}
