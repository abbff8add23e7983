package embeddings

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a simple token-bucket limiter guarding outbound requests
// to an embeddings provider.
type RateLimiter struct {
	mu            sync.Mutex
	tokens        float64
	maxTokens     float64
	refillRate    float64 // tokens per second
	lastRefill    time.Time
	requestTokens float64
}

// NewRateLimiter builds a limiter allowing maxTokens burst, refilled at
// refillRate tokens/sec, where each request costs requestTokens.
func NewRateLimiter(maxTokens, refillRate, requestTokens float64) *RateLimiter {
	return &RateLimiter{
		tokens:        maxTokens,
		maxTokens:     maxTokens,
		refillRate:    refillRate,
		lastRefill:    time.Now(),
		requestTokens: requestTokens,
	}
}

func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.tokens += elapsed * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefill = now
}

// TryAcquire attempts to take one request's worth of tokens without
// blocking, reporting whether it succeeded.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	if r.tokens >= r.requestTokens {
		r.tokens -= r.requestTokens
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if r.TryAcquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
