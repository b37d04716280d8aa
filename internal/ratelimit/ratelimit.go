// Package ratelimit gates outbound provider calls with per-provider token
// buckets. Every external call acquires a token first, so a burst of jobs
// cannot push the service past a vendor's quota.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/echoscribe/echoscribe-api/internal/provider"
)

// Limiter holds one token bucket per provider name. Buckets are registered at
// startup from configuration; a provider without a bucket is not limited.
// All methods are safe for concurrent use.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
}

// New creates an empty Limiter.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
	}
}

// Register creates the bucket for a provider: capacity tokens, refilled at
// refillPerSecond tokens per second. The bucket starts full. Registering the
// same provider again replaces its bucket.
func (l *Limiter) Register(providerName string, capacity int, refillPerSecond float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[providerName] = rate.NewLimiter(rate.Limit(refillPerSecond), capacity)
}

// Allow consumes one token from the provider's bucket without blocking.
// When the bucket is empty it returns a RateLimitError whose RetryAfter
// estimates how long until a token is available, and consumes nothing.
func (l *Limiter) Allow(providerName string) error {
	lim := l.bucket(providerName)
	if lim == nil {
		return nil
	}

	res := lim.Reserve()
	if !res.OK() {
		return &provider.RateLimitError{Provider: providerName}
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return &provider.RateLimitError{Provider: providerName, RetryAfter: delay}
	}
	return nil
}

// Wait blocks until a token is available or the context is done. Callers on
// a latency budget generally prefer Allow and let their retry policy spend
// the waiting time.
func (l *Limiter) Wait(ctx context.Context, providerName string) error {
	lim := l.bucket(providerName)
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}

// Tokens returns the number of tokens currently available for the provider.
// Unregistered providers report -1.
func (l *Limiter) Tokens(providerName string) float64 {
	lim := l.bucket(providerName)
	if lim == nil {
		return -1
	}
	return lim.Tokens()
}

func (l *Limiter) bucket(providerName string) *rate.Limiter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.buckets[providerName]
}
