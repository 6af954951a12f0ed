package openai

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig sets the token bucket for outgoing requests.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimit stays under the lowest OpenAI tier for embeddings.
var DefaultRateLimit = RateLimitConfig{RequestsPerSecond: 5, BurstSize: 10}

// defaultBackoff applies when a 429 carries no usable Retry-After.
const defaultBackoff = 20 * time.Second

// RateLimiter is a token bucket that can be paused after a 429.
type RateLimiter struct {
	bucket *rate.Limiter

	mu        sync.Mutex
	pausedTil time.Time
}

// NewRateLimiter creates a rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg = DefaultRateLimit
	}
	return &RateLimiter{
		bucket: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.BurstSize, 1)),
	}
}

func (r *RateLimiter) pause() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Until(r.pausedTil)
}

// Wait blocks until a request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if d := r.pause(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return r.bucket.Wait(ctx)
}

// Backoff pauses every request for d, or defaultBackoff when d is not
// positive, and returns the pause applied.
func (r *RateLimiter) Backoff(d time.Duration) time.Duration {
	if d <= 0 {
		d = defaultBackoff
	}
	r.mu.Lock()
	r.pausedTil = time.Now().Add(d)
	r.mu.Unlock()
	return d
}

// Allow reports whether a request could be sent right now.
func (r *RateLimiter) Allow() bool {
	return r.pause() <= 0 && r.bucket.Allow()
}
