// Package ratelimit spaces consecutive API requests that share a key.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key. Each region worker paces its own
// page requests; workers for different regions never wait on each other.
// The bucket is re-armed by Done, so the interval runs from the end of one
// request to the start of the next.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
}

// New creates a Limiter that allows one request per interval per key.
// A non-positive interval disables pacing.
func New(interval time.Duration) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
	}
}

// Wait blocks until the next request for key may start, respecting ctx.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	l.mu.Lock()
	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.limit, 1)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(key, waited)
	}
	return nil
}

// Done starts the interval for key. The next Wait on key returns no earlier
// than one interval from now, however long the finished request took.
func (l *Limiter) Done(key string) {
	limiter := rate.NewLimiter(l.limit, 1)
	limiter.AllowN(time.Now(), 1)
	l.mu.Lock()
	l.limiters[key] = limiter
	l.mu.Unlock()
}

// Forget drops the bucket for key once a region is finished.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}
