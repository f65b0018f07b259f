package extract

import (
	"context"
	"sync"
	"time"
)

// RateLimiter serializes all extractor calls to at most one per interval,
// process-wide. Callers block in Acquire until their turn; grants are
// strictly FIFO by arrival, and no call is ever dropped or reordered.
type RateLimiter struct {
	mu        sync.Mutex
	interval  time.Duration
	lastGrant time.Time
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter with the given minimum interval
// between granted calls.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Acquire blocks until at least the configured interval has elapsed since
// the previous grant, then records a new grant and returns. It returns
// early only if ctx is canceled while waiting.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	// Holding the mutex across the wait is what makes grants FIFO:
	// sync.Mutex hands contended locks to waiters in order under its
	// starvation mode, and no later caller can observe lastGrant until
	// the current one has been granted.
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lastGrant.IsZero() {
		wait := l.interval - l.now().Sub(l.lastGrant)
		if wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	l.lastGrant = l.now()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
