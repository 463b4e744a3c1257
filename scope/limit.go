package scope

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Limiter bounds concurrent tasks within a scope.
type Limiter interface {
	Acquire(ctx context.Context) error
	Release()
}

type semLimiter struct {
	sem *semaphore.Weighted
}

func newSemaphoreLimiter(n int) Limiter {
	if n <= 0 {
		return nil
	}
	return &semLimiter{sem: semaphore.NewWeighted(int64(n))}
}

// NewLimiter returns a limiter admitting n holders at once, suitable for
// sharing between scopes with WithLimiter.
func NewLimiter(n int) Limiter { return newSemaphoreLimiter(n) }

func (l *semLimiter) Acquire(ctx context.Context) error { return l.sem.Acquire(ctx, 1) }

func (l *semLimiter) Release() { l.sem.Release(1) }

type rateLimiter struct {
	lim *rate.Limiter
}

// NewRateLimiter returns a limiter that throttles task starts to r per
// second with the given burst. It does not bound how many tasks run at once;
// Release is a no-op.
func NewRateLimiter(r rate.Limit, burst int) Limiter {
	return &rateLimiter{lim: rate.NewLimiter(r, burst)}
}

func (l *rateLimiter) Acquire(ctx context.Context) error { return l.lim.Wait(ctx) }

func (*rateLimiter) Release() {}
