package dispatch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultIOParallelism bounds a Pool created with a non-positive size.
const DefaultIOParallelism = 64

// Pool runs work on up to size goroutines at once. Units dispatched beyond
// the bound wait for a slot; their relative order is unspecified.
type Pool struct {
	name string
	size int
	sem  *semaphore.Weighted

	mu     sync.Mutex
	closed bool
}

// NewPool returns a pool dispatcher bounded to size concurrent units.
func NewPool(name string, size int) *Pool {
	if size <= 0 {
		size = DefaultIOParallelism
	}
	return &Pool{name: name, size: size, sem: semaphore.NewWeighted(int64(size))}
}

func (p *Pool) Name() string { return p.name }

// Size returns the parallelism bound.
func (p *Pool) Size() int { return p.size }

//launchlint:ignore raw-go
func (p *Pool) Dispatch(fn func()) error {
	if fn == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	go func() {
		// Background never cancels, so Acquire only returns once a slot is free.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		fn()
	}()
	return nil
}

// Close rejects further work. Units already accepted still run.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}
