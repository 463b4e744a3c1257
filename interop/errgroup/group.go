// Package errgroup offers golang.org/x/sync/errgroup semantics on top of a
// fail-fast scope, so code written against errgroup can move to launched
// tasks without restructuring.
package errgroup

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/NetPo4ki/go-launch/scope"
)

// Group runs functions on the scope's IO dispatcher. The first error
// cancels the group's context and is returned by Wait.
type Group struct {
	s       *scope.Scope
	sem     *semaphore.Weighted
	onError scope.ErrorHandler
}

// WithContext creates a Group bound to ctx. opts configure the underlying
// scope (dispatchers, limits, observer).
func WithContext(ctx context.Context, opts ...scope.Option) (*Group, context.Context) {
	s := scope.New(ctx, scope.FailFast, opts...)
	return &Group{s: s}, s.Context()
}

// Scope exposes the underlying scope, e.g. for WithIO/WithMain switches.
func (g *Group) Scope() *scope.Scope { return g.s }

// OnError installs a handler receiving every failure on the scope's Main
// dispatcher. Wait still reports only the first.
func (g *Group) OnError(h scope.ErrorHandler) { g.onError = h }

// SetLimit bounds the number of active functions to n; Go blocks while the
// group is full. A negative n removes the limit. Like errgroup, it must not
// be called while functions are active.
func (g *Group) SetLimit(n int) {
	if n < 0 {
		g.sem = nil
		return
	}
	g.sem = semaphore.NewWeighted(int64(n))
}

// Go starts f. A non-nil error fails the group. Once the group is cancelled
// Go no longer blocks on the limit and f is skipped.
func (g *Group) Go(f func() error) {
	if f == nil {
		return
	}
	if g.sem != nil {
		if g.sem.Acquire(g.s.Context(), 1) != nil {
			return
		}
	}
	g.launch(f, g.sem)
}

// TryGo starts f only if the group is below its limit and reports whether
// it did.
func (g *Group) TryGo(f func() error) bool {
	if g.sem != nil && !g.sem.TryAcquire(1) {
		return false
	}
	if f == nil {
		if g.sem != nil {
			g.sem.Release(1)
		}
		return true
	}
	g.launch(f, g.sem)
	return true
}

func (g *Group) launch(f func() error, sem *semaphore.Weighted) {
	if sem == nil {
		g.s.LaunchIO(func(context.Context) error { return f() }, g.onError)
		return
	}
	// A function skipped because the group was cancelled while it was
	// queued never runs its body, so cancellation gives its slot back.
	var claimed atomic.Bool
	stop := context.AfterFunc(g.s.Context(), func() {
		if claimed.CompareAndSwap(false, true) {
			sem.Release(1)
		}
	})
	g.s.LaunchIO(func(ctx context.Context) error {
		if !claimed.CompareAndSwap(false, true) {
			return ctx.Err()
		}
		stop()
		defer sem.Release(1)
		return f()
	}, g.onError)
}

// Wait blocks until all functions have returned and reports the first
// error, or the parent's cancellation cause.
func (g *Group) Wait() error {
	return g.s.Wait()
}
