package dispatch

import (
	"context"
	"errors"
)

// ErrClosed is returned by Dispatch once a dispatcher has been closed.
var ErrClosed = errors.New("dispatch: dispatcher is closed")

// Dispatcher accepts units of work for execution.
//
// Dispatch must not block on the work itself and must not recover panics
// raised by fn. Implementations are compared by identity, so they should be
// pointer types.
type Dispatcher interface {
	Name() string
	Dispatch(fn func()) error
}

type frameKey struct{}

// frame links the dispatchers a logical flow is currently holding, innermost
// first. A flow that switched from Main to IO holds both.
type frame struct {
	d      Dispatcher
	parent *frame
}

// WithCurrent returns a copy of ctx marking d as the dispatcher the flow runs on.
func WithCurrent(ctx context.Context, d Dispatcher) context.Context {
	parent, _ := ctx.Value(frameKey{}).(*frame)
	return context.WithValue(ctx, frameKey{}, &frame{d: d, parent: parent})
}

// Current returns the innermost dispatcher recorded on ctx, or nil.
func Current(ctx context.Context) Dispatcher {
	if f, ok := ctx.Value(frameKey{}).(*frame); ok {
		return f.d
	}
	return nil
}

// Holds reports whether d is held anywhere along the flow carried by ctx.
// Work for a held dispatcher can run in place: the holder is suspended
// waiting on this flow, so nothing else runs on d meanwhile.
func Holds(ctx context.Context, d Dispatcher) bool {
	if d == nil {
		return false
	}
	f, _ := ctx.Value(frameKey{}).(*frame)
	for ; f != nil; f = f.parent {
		if f.d == d {
			return true
		}
	}
	return false
}

// NameOf returns the name of the innermost dispatcher on ctx, or "none".
func NameOf(ctx context.Context) string {
	if d := Current(ctx); d != nil {
		return d.Name()
	}
	return "none"
}
