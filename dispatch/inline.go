package dispatch

import "sync/atomic"

// Inline runs work synchronously on the dispatching goroutine. It gives
// tests a deterministic context; a launch onto it blocks the caller.
type Inline struct {
	name   string
	closed atomic.Bool
}

func NewInline(name string) *Inline { return &Inline{name: name} }

func (i *Inline) Name() string { return i.name }

func (i *Inline) Dispatch(fn func()) error {
	if i.closed.Load() {
		return ErrClosed
	}
	if fn != nil {
		fn()
	}
	return nil
}

func (i *Inline) Close() { i.closed.Store(true) }
