package scope

import (
	"context"
	"sync/atomic"

	"github.com/NetPo4ki/go-launch/dispatch"
)

// WithContext runs block on d and waits for it, returning its result on the
// calling goroutine. Errors are returned unchanged and a panic in block is
// re-raised here; nothing is routed to an error handler.
//
// If the flow already holds d the block runs in place. If ctx is done
// before the block starts it is skipped and ctx's error returned at once,
// without waiting for d to reach it; once it has started, WithContext waits
// for it to return.
//
// A block running on a Serial that waits for other work queued on that same
// Serial never finishes.
//
//launchlint:ignore raw-dispatch
func WithContext[T any](ctx context.Context, d dispatch.Dispatcher, block func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if block == nil {
		return zero, nil
	}
	if d == nil || dispatch.Holds(ctx, d) {
		return block(ctx)
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type outcome struct {
		val      T
		err      error
		panicked bool
		rec      any
	}
	done := make(chan outcome, 1)
	// set by whichever side gets there first: the block starting, or the
	// caller abandoning it after ctx is done
	var claimed atomic.Bool
	bctx := dispatch.WithCurrent(ctx, d)
	err := d.Dispatch(func() {
		if !claimed.CompareAndSwap(false, true) {
			return
		}
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out.panicked, out.rec = true, r
			}
			done <- out
		}()
		if err := bctx.Err(); err != nil {
			out.err = err
			return
		}
		out.val, out.err = block(bctx)
	})
	if err != nil {
		return zero, rejected(d.Name(), err)
	}
	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		if claimed.CompareAndSwap(false, true) {
			return zero, ctx.Err()
		}
		out = <-done
	}
	if out.panicked {
		panic(out.rec)
	}
	return out.val, out.err
}

// WithIO runs block on the scope's IO dispatcher.
func WithIO[T any](ctx context.Context, s *Scope, block func(ctx context.Context) (T, error)) (T, error) {
	return WithContext(ctx, s.io, block)
}

// WithMain runs block on the scope's Main dispatcher.
func WithMain[T any](ctx context.Context, s *Scope, block func(ctx context.Context) (T, error)) (T, error) {
	return WithContext(ctx, s.main, block)
}
