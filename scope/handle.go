package scope

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// State is the resolution of a launched task.
type State int32

const (
	Active State = iota
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Handle represents one launched task.
//
// A handle resolves when the task body returns. For a failed task the error
// handler runs later, as its own unit of work; Handled reports when it has
// finished.
type Handle struct {
	id     uuid.UUID
	cancel context.CancelCauseFunc

	state   atomic.Int32
	err     error
	done    chan struct{}
	handled chan struct{}
	once    sync.Once
}

func newHandle(cancel context.CancelCauseFunc) *Handle {
	return &Handle{
		id:      uuid.New(),
		cancel:  cancel,
		done:    make(chan struct{}),
		handled: make(chan struct{}),
	}
}

func (h *Handle) ID() uuid.UUID { return h.id }

// Done is closed once the task has resolved.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Handled is closed once no more handler work is pending for this task:
// immediately for tasks that did not fail, after the error handler returned
// (or was dropped) otherwise.
func (h *Handle) Handled() <-chan struct{} { return h.handled }

func (h *Handle) State() State { return State(h.state.Load()) }

// Err returns the failure of a Failed task, the cancellation cause of a
// Cancelled one, and nil while active or after success.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the task resolves and returns Err.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Join waits like Wait but gives up when ctx is done.
func (h *Handle) Join(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel requests cooperative cancellation of the task. A task that stops
// because of it resolves Cancelled and does not reach the error handler.
func (h *Handle) Cancel() { h.cancel(context.Canceled) }

func (h *Handle) resolve(state State, err error) {
	h.err = err
	h.state.Store(int32(state))
	close(h.done)
	if state != Failed {
		h.markHandled()
	}
}

func (h *Handle) markHandled() { h.once.Do(func() { close(h.handled) }) }

type taskIDKey struct{}

func withTaskID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, taskIDKey{}, id)
}

// TaskID returns the ID of the task whose context (or handler context) ctx is.
func TaskID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(taskIDKey{}).(uuid.UUID)
	return id, ok
}
