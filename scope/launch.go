package scope

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NetPo4ki/go-launch/dispatch"
)

// Task is a unit of launched work. ctx is cancelled when the handle or the
// owning scope is cancelled.
type Task func(ctx context.Context) error

// ErrorHandler receives the failure of a launched task on the error
// dispatcher. Its context is not cancelled with the scope.
type ErrorHandler func(ctx context.Context, err error)

func nopHandler(context.Context, error) {}

// LaunchOption adjusts LaunchIO and LaunchMain.
type LaunchOption func(*Config)

// ErrorOn routes the error handler to d instead of the scope's Main dispatcher.
func ErrorOn(d dispatch.Dispatcher) LaunchOption {
	return func(c *Config) { c.errorOn = d }
}

// Launch starts task on launchOn and returns immediately. If the task fails,
// onError is dispatched on errorOn with the failure. A nil dispatcher means
// the scope's Main dispatcher; a nil handler ignores failures.
func (s *Scope) Launch(task Task, onError ErrorHandler, launchOn, errorOn dispatch.Dispatcher) *Handle {
	return s.launch(task, Config{onError: onError, launchOn: launchOn, errorOn: errorOn})
}

// LaunchIO starts task on the scope's IO dispatcher. The handler runs on
// Main unless ErrorOn says otherwise.
func (s *Scope) LaunchIO(task Task, onError ErrorHandler, opts ...LaunchOption) *Handle {
	cfg := Config{onError: onError, launchOn: s.io}
	for _, o := range opts {
		o(&cfg)
	}
	return s.launch(task, cfg)
}

// LaunchMain starts task on the scope's Main dispatcher. The handler runs on
// Main unless ErrorOn says otherwise.
func (s *Scope) LaunchMain(task Task, onError ErrorHandler, opts ...LaunchOption) *Handle {
	cfg := Config{onError: onError, launchOn: s.main}
	for _, o := range opts {
		o(&cfg)
	}
	return s.launch(task, cfg)
}

// LaunchWith starts task with a configuration record.
func (s *Scope) LaunchWith(cfg Config, task Task) *Handle {
	return s.launch(task, cfg)
}

func (s *Scope) resolveConfig(cfg Config) Config {
	if cfg.onError == nil {
		cfg.onError = nopHandler
	}
	if cfg.launchOn == nil {
		cfg.launchOn = s.main
	}
	if cfg.errorOn == nil {
		cfg.errorOn = s.main
	}
	return cfg
}

//launchlint:ignore raw-dispatch
func (s *Scope) launch(task Task, cfg Config) *Handle {
	cfg = s.resolveConfig(cfg)
	ctx, cancel := context.WithCancelCause(s.ctx)
	h := newHandle(cancel)
	if task == nil {
		cancel(nil)
		h.resolve(Completed, nil)
		return h
	}
	ctx = withTaskID(dispatch.WithCurrent(ctx, cfg.launchOn), h.id)

	s.wg.Add(1)
	err := cfg.launchOn.Dispatch(func() {
		defer s.wg.Done()
		s.run(ctx, h, task, cfg)
	})
	if err != nil {
		defer s.wg.Done()
		err = rejected(cfg.launchOn.Name(), err)
		s.log.WithFields(logrus.Fields{
			"task_id":    h.id.String(),
			"dispatcher": cfg.launchOn.Name(),
		}).WithError(err).Debug("launch rejected")
		cancel(err)
		h.resolve(Failed, err)
		s.fail(err)
		s.route(h, cfg, err)
	}
	return h
}

func (s *Scope) run(ctx context.Context, h *Handle, task Task, cfg Config) {
	defer h.cancel(nil)
	if s.lim != nil {
		if err := s.lim.Acquire(ctx); err != nil {
			if ctx.Err() != nil {
				h.resolve(Cancelled, context.Cause(ctx))
				return
			}
			// the limiter refused outright, e.g. a rate wait past the deadline
			err = fmt.Errorf("scope: limiter: %w", err)
			h.resolve(Failed, err)
			s.fail(err)
			s.route(h, cfg, err)
			return
		}
		defer s.lim.Release()
	}
	if ctx.Err() != nil {
		h.resolve(Cancelled, context.Cause(ctx))
		return
	}

	var start time.Time
	if s.obs != nil {
		start = time.Now()
		s.obs.TaskStarted(ctx)
	}
	err := exec(ctx, task)
	state := classify(ctx, err)
	if s.obs != nil {
		s.obs.TaskFinished(ctx, time.Since(start), state, err)
	}

	switch state {
	case Failed:
		h.resolve(Failed, err)
		s.fail(err)
		s.route(h, cfg, err)
	case Cancelled:
		h.resolve(Cancelled, context.Cause(ctx))
	default:
		h.resolve(Completed, nil)
	}
}

func exec(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return task(ctx)
}

// classify treats an error as cancellation only when the task's own context
// was cancelled and the error reports exactly that.
func classify(ctx context.Context, err error) State {
	if err == nil {
		return Completed
	}
	if ctx.Err() != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Cancelled
		}
		if cause := context.Cause(ctx); cause != nil && errors.Is(err, cause) {
			return Cancelled
		}
	}
	return Failed
}

// route dispatches the handler for failure onto the error dispatcher. It is
// called only after the failing task body has returned.
//
//launchlint:ignore raw-dispatch
func (s *Scope) route(h *Handle, cfg Config, failure error) {
	hctx := withTaskID(dispatch.WithCurrent(context.WithoutCancel(s.ctx), cfg.errorOn), h.id)
	s.wg.Add(1)
	err := cfg.errorOn.Dispatch(func() {
		defer s.wg.Done()
		s.handle(hctx, h, cfg.onError, failure)
	})
	if err != nil {
		s.wg.Done()
		s.log.WithFields(logrus.Fields{
			"task_id":    h.id.String(),
			"dispatcher": cfg.errorOn.Name(),
			"failure":    failure.Error(),
		}).WithError(err).Error("error handler could not be dispatched, failure dropped")
		h.markHandled()
	}
}

func (s *Scope) handle(ctx context.Context, h *Handle, onError ErrorHandler, failure error) {
	defer h.markHandled()
	var start time.Time
	if s.obs != nil {
		start = time.Now()
	}
	panicked := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				perr := newPanicError(r)
				s.log.WithFields(logrus.Fields{
					"task_id":    h.id.String(),
					"dispatcher": dispatch.NameOf(ctx),
					"failure":    failure.Error(),
					"stack":      perr.Stack,
				}).WithError(perr).Error("error handler panicked, dropped")
			}
		}()
		onError(ctx, failure)
	}()
	if s.obs != nil {
		s.obs.HandlerFinished(ctx, time.Since(start), panicked)
	}
}
