package scope

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NetPo4ki/go-launch/dispatch"
)

// Policy decides how a scope reacts to a failed task.
type Policy int

const (
	// Supervisor contains each failure to its own task. Siblings keep
	// running and Wait does not report task failures.
	Supervisor Policy = iota
	// FailFast aggregates: the first failure cancels the remaining tasks
	// and is returned by Wait. Handlers still run.
	FailFast
)

func (p Policy) String() string {
	switch p {
	case Supervisor:
		return "supervisor"
	case FailFast:
		return "fail-fast"
	default:
		return "unknown"
	}
}

type Option func(*Options)

type Options struct {
	Observer       Observer
	MaxConcurrency int
	Limiter        Limiter
	Logger         logrus.FieldLogger
	Main           dispatch.Dispatcher
	IO             dispatch.Dispatcher
}

func defaultOptions() Options { return Options{Logger: logrus.StandardLogger()} }

func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

// WithMaxConcurrency bounds running tasks in the scope. A task waiting for
// a slot holds its dispatcher while it waits, which stalls a Serial.
func WithMaxConcurrency(n int) Option { return func(o *Options) { o.MaxConcurrency = n } }

// WithLimiter bounds tasks with a caller-owned limiter, which may be shared
// between scopes. It takes precedence over WithMaxConcurrency.
func WithLimiter(l Limiter) Option { return func(o *Options) { o.Limiter = l } }

func WithLogger(l logrus.FieldLogger) Option { return func(o *Options) { o.Logger = l } }

// WithMainDispatcher sets the serialized dispatcher used by LaunchMain,
// WithMain and as the default error dispatcher.
func WithMainDispatcher(d dispatch.Dispatcher) Option { return func(o *Options) { o.Main = d } }

// WithIODispatcher sets the dispatcher used by LaunchIO and WithIO.
func WithIODispatcher(d dispatch.Dispatcher) Option { return func(o *Options) { o.IO = d } }

// Scope owns launched tasks and the handlers dispatched for their failures.
type Scope struct {
	ctx      context.Context
	cancel   context.CancelCauseFunc
	policy   Policy
	wg       sync.WaitGroup
	mu       sync.Mutex
	firstErr error
	canceled bool

	opts Options
	obs  Observer
	lim  Limiter
	log  logrus.FieldLogger
	main dispatch.Dispatcher
	io   dispatch.Dispatcher
}

// New creates a scope bound to parent. Without WithMainDispatcher or
// WithIODispatcher the scope gets its own Serial "main" and Pool "io".
func New(parent context.Context, policy Policy, optFns ...Option) *Scope {
	if parent == nil {
		parent = context.Background()
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Main == nil {
		opts.Main = dispatch.NewSerial("main")
	}
	if opts.IO == nil {
		opts.IO = dispatch.NewPool("io", dispatch.DefaultIOParallelism)
	}
	return newScope(parent, policy, opts)
}

func newScope(parent context.Context, policy Policy, opts Options) *Scope {
	ctx, cancel := context.WithCancelCause(parent)
	s := &Scope{
		ctx:    ctx,
		cancel: cancel,
		policy: policy,
		opts:   opts,
		obs:    opts.Observer,
		lim:    opts.Limiter,
		log:    opts.Logger,
		main:   opts.Main,
		io:     opts.IO,
	}
	if s.lim == nil && opts.MaxConcurrency > 0 {
		s.lim = newSemaphoreLimiter(opts.MaxConcurrency)
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.obs != nil {
		s.obs.ScopeCreated(ctx)
	}
	return s
}

func (s *Scope) Context() context.Context { return s.ctx }

func (s *Scope) Policy() Policy { return s.policy }

// Main returns the scope's serialized dispatcher.
func (s *Scope) Main() dispatch.Dispatcher { return s.main }

// IO returns the scope's I/O dispatcher.
func (s *Scope) IO() dispatch.Dispatcher { return s.io }

// Cancel cancels every task context in the scope. The first non-nil cause
// is kept and returned by Wait. Cancel is idempotent.
func (s *Scope) Cancel(err error) {
	s.mu.Lock()
	wasCanceled := s.canceled
	s.canceled = true
	if s.firstErr == nil && err != nil {
		s.firstErr = err
	}
	cause := s.firstErr
	s.mu.Unlock()

	s.cancel(cause)
	if !wasCanceled && s.obs != nil {
		s.obs.ScopeCancelled(s.ctx, cause)
	}
}

// Wait blocks until every launched task and every dispatched error handler
// has returned. It reports the cancellation cause, or the first failure
// under FailFast, and nil otherwise.
func (s *Scope) Wait() error {
	var start time.Time
	if s.obs != nil {
		start = time.Now()
	}
	s.wg.Wait()
	if s.obs != nil {
		s.obs.ScopeJoined(s.ctx, time.Since(start))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstErr != nil {
		return s.firstErr
	}
	return context.Cause(s.ctx)
}

func (s *Scope) fail(err error) {
	if err == nil || s.policy != FailFast {
		return
	}
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	cause := s.firstErr
	s.mu.Unlock()
	s.Cancel(cause)
}

// Child creates a scope whose context derives from s. It inherits the
// dispatchers, logger, observer and limiter settings unless overridden.
// The parent's Wait does not join the child.
func (s *Scope) Child(policy Policy, optFns ...Option) *Scope {
	childOpts := s.opts
	for _, fn := range optFns {
		fn(&childOpts)
	}
	if childOpts.Main == nil {
		childOpts.Main = s.main
	}
	if childOpts.IO == nil {
		childOpts.IO = s.io
	}
	return newScope(s.ctx, policy, childOpts)
}
