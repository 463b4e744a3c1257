package scope

import "github.com/NetPo4ki/go-launch/dispatch"

// Config is an immutable launch configuration. The zero value launches on
// Main, routes failures to Main and ignores them.
type Config struct {
	onError  ErrorHandler
	launchOn dispatch.Dispatcher
	errorOn  dispatch.Dispatcher
}

func (c Config) WithHandler(h ErrorHandler) Config {
	c.onError = h
	return c
}

func (c Config) WithLaunchOn(d dispatch.Dispatcher) Config {
	c.launchOn = d
	return c
}

func (c Config) WithErrorOn(d dispatch.Dispatcher) Config {
	c.errorOn = d
	return c
}

// Builder accumulates launch settings. Every Launch copies the current
// settings, so later changes never reach tasks already launched and the
// builder can be reused. A Builder is not safe for concurrent mutation.
type Builder struct {
	s   *Scope
	cfg Config
}

// Builder returns a builder launching into s.
func (s *Scope) Builder() *Builder { return &Builder{s: s} }

func (b *Builder) OnError(h ErrorHandler) *Builder {
	b.cfg.onError = h
	return b
}

func (b *Builder) LaunchOn(d dispatch.Dispatcher) *Builder {
	b.cfg.launchOn = d
	return b
}

func (b *Builder) ErrorOn(d dispatch.Dispatcher) *Builder {
	b.cfg.errorOn = d
	return b
}

// Config returns a snapshot of the current settings.
func (b *Builder) Config() Config { return b.cfg }

func (b *Builder) Launch(task Task) *Handle {
	return b.s.launch(task, b.cfg)
}
