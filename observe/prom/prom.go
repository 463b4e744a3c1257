// Package prom exports scope lifecycle events as Prometheus metrics.
package prom

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NetPo4ki/go-launch/dispatch"
	"github.com/NetPo4ki/go-launch/scope"
)

// Metrics is a scope.Observer and a prometheus.Collector. Register it with
// a registry and pass it to scope.WithObserver.
type Metrics struct {
	activeTasks   *prometheus.GaugeVec
	tasksStarted  *prometheus.CounterVec
	tasksFinished *prometheus.CounterVec
	tasksPanicked *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	handlers      *prometheus.CounterVec
	handlerDur    *prometheus.HistogramVec

	scopesCreated   prometheus.Counter
	scopesCancelled prometheus.Counter
	joinWait        prometheus.Histogram
}

// Option configures Metrics.
type Option func(*config)

type config struct {
	namespace string
	buckets   []float64
}

// WithNamespace prefixes every metric name. The default is "launch".
func WithNamespace(ns string) Option { return func(c *config) { c.namespace = ns } }

// WithBuckets overrides the duration histogram buckets (seconds).
func WithBuckets(b []float64) Option { return func(c *config) { c.buckets = b } }

// New builds the collectors. Nothing is registered yet.
func New(opts ...Option) *Metrics {
	cfg := config{namespace: "launch", buckets: prometheus.DefBuckets}
	for _, o := range opts {
		o(&cfg)
	}
	ns := cfg.namespace
	return &Metrics{
		activeTasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "tasks_active",
			Help:      "Tasks currently executing, by dispatcher.",
		}, []string{"dispatcher"}),
		tasksStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tasks_started_total",
			Help:      "Tasks that began executing, by dispatcher.",
		}, []string{"dispatcher"}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tasks_finished_total",
			Help:      "Tasks that finished, by dispatcher and resolved state.",
		}, []string{"dispatcher", "state"}),
		tasksPanicked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "tasks_panicked_total",
			Help:      "Tasks whose failure was a recovered panic.",
		}, []string{"dispatcher"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "task_duration_seconds",
			Help:      "Task execution time, by dispatcher.",
			Buckets:   cfg.buckets,
		}, []string{"dispatcher"}),
		handlers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "error_handlers_total",
			Help:      "Error handler runs, by dispatcher and outcome (ok or panicked).",
		}, []string{"dispatcher", "outcome"}),
		handlerDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "error_handler_duration_seconds",
			Help:      "Error handler execution time, by dispatcher.",
			Buckets:   cfg.buckets,
		}, []string{"dispatcher"}),
		scopesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "scopes_created_total",
			Help:      "Scopes created.",
		}),
		scopesCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "scopes_cancelled_total",
			Help:      "Scopes cancelled.",
		}),
		joinWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "scope_join_wait_seconds",
			Help:      "Time spent blocked in Scope.Wait.",
			Buckets:   cfg.buckets,
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.activeTasks, m.tasksStarted, m.tasksFinished, m.tasksPanicked, m.taskDuration,
		m.handlers, m.handlerDur, m.scopesCreated, m.scopesCancelled, m.joinWait,
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// ScopeCreated records scope creation.
func (m *Metrics) ScopeCreated(_ context.Context) { m.scopesCreated.Inc() }

// ScopeCancelled records scope cancellation.
func (m *Metrics) ScopeCancelled(_ context.Context, _ error) { m.scopesCancelled.Inc() }

// ScopeJoined records the time Wait blocked.
func (m *Metrics) ScopeJoined(_ context.Context, wait time.Duration) {
	m.joinWait.Observe(wait.Seconds())
}

// TaskStarted increments active and started counters.
func (m *Metrics) TaskStarted(ctx context.Context) {
	d := dispatch.NameOf(ctx)
	m.activeTasks.WithLabelValues(d).Inc()
	m.tasksStarted.WithLabelValues(d).Inc()
}

// TaskFinished decrements active and records state, panics and duration.
func (m *Metrics) TaskFinished(ctx context.Context, dur time.Duration, state scope.State, err error) {
	d := dispatch.NameOf(ctx)
	m.activeTasks.WithLabelValues(d).Dec()
	m.tasksFinished.WithLabelValues(d, state.String()).Inc()
	var perr *scope.PanicError
	if errors.As(err, &perr) {
		m.tasksPanicked.WithLabelValues(d).Inc()
	}
	m.taskDuration.WithLabelValues(d).Observe(dur.Seconds())
}

// HandlerFinished records an error handler run.
func (m *Metrics) HandlerFinished(ctx context.Context, dur time.Duration, panicked bool) {
	d := dispatch.NameOf(ctx)
	outcome := "ok"
	if panicked {
		outcome = "panicked"
	}
	m.handlers.WithLabelValues(d, outcome).Inc()
	m.handlerDur.WithLabelValues(d).Observe(dur.Seconds())
}

var _ scope.Observer = (*Metrics)(nil)
var _ prometheus.Collector = (*Metrics)(nil)
