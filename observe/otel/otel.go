package otel

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NetPo4ki/go-launch/dispatch"
	"github.com/NetPo4ki/go-launch/scope"
)

// Observer writes lifecycle events onto the span found in each context. It
// is a no-op for contexts without a recording span.
type Observer struct {
	// MarkFailures sets the span status to Error when a task fails.
	MarkFailures bool
}

func New() *Observer { return &Observer{} }

func (*Observer) ScopeCreated(ctx context.Context) {
	trace.SpanFromContext(ctx).AddEvent("scope.created")
}

func (*Observer) ScopeCancelled(ctx context.Context, cause error) {
	attrs := []attribute.KeyValue{}
	if cause != nil {
		attrs = append(attrs, attribute.String("scope.cause", cause.Error()))
	}
	trace.SpanFromContext(ctx).AddEvent("scope.cancelled", trace.WithAttributes(attrs...))
}

func (*Observer) ScopeJoined(ctx context.Context, wait time.Duration) {
	trace.SpanFromContext(ctx).AddEvent("scope.joined",
		trace.WithAttributes(attribute.Int64("scope.wait_ns", wait.Nanoseconds())))
}

func (*Observer) TaskStarted(ctx context.Context) {
	trace.SpanFromContext(ctx).AddEvent("task.started", trace.WithAttributes(taskAttrs(ctx)...))
}

func (o *Observer) TaskFinished(ctx context.Context, dur time.Duration, state scope.State, err error) {
	span := trace.SpanFromContext(ctx)
	attrs := append(taskAttrs(ctx),
		attribute.String("task.state", state.String()),
		attribute.Int64("task.duration_ns", dur.Nanoseconds()),
	)
	var perr *scope.PanicError
	if errors.As(err, &perr) {
		attrs = append(attrs, attribute.Bool("task.panicked", true))
	}
	span.AddEvent("task.finished", trace.WithAttributes(attrs...))
	if state == scope.Failed && err != nil {
		span.RecordError(err, trace.WithAttributes(taskAttrs(ctx)...))
		if o.MarkFailures {
			span.SetStatus(codes.Error, err.Error())
		}
	}
}

func (*Observer) HandlerFinished(ctx context.Context, dur time.Duration, panicked bool) {
	attrs := append(taskAttrs(ctx),
		attribute.Int64("handler.duration_ns", dur.Nanoseconds()),
		attribute.Bool("handler.panicked", panicked),
	)
	trace.SpanFromContext(ctx).AddEvent("handler.finished", trace.WithAttributes(attrs...))
}

func taskAttrs(ctx context.Context) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("dispatcher", dispatch.NameOf(ctx))}
	if id, ok := scope.TaskID(ctx); ok {
		attrs = append(attrs, attribute.String("task.id", id.String()))
	}
	return attrs
}

var _ scope.Observer = (*Observer)(nil)
