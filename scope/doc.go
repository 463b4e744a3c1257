// Package scope launches units of work onto dispatchers with isolated,
// routed failure handling.
//
// A Scope owns what it launches and provides the join point (Wait). Launch,
// LaunchIO and LaunchMain start a task on a dispatcher and never let its
// failure reach the caller: a failed task resolves its Handle and the error
// handler is dispatched as a separate unit of work on the error dispatcher,
// which defaults to Main.
//
// WithContext, WithIO and WithMain switch the current flow onto another
// dispatcher for the duration of a block and hand back its result. Failures
// there propagate to the caller like any direct call.
//
// Builder accumulates launch settings fluently and snapshots them on every
// Launch, so one builder can be reused.
package scope
