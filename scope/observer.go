package scope

import (
	"context"
	"time"
)

// Observer receives lifecycle events. Task and handler contexts carry the
// dispatcher (dispatch.Current) and the task ID (TaskID).
type Observer interface {
	ScopeCreated(ctx context.Context)
	ScopeCancelled(ctx context.Context, cause error)
	ScopeJoined(ctx context.Context, wait time.Duration)
	TaskStarted(ctx context.Context)
	TaskFinished(ctx context.Context, dur time.Duration, state State, err error)
	HandlerFinished(ctx context.Context, dur time.Duration, panicked bool)
}
