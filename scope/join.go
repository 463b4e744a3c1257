package scope

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// JoinAll waits for every handle to resolve and returns nil, or returns the
// first failure as soon as one is observed. Cancelled handles are not
// failures. It stops waiting when ctx is done.
func JoinAll(ctx context.Context, hs ...*Handle) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range hs {
		if h == nil {
			continue
		}
		g.Go(func() error {
			select {
			case <-h.Done():
				if h.State() == Failed {
					return h.Err()
				}
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	return g.Wait()
}
