package util

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ForEach calls fn for every item with at most limit calls in flight.
//
// Once ctx is done no new call starts; calls already running finish with a context
// that keeps ctx values but ignores its cancellation. ForEach returns the items
// that were never started.
func ForEach[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T)) []T {
	if limit < 1 {
		limit = 1
	}

	sem := semaphore.NewWeighted(int64(limit))
	opCtx := Detached(ctx)

	var grp errgroup.Group
	var notStarted []T

	for i, item := range items {
		err := sem.Acquire(ctx, 1)
		if err == nil && ctx.Err() != nil {
			sem.Release(1)
			err = ctx.Err()
		}

		if err != nil {
			notStarted = append(notStarted, items[i:]...)

			break
		}

		grp.Go(func() error {
			defer sem.Release(1)

			fn(opCtx, item)

			return nil
		})
	}

	_ = grp.Wait()

	return notStarted
}
