package util

import (
	"context"
	"time"
)

// WithTimeout calls fn with a context bounded by dur. A non-positive dur leaves
// ctx deadline untouched.
func WithTimeout(ctx context.Context, dur time.Duration, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if dur <= 0 {
		return fn(ctx)
	}

	timeoutCtx, cancelTimeout := context.WithTimeout(ctx, dur)
	defer cancelTimeout()

	return fn(timeoutCtx)
}

// Detached returns a context that keeps ctx values but is not canceled with it.
func Detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
