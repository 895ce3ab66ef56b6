package util_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/percona-clustersync-couchdb/util"
)

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	t.Run("zero duration keeps context without deadline", func(t *testing.T) {
		t.Parallel()

		err := util.WithTimeout(context.Background(), 0, func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.False(t, ok)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("positive duration sets deadline", func(t *testing.T) {
		t.Parallel()

		err := util.WithTimeout(context.Background(), time.Minute, func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			assert.True(t, ok)

			return nil
		})
		require.NoError(t, err)
	})

	t.Run("deadline expires", func(t *testing.T) {
		t.Parallel()

		err := util.WithTimeout(context.Background(), time.Millisecond, func(ctx context.Context) error {
			<-ctx.Done()

			return ctx.Err()
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestDetached(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	detached := util.Detached(ctx)
	require.NoError(t, detached.Err())
}
