package util_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/percona-clustersync-couchdb/util"
)

func TestForEachBoundsConcurrency(t *testing.T) {
	t.Parallel()

	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	var inFlight, maxInFlight atomic.Int32
	var mu sync.Mutex
	seen := map[int]bool{}

	notStarted := util.ForEach(context.Background(), items, 4, func(_ context.Context, i int) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}

		time.Sleep(time.Millisecond)
		inFlight.Add(-1)

		mu.Lock()
		seen[i] = true
		mu.Unlock()
	})

	assert.Empty(t, notStarted)
	assert.Len(t, seen, 50)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(4))
}

func TestForEachCancelStartsNoNewWork(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})

	var finished atomic.Int32
	var inFlightCtxErr error

	done := make(chan []string)

	go func() {
		done <- util.ForEach(ctx, []string{"a", "b", "c"}, 1, func(ctx context.Context, _ string) {
			close(started)
			<-release

			inFlightCtxErr = ctx.Err()
			finished.Add(1)
		})
	}()

	<-started
	cancel()
	close(release)

	notStarted := <-done

	assert.Equal(t, int32(1), finished.Load())
	require.NoError(t, inFlightCtxErr)
	assert.Equal(t, []string{"b", "c"}, notStarted)
}

func TestForEachAlreadyCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	notStarted := util.ForEach(ctx, []string{"a", "b"}, 2, func(context.Context, string) {
		called = true
	})

	assert.False(t, called)
	assert.Equal(t, []string{"a", "b"}, notStarted)
}
