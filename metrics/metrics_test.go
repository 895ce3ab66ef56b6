package metrics //nolint:testpackage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The collectors are package globals; the tests below share them and run sequentially.

func TestIncDatabase(t *testing.T) {
	before := testutil.ToFloat64(databasesTotal.WithLabelValues("clone", "failed"))

	IncDatabase("clone", "failed")
	IncDatabase("clone", "failed")

	after := testutil.ToFloat64(databasesTotal.WithLabelValues("clone", "failed"))
	assert.InDelta(t, 2, after-before, 0)
}

func TestSetLastRun(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)

	SetLastRun(false, at)
	assert.InDelta(t, 0, testutil.ToFloat64(lastRunSuccess), 0)
	assert.InDelta(t, 1_700_000_000, testutil.ToFloat64(lastRunTimestampSeconds), 0)

	SetLastRun(true, at)
	assert.InDelta(t, 1, testutil.ToFloat64(lastRunSuccess), 0)
}

func TestPush(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mu.Lock()
		gotPath = r.URL.Path
		gotBody = string(body)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(docsWrittenTotal)
	AddDocsWritten(42)

	err := Push(context.Background(), server.URL, reg)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, "/metrics/job/"+PushJobName, gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := Push(context.Background(), server.URL, prometheus.NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push metrics")
}
