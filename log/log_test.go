package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/percona-clustersync-couchdb/errors"
	"github.com/percona/percona-clustersync-couchdb/log"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var rv []map[string]any

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		rv = append(rv, m)
	}

	return rv
}

func TestLoggerAttrs(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer
	log.InitGlobalsTo(&buf, zerolog.DebugLevel, true, true)

	lg := log.New("clone").With(
		log.DB("orders"),
		log.Op("replicate"),
		log.RunID("run-1"),
		log.Count(42),
		log.Elapsed(1500*time.Millisecond),
	)

	lg.Infof("Copied %d documents", 42)
	lg.Errorf(errors.New("boom"), "Failed to clone %q", "orders")
	lg.Trace("hidden")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "clone", lines[0]["s"])
	assert.Equal(t, "orders", lines[0]["db"])
	assert.Equal(t, "replicate", lines[0]["op"])
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.InDelta(t, 42, lines[0]["count"], 0)
	assert.InDelta(t, 1500, lines[0]["elapsed"], 0)
	assert.Equal(t, "Copied 42 documents", lines[0]["message"])

	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestLoggerContext(t *testing.T) { //nolint:paralleltest
	var buf bytes.Buffer
	log.InitGlobalsTo(&buf, zerolog.InfoLevel, true, true)

	ctx := log.New("pcsc").With(log.RunID("run-2")).WithContext(context.Background())
	log.Ctx(ctx).With(log.DB("a")).Info("created")

	log.Ctx(context.Background()).Warn("global")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "run-2", lines[0]["run_id"])
	assert.Equal(t, "a", lines[0]["db"])
	assert.Equal(t, "warn", lines[1]["level"])
	assert.NotContains(t, lines[1], "run_id")
}
