package topo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/percona-clustersync-couchdb/couch"
	"github.com/percona/percona-clustersync-couchdb/errors"
	"github.com/percona/percona-clustersync-couchdb/topo"
	"github.com/percona/percona-clustersync-couchdb/topo/topotest"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		sourceDBs  []string
		targetDBs  []string
		wantSource []string
		wantTarget []string
	}{
		{
			name:       "replicator excluded from both",
			sourceDBs:  []string{"a", "b", "_replicator"},
			targetDBs:  []string{"b", "c", "_users", "_replicator"},
			wantSource: []string{"a", "b"},
			wantTarget: []string{"_users", "b", "c"},
		},
		{
			name:       "replicator missing on target",
			sourceDBs:  []string{"_replicator", "_users", "x"},
			targetDBs:  []string{},
			wantSource: []string{"_users", "x"},
			wantTarget: []string{},
		},
		{
			name:       "no replicator anywhere",
			sourceDBs:  []string{"a"},
			targetDBs:  []string{"a"},
			wantSource: []string{"a"},
			wantTarget: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			source := topotest.New("http://u:p@src:5984", tt.sourceDBs...)
			target := topotest.New("http://u:p@dst:5984", tt.targetDBs...)

			sourceSet, targetSet, err := topo.Resolve(context.Background(), source, target)
			require.NoError(t, err)

			assert.Equal(t, tt.wantSource, sourceSet.Names())
			assert.Equal(t, tt.wantTarget, targetSet.Names())
			assert.False(t, sourceSet.Has(topo.ReplicatorDatabase))
			assert.False(t, targetSet.Has(topo.ReplicatorDatabase))
		})
	}
}

func TestResolveAllOrNothing(t *testing.T) {
	t.Parallel()

	for _, failing := range []string{"source", "target"} {
		t.Run(failing, func(t *testing.T) {
			t.Parallel()

			source := topotest.New("http://u:p@src:5984", "a")
			target := topotest.New("http://u:p@dst:5984", "b")

			if failing == "source" {
				source.FailOn("list", "", topotest.ErrUnreachable)
			} else {
				target.FailOn("list", "", topotest.ErrUnreachable)
			}

			sourceSet, targetSet, err := topo.Resolve(context.Background(), source, target)
			require.Error(t, err)
			assert.True(t, errors.Has[couch.ConnectivityError](err))
			assert.Nil(t, sourceSet)
			assert.Nil(t, targetSet)
		})
	}
}

func TestDatabaseSet(t *testing.T) {
	t.Parallel()

	s := topo.NewDatabaseSet("b", "a", "b")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))
	assert.Equal(t, []string{"a", "b"}, s.Names())
}

func TestDatabaseURL(t *testing.T) {
	t.Parallel()

	c := topotest.New("http://admin:pw@db:5984")

	assert.Equal(t, "http://admin:pw@db:5984/a", topo.DatabaseURL(c, "a"))
	assert.Equal(t, "http://admin:pw@db:5984/team%2Fdocs", topo.DatabaseURL(c, "team/docs"))
}
