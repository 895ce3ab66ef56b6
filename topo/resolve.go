package topo

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/percona/percona-clustersync-couchdb/errors"
	"github.com/percona/percona-clustersync-couchdb/log"
)

// Resolve lists databases on both clusters and drops the [ReplicatorDatabase] from each.
// Either both sets are returned or an error is; a partial resolution is never returned.
func Resolve(ctx context.Context, source, target Cluster) (DatabaseSet, DatabaseSet, error) {
	var sourceDBs, targetDBs []string

	grp, grpCtx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		dbs, err := source.ListDatabases(grpCtx)
		if err != nil {
			return errors.Wrap(err, "list source databases")
		}

		sourceDBs = dbs

		return nil
	})

	grp.Go(func() error {
		dbs, err := target.ListDatabases(grpCtx)
		if err != nil {
			return errors.Wrap(err, "list destination databases")
		}

		targetDBs = dbs

		return nil
	})

	err := grp.Wait()
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	lg := log.Ctx(ctx)
	lg.With(log.Count(int64(len(sourceDBs)))).
		Infof("Databases in the source cluster: %s", strings.Join(sourceDBs, ", "))
	lg.With(log.Count(int64(len(targetDBs)))).
		Infof("Databases in the destination cluster: %s", strings.Join(targetDBs, ", "))

	sourceSet := NewDatabaseSet(sourceDBs...)
	targetSet := NewDatabaseSet(targetDBs...)

	delete(sourceSet, ReplicatorDatabase)
	delete(targetSet, ReplicatorDatabase)

	return sourceSet, targetSet, nil
}
