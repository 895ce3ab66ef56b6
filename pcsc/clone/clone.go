// Package clone makes the destination a full copy of the source.
//
// Every destination database except the users database is deleted first. Then every source
// database is recreated, its content replicated once and its security object copied.
package clone

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/percona/percona-clustersync-couchdb/couch"
	"github.com/percona/percona-clustersync-couchdb/errors"
	"github.com/percona/percona-clustersync-couchdb/log"
	"github.com/percona/percona-clustersync-couchdb/metrics"
	"github.com/percona/percona-clustersync-couchdb/report"
	"github.com/percona/percona-clustersync-couchdb/topo"
	"github.com/percona/percona-clustersync-couchdb/util"
)

// Options configures a clone run.
type Options struct {
	// Parallelism is the number of databases processed concurrently.
	Parallelism int
	// SyncUsers replicates the content of the users database.
	SyncUsers bool
}

// Clone performs a destructive one-shot clone.
type Clone struct {
	source  topo.Cluster
	target  topo.Cluster
	options Options
}

// NewClone creates a clone planner.
func NewClone(source, target topo.Cluster, opts Options) *Clone {
	return &Clone{source: source, target: target, options: opts}
}

// Run deletes the destination databases and recreates them from the source.
// Per-database failures are recorded in the report; only resolution errors are returned.
func (c *Clone) Run(ctx context.Context) (*report.Report, error) {
	lg := log.Ctx(ctx)

	lg.Info("Performing a complete clone from source to destination")

	sourceSet, targetSet, err := topo.Resolve(ctx, c.source, c.target)
	if err != nil {
		return nil, errors.Wrap(err, "resolve databases")
	}

	rep := report.New()

	c.deleteAll(ctx, rep, targetSet)

	if ctx.Err() != nil {
		lg.Warnf("Clone canceled before recreation: %v", context.Cause(ctx))

		for _, db := range sourceSet.Names() {
			rep.Skipped(db)
		}

		return rep, nil
	}

	lg.Info("Re-creating databases from source into destination")

	databases := make([]string, 0, sourceSet.Len())

	for _, db := range sourceSet.Names() {
		if res, ok := rep.Get(db); ok && res.Outcome == report.OutcomeFailed {
			lg.With(log.DB(db)).Warnf("Not re-creating %q: deletion failed", db)

			continue
		}

		databases = append(databases, db)
	}

	notStarted := util.ForEach(ctx, databases, c.options.Parallelism,
		func(ctx context.Context, db string) {
			c.recreate(ctx, rep, db, targetSet.Has(db))
		})

	for _, db := range notStarted {
		lg.With(log.DB(db)).Warnf("Database %q skipped: %v", db, context.Cause(ctx))
		rep.Skipped(db)
	}

	return rep, nil
}

func (c *Clone) deleteAll(ctx context.Context, rep *report.Report, targetSet topo.DatabaseSet) {
	lg := log.Ctx(ctx)

	lg.Info("Removing all databases from destination")

	databases := make([]string, 0, targetSet.Len())

	for _, db := range targetSet.Names() {
		if db == topo.UsersDatabase {
			lg.With(log.DB(db)).Infof("Keeping %q database in destination", db)

			continue
		}

		databases = append(databases, db)
	}

	notStarted := util.ForEach(ctx, databases, c.options.Parallelism,
		func(ctx context.Context, db string) {
			lg := log.Ctx(ctx).With(log.DB(db))
			startedAt := time.Now()

			err := c.target.DeleteDatabase(ctx, db)
			switch {
			case err == nil:
				lg.Infof("Deleted %q database in destination", db)
			case couch.IsNotFound(err):
				lg.Infof("Database %q already gone from destination", db)
			default:
				lg.With(log.Op("delete database")).
					Errorf(err, "Failed to delete %q database in destination", db)
				rep.Failed(db, "delete database", err, time.Since(startedAt))
			}
		})

	for _, db := range notStarted {
		rep.Skipped(db)
	}
}

func (c *Clone) recreate(ctx context.Context, rep *report.Report, db string, existed bool) {
	lg := log.Ctx(ctx).With(log.DB(db))
	ctx = lg.WithContext(ctx)

	startedAt := time.Now()

	fail := func(step string, err error) {
		lg.With(log.Op(step)).Errorf(err, "Failed to clone %q", db)
		rep.Failed(db, step, err, time.Since(startedAt))
	}

	err := c.createDatabase(ctx, db, existed)
	if err != nil {
		fail("create database", err)

		return
	}

	sec, err := c.source.GetSecurityObject(ctx, db)
	if err != nil {
		fail("get security", err)

		return
	}

	if db == topo.UsersDatabase && !c.options.SyncUsers {
		lg.Infof("Not copying data of %q database", db)
	} else {
		lg.Infof("Copying data from %q in source to destination", db)

		res, err := c.target.ReplicateInto(ctx,
			topo.DatabaseURL(c.source, db), topo.DatabaseURL(c.target, db))
		if err != nil {
			fail("replicate", err)

			return
		}

		metrics.AddDocsWritten(res.DocsWritten)

		lg.With(log.Count(res.DocsWritten), log.Elapsed(time.Since(startedAt))).
			Infof("Copied %s of %s documents into %q",
				humanize.Comma(res.DocsWritten), humanize.Comma(res.DocsRead), db)
	}

	lg.Infof("Copying security object to %q database in destination", db)

	err = c.target.PutSecurityObject(ctx, db, sec)
	if err != nil {
		fail("put security", err)

		return
	}

	rep.Succeeded(db, time.Since(startedAt))
}

// createDatabase creates db on the destination. The users database is kept across the
// deletion phase and only created when the destination never had it.
func (c *Clone) createDatabase(ctx context.Context, db string, existed bool) error {
	if db != topo.UsersDatabase {
		return c.target.CreateDatabase(ctx, db) //nolint:wrapcheck
	}

	if existed {
		return nil
	}

	err := c.target.CreateDatabase(ctx, db)
	if err != nil && !couch.IsAlreadyExists(err) {
		return err //nolint:wrapcheck
	}

	return nil
}
