// Package repl sets up continuous replication of every source database.
package repl

import (
	"context"
	"time"

	"github.com/percona/percona-clustersync-couchdb/couch"
	"github.com/percona/percona-clustersync-couchdb/errors"
	"github.com/percona/percona-clustersync-couchdb/log"
	"github.com/percona/percona-clustersync-couchdb/report"
	"github.com/percona/percona-clustersync-couchdb/sel"
	"github.com/percona/percona-clustersync-couchdb/topo"
	"github.com/percona/percona-clustersync-couchdb/util"
)

// TaskIDPrefix prefixes replication task document ids. Document ids may not start with "_",
// and system databases such as _users are replicated too.
const TaskIDPrefix = "pcsc_"

// Options configures the continuous replication setup.
type Options struct {
	// Parallelism is the number of databases processed concurrently.
	Parallelism int
	// Filter selects source databases. Default: all.
	Filter sel.DBFilter
}

// Repl configures continuous replication links from source to target.
type Repl struct {
	source  topo.Cluster
	target  topo.Cluster
	options Options
}

// NewRepl creates a continuous replication planner.
func NewRepl(source, target topo.Cluster, opts Options) *Repl {
	if opts.Filter == nil {
		opts.Filter = sel.AllowAllFilter
	}

	return &Repl{source: source, target: target, options: opts}
}

// NewTask builds the continuous replication document for db.
func NewTask(source, target topo.Cluster, db string) *topo.ReplicationTask {
	name := db + "_rep"

	return &topo.ReplicationTask{
		ID:         TaskIDPrefix + name,
		Name:       name,
		Source:     topo.DatabaseURL(source, db) + "/",
		Target:     topo.DatabaseURL(target, db) + "/",
		Continuous: true,
	}
}

// Run sets up continuous replication for every selected source database.
// Per-database failures are recorded in the report; only resolution errors are returned.
func (r *Repl) Run(ctx context.Context) (*report.Report, error) {
	lg := log.Ctx(ctx)

	sourceSet, _, err := topo.Resolve(ctx, r.source, r.target)
	if err != nil {
		return nil, errors.Wrap(err, "resolve databases")
	}

	databases := make([]string, 0, sourceSet.Len())

	for _, db := range sourceSet.Names() {
		if !r.options.Filter(db) {
			lg.With(log.DB(db)).Infof("Database %q excluded", db)

			continue
		}

		databases = append(databases, db)
	}

	if len(databases) == 0 {
		lg.Warn("No database to replicate")
	}

	rep := report.New()

	notStarted := util.ForEach(ctx, databases, r.options.Parallelism,
		func(ctx context.Context, db string) {
			r.setupDatabase(ctx, rep, db)
		})

	for _, db := range notStarted {
		lg.With(log.DB(db)).Warnf("Database %q skipped: %v", db, context.Cause(ctx))
		rep.Skipped(db)
	}

	return rep, nil
}

func (r *Repl) setupDatabase(ctx context.Context, rep *report.Report, db string) {
	lg := log.Ctx(ctx).With(log.DB(db))
	ctx = lg.WithContext(ctx)

	startedAt := time.Now()

	fail := func(step string, err error) {
		lg.With(log.Op(step)).Errorf(err, "Failed to set up replication for %q", db)
		rep.Failed(db, step, err, time.Since(startedAt))
	}

	err := r.target.CreateDatabase(ctx, db)
	switch {
	case err == nil:
		lg.Infof("Created %q database in destination", db)
	case couch.IsAlreadyExists(err):
		lg.Infof("Database %q already exists in the destination, not creating it", db)
	default:
		fail("create database", err)

		return
	}

	sec, err := r.source.GetSecurityObject(ctx, db)
	if err != nil {
		fail("get security", err)

		return
	}

	task := NewTask(r.source, r.target, db)

	lg.Debugf("Putting replication document %q in %s database of source",
		task.ID, topo.ReplicatorDatabase)

	err = r.source.SubmitReplicationTask(ctx, task)
	switch {
	case err == nil:
		lg.Infof("Replication task %q submitted", task.Name)
	case couch.IsAlreadyExists(err):
		lg.Infof("Replication task %q already present, keeping it", task.Name)
	default:
		fail("submit replication task", err)

		return
	}

	err = r.target.PutSecurityObject(ctx, db, sec)
	if err != nil {
		fail("put security", err)

		return
	}

	lg.Infof("Copied security object to %q database in destination", db)

	rep.Succeeded(db, time.Since(startedAt))
}
