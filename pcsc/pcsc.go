// Package pcsc runs one replication of every database from a source cluster to a
// destination cluster in the selected mode.
package pcsc

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/percona/percona-clustersync-couchdb/errors"
	"github.com/percona/percona-clustersync-couchdb/log"
	"github.com/percona/percona-clustersync-couchdb/metrics"
	"github.com/percona/percona-clustersync-couchdb/pcsc/clone"
	"github.com/percona/percona-clustersync-couchdb/pcsc/repl"
	"github.com/percona/percona-clustersync-couchdb/report"
	"github.com/percona/percona-clustersync-couchdb/sel"
	"github.com/percona/percona-clustersync-couchdb/topo"
)

// Mode selects what a run does.
type Mode string

const (
	// ModeContinuous sets up engine-managed continuous replication per database.
	ModeContinuous Mode = "continuous"
	// ModeClone deletes the destination databases and copies the source once.
	ModeClone Mode = "clone"
)

// Modes lists the valid modes in CLI order.
func Modes() []Mode {
	return []Mode{ModeContinuous, ModeClone}
}

// ErrFailedDatabases is returned when at least one database was not processed successfully.
var ErrFailedDatabases = errors.New("databases failed") //nolint:gochecknoglobals

// ParseMode parses s into a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes() {
		if string(m) == s {
			return m, nil
		}
	}

	valid := make([]string, 0, len(Modes()))
	for _, m := range Modes() {
		valid = append(valid, string(m))
	}

	return "", errors.Errorf("invalid action %q: choose from %s", s, strings.Join(valid, ", "))
}

// Options configures a run.
type Options struct {
	// Parallelism is the number of databases processed concurrently.
	Parallelism int
	// Filter selects databases in continuous mode.
	Filter sel.DBFilter
	// CloneSyncUsers replicates the users database content in clone mode.
	CloneSyncUsers bool
}

type planner interface {
	Run(ctx context.Context) (*report.Report, error)
}

// Run replicates source into target. It returns the per-database report and an error
// if the databases could not be resolved or any database failed or was skipped.
func Run(
	ctx context.Context,
	mode Mode,
	source topo.Cluster,
	target topo.Cluster,
	opts Options,
) (*report.Report, error) {
	runID := uuid.NewString()

	lg := log.New("pcsc").With(log.RunID(runID))
	ctx = lg.WithContext(ctx)

	lg.Infof("Starting replication - source: %s, destination: %s",
		source.Redacted(), target.Redacted())

	var p planner

	switch mode {
	case ModeContinuous:
		p = repl.NewRepl(source, target, repl.Options{
			Parallelism: opts.Parallelism,
			Filter:      opts.Filter,
		})
	case ModeClone:
		p = clone.NewClone(source, target, clone.Options{
			Parallelism: opts.Parallelism,
			SyncUsers:   opts.CloneSyncUsers,
		})
	default:
		return nil, errors.Errorf("unknown mode %q", mode)
	}

	startedAt := time.Now()

	rep, err := p.Run(ctx)
	if err != nil {
		metrics.SetLastRun(false, time.Now())

		return nil, errors.Wrap(err, string(mode))
	}

	for _, res := range rep.Results() {
		metrics.IncDatabase(string(mode), string(res.Outcome))

		if res.Outcome != report.OutcomeSkipped {
			metrics.ObserveDatabaseDuration(string(mode), res.Elapsed)
		}
	}

	metrics.SetLastRun(rep.OK(), time.Now())

	lg.With(log.Elapsed(time.Since(startedAt))).
		Infof("Databases: %d succeeded, %d failed, %d skipped",
			rep.Count(report.OutcomeSucceeded),
			rep.Count(report.OutcomeFailed),
			rep.Count(report.OutcomeSkipped))

	for _, res := range rep.Failures() {
		lg.With(log.DB(res.Database), log.Op(res.Step)).Errorf(res.Err, "%s failed", res.Database)
	}

	if !rep.OK() {
		return rep, errors.Wrapf(ErrFailedDatabases, "%d of %d",
			rep.Count(report.OutcomeFailed)+rep.Count(report.OutcomeSkipped), len(rep.Results()))
	}

	lg.Info("DONE!")

	return rep, nil
}
