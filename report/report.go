// Package report collects per-database outcomes of a run.
package report

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/percona/percona-clustersync-couchdb/errors"
)

// Outcome of processing one database.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Result is the outcome of one database.
type Result struct {
	Database string
	Outcome  Outcome
	// Step is the operation that failed, empty on success.
	Step    string
	Err     error
	Elapsed time.Duration
}

// Report aggregates results. Safe for concurrent use.
type Report struct {
	lock    sync.Mutex
	results map[string]Result
}

// New creates an empty report.
func New() *Report {
	return &Report{results: make(map[string]Result)}
}

// Succeeded records db as processed successfully. A recorded failure is kept.
func (r *Report) Succeeded(db string, elapsed time.Duration) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if prev, ok := r.results[db]; ok && prev.Outcome == OutcomeFailed {
		return
	}

	r.results[db] = Result{Database: db, Outcome: OutcomeSucceeded, Elapsed: elapsed}
}

// Failed records that step failed for db.
func (r *Report) Failed(db, step string, err error, elapsed time.Duration) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.results[db] = Result{
		Database: db,
		Outcome:  OutcomeFailed,
		Step:     step,
		Err:      err,
		Elapsed:  elapsed,
	}
}

// Skipped records db as not started (run canceled).
func (r *Report) Skipped(db string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.results[db]; ok {
		return
	}

	r.results[db] = Result{Database: db, Outcome: OutcomeSkipped}
}

// Get returns the result of db.
func (r *Report) Get(db string) (Result, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	res, ok := r.results[db]

	return res, ok
}

// Results returns all results sorted by database name.
func (r *Report) Results() []Result {
	r.lock.Lock()
	defer r.lock.Unlock()

	rv := make([]Result, 0, len(r.results))
	for _, res := range r.results {
		rv = append(rv, res)
	}

	slices.SortFunc(rv, func(a, b Result) int {
		return strings.Compare(a.Database, b.Database)
	})

	return rv
}

// Count returns the number of results with the outcome.
func (r *Report) Count(outcome Outcome) int {
	r.lock.Lock()
	defer r.lock.Unlock()

	n := 0

	for _, res := range r.results {
		if res.Outcome == outcome {
			n++
		}
	}

	return n
}

// Failures returns failed results sorted by database name.
func (r *Report) Failures() []Result {
	var rv []Result

	for _, res := range r.Results() {
		if res.Outcome == OutcomeFailed {
			rv = append(rv, res)
		}
	}

	return rv
}

// OK reports whether no database failed or was skipped.
func (r *Report) OK() bool {
	return r.Count(OutcomeFailed) == 0 && r.Count(OutcomeSkipped) == 0
}

// Err joins every per-database failure, or returns nil.
func (r *Report) Err() error {
	var errs []error

	for _, res := range r.Failures() {
		errs = append(errs, errors.Wrapf(res.Err, "%s: %s", res.Database, res.Step))
	}

	return errors.Join(errs...)
}
