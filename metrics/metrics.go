package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/percona/percona-clustersync-couchdb/errors"
)

const metricNamespace = "percona_clustersync_couchdb"

// PushJobName is the Pushgateway job label.
const PushJobName = "pcsc"

// Counters.
var (
	//nolint:gochecknoglobals
	databasesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "databases_total",
		Help:      "Total number of databases processed, by mode and outcome.",
		Namespace: metricNamespace,
	}, []string{"mode", "outcome"})

	//nolint:gochecknoglobals
	docsWrittenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "clone_docs_written_total",
		Help:      "Total number of documents written by clone replications.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "requests_total",
		Help:      "Total number of cluster API requests, by operation and status.",
		Namespace: metricNamespace,
	}, []string{"op", "status"})
)

// Histograms.
var (
	//nolint:gochecknoglobals
	requestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "request_duration_seconds",
		Help:      "Duration of cluster API requests in seconds.",
		Namespace: metricNamespace,
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
	}, []string{"op"})

	//nolint:gochecknoglobals
	databaseDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "database_duration_seconds",
		Help:      "Duration of per-database processing in seconds.",
		Namespace: metricNamespace,
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300, 900},
	}, []string{"mode"})
)

// Gauges.
var (
	//nolint:gochecknoglobals
	lastRunSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "last_run_success",
		Help:      "1 if the last run processed every database without failure.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	lastRunTimestampSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last run completion.",
		Namespace: metricNamespace,
	})
)

// Init registers the metrics.
func Init(reg prometheus.Registerer) {
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: metricNamespace,
	}))

	reg.MustRegister(
		databasesTotal,
		docsWrittenTotal,
		requestsTotal,
		requestDurationSeconds,
		databaseDurationSeconds,
		lastRunSuccess,
		lastRunTimestampSeconds,
	)
}

// IncDatabase counts a processed database.
func IncDatabase(mode, outcome string) {
	databasesTotal.WithLabelValues(mode, outcome).Inc()
}

// ObserveDatabaseDuration records how long one database took to process.
func ObserveDatabaseDuration(mode string, d time.Duration) {
	databaseDurationSeconds.WithLabelValues(mode).Observe(d.Seconds())
}

// AddDocsWritten increments the cloned documents counter.
func AddDocsWritten(v int64) {
	docsWrittenTotal.Add(float64(v))
}

// ObserveRequest records a cluster API request.
func ObserveRequest(op, status string, d time.Duration) {
	requestsTotal.WithLabelValues(op, status).Inc()
	requestDurationSeconds.WithLabelValues(op).Observe(d.Seconds())
}

// SetLastRun records the run completion.
func SetLastRun(success bool, at time.Time) {
	if success {
		lastRunSuccess.Set(1)
	} else {
		lastRunSuccess.Set(0)
	}

	lastRunTimestampSeconds.Set(float64(at.Unix()))
}

// Push sends the gathered metrics to a Prometheus Pushgateway.
func Push(ctx context.Context, url string, g prometheus.Gatherer) error {
	err := push.New(url, PushJobName).Gatherer(g).PushContext(ctx)

	return errors.Wrap(err, "push metrics")
}
