// Package couch implements the cluster operations over the CouchDB HTTP API.
package couch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/percona/percona-clustersync-couchdb/errors"
	"github.com/percona/percona-clustersync-couchdb/log"
	"github.com/percona/percona-clustersync-couchdb/metrics"
	"github.com/percona/percona-clustersync-couchdb/topo"
	"github.com/percona/percona-clustersync-couchdb/util"
)

// MaxResponseSize bounds decoded response bodies.
const MaxResponseSize = 64 * humanize.MiByte

// DefaultRetryDelay is the pause between retries of idempotent reads.
const DefaultRetryDelay = 500 * time.Millisecond

// Options configures a [Client].
type Options struct {
	// HTTPClient is the transport. Default: [http.DefaultClient].
	HTTPClient *http.Client
	// RequestTimeout bounds each call except ReplicateInto. 0 keeps the transport default.
	RequestTimeout time.Duration
	// ReplicateTimeout bounds ReplicateInto. 0 keeps the transport default.
	ReplicateTimeout time.Duration
	// Retries is the number of extra attempts for idempotent reads.
	Retries int
	// RetryDelay is the pause between attempts. Default: [DefaultRetryDelay].
	RetryDelay time.Duration
	// Clock drives retry delays. Default: [clock.WallClock].
	Clock clock.Clock
}

// Client talks to one CouchDB cluster endpoint.
type Client struct {
	endpoint Endpoint
	hc       *http.Client
	opts     Options
}

var _ topo.Cluster = (*Client)(nil)

// NewClient creates a client for the endpoint.
func NewClient(endpoint Endpoint, opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}

	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}

	return &Client{endpoint: endpoint, hc: opts.HTTPClient, opts: opts}
}

func (c *Client) URL() string      { return c.endpoint.String() }
func (c *Client) Redacted() string { return c.endpoint.Redacted() }

// ListDatabases returns all database names (GET /_all_dbs).
func (c *Client) ListDatabases(ctx context.Context) ([]string, error) {
	var dbs []string

	err := c.withRetry(ctx, "list databases", func(ctx context.Context) error {
		dbs = nil
		_, err := c.do(ctx, "list databases", http.MethodGet, nil, &dbs, "_all_dbs")

		return err
	})
	if err != nil {
		return nil, err
	}

	return dbs, nil
}

// CreateDatabase creates db (PUT /{db}). Returns [AlreadyExistsError] when db exists.
func (c *Client) CreateDatabase(ctx context.Context, db string) error {
	status, err := c.do(ctx, "create database", http.MethodPut, nil, nil, db)
	if status == http.StatusPreconditionFailed {
		return AlreadyExistsError{Kind: "database", Name: db}
	}

	return err
}

// DeleteDatabase deletes db (DELETE /{db}). Returns [NotFoundError] when db is missing.
func (c *Client) DeleteDatabase(ctx context.Context, db string) error {
	status, err := c.do(ctx, "delete database", http.MethodDelete, nil, nil, db)
	if status == http.StatusNotFound {
		return NotFoundError{Kind: "database", Name: db}
	}

	return err
}

// GetSecurityObject reads the _security document of db.
func (c *Client) GetSecurityObject(ctx context.Context, db string) (topo.SecurityObject, error) {
	var sec json.RawMessage

	err := c.withRetry(ctx, "get security", func(ctx context.Context) error {
		sec = nil
		status, err := c.do(ctx, "get security", http.MethodGet, nil, &sec, db, "_security")
		if status == http.StatusNotFound {
			return NotFoundError{Kind: "database", Name: db}
		}

		return err
	})
	if err != nil {
		return nil, err
	}

	if len(sec) == 0 {
		sec = json.RawMessage("{}")
	}

	return sec, nil
}

// PutSecurityObject writes sec as the _security document of db.
func (c *Client) PutSecurityObject(ctx context.Context, db string, sec topo.SecurityObject) error {
	if len(sec) == 0 {
		sec = json.RawMessage("{}")
	}

	status, err := c.do(ctx, "put security", http.MethodPut, sec, nil, db, "_security")
	if status == http.StatusNotFound {
		return NotFoundError{Kind: "database", Name: db}
	}

	return err
}

// SubmitReplicationTask stores task in the replicator database under task.ID.
// Returns [AlreadyExistsError] when a task with the same id is present.
func (c *Client) SubmitReplicationTask(ctx context.Context, task *topo.ReplicationTask) error {
	status, err := c.do(ctx, "submit replication task", http.MethodPut, task, nil,
		topo.ReplicatorDatabase, task.ID)
	if status == http.StatusConflict {
		return AlreadyExistsError{Kind: "replication task", Name: task.ID}
	}

	return err
}

type replicateRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type replicateResponse struct {
	Ok        bool   `json:"ok"`
	NoChanges bool   `json:"no_changes"`
	Error     string `json:"error"`
	Reason    string `json:"reason"`
	History   []struct {
		DocsRead         int64 `json:"docs_read"`
		DocsWritten      int64 `json:"docs_written"`
		DocWriteFailures int64 `json:"doc_write_failures"`
	} `json:"history"`
}

// ReplicateInto runs a one-shot replication (POST /_replicate) and blocks until it completes.
// Any failure is returned as a [ReplicationError].
func (c *Client) ReplicateInto(
	ctx context.Context,
	sourceURL string,
	targetURL string,
) (*topo.ReplicationResult, error) {
	replErr := func(reason string, err error) error {
		return ReplicationError{
			Source: redactURL(sourceURL),
			Target: redactURL(targetURL),
			Reason: reason,
			Err:    err,
		}
	}

	var res replicateResponse

	err := util.WithTimeout(ctx, c.opts.ReplicateTimeout, func(ctx context.Context) error {
		_, err := c.send(ctx, "replicate", http.MethodPost,
			replicateRequest{Source: sourceURL, Target: targetURL}, &res, "_replicate")

		return err
	})
	if err != nil {
		return nil, replErr("", err)
	}

	if !res.Ok {
		return nil, replErr(res.Error+": "+res.Reason, nil)
	}

	rv := &topo.ReplicationResult{NoChanges: res.NoChanges}
	if len(res.History) != 0 {
		rv.DocsRead = res.History[0].DocsRead
		rv.DocsWritten = res.History[0].DocsWritten
		rv.DocWriteFailures = res.History[0].DocWriteFailures
	}

	if rv.DocWriteFailures != 0 {
		return rv, replErr(humanize.Comma(rv.DocWriteFailures)+" document write failures", nil)
	}

	return rv, nil
}

func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			lastErr = fn(ctx)

			return lastErr
		},
		IsFatalError: func(err error) bool {
			var connErr ConnectivityError

			return !errors.As(err, &connErr) || !connErr.Retryable()
		},
		NotifyFunc: func(err error, attempt int) {
			log.Ctx(ctx).With(log.Op(op)).
				Warnf("Attempt %d failed: %s", attempt, err)
		},
		Attempts: c.opts.Retries + 1,
		Delay:    c.opts.RetryDelay,
		Clock:    c.opts.Clock,
		Stop:     ctx.Done(),
	})
	if err != nil && lastErr != nil {
		return lastErr
	}

	return err //nolint:wrapcheck
}

// do performs a call bounded by the request timeout.
func (c *Client) do(
	ctx context.Context,
	op string,
	method string,
	body any,
	out any,
	segments ...string,
) (int, error) {
	var status int

	err := util.WithTimeout(ctx, c.opts.RequestTimeout, func(ctx context.Context) error {
		var err error
		status, err = c.send(ctx, op, method, body, out, segments...)

		return err
	})

	return status, err
}

type couchError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// send returns the response status along with a [ConnectivityError] for any non-2xx status.
func (c *Client) send(
	ctx context.Context,
	op string,
	method string,
	body any,
	out any,
	segments ...string,
) (int, error) {
	u := c.endpoint.resolve(segments...)
	connErr := ConnectivityError{Op: op, URL: u.String()}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, errors.Wrap(err, "encode request")
		}

		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), payload)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if user := c.endpoint.base.User; user != nil {
		pass, _ := user.Password()
		req.SetBasicAuth(user.Username(), pass)
	}

	startedAt := time.Now()

	res, err := c.hc.Do(req)
	if err != nil {
		metrics.ObserveRequest(op, "error", time.Since(startedAt))
		connErr.Err = err

		return 0, connErr
	}
	defer res.Body.Close()

	metrics.ObserveRequest(op, strconv.Itoa(res.StatusCode), time.Since(startedAt))

	log.Ctx(ctx).With(log.Op(op), log.Elapsed(time.Since(startedAt))).
		Tracef("%s %s %d", method, u.String(), res.StatusCode)

	data, err := io.ReadAll(io.LimitReader(res.Body, MaxResponseSize))
	if err != nil {
		connErr.StatusCode = res.StatusCode
		connErr.Err = errors.Wrap(err, "read response")

		return res.StatusCode, connErr
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var ce couchError
		_ = json.Unmarshal(data, &ce)

		connErr.StatusCode = res.StatusCode
		connErr.Reason = ce.Error
		if ce.Reason != "" {
			connErr.Reason += ": " + ce.Reason
		}

		return res.StatusCode, connErr
	}

	if out != nil {
		err = json.Unmarshal(data, out)
		if err != nil {
			connErr.StatusCode = res.StatusCode
			connErr.Err = errors.Wrap(err, "malformed response")

			return res.StatusCode, connErr
		}
	}

	return res.StatusCode, nil
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}

	u.User = nil

	return u.String()
}
