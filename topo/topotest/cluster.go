// Package topotest provides an in-memory [topo.Cluster] for tests.
package topotest

import (
	"context"
	"encoding/json"
	"maps"
	"net/url"
	"strings"
	"sync"

	"github.com/percona/percona-clustersync-couchdb/couch"
	"github.com/percona/percona-clustersync-couchdb/errors"
	"github.com/percona/percona-clustersync-couchdb/topo"
)

// Call is a recorded cluster operation.
type Call struct {
	Op string
	DB string
}

// Database is the in-memory state of one database.
type Database struct {
	Security topo.SecurityObject
	Docs     map[string]string
}

// Cluster is an in-memory cluster. Safe for concurrent use.
type Cluster struct {
	url string

	mu      sync.Mutex
	dbs     map[string]*Database
	tasks   map[string]topo.ReplicationTask
	calls   []Call
	failOps map[Call]error
	peers   map[string]*Cluster
	hooks   map[Call]func()
}

var _ topo.Cluster = (*Cluster)(nil)

// New creates a cluster reachable at baseURL holding the named empty databases.
func New(baseURL string, dbs ...string) *Cluster {
	c := &Cluster{
		url:     strings.TrimRight(baseURL, "/"),
		dbs:     make(map[string]*Database),
		tasks:   make(map[string]topo.ReplicationTask),
		failOps: make(map[Call]error),
		peers:   make(map[string]*Cluster),
		hooks:   make(map[Call]func()),
	}

	for _, db := range dbs {
		c.dbs[db] = &Database{Docs: map[string]string{}}
	}

	return c
}

// Link makes peers resolvable by ReplicateInto on every given cluster.
func Link(clusters ...*Cluster) {
	for _, c := range clusters {
		c.mu.Lock()
		for _, p := range clusters {
			c.peers[p.url] = p
		}
		c.mu.Unlock()
	}
}

// Put stores a document in db, creating db if needed.
func (c *Cluster) Put(db, id, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.dbs[db]
	if !ok {
		d = &Database{Docs: map[string]string{}}
		c.dbs[db] = d
	}

	d.Docs[id] = body
}

// SetSecurity sets the security object of db.
func (c *Cluster) SetSecurity(db, sec string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dbs[db].Security = json.RawMessage(sec)
}

// FailOn makes op on db return err. An empty db matches any database.
func (c *Cluster) FailOn(op, db string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failOps[Call{Op: op, DB: db}] = err
}

// OnCall runs fn before op on db is executed.
func (c *Cluster) OnCall(op, db string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hooks[Call{Op: op, DB: db}] = fn
}

// Calls returns recorded operations in execution order.
func (c *Cluster) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]Call(nil), c.calls...)
}

// CallsFor returns recorded operations named op.
func (c *Cluster) CallsFor(op string) []string {
	var rv []string

	for _, call := range c.Calls() {
		if call.Op == op {
			rv = append(rv, call.DB)
		}
	}

	return rv
}

// Databases returns the current database set.
func (c *Cluster) Databases() topo.DatabaseSet {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := make(topo.DatabaseSet, len(c.dbs))
	for db := range c.dbs {
		set[db] = struct{}{}
	}

	return set
}

// Database returns a copy of db.
func (c *Cluster) Database(db string) (Database, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.dbs[db]
	if !ok {
		return Database{}, false
	}

	return Database{Security: d.Security, Docs: maps.Clone(d.Docs)}, true
}

// Tasks returns submitted replication tasks by id.
func (c *Cluster) Tasks() map[string]topo.ReplicationTask {
	c.mu.Lock()
	defer c.mu.Unlock()

	return maps.Clone(c.tasks)
}

func (c *Cluster) URL() string      { return c.url }
func (c *Cluster) Redacted() string { return redact(c.url) }

func (c *Cluster) ListDatabases(ctx context.Context) ([]string, error) {
	err := c.enter(ctx, "list", "")
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rv := make([]string, 0, len(c.dbs))
	for db := range c.dbs {
		rv = append(rv, db)
	}

	return rv, nil
}

func (c *Cluster) CreateDatabase(ctx context.Context, db string) error {
	err := c.enter(ctx, "create", db)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.dbs[db]; ok {
		return couch.AlreadyExistsError{Kind: "database", Name: db}
	}

	c.dbs[db] = &Database{Docs: map[string]string{}}

	return nil
}

func (c *Cluster) DeleteDatabase(ctx context.Context, db string) error {
	err := c.enter(ctx, "delete", db)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.dbs[db]; !ok {
		return couch.NotFoundError{Kind: "database", Name: db}
	}

	delete(c.dbs, db)

	return nil
}

func (c *Cluster) GetSecurityObject(ctx context.Context, db string) (topo.SecurityObject, error) {
	err := c.enter(ctx, "get_security", db)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.dbs[db]
	if !ok {
		return nil, couch.NotFoundError{Kind: "database", Name: db}
	}

	if len(d.Security) == 0 {
		return json.RawMessage("{}"), nil
	}

	return d.Security, nil
}

func (c *Cluster) PutSecurityObject(ctx context.Context, db string, sec topo.SecurityObject) error {
	err := c.enter(ctx, "put_security", db)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.dbs[db]
	if !ok {
		return couch.NotFoundError{Kind: "database", Name: db}
	}

	d.Security = sec

	return nil
}

func (c *Cluster) SubmitReplicationTask(ctx context.Context, task *topo.ReplicationTask) error {
	err := c.enter(ctx, "submit_task", strings.TrimSuffix(task.Name, "_rep"))
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tasks[task.ID]; ok {
		return couch.AlreadyExistsError{Kind: "replication task", Name: task.ID}
	}

	c.tasks[task.ID] = *task

	return nil
}

// ReplicateInto copies documents between linked clusters. The target database must exist.
func (c *Cluster) ReplicateInto(
	ctx context.Context,
	sourceURL string,
	targetURL string,
) (*topo.ReplicationResult, error) {
	srcCluster, srcDB := c.lookup(sourceURL)
	dstCluster, dstDB := c.lookup(targetURL)

	err := c.enter(ctx, "replicate", dstDB)
	if err != nil {
		return nil, couch.ReplicationError{
			Source: redact(sourceURL),
			Target: redact(targetURL),
			Err:    err,
		}
	}

	if srcCluster == nil || dstCluster == nil {
		return nil, couch.ReplicationError{
			Source: redact(sourceURL),
			Target: redact(targetURL),
			Reason: "unknown cluster",
		}
	}

	src, ok := srcCluster.Database(srcDB)
	if !ok {
		return nil, couch.ReplicationError{Source: redact(sourceURL), Reason: "db_not_found"}
	}

	dstCluster.mu.Lock()
	defer dstCluster.mu.Unlock()

	dst, ok := dstCluster.dbs[dstDB]
	if !ok {
		return nil, couch.ReplicationError{Target: redact(targetURL), Reason: "db_not_found"}
	}

	written := int64(0)

	for id, body := range src.Docs {
		if dst.Docs[id] != body {
			dst.Docs[id] = body
			written++
		}
	}

	return &topo.ReplicationResult{
		NoChanges:   written == 0,
		DocsRead:    int64(len(src.Docs)),
		DocsWritten: written,
	}, nil
}

func (c *Cluster) enter(ctx context.Context, op, db string) error {
	c.mu.Lock()
	call := Call{Op: op, DB: db}
	c.calls = append(c.calls, call)

	hook := c.hooks[call]

	err, ok := c.failOps[call]
	if !ok {
		err = c.failOps[Call{Op: op}]
	}
	c.mu.Unlock()

	if hook != nil {
		hook()
	}

	if ctx.Err() != nil {
		return couch.ConnectivityError{Op: op, URL: c.Redacted(), Err: ctx.Err()}
	}

	return err
}

func (c *Cluster) lookup(rawURL string) (*Cluster, string) {
	base, escaped, ok := cutLast(strings.TrimRight(rawURL, "/"), "/")
	if !ok {
		return nil, ""
	}

	db, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.peers[base], db
}

func cutLast(s, sep string) (string, string, bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return "", "", false
	}

	return s[:i], s[i+len(sep):], true
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.User = nil

	return u.String()
}

// ErrUnreachable is a ready-made connectivity failure.
var ErrUnreachable = couch.ConnectivityError{ //nolint:gochecknoglobals
	Op:  "request",
	Err: errors.New("connection refused"),
}
