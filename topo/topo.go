// Package topo describes the database topology of a CouchDB cluster and resolves
// the database sets that a replication run works on.
package topo

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
)

const (
	// ReplicatorDatabase holds replication task documents. It is never replicated or cloned.
	ReplicatorDatabase = "_replicator"
	// UsersDatabase holds cluster authentication state. It is never deleted on the destination.
	UsersDatabase = "_users"
)

// SecurityObject is the raw _security document of a database. It is copied verbatim.
type SecurityObject = json.RawMessage

// ReplicationTask is a continuous replication document stored in the [ReplicatorDatabase].
type ReplicationTask struct {
	ID         string `json:"_id"`
	Name       string `json:"name"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	Continuous bool   `json:"continuous"`
}

// ReplicationResult summarizes a one-shot content replication.
type ReplicationResult struct {
	NoChanges        bool  `json:"no_changes,omitempty"`
	DocsRead         int64 `json:"docs_read"`
	DocsWritten      int64 `json:"docs_written"`
	DocWriteFailures int64 `json:"doc_write_failures"`
}

// Cluster is the set of operations a run needs from one cluster endpoint.
type Cluster interface {
	// URL returns the endpoint base URL with credentials, without a trailing slash.
	URL() string
	// Redacted returns the endpoint location without credentials.
	Redacted() string

	ListDatabases(ctx context.Context) ([]string, error)
	CreateDatabase(ctx context.Context, db string) error
	DeleteDatabase(ctx context.Context, db string) error
	GetSecurityObject(ctx context.Context, db string) (SecurityObject, error)
	PutSecurityObject(ctx context.Context, db string, sec SecurityObject) error
	SubmitReplicationTask(ctx context.Context, task *ReplicationTask) error
	ReplicateInto(ctx context.Context, sourceURL, targetURL string) (*ReplicationResult, error)
}

// DatabaseSet is a snapshot of database names present on a cluster.
type DatabaseSet map[string]struct{}

// NewDatabaseSet builds a set from names.
func NewDatabaseSet(names ...string) DatabaseSet {
	s := make(DatabaseSet, len(names))
	for _, name := range names {
		s[name] = struct{}{}
	}

	return s
}

// Has reports whether db is in the set.
func (s DatabaseSet) Has(db string) bool {
	_, ok := s[db]

	return ok
}

// Names returns the database names sorted.
func (s DatabaseSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Len returns the number of databases in the set.
func (s DatabaseSet) Len() int {
	return len(s)
}

// DatabaseURL returns the credentialed URL of db on cluster c.
func DatabaseURL(c Cluster, db string) string {
	return c.URL() + "/" + url.PathEscape(db)
}
