package couch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/percona/percona-clustersync-couchdb/errors"
)

// ConnectivityError reports a transport failure, an unexpected response status,
// a malformed response body, or an expired per-call timeout.
type ConnectivityError struct {
	Op         string
	URL        string // without credentials
	StatusCode int    // 0 when no response was received
	Reason     string
	Err        error
}

func (e ConnectivityError) Error() string {
	msg := e.Op + " " + e.URL
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}

	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return "connectivity: " + msg
}

func (e ConnectivityError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same idempotent call may succeed.
func (e ConnectivityError) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) {
		return false
	}

	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// AlreadyExistsError reports that a database or replication task is already present.
type AlreadyExistsError struct {
	Kind string
	Name string
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

// NotFoundError reports that a database is missing.
type NotFoundError struct {
	Kind string
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// ReplicationError reports a failed one-shot content replication.
type ReplicationError struct {
	Source string // without credentials
	Target string // without credentials
	Reason string
	Err    error
}

func (e ReplicationError) Error() string {
	msg := "replicate " + e.Source + " -> " + e.Target
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e ReplicationError) Unwrap() error {
	return e.Err
}

// IsAlreadyExists reports whether err is an [AlreadyExistsError].
func IsAlreadyExists(err error) bool {
	return errors.Has[AlreadyExistsError](err)
}

// IsNotFound reports whether err is a [NotFoundError].
func IsNotFound(err error) bool {
	return errors.Has[NotFoundError](err)
}
