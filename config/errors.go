package config

import (
	"fmt"
)

// Cause classifies a [ConfigurationError].
type Cause string

const (
	CauseMissingFile        Cause = "missing file"
	CauseMissingSection     Cause = "missing section"
	CauseMissingKey         Cause = "missing key"
	CauseInvalidValue       Cause = "invalid value"
	CauseMissingCredentials Cause = "missing credentials"
	CauseUnsupported        Cause = "unsupported"
)

// ConfigurationError is a startup configuration failure. It is reported before
// any database operation begins.
type ConfigurationError struct {
	Cause Cause
	// Key is the offending option, rc file path, section or key.
	Key string
	Err error
}

func (e ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration: %s %q", e.Cause, e.Key)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e ConfigurationError) Unwrap() error {
	return e.Err
}
