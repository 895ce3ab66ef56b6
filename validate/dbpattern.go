package validate

import (
	"github.com/go-playground/validator/v10"

	"github.com/percona/percona-clustersync-couchdb/sel"
)

// validateDBPattern checks that a database name pattern is well-formed.
// Tag usage: dive,dbpattern
func validateDBPattern(fl validator.FieldLevel) bool {
	_, ok := sel.ValidatePatterns([]string{fl.Field().String()})

	return ok
}
