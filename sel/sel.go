package sel

import (
	"path"
	"strings"
)

// DBFilter returns true if a database is allowed.
type DBFilter func(db string) bool

func AllowAllFilter(string) bool {
	return true
}

// MakeFilter builds a database filter from include and exclude patterns.
// Patterns use [path.Match] syntax ("logs_*", "app_?"). Exclusion takes precedence;
// with a non-empty include list only matching databases are allowed.
func MakeFilter(include, exclude []string) DBFilter {
	include = compact(include)
	exclude = compact(exclude)

	if len(include) == 0 && len(exclude) == 0 {
		return AllowAllFilter
	}

	return func(db string) bool {
		if matchAny(exclude, db) {
			return false
		}

		if len(include) != 0 {
			return matchAny(include, db)
		}

		return true
	}
}

// ValidatePatterns returns the first malformed pattern.
func ValidatePatterns(patterns []string) (string, bool) {
	for _, p := range patterns {
		_, err := path.Match(p, "")
		if err != nil {
			return p, false
		}
	}

	return "", true
}

func matchAny(patterns []string, db string) bool {
	for _, p := range patterns {
		if p == db {
			return true
		}

		ok, err := path.Match(p, db)
		if err == nil && ok {
			return true
		}
	}

	return false
}

func compact(patterns []string) []string {
	rv := make([]string, 0, len(patterns))

	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p != "" {
			rv = append(rv, p)
		}
	}

	return rv
}
