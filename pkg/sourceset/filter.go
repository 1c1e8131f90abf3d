package sourceset

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// FilterKind distinguishes include from exclude rules
type FilterKind int

const (
	Include FilterKind = iota
	Exclude
)

func (k FilterKind) String() string {
	if k == Exclude {
		return "exclude"
	}
	return "include"
}

// FilterRule is a single glob pattern matched against paths relative to a source root
type FilterRule struct {
	Kind    FilterKind
	Pattern string
}

// String returns the rule in "kind:pattern" form, the form hashed into fingerprints
func (r FilterRule) String() string {
	return r.Kind.String() + ":" + r.Pattern
}

// Filters is an ordered list of rules. Order does not affect matching: a path
// matched by any exclude rule is out of scope regardless of include rules.
type Filters []FilterRule

// NewFilters builds and validates a filter list from include and exclude patterns
func NewFilters(includes, excludes []string) (Filters, error) {
	var filters Filters
	for _, p := range includes {
		filters = append(filters, FilterRule{Kind: Include, Pattern: p})
	}
	for _, p := range excludes {
		filters = append(filters, FilterRule{Kind: Exclude, Pattern: p})
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	return filters, nil
}

// Validate checks every pattern is a well-formed glob
func (f Filters) Validate() error {
	for _, rule := range f {
		if !doublestar.ValidatePattern(rule.Pattern) {
			return fmt.Errorf("invalid %s pattern %q", rule.Kind, rule.Pattern)
		}
	}
	return nil
}

// Match reports whether relPath (slash or OS separated) is in scope
func (f Filters) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)

	hasInclude := false
	included := false
	for _, rule := range f {
		matched, _ := doublestar.Match(rule.Pattern, relPath)
		switch rule.Kind {
		case Exclude:
			if matched {
				return false
			}
		case Include:
			hasInclude = true
			if matched {
				included = true
			}
		}
	}
	return !hasInclude || included
}

// Normalized returns the rules as sorted, de-duplicated strings. Two filter lists
// that select the same files in every tree normalize identically.
func (f Filters) Normalized() []string {
	seen := make(map[string]struct{}, len(f))
	out := make([]string, 0, len(f))
	for _, rule := range f {
		s := rule.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
