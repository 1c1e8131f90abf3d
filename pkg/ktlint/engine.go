// Package ktlint talks to the ktlint linter and formatter.
package ktlint

import (
	"context"

	"klint/pkg/reporter"
	"klint/pkg/version"
)

// Request names the files to lint or format
type Request struct {
	// ProjectDir is used to report violations with project-relative paths
	ProjectDir string
	// Files are absolute paths
	Files []string
}

// FormatResult describes a formatting run
type FormatResult struct {
	// Rewritten are the absolute paths of files whose content changed
	Rewritten []string
	// Remaining are violations the formatter could not fix
	Remaining []reporter.Violation
}

// Engine is the linter/formatter. Style config files are picked up by the
// engine itself from the directories of the files it processes.
type Engine interface {
	Lint(ctx context.Context, req Request) ([]reporter.Violation, error)
	Format(ctx context.Context, req Request) (FormatResult, error)
	// ApplyToIdea writes ktlint's code style into the IDE config, either the
	// project's .idea directory or the user's global IDE settings
	ApplyToIdea(ctx context.Context, projectDir string, global bool) error
}

const (
	legacyGroup = "com.github.shyiko"
	group       = "com.pinterest"
	// releases from this version on are published under the new group
	groupChange = "0.32.0"
)

// Coordinate returns the Maven coordinate of the ktlint release
func Coordinate(v string) string {
	if version.AtLeast(v, groupChange) {
		return group + ":ktlint:" + v
	}
	return legacyGroup + ":ktlint:" + v
}
