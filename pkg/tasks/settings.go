// Package tasks builds the lint task graph: a check and a format task per
// source set, the two aggregates over them, and the IDE style meta tasks.
package tasks

import (
	"fmt"
	"path/filepath"

	"klint/pkg/reporter"
	"klint/pkg/sourceset"
	"klint/pkg/version"
)

const (
	CheckAllName            = "ktlintCheck"
	FormatAllName           = "ktlintFormat"
	ApplyToIdeaName         = "ktlintApplyToIdea"
	ApplyToIdeaGloballyName = "ktlintApplyToIdeaGlobally"
)

// CheckName returns the check task name for a source set, e.g. "ktlintMainSourceSetCheck"
func CheckName(set *sourceset.SourceSet) string {
	return "ktlint" + set.TaskSuffix() + "SourceSetCheck"
}

// FormatName returns the format task name for a source set
func FormatName(set *sourceset.SourceSet) string {
	return "ktlint" + set.TaskSuffix() + "SourceSetFormat"
}

// Settings is the configuration shared by every task. It is resolved once and
// never changed while tasks run.
type Settings struct {
	// ProjectDir is the absolute project directory
	ProjectDir string
	// LinterVersion is the ktlint version the tasks run with
	LinterVersion string
	// MinVersion is the version gate floor
	MinVersion string
	// Reporters are the enabled report formats
	Reporters []reporter.Type
	// Filters apply to every source set
	Filters sourceset.Filters
	// ReportsDir is where report artifacts are written, relative to ProjectDir unless absolute
	ReportsDir string
	// IgnoreFailures lets check and format tasks pass despite violations
	IgnoreFailures bool
	// OutputToConsole prints every violation after a task finishes
	OutputToConsole bool
	// PruneStaleReports removes reports of disabled reporters after a task writes its reports
	PruneStaleReports bool
}

// DefaultReportsDir is the reports directory relative to the project
const DefaultReportsDir = "build/reports/ktlint"

// Validate checks the settings, including the version gate
func (s Settings) Validate() error {
	if !filepath.IsAbs(s.ProjectDir) {
		return fmt.Errorf("project directory must be absolute: %s", s.ProjectDir)
	}
	if err := version.NewGate(s.MinVersion).Check(s.LinterVersion); err != nil {
		return err
	}
	for _, t := range s.Reporters {
		if !t.AvailableFor(s.LinterVersion) {
			return fmt.Errorf("reporter %s requires ktlint %s or newer", t, t.AvailableSince())
		}
	}
	return s.Filters.Validate()
}

// reportsDir returns the absolute reports directory
func (s Settings) reportsDir() string {
	dir := s.ReportsDir
	if dir == "" {
		dir = DefaultReportsDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.ProjectDir, filepath.FromSlash(dir))
}

func (s Settings) flags() []string {
	return []string{fmt.Sprintf("ignoreFailures=%t", s.IgnoreFailures)}
}
