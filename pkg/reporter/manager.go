package reporter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"klint/pkg/fsutil"
)

// Manager writes report artifacts under a reports directory. Artifact paths
// follow <reports-dir>/<task-name>.<extension>.
type Manager struct {
	ReportsDir string
}

// NewManager creates a manager writing into reportsDir
func NewManager(reportsDir string) *Manager {
	return &Manager{ReportsDir: reportsDir}
}

// Path returns the artifact path for a task and reporter type
func (m *Manager) Path(taskName string, t Type) string {
	return filepath.Join(m.ReportsDir, taskName+"."+t.Extension())
}

// Outputs returns the declared artifact paths for a task, one per enabled reporter
func (m *Manager) Outputs(taskName string, enabled []Type) []string {
	sorted := make([]Type, len(enabled))
	copy(sorted, enabled)
	SortTypes(sorted)

	out := make([]string, 0, len(sorted))
	for _, t := range sorted {
		out = append(out, m.Path(taskName, t))
	}
	return out
}

// Emit writes one artifact per enabled reporter, including empty reports when
// there are no violations, and returns the written paths. Artifacts of
// reporters that are not enabled are left alone.
func (m *Manager) Emit(violations []Violation, enabled []Type, taskName string) ([]string, error) {
	if err := os.MkdirAll(m.ReportsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory %s: %w", m.ReportsDir, err)
	}

	sorted := SortViolations(violations)
	written := m.Outputs(taskName, enabled)

	for i, t := range sortedTypes(enabled) {
		info, ok := types[t]
		if !ok {
			return nil, fmt.Errorf("unknown reporter %s", t)
		}
		var buf bytes.Buffer
		if err := info.write(&buf, sorted); err != nil {
			return nil, fmt.Errorf("failed to render %s report: %w", t, err)
		}
		if err := fsutil.WriteFileAtomic(written[i], buf.Bytes(), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s report: %w", t, err)
		}
	}
	return written, nil
}

// Prune removes artifacts left behind for the task by reporters that are no
// longer enabled. Emit never does this on its own.
func (m *Manager) Prune(taskName string, enabled []Type) ([]string, error) {
	keep := make(map[Type]bool, len(enabled))
	for _, t := range enabled {
		keep[t] = true
	}

	var removed []string
	for _, t := range AllTypes() {
		if keep[t] {
			continue
		}
		path := m.Path(taskName, t)
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("failed to remove stale report %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}

func sortedTypes(ts []Type) []Type {
	out := make([]Type, len(ts))
	copy(out, ts)
	SortTypes(out)
	return out
}
