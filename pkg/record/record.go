// Package record persists the last fingerprint and outputs of every task.
package record

import (
	"errors"

	"klint/pkg/reporter"
)

// ErrCorrupt marks a stored record that cannot be decoded. Callers treat it as
// if no record existed.
var ErrCorrupt = errors.New("corrupt task record")

// Output is a declared task output and the sha256 of its content when recorded.
// Path is project-relative when the output lives inside the project.
type Output struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// TaskRecord is what a task left behind after its last execution. A new
// execution replaces the record; records are never merged.
type TaskRecord struct {
	Task        string               `json:"task"`
	Fingerprint string               `json:"fingerprint"`
	Outputs     []Output             `json:"outputs"`
	Failed      bool                 `json:"failed,omitempty"`
	Violations  []reporter.Violation `json:"violations,omitempty"`
	Summary     string               `json:"summary,omitempty"`
}

// Store loads and saves task records keyed by task name
type Store interface {
	// Load returns the record for task, or nil when none exists
	Load(task string) (*TaskRecord, error)
	// Save replaces the record for rec.Task
	Save(rec *TaskRecord) error
	// Close releases resources held by the store
	Close() error
}
