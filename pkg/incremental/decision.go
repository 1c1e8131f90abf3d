// Package incremental decides whether a task must run, and applies that decision.
//
// For every task the evaluator compares the current input fingerprint with the
// last record and the state of the declared outputs:
//
//   - same fingerprint and every recorded output intact: SKIP
//   - otherwise, a build cache entry for the fingerprint: RESTORE
//   - otherwise: EXECUTE
//
// The decision is recomputed on every invocation; nothing about a running
// task is persisted.
package incremental

import (
	"context"

	"klint/pkg/fingerprint"
	"klint/pkg/reporter"
)

// Decision is the outcome of evaluating a task
type Decision int

const (
	Unknown Decision = iota
	Skip
	Restore
	Execute
)

func (d Decision) String() string {
	switch d {
	case Skip:
		return "SKIP"
	case Restore:
		return "RESTORE"
	case Execute:
		return "EXECUTE"
	default:
		return "UNKNOWN"
	}
}

// Verdict is what a task's action reports back
type Verdict struct {
	// Failed marks the task as failed, e.g. a check that found violations
	Failed bool
	// Violations are recorded so a skipped task can report them again
	Violations []reporter.Violation
	// Summary is a short console message
	Summary string
}

// Work is a unit the evaluator can skip, restore or execute
type Work interface {
	// Name is the task name; records are keyed by it
	Name() string
	// Fingerprint computes the identity of the current inputs
	Fingerprint(ctx context.Context) (fingerprint.Fingerprint, error)
	// Outputs returns the absolute paths of every declared output
	Outputs() []string
	// Cacheable reports whether results may be shared through the build cache
	Cacheable() bool
	// Perform runs the task action and writes every declared output
	Perform(ctx context.Context) (Verdict, error)
}
