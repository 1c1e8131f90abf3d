package graph

import (
	"context"
)

// Outcome describes how a task finished in one invocation
type Outcome int

const (
	// OutcomeSuccess means the task executed and passed
	OutcomeSuccess Outcome = iota
	// OutcomeFailed means the task executed (or replayed a cached run) and failed
	OutcomeFailed
	// OutcomeUpToDate means the task was skipped because nothing relevant changed
	OutcomeUpToDate
	// OutcomeFromCache means the task outputs were restored from a shared cache
	OutcomeFromCache
	// OutcomeNoSource means the task had no files in scope
	OutcomeNoSource
	// OutcomeSkipped means the task could not run, e.g. after cancellation
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeFailed:
		return "FAILED"
	case OutcomeUpToDate:
		return "UP-TO-DATE"
	case OutcomeFromCache:
		return "FROM-CACHE"
	case OutcomeNoSource:
		return "NO-SOURCE"
	case OutcomeSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// DidWork reports whether the outcome involved executing the task action
func (o Outcome) DidWork() bool {
	return o == OutcomeSuccess || o == OutcomeFailed
}

// TaskResult represents the result of executing a task
type TaskResult struct {
	// Outcome classifies how the task finished
	Outcome Outcome
	// Message is a short human readable summary, e.g. "3 violations"
	Message string
	// Details holds extra console lines such as violation listings
	Details []string
	// Error contains any error that caused the task to fail
	Error error
}

// Failed reports whether the result counts as a failure
func (r TaskResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}

// Task represents a unit of work in the build graph
type Task interface {
	// ID returns the unique task name, e.g. "ktlintMainSourceSetCheck"
	ID() string

	// Description returns a one-line description used by task listings
	Description() string

	// Visible reports whether the task shows up in the default task listing.
	// Hidden tasks are only listed with --all.
	Visible() bool

	// Dependencies returns the list of tasks that must complete before this task can run
	Dependencies() []Task

	// Execute runs the task. deps holds the results of all dependency tasks.
	Execute(ctx context.Context, deps []ExecutionResult) TaskResult
}
