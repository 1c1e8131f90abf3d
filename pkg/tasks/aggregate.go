package tasks

import (
	"context"
	"fmt"

	"klint/pkg/graph"
)

// AggregateTask runs nothing itself; it succeeds when all of its children do
type AggregateTask struct {
	name        string
	description string
	children    []graph.Task
}

func (t *AggregateTask) ID() string {
	return t.name
}

func (t *AggregateTask) Description() string {
	return t.description
}

func (t *AggregateTask) Visible() bool {
	return true
}

func (t *AggregateTask) Dependencies() []graph.Task {
	return t.children
}

// Children returns the aggregated tasks
func (t *AggregateTask) Children() []graph.Task {
	return t.children
}

func (t *AggregateTask) Execute(ctx context.Context, deps []graph.ExecutionResult) graph.TaskResult {
	var failed, worked, noSource, skipped int
	for _, dep := range deps {
		switch {
		case dep.Result.Failed():
			failed++
		case dep.Result.Outcome.DidWork():
			worked++
		case dep.Result.Outcome == graph.OutcomeNoSource:
			noSource++
		case dep.Result.Outcome == graph.OutcomeSkipped:
			skipped++
		}
	}

	switch {
	case failed > 0:
		msg := fmt.Sprintf("%d of %d task(s) failed", failed, len(deps))
		return graph.TaskResult{Outcome: graph.OutcomeFailed, Message: msg, Error: fmt.Errorf("%s", msg)}
	case skipped > 0:
		return graph.TaskResult{Outcome: graph.OutcomeSkipped, Message: fmt.Sprintf("%d task(s) did not run", skipped)}
	case worked > 0:
		return graph.TaskResult{Outcome: graph.OutcomeSuccess}
	case noSource == len(deps):
		return graph.TaskResult{Outcome: graph.OutcomeNoSource}
	default:
		return graph.TaskResult{Outcome: graph.OutcomeUpToDate}
	}
}
