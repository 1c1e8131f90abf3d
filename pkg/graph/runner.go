package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("klint/graph")

// ExecutionResult represents the result of executing a task
type ExecutionResult struct {
	Task     Task
	Result   TaskResult
	Duration time.Duration
}

// ProgressCallback is called when a task starts (finished=false) and when it finishes
type ProgressCallback func(task Task, finished bool, result ExecutionResult)

// FailedTasksError is returned when one or more tasks failed
type FailedTasksError struct {
	Tasks []string
}

func (e *FailedTasksError) Error() string {
	return fmt.Sprintf("%d task(s) failed: %s", len(e.Tasks), strings.Join(e.Tasks, ", "))
}

// Runner executes tasks in a graph
type Runner struct {
	progress ProgressCallback
	workers  int
}

// NewRunner creates a new runner using the given number of parallel workers
func NewRunner(workers int, progress ProgressCallback) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		progress: progress,
		workers:  workers,
	}
}

// Execute runs all tasks in the graph. A failing task does not stop tasks that
// do not depend on it; dependents still run and see the failure in their inputs.
// Results are returned in completion order.
func (r *Runner) Execute(ctx context.Context, graph *Graph) ([]ExecutionResult, error) {
	var (
		results []ExecutionResult
		err     error
	)
	if r.workers <= 1 {
		results, err = r.executeSequential(ctx, graph)
	} else {
		results, err = r.executeParallel(ctx, graph)
	}
	if err != nil {
		return results, err
	}

	var failed []string
	for _, res := range results {
		if res.Result.Failed() {
			failed = append(failed, res.Task.ID())
		}
	}
	if len(failed) > 0 {
		return results, &FailedTasksError{Tasks: failed}
	}
	return results, nil
}

// executeSequential runs tasks one by one in topological order
func (r *Runner) executeSequential(ctx context.Context, graph *Graph) ([]ExecutionResult, error) {
	orderedTasks, err := graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("failed to sort tasks: %w", err)
	}

	var results []ExecutionResult
	executed := make(map[string]ExecutionResult)

	for _, task := range orderedTasks {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		result := r.executeTask(ctx, task, executed)
		results = append(results, result)
		executed[task.ID()] = result
	}

	return results, nil
}

// executeParallel runs tasks using worker goroutines
func (r *Runner) executeParallel(ctx context.Context, graph *Graph) ([]ExecutionResult, error) {
	allTasks, err := graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("failed to sort tasks: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inDegree := make(map[string]int)       // task ID -> number of unfinished dependencies
	dependents := make(map[string][]Task) // task ID -> tasks waiting on it
	for _, task := range allTasks {
		inDegree[task.ID()] = len(task.Dependencies())
		for _, dep := range task.Dependencies() {
			dependents[dep.ID()] = append(dependents[dep.ID()], task)
		}
	}

	taskQueue := make(chan Task, len(allTasks))
	resultChan := make(chan ExecutionResult, len(allTasks))
	executed := &SafeExecutedTasks{tasks: make(map[string]ExecutionResult)}

	for _, task := range allTasks {
		if inDegree[task.ID()] == 0 {
			taskQueue <- task
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx, taskQueue, resultChan, executed)
		}()
	}
	defer func() {
		close(taskQueue)
		wg.Wait()
	}()

	var results []ExecutionResult
	for len(results) < len(allTasks) {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case result := <-resultChan:
			results = append(results, result)
			executed.Set(result.Task.ID(), result)

			for _, task := range dependents[result.Task.ID()] {
				inDegree[task.ID()]--
				if inDegree[task.ID()] == 0 {
					taskQueue <- task
				}
			}
		}
	}

	return results, nil
}

// SafeExecutedTasks provides thread-safe access to executed tasks
type SafeExecutedTasks struct {
	tasks map[string]ExecutionResult
	mu    sync.RWMutex
}

func (s *SafeExecutedTasks) Set(taskID string, result ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[taskID] = result
}

func (s *SafeExecutedTasks) ToMap() map[string]ExecutionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]ExecutionResult, len(s.tasks))
	for k, v := range s.tasks {
		result[k] = v
	}
	return result
}

// worker executes tasks from the queue until it is closed or the context ends
func (r *Runner) worker(ctx context.Context, taskQueue <-chan Task, resultChan chan<- ExecutionResult, executed *SafeExecutedTasks) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-taskQueue:
			if !ok {
				return
			}

			result := r.executeTask(ctx, task, executed.ToMap())

			select {
			case resultChan <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}

// executeTask executes a single task with the results of its dependencies
func (r *Runner) executeTask(ctx context.Context, task Task, executed map[string]ExecutionResult) ExecutionResult {
	if r.progress != nil {
		r.progress(task, false, ExecutionResult{Task: task})
	}

	ctx, span := tracer.Start(ctx, task.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("klint.dependencies", len(task.Dependencies()))))
	defer span.End()

	var deps []ExecutionResult
	for _, dep := range task.Dependencies() {
		if res, ok := executed[dep.ID()]; ok {
			deps = append(deps, res)
		}
	}

	start := time.Now()
	var taskResult TaskResult
	if ctx.Err() != nil {
		taskResult = TaskResult{Outcome: OutcomeSkipped, Error: ctx.Err()}
	} else {
		taskResult = task.Execute(ctx, deps)
	}
	result := ExecutionResult{
		Task:     task,
		Result:   taskResult,
		Duration: time.Since(start),
	}

	span.SetAttributes(attribute.String("klint.outcome", taskResult.Outcome.String()))
	if taskResult.Failed() {
		span.SetStatus(codes.Error, taskResult.Message)
	}

	if r.progress != nil {
		r.progress(task, true, result)
	}
	return result
}

// ExecuteTask executes a single task without dependency results (useful for testing)
func (r *Runner) ExecuteTask(ctx context.Context, task Task) ExecutionResult {
	return r.executeTask(ctx, task, make(map[string]ExecutionResult))
}
