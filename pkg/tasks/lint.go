package tasks

import (
	"context"
	"fmt"
	"sync"

	"klint/pkg/fingerprint"
	"klint/pkg/graph"
	"klint/pkg/incremental"
	"klint/pkg/ktlint"
	"klint/pkg/reporter"
	"klint/pkg/sourceset"
)

type lintKind string

const (
	kindCheck  lintKind = "check"
	kindFormat lintKind = "format"
)

// lintTask is the shared part of the per-source-set check and format tasks
type lintTask struct {
	name string
	kind lintKind
	set  *sourceset.SourceSet
	env  *environment
	// setLock serializes the check and format tasks of one source set, since
	// format rewrites the files check reads
	setLock *sync.Mutex
}

func (t *lintTask) ID() string {
	return t.name
}

func (t *lintTask) Visible() bool {
	return false
}

func (t *lintTask) Dependencies() []graph.Task {
	return nil
}

// SourceSet returns the source set the task works on
func (t *lintTask) SourceSet() *sourceset.SourceSet {
	return t.set
}

// Outputs returns the declared report artifacts
func (t *lintTask) Outputs() []string {
	return t.env.reports.Outputs(t.name, t.env.settings.Reporters)
}

func (t *lintTask) execute(ctx context.Context, perform func(ctx context.Context, files []string) (incremental.Verdict, error), cacheable bool) graph.TaskResult {
	t.setLock.Lock()
	defer t.setLock.Unlock()

	files, err := t.env.resolver.Resolve(t.set, t.env.settings.Filters)
	if err != nil {
		return graph.TaskResult{Outcome: graph.OutcomeFailed, Message: err.Error(), Error: err}
	}
	if len(files) == 0 {
		return graph.TaskResult{Outcome: graph.OutcomeNoSource, Message: "no source files"}
	}

	work := &lintWork{task: t, files: files, cacheable: cacheable, perform: perform}
	return t.env.evaluator.Run(ctx, work)
}

// fingerprint hashes the task inputs
func (t *lintTask) fingerprint(ctx context.Context, files []string) (fingerprint.Fingerprint, error) {
	digests, err := t.env.hasher.Digest(ctx, files)
	if err != nil {
		return "", err
	}
	styleFiles, err := fingerprint.StyleConfigFiles(t.env.hasher.Root(), t.set.Roots())
	if err != nil {
		return "", fmt.Errorf("failed to find style config files: %w", err)
	}
	styleDigests, err := t.env.hasher.Digest(ctx, styleFiles)
	if err != nil {
		return "", err
	}

	return fingerprint.Compute(fingerprint.Inputs{
		Task:          t.name,
		Kind:          string(t.kind),
		Files:         digests,
		StyleConfigs:  styleDigests,
		LinterVersion: t.env.settings.LinterVersion,
		Reporters:     reporter.Names(t.env.settings.Reporters),
		Filters:       t.env.settings.Filters.Normalized(),
		Flags:         t.env.settings.flags(),
	}), nil
}

// emit writes the reports for violations and optionally prunes stale ones
func (t *lintTask) emit(violations []reporter.Violation) error {
	if _, err := t.env.reports.Emit(violations, t.env.settings.Reporters, t.name); err != nil {
		return err
	}
	if t.env.settings.PruneStaleReports {
		removed, err := t.env.reports.Prune(t.name, t.env.settings.Reporters)
		if err != nil {
			return err
		}
		for _, path := range removed {
			t.env.logger.Info("removed stale report", "task", t.name, "path", path)
		}
	}
	return nil
}

func (t *lintTask) verdict(violations []reporter.Violation, summary string) incremental.Verdict {
	return incremental.Verdict{
		Failed:     len(violations) > 0 && !t.env.settings.IgnoreFailures,
		Violations: violations,
		Summary:    summary,
	}
}

// lintWork adapts a resolved lint task to the evaluator
type lintWork struct {
	task      *lintTask
	files     []string
	cacheable bool
	perform   func(ctx context.Context, files []string) (incremental.Verdict, error)
}

func (w *lintWork) Name() string {
	return w.task.name
}

func (w *lintWork) Fingerprint(ctx context.Context) (fingerprint.Fingerprint, error) {
	return w.task.fingerprint(ctx, w.files)
}

// Outputs of a format task include the sources it rewrites, so sources put
// back to their pre-format bytes are formatted again
func (w *lintWork) Outputs() []string {
	outputs := w.task.Outputs()
	if w.task.kind == kindFormat {
		outputs = append(outputs, w.files...)
	}
	return outputs
}

func (w *lintWork) Cacheable() bool {
	return w.cacheable
}

func (w *lintWork) Perform(ctx context.Context) (incremental.Verdict, error) {
	return w.perform(ctx, w.files)
}

// CheckTask lints one source set and writes reports
type CheckTask struct {
	lintTask
}

func (t *CheckTask) Description() string {
	return fmt.Sprintf("Runs a check against all .kt files in the %s source set.", t.set.Name)
}

func (t *CheckTask) Execute(ctx context.Context, deps []graph.ExecutionResult) graph.TaskResult {
	return t.execute(ctx, t.perform, true)
}

func (t *CheckTask) perform(ctx context.Context, files []string) (incremental.Verdict, error) {
	violations, err := t.env.engine.Lint(ctx, ktlint.Request{ProjectDir: t.env.settings.ProjectDir, Files: files})
	if err != nil {
		return incremental.Verdict{}, err
	}
	if err := t.emit(violations); err != nil {
		return incremental.Verdict{}, err
	}
	return t.verdict(violations, violationSummary(len(violations))), nil
}

// FormatTask formats one source set in place and reports what it could not fix.
// Its fingerprint describes the files before formatting, so the run after a
// rewriting run executes again and only the one after that is up to date.
type FormatTask struct {
	lintTask
}

func (t *FormatTask) Description() string {
	return fmt.Sprintf("Runs the formatter on all .kt files in the %s source set.", t.set.Name)
}

func (t *FormatTask) Execute(ctx context.Context, deps []graph.ExecutionResult) graph.TaskResult {
	return t.execute(ctx, t.perform, false)
}

func (t *FormatTask) perform(ctx context.Context, files []string) (incremental.Verdict, error) {
	res, err := t.env.engine.Format(ctx, ktlint.Request{ProjectDir: t.env.settings.ProjectDir, Files: files})
	if len(res.Rewritten) > 0 {
		t.env.hasher.Forget(res.Rewritten)
	}
	if err != nil {
		return incremental.Verdict{}, err
	}
	if err := t.emit(res.Remaining); err != nil {
		return incremental.Verdict{}, err
	}

	summary := fmt.Sprintf("formatted %d file(s)", len(res.Rewritten))
	if len(res.Remaining) > 0 {
		summary += ", " + violationSummary(len(res.Remaining)) + " left"
	}
	return t.verdict(res.Remaining, summary), nil
}

func violationSummary(n int) string {
	switch n {
	case 0:
		return "no violations"
	case 1:
		return "1 violation"
	default:
		return fmt.Sprintf("%d violations", n)
	}
}
