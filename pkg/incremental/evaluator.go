package incremental

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"klint/pkg/buildcache"
	"klint/pkg/fingerprint"
	"klint/pkg/fsutil"
	"klint/pkg/graph"
	"klint/pkg/record"
	"klint/pkg/reporter"
)

var tracer = otel.Tracer("klint/incremental")

// Evaluation is the result of Evaluate
type Evaluation struct {
	Decision    Decision
	Fingerprint fingerprint.Fingerprint
	// Record is the previous record, if any
	Record *record.TaskRecord
	// Entry is the cache entry to restore when Decision is Restore
	Entry *buildcache.Entry
	// Reason explains the decision for verbose logs
	Reason string
}

// Evaluator classifies and runs incremental work
type Evaluator struct {
	ProjectDir string
	Store      record.Store
	// Cache is optional; without it RESTORE never happens
	Cache  buildcache.Cache
	Logger *slog.Logger

	locks sync.Map // task name -> *sync.Mutex
}

// NewEvaluator creates an evaluator. cache may be nil.
func NewEvaluator(projectDir string, store record.Store, cache buildcache.Cache, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if abs, err := filepath.Abs(projectDir); err == nil {
		projectDir = abs
	}
	return &Evaluator{
		ProjectDir: projectDir,
		Store:      store,
		Cache:      cache,
		Logger:     logger,
	}
}

func (e *Evaluator) lock(task string) func() {
	m, _ := e.locks.LoadOrStore(task, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Evaluate decides what Run would do for work without changing anything
func (e *Evaluator) Evaluate(ctx context.Context, work Work) (*Evaluation, error) {
	fp, err := work.Fingerprint(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint %s: %w", work.Name(), err)
	}
	eval := &Evaluation{Decision: Unknown, Fingerprint: fp}

	rec, err := e.Store.Load(work.Name())
	if err != nil {
		if !errors.Is(err, record.ErrCorrupt) {
			return nil, err
		}
		e.Logger.Warn("ignoring corrupt task record", "task", work.Name(), "error", err)
		rec = nil
	}
	eval.Record = rec

	switch {
	case rec == nil:
		eval.Reason = "no previous execution"
	case rec.Fingerprint != string(fp):
		eval.Reason = "inputs changed"
	default:
		if reason := e.outputsChanged(work, rec); reason != "" {
			eval.Reason = reason
		} else {
			eval.Decision = Skip
			eval.Reason = "inputs and outputs unchanged"
			return eval, nil
		}
	}

	if e.Cache != nil && work.Cacheable() {
		entry, err := e.Cache.Get(ctx, string(fp))
		if err != nil {
			e.Logger.Warn("build cache lookup failed", "task", work.Name(), "error", err)
		} else if entry != nil {
			if reason := e.unrestorable(work, entry); reason != "" {
				e.Logger.Warn("build cache entry cannot be restored", "task", work.Name(), "reason", reason)
			} else {
				eval.Decision = Restore
				eval.Entry = entry
				eval.Reason += ", build cache hit"
				return eval, nil
			}
		}
	}

	eval.Decision = Execute
	return eval, nil
}

// outputsChanged returns a reason when the recorded outputs no longer match the
// declared outputs or the files on disk
func (e *Evaluator) outputsChanged(work Work, rec *record.TaskRecord) string {
	recorded := make(map[string]bool, len(rec.Outputs))
	for _, out := range rec.Outputs {
		recorded[out.Path] = true
		path, err := e.outputPath(out.Path)
		if err != nil {
			return err.Error()
		}
		got, err := hashFile(path)
		if err != nil {
			return "output missing: " + out.Path
		}
		if got != out.Hash {
			return "output modified: " + out.Path
		}
	}

	for _, path := range work.Outputs() {
		if rel := e.relPath(path); !recorded[rel] {
			return "output not recorded: " + rel
		}
	}
	return ""
}

// outputPath resolves a recorded output path, which is absolute only for
// outputs outside the project
func (e *Evaluator) outputPath(recorded string) (string, error) {
	native := filepath.FromSlash(recorded)
	if filepath.IsAbs(native) {
		return native, nil
	}
	return e.absPath(recorded)
}

// unrestorable returns a reason when entry does not cover every declared
// output or holds an artifact that cannot be written inside the project
func (e *Evaluator) unrestorable(work Work, entry *buildcache.Entry) string {
	have := make(map[string]bool, len(entry.Artifacts))
	for _, a := range entry.Artifacts {
		if _, err := e.absPath(a.Path); err != nil {
			return err.Error()
		}
		have[a.Path] = true
	}
	for _, path := range work.Outputs() {
		if rel := e.relPath(path); !have[rel] {
			return "missing artifact " + rel
		}
	}
	return ""
}

// Run evaluates work and applies the decision. The task record is committed
// only after the action and every output write succeeded.
func (e *Evaluator) Run(ctx context.Context, work Work) graph.TaskResult {
	unlock := e.lock(work.Name())
	defer unlock()

	ctx, span := tracer.Start(ctx, work.Name())
	defer span.End()

	eval, err := e.Evaluate(ctx, work)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return graph.TaskResult{Outcome: graph.OutcomeFailed, Message: err.Error(), Error: err}
	}
	span.SetAttributes(
		attribute.String("klint.decision", eval.Decision.String()),
		attribute.String("klint.fingerprint", eval.Fingerprint.Short()),
	)
	e.Logger.Debug("task evaluated",
		"task", work.Name(),
		"decision", eval.Decision.String(),
		"fingerprint", eval.Fingerprint.Short(),
		"reason", eval.Reason)

	var result graph.TaskResult
	switch eval.Decision {
	case Skip:
		result = replay(graph.OutcomeUpToDate, eval.Record.Failed, eval.Record.Summary, eval.Record.Violations)
	case Restore:
		result = e.restore(ctx, work, eval)
	default:
		result = e.execute(ctx, work, eval)
	}

	if result.Failed() {
		span.SetStatus(codes.Error, result.Message)
	}
	return result
}

func (e *Evaluator) execute(ctx context.Context, work Work, eval *Evaluation) graph.TaskResult {
	verdict, err := work.Perform(ctx)
	if err != nil {
		return graph.TaskResult{Outcome: graph.OutcomeFailed, Message: err.Error(), Error: err}
	}
	if err := ctx.Err(); err != nil {
		return graph.TaskResult{Outcome: graph.OutcomeSkipped, Message: "cancelled", Error: err}
	}

	rec := &record.TaskRecord{
		Task:        work.Name(),
		Fingerprint: string(eval.Fingerprint),
		Failed:      verdict.Failed,
		Violations:  verdict.Violations,
		Summary:     verdict.Summary,
	}
	var artifacts []buildcache.Artifact
	relocatable := true
	for _, path := range work.Outputs() {
		content, err := os.ReadFile(path)
		if err != nil {
			err = fmt.Errorf("declared output %s was not written: %w", e.relPath(path), err)
			return graph.TaskResult{Outcome: graph.OutcomeFailed, Message: err.Error(), Error: err}
		}
		rel := e.relPath(path)
		if filepath.IsAbs(filepath.FromSlash(rel)) {
			relocatable = false
		}
		rec.Outputs = append(rec.Outputs, record.Output{Path: rel, Hash: hashBytes(content)})
		artifacts = append(artifacts, buildcache.Artifact{Path: rel, Content: content})
	}

	if err := e.Store.Save(rec); err != nil {
		e.Logger.Warn("failed to save task record", "task", work.Name(), "error", err)
	}

	switch {
	case e.Cache == nil || !work.Cacheable():
	case !relocatable:
		e.Logger.Debug("not caching outputs outside the project", "task", work.Name())
	default:
		entry := &buildcache.Entry{
			Fingerprint: string(eval.Fingerprint),
			Task:        work.Name(),
			Failed:      verdict.Failed,
			Violations:  verdict.Violations,
			Summary:     verdict.Summary,
			Artifacts:   artifacts,
		}
		if err := e.Cache.Put(ctx, entry); err != nil {
			e.Logger.Warn("failed to store build cache entry", "task", work.Name(), "error", err)
		}
	}

	return replay(graph.OutcomeSuccess, verdict.Failed, verdict.Summary, verdict.Violations)
}

func (e *Evaluator) restore(ctx context.Context, work Work, eval *Evaluation) graph.TaskResult {
	entry := eval.Entry
	rec := &record.TaskRecord{
		Task:        work.Name(),
		Fingerprint: string(eval.Fingerprint),
		Failed:      entry.Failed,
		Violations:  entry.Violations,
		Summary:     entry.Summary,
	}

	for _, artifact := range entry.Artifacts {
		path, err := e.absPath(artifact.Path)
		if err != nil {
			return graph.TaskResult{Outcome: graph.OutcomeFailed, Message: err.Error(), Error: err}
		}
		if err := fsutil.WriteFileAtomic(path, artifact.Content, 0644); err != nil {
			err = fmt.Errorf("failed to restore %s: %w", artifact.Path, err)
			return graph.TaskResult{Outcome: graph.OutcomeFailed, Message: err.Error(), Error: err}
		}
		rec.Outputs = append(rec.Outputs, record.Output{Path: artifact.Path, Hash: hashBytes(artifact.Content)})
	}
	if err := ctx.Err(); err != nil {
		return graph.TaskResult{Outcome: graph.OutcomeSkipped, Message: "cancelled", Error: err}
	}

	if err := e.Store.Save(rec); err != nil {
		e.Logger.Warn("failed to save task record", "task", work.Name(), "error", err)
	}
	return replay(graph.OutcomeFromCache, entry.Failed, entry.Summary, entry.Violations)
}

// replay turns a verdict, fresh or recorded, into a task result
func replay(outcome graph.Outcome, failed bool, summary string, violations []reporter.Violation) graph.TaskResult {
	result := graph.TaskResult{Outcome: outcome, Message: summary}
	for _, v := range violations {
		result.Details = append(result.Details, v.String())
	}
	if failed {
		if summary == "" {
			summary = "task failed"
		}
		result.Message = summary
		if outcome != graph.OutcomeSuccess {
			result.Message = strings.TrimSpace(summary + " (" + outcome.String() + ")")
		}
		result.Outcome = graph.OutcomeFailed
		result.Error = errors.New(summary)
	}
	return result
}

func (e *Evaluator) relPath(path string) string {
	if e.ProjectDir == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(e.ProjectDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (e *Evaluator) absPath(rel string) (string, error) {
	native := filepath.FromSlash(rel)
	if filepath.IsAbs(native) {
		return "", fmt.Errorf("cached artifact %s is not project-relative", rel)
	}
	clean := filepath.Clean(native)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cached artifact %s escapes the project directory", rel)
	}
	return filepath.Join(e.ProjectDir, clean), nil
}

func hashFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(content), nil
}

func hashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
