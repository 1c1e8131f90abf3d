package incremental

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klint/pkg/buildcache"
	"klint/pkg/fingerprint"
	"klint/pkg/graph"
	"klint/pkg/record"
	"klint/pkg/reporter"
)

// fakeWork writes one report whose content is derived from its input
type fakeWork struct {
	name      string
	dir       string
	input     string
	failed    bool
	cacheable bool
	performs  int
	err       error
	skipWrite bool
	// outDir places the report outside dir when set
	outDir string
}

func (w *fakeWork) Name() string { return w.name }

func (w *fakeWork) Fingerprint(ctx context.Context) (fingerprint.Fingerprint, error) {
	return fingerprint.Compute(fingerprint.Inputs{Task: w.name, Kind: "check", LinterVersion: w.input}), nil
}

func (w *fakeWork) Outputs() []string {
	if w.outDir != "" {
		return []string{filepath.Join(w.outDir, w.name+".txt")}
	}
	return []string{filepath.Join(w.dir, "build", "reports", w.name+".txt")}
}

func (w *fakeWork) Cacheable() bool { return w.cacheable }

func (w *fakeWork) Perform(ctx context.Context) (Verdict, error) {
	w.performs++
	if w.err != nil {
		return Verdict{}, w.err
	}
	if !w.skipWrite {
		out := w.Outputs()[0]
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return Verdict{}, err
		}
		if err := os.WriteFile(out, []byte("report for "+w.input), 0644); err != nil {
			return Verdict{}, err
		}
	}
	v := Verdict{Summary: "no violations"}
	if w.failed {
		v = Verdict{
			Failed:     true,
			Summary:    "1 violation",
			Violations: []reporter.Violation{{File: "src/main/kotlin/A.kt", Line: 1, Col: 1, Message: "Unnecessary semicolon", Rule: "no-semi"}},
		}
	}
	return v, nil
}

func newEvaluator(t *testing.T, dir string, cache buildcache.Cache) *Evaluator {
	t.Helper()
	return NewEvaluator(dir, record.NewFileStore(filepath.Join(dir, record.DefaultDir)), cache, nil)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "SKIP", Skip.String())
	assert.Equal(t, "RESTORE", Restore.String())
	assert.Equal(t, "EXECUTE", Execute.String())
	assert.Equal(t, "UNKNOWN", Unknown.String())
}

func TestRunExecutesThenSkips(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ev := newEvaluator(t, dir, nil)
	work := &fakeWork{name: "ktlintMainSourceSetCheck", dir: dir, input: "a"}

	eval, err := ev.Evaluate(ctx, work)
	require.NoError(t, err)
	assert.Equal(t, Execute, eval.Decision)

	res := ev.Run(ctx, work)
	assert.Equal(t, graph.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 1, work.performs)

	res = ev.Run(ctx, work)
	assert.Equal(t, graph.OutcomeUpToDate, res.Outcome)
	assert.Equal(t, 1, work.performs)
}

func TestRunReexecutesWhenInputsChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ev := newEvaluator(t, dir, nil)
	work := &fakeWork{name: "ktlintMainSourceSetCheck", dir: dir, input: "a"}

	ev.Run(ctx, work)
	work.input = "b"
	res := ev.Run(ctx, work)
	assert.Equal(t, graph.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 2, work.performs)

	rec, err := ev.Store.Load(work.name)
	require.NoError(t, err)
	fp, _ := work.Fingerprint(ctx)
	assert.Equal(t, string(fp), rec.Fingerprint, "the record is replaced by the latest execution")
}

func TestRunReexecutesWhenOutputMissingOrModified(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ev := newEvaluator(t, dir, nil)
	work := &fakeWork{name: "ktlintMainSourceSetCheck", dir: dir, input: "a"}

	ev.Run(ctx, work)
	require.NoError(t, os.Remove(work.Outputs()[0]))

	eval, err := ev.Evaluate(ctx, work)
	require.NoError(t, err)
	assert.Equal(t, Execute, eval.Decision)
	assert.Contains(t, eval.Reason, "output missing")

	ev.Run(ctx, work)
	require.NoError(t, os.WriteFile(work.Outputs()[0], []byte("tampered"), 0644))
	eval, err = ev.Evaluate(ctx, work)
	require.NoError(t, err)
	assert.Equal(t, Execute, eval.Decision)
	assert.Contains(t, eval.Reason, "output modified")
}

func TestFailedTaskIsRecordedAndReplayed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ev := newEvaluator(t, dir, nil)
	work := &fakeWork{name: "ktlintMainSourceSetCheck", dir: dir, input: "a", failed: true}

	res := ev.Run(ctx, work)
	assert.Equal(t, graph.OutcomeFailed, res.Outcome)
	assert.Equal(t, "1 violation", res.Message)
	require.Len(t, res.Details, 1)
	assert.Error(t, res.Error)

	res = ev.Run(ctx, work)
	assert.Equal(t, graph.OutcomeFailed, res.Outcome, "cached failures are reported again")
	assert.Contains(t, res.Message, "UP-TO-DATE")
	assert.Equal(t, 1, work.performs, "no re-scan when nothing changed")
	assert.Equal(t, []string{"src/main/kotlin/A.kt:1:1: Unnecessary semicolon (no-semi)"}, res.Details)
}

func TestPerformErrorLeavesRecordUntouched(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ev := newEvaluator(t, dir, nil)
	work := &fakeWork{name: "ktlintMainSourceSetCheck", dir: dir, input: "a"}
	ev.Run(ctx, work)

	before, err := ev.Store.Load(work.name)
	require.NoError(t, err)

	work.input = "b"
	work.err = errors.New("disk full")
	res := ev.Run(ctx, work)
	assert.Equal(t, graph.OutcomeFailed, res.Outcome)

	after, err := ev.Store.Load(work.name)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMissingDeclaredOutputFailsWithoutRecord(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ev := newEvaluator(t, dir, nil)
	work := &fakeWork{name: "ktlintMainSourceSetCheck", dir: dir, input: "a", skipWrite: true}

	res := ev.Run(ctx, work)
	assert.Equal(t, graph.OutcomeFailed, res.Outcome)

	rec, err := ev.Store.Load(work.name)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCancelledRunLeavesRecordUntouched(t *testing.T) {
	dir := t.TempDir()
	ev := newEvaluator(t, dir, nil)
	work := &fakeWork{name: "ktlintMainSourceSetCheck", dir: dir, input: "a"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := ev.Run(ctx, work)
	assert.Equal(t, graph.OutcomeSkipped, res.Outcome)

	rec, err := ev.Store.Load(work.name)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCorruptRecordIsTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ev := newEvaluator(t, dir, nil)
	work := &fakeWork{name: "ktlintMainSourceSetCheck", dir: dir, input: "a"}

	recordPath := filepath.Join(dir, record.DefaultDir, work.name+".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(recordPath), 0755))
	require.NoError(t, os.WriteFile(recordPath, []byte("{"), 0644))

	res := ev.Run(ctx, work)
	assert.Equal(t, graph.OutcomeSuccess, res.Outcome)
	assert.Equal(t, graph.OutcomeUpToDate, ev.Run(ctx, work).Outcome)
}

func TestRestoreFromCacheAfterRelocation(t *testing.T) {
	ctx := context.Background()
	cache := buildcache.NewDirCache(t.TempDir())

	original := t.TempDir()
	ev := newEvaluator(t, original, cache)
	work := &fakeWork{name: "ktlintMainSourceSetCheck", dir: original, input: "a", failed: true, cacheable: true}
	assert.Equal(t, graph.OutcomeFailed, ev.Run(ctx, work).Outcome)

	// a fresh copy with no records and no outputs
	relocated := t.TempDir()
	ev2 := newEvaluator(t, relocated, cache)
	moved := &fakeWork{name: work.name, dir: relocated, input: "a", failed: true, cacheable: true}

	eval, err := ev2.Evaluate(ctx, moved)
	require.NoError(t, err)
	assert.Equal(t, Restore, eval.Decision)

	res := ev2.Run(ctx, moved)
	assert.Equal(t, graph.OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Message, "FROM-CACHE")
	assert.Equal(t, 0, moved.performs)

	content, err := os.ReadFile(moved.Outputs()[0])
	require.NoError(t, err)
	assert.Equal(t, "report for a", string(content))

	// restored outputs are recorded, so the next run is up to date
	assert.Equal(t, graph.OutcomeFailed, ev2.Run(ctx, moved).Outcome)
	eval, err = ev2.Evaluate(ctx, moved)
	require.NoError(t, err)
	assert.Equal(t, Skip, eval.Decision)
	assert.Equal(t, 0, moved.performs)
}

func TestRestoreSucceedsForPassingTask(t *testing.T) {
	ctx := context.Background()
	cache := buildcache.NewDirCache(t.TempDir())

	first := t.TempDir()
	newEvaluator(t, first, cache).Run(ctx, &fakeWork{name: "ktlintTestSourceSetCheck", dir: first, input: "x", cacheable: true})

	second := t.TempDir()
	res := newEvaluator(t, second, cache).Run(ctx, &fakeWork{name: "ktlintTestSourceSetCheck", dir: second, input: "x", cacheable: true})
	assert.Equal(t, graph.OutcomeFromCache, res.Outcome)
}

func TestNonCacheableWorkNeverRestores(t *testing.T) {
	ctx := context.Background()
	cache := buildcache.NewDirCache(t.TempDir())

	first := t.TempDir()
	newEvaluator(t, first, cache).Run(ctx, &fakeWork{name: "ktlintMainSourceSetFormat", dir: first, input: "x"})

	second := t.TempDir()
	work := &fakeWork{name: "ktlintMainSourceSetFormat", dir: second, input: "x"}
	res := newEvaluator(t, second, cache).Run(ctx, work)
	assert.Equal(t, graph.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 1, work.performs)
}

func TestOutputsOutsideProjectAreNotCached(t *testing.T) {
	ctx := context.Background()
	cache := buildcache.NewDirCache(t.TempDir())
	dir := t.TempDir()
	reports := t.TempDir()
	ev := newEvaluator(t, dir, cache)
	work := &fakeWork{name: "ktlintMainSourceSetCheck", dir: dir, outDir: reports, input: "a", failed: true, cacheable: true}

	res := ev.Run(ctx, work)
	assert.Equal(t, graph.OutcomeFailed, res.Outcome)
	assert.NotContains(t, res.Message, "FROM-CACHE")

	fp, err := work.Fingerprint(ctx)
	require.NoError(t, err)
	entry, err := cache.Get(ctx, string(fp))
	require.NoError(t, err)
	assert.Nil(t, entry)

	// records and reports gone: the work runs again instead of restoring
	require.NoError(t, os.RemoveAll(filepath.Join(dir, record.DefaultDir)))
	require.NoError(t, os.Remove(work.Outputs()[0]))

	res = ev.Run(ctx, work)
	assert.Equal(t, graph.OutcomeFailed, res.Outcome)
	assert.Equal(t, "1 violation", res.Message)
	assert.Equal(t, 2, work.performs)
}

func TestUnrestorableCacheEntryFallsBackToExecute(t *testing.T) {
	ctx := context.Background()
	cache := buildcache.NewDirCache(t.TempDir())
	dir := t.TempDir()
	reports := t.TempDir()
	ev := newEvaluator(t, dir, cache)
	work := &fakeWork{name: "ktlintMainSourceSetCheck", dir: dir, outDir: reports, input: "a", cacheable: true}

	fp, err := work.Fingerprint(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Put(ctx, &buildcache.Entry{
		Fingerprint: string(fp),
		Task:        work.name,
		Summary:     "no violations",
		Artifacts:   []buildcache.Artifact{{Path: filepath.ToSlash(work.Outputs()[0]), Content: []byte("stale")}},
	}))

	eval, err := ev.Evaluate(ctx, work)
	require.NoError(t, err)
	assert.Equal(t, Execute, eval.Decision)

	res := ev.Run(ctx, work)
	assert.Equal(t, graph.OutcomeSuccess, res.Outcome)
	assert.Equal(t, 1, work.performs)

	content, err := os.ReadFile(work.Outputs()[0])
	require.NoError(t, err)
	assert.Equal(t, "report for a", string(content))
}

func TestRelPathAndAbsPath(t *testing.T) {
	dir := t.TempDir()
	ev := newEvaluator(t, dir, nil)

	assert.Equal(t, "build/reports/x.txt", ev.relPath(filepath.Join(dir, "build", "reports", "x.txt")))
	outside := filepath.Join(filepath.Dir(dir), "elsewhere.txt")
	assert.Equal(t, filepath.ToSlash(outside), ev.relPath(outside))

	abs, err := ev.absPath("build/reports/x.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "build", "reports", "x.txt"), abs)

	_, err = ev.absPath("../escape.txt")
	assert.Error(t, err)
}
