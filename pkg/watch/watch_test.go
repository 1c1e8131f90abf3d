package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevant(t *testing.T) {
	w := &Watcher{opts: DefaultOptions()}

	assert.True(t, w.Relevant("/p/src/main/kotlin/A.kt"))
	assert.True(t, w.Relevant("/p/build.gradle.kts"))
	assert.True(t, w.Relevant("/p/.editorconfig"))
	assert.False(t, w.Relevant("/p/src/main/kotlin/A.java"))
	assert.False(t, w.Relevant("/p/README.md"))
}

func TestIgnoredDir(t *testing.T) {
	w := &Watcher{opts: DefaultOptions()}

	assert.True(t, w.ignoredDir("build"))
	assert.True(t, w.ignoredDir(".gradle"))
	assert.True(t, w.ignoredDir(".hidden"))
	assert.False(t, w.ignoredDir("kotlin"))
}

func TestRunBatchesChanges(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "main", "kotlin")
	require.NoError(t, os.MkdirAll(src, 0755))

	opts := DefaultOptions()
	opts.Debounce = 50 * time.Millisecond
	w, err := New([]string{dir, filepath.Join(dir, "missing")}, opts, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batches := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changed []string) {
			batches <- changed
		})
	}()

	require.NoError(t, os.WriteFile(filepath.Join(src, "A.kt"), []byte("class A\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.md"), []byte("x"), 0644))

	select {
	case changed := <-batches:
		assert.Equal(t, []string{filepath.Join(src, "A.kt")}, changed)
	case <-ctx.Done():
		t.Fatal("timed out waiting for a change batch")
	}

	cancel()
	assert.NoError(t, <-done)
}
