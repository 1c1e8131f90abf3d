package sourceset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func relPaths(t *testing.T, base string, files []string) []string {
	t.Helper()
	out := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(base, f)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src/test/kotlin/FooTest.kt"), "class FooTest\n")
	writeFile(t, filepath.Join(dir, "src/main/kotlin/Foo.kt"), "class Foo\n")
	writeFile(t, filepath.Join(dir, "src/main/java/Bar.kt"), "class Bar\n")
	writeFile(t, filepath.Join(dir, "src/docs/README.md"), "# docs\n")

	sets, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, sets, 2)

	assert.Equal(t, "main", sets[0].Name)
	assert.Equal(t, "Main", sets[0].TaskSuffix())
	assert.Len(t, sets[0].Roots(), 2)
	assert.Equal(t, "test", sets[1].Name)
}

func TestDiscover_NoSrcDir(t *testing.T) {
	sets, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, sets)
}

func TestFilters_ExcludeWins(t *testing.T) {
	filters, err := NewFilters([]string{"**/*.kt"}, []string{"**/fail-source.kt"})
	require.NoError(t, err)

	assert.True(t, filters.Match("com/acme/Clean.kt"))
	assert.False(t, filters.Match("fail-source.kt"))
	assert.False(t, filters.Match("nested/dir/fail-source.kt"))
	assert.False(t, filters.Match("script.kts"), "include does not match .kts")
}

func TestFilters_NoIncludesMeansEverything(t *testing.T) {
	filters, err := NewFilters(nil, []string{"generated/**"})
	require.NoError(t, err)

	assert.True(t, filters.Match("Anything.kt"))
	assert.False(t, filters.Match("generated/Gen.kt"))
	assert.True(t, Filters(nil).Match("x/y/z.kt"))
}

func TestFilters_InvalidPattern(t *testing.T) {
	_, err := NewFilters([]string{"[unclosed"}, nil)
	assert.Error(t, err)
}

func TestFilters_NormalizedIsOrderIndependent(t *testing.T) {
	a, err := NewFilters([]string{"a/**", "b/**"}, []string{"**/x.kt"})
	require.NoError(t, err)
	b := Filters{
		{Kind: Exclude, Pattern: "**/x.kt"},
		{Kind: Include, Pattern: "b/**"},
		{Kind: Include, Pattern: "a/**"},
		{Kind: Include, Pattern: "a/**"},
	}

	assert.Equal(t, a.Normalized(), b.Normalized())
	assert.NotEqual(t,
		Filters{{Kind: Include, Pattern: "a/**"}}.Normalized(),
		Filters{{Kind: Exclude, Pattern: "a/**"}}.Normalized())
}

func TestResolver_Resolve(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src/main/kotlin/b/B.kt"), "class B\n")
	writeFile(t, filepath.Join(dir, "src/main/kotlin/a/A.kt"), "class A\n")
	writeFile(t, filepath.Join(dir, "src/main/kotlin/build.gradle.kts"), "plugins {}\n")
	writeFile(t, filepath.Join(dir, "src/main/kotlin/notes.txt"), "ignored\n")
	writeFile(t, filepath.Join(dir, "src/main/kotlin/.hidden/H.kt"), "class H\n")
	writeFile(t, filepath.Join(dir, "src/main/kotlin/fail-source.kt"), "val  x = 1\n")

	set := New("main", filepath.Join(dir, "src/main/kotlin"), filepath.Join(dir, "src/main/missing"))
	filters, err := NewFilters(nil, []string{"**/fail-source.kt"})
	require.NoError(t, err)

	files, err := NewResolver(dir).Resolve(set, filters)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"src/main/kotlin/a/A.kt",
		"src/main/kotlin/b/B.kt",
		"src/main/kotlin/build.gradle.kts",
	}, relPaths(t, dir, files))
}

func TestResolver_ObservesAddedRoots(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src/main/kotlin/A.kt"), "class A\n")
	writeFile(t, filepath.Join(dir, "src/main/shared/Shared.kt"), "class Shared\n")

	set := New("main", filepath.Join(dir, "src/main/kotlin"))
	resolver := NewResolver(dir)

	files, err := resolver.Resolve(set, nil)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	set.AddRoot(filepath.Join(dir, "src/main/shared"))
	set.AddRoot(filepath.Join(dir, "src/main/shared"))
	assert.Len(t, set.Roots(), 2)

	files, err = resolver.Resolve(set, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main/kotlin/A.kt", "src/main/shared/Shared.kt"}, relPaths(t, dir, files))
}

func TestResolver_OverlappingRootsAreDeduplicated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src/main/kotlin/nested/N.kt"), "class N\n")

	set := New("main", filepath.Join(dir, "src/main/kotlin"), filepath.Join(dir, "src/main/kotlin/nested"))
	files, err := NewResolver(dir).Resolve(set, nil)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
