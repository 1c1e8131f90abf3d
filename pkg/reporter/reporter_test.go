package reporter

import (
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []Violation{
	{File: "src/main/kotlin/B.kt", Line: 3, Col: 1, Message: "Unexpected blank line(s) before \"}\"", Rule: "no-blank-line-before-rbrace"},
	{File: "src/main/kotlin/A.kt", Line: 1, Col: 1, Message: "Unnecessary semicolon", Rule: "no-semi"},
	{File: "src/main/kotlin/A.kt", Line: 1, Col: 5, Message: "Unexpected spacing", Rule: ""},
}

func TestParseType(t *testing.T) {
	cases := map[string]Type{
		"PLAIN":               Plain,
		"plain":               Plain,
		"plain_group_by_file": PlainGroupByFile,
		"plain-group-by-file": PlainGroupByFile,
		"CHECKSTYLE":          Checkstyle,
		" json ":              JSON,
	}
	for name, want := range cases {
		got, err := ParseType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseType("html")
	assert.Error(t, err)
}

func TestParseTypesDeduplicatesAndSorts(t *testing.T) {
	ts, err := ParseTypes([]string{"json", "PLAIN", "json"})
	require.NoError(t, err)
	assert.Equal(t, []Type{Plain, JSON}, ts)
	assert.Equal(t, []string{"JSON", "PLAIN"}, Names(ts))
}

func TestExtensions(t *testing.T) {
	assert.Equal(t, "txt", Plain.Extension())
	assert.Equal(t, "group_by_file.txt", PlainGroupByFile.Extension())
	assert.Equal(t, "xml", Checkstyle.Extension())
	assert.Equal(t, "json", JSON.Extension())
}

func TestAvailableFor(t *testing.T) {
	assert.True(t, JSON.AvailableFor("0.22.0"))
	assert.False(t, JSON.AvailableFor("0.8.0"))
}

func TestEmitWritesEveryEnabledReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "build", "reports", "ktlint")
	m := NewManager(dir)

	paths, err := m.Emit(sample, []Type{JSON, Checkstyle, Plain, PlainGroupByFile}, "ktlintMainSourceSetCheck")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "ktlintMainSourceSetCheck.txt"),
		filepath.Join(dir, "ktlintMainSourceSetCheck.group_by_file.txt"),
		filepath.Join(dir, "ktlintMainSourceSetCheck.xml"),
		filepath.Join(dir, "ktlintMainSourceSetCheck.json"),
	}, paths)

	plain, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(plain)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "src/main/kotlin/A.kt:1:1: Unnecessary semicolon (no-semi)", lines[0])
	assert.Equal(t, "src/main/kotlin/A.kt:1:5: Unexpected spacing", lines[1])

	grouped, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "src/main/kotlin/A.kt\n  1:1 Unnecessary semicolon (no-semi)\n  1:5 Unexpected spacing\nsrc/main/kotlin/B.kt\n  3:1 Unexpected blank line(s) before \"}\" (no-blank-line-before-rbrace)\n", string(grouped))

	xmlData, err := os.ReadFile(paths[2])
	require.NoError(t, err)
	var cs checkstyleReport
	require.NoError(t, xml.Unmarshal(xmlData, &cs))
	require.Len(t, cs.Files, 2)
	assert.Equal(t, "src/main/kotlin/A.kt", cs.Files[0].Name)
	assert.Len(t, cs.Files[0].Errors, 2)
	assert.Equal(t, "no-blank-line-before-rbrace", cs.Files[1].Errors[0].Source)

	jsonData, err := os.ReadFile(paths[3])
	require.NoError(t, err)
	var files []jsonFile
	require.NoError(t, json.Unmarshal(jsonData, &files))
	require.Len(t, files, 2)
	assert.Equal(t, 3, files[1].Errors[0].Line)
}

func TestEmitWritesEmptyReports(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	paths, err := m.Emit(nil, []Type{Plain, JSON, Checkstyle}, "ktlintTestSourceSetCheck")
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	data, err := os.ReadFile(m.Path("ktlintTestSourceSetCheck", JSON))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	data, err = os.ReadFile(m.Path("ktlintTestSourceSetCheck", Plain))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestEmitLeavesStaleReports(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	task := "ktlintMainSourceSetCheck"

	_, err := m.Emit(sample, []Type{Checkstyle, Plain}, task)
	require.NoError(t, err)
	_, err = m.Emit(sample, []Type{JSON, Plain}, task)
	require.NoError(t, err)

	for _, ty := range []Type{Checkstyle, Plain, JSON} {
		_, err := os.Stat(m.Path(task, ty))
		assert.NoError(t, err, ty.String())
	}
}

func TestPruneRemovesOnlyDisabledReports(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	task := "ktlintMainSourceSetCheck"

	_, err := m.Emit(sample, []Type{Checkstyle, Plain}, task)
	require.NoError(t, err)
	_, err = m.Emit(sample, []Type{Checkstyle}, "ktlintTestSourceSetCheck")
	require.NoError(t, err)

	removed, err := m.Prune(task, []Type{Plain, JSON})
	require.NoError(t, err)
	assert.Equal(t, []string{m.Path(task, Checkstyle)}, removed)

	_, err = os.Stat(m.Path(task, Plain))
	assert.NoError(t, err)
	_, err = os.Stat(m.Path("ktlintTestSourceSetCheck", Checkstyle))
	assert.NoError(t, err, "other tasks' reports are untouched")
}

func TestOutputsIsDeterministic(t *testing.T) {
	m := NewManager("reports")
	a := m.Outputs("t", []Type{JSON, Plain})
	b := m.Outputs("t", []Type{Plain, JSON})
	assert.Equal(t, a, b)
}
