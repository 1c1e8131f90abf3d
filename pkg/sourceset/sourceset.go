// Package sourceset resolves which Kotlin files each source set puts in lint scope.
package sourceset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// languageDirs are the directories under src/<name>/ that hold Kotlin sources
var languageDirs = []string{"kotlin", "java"}

// SourceSet is a named group of source directories subject to linting
type SourceSet struct {
	Name  string
	roots []string
}

// New creates a source set with the given roots. Roots are cleaned and de-duplicated.
func New(name string, roots ...string) *SourceSet {
	s := &SourceSet{Name: name}
	for _, root := range roots {
		s.AddRoot(root)
	}
	return s
}

// AddRoot appends a directory to the source set. Roots added after discovery are
// observed by the resolver exactly like the original ones.
func (s *SourceSet) AddRoot(dir string) {
	dir = filepath.Clean(dir)
	for _, existing := range s.roots {
		if existing == dir {
			return
		}
	}
	s.roots = append(s.roots, dir)
}

// Roots returns the source set roots in declaration order
func (s *SourceSet) Roots() []string {
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// TaskSuffix returns the capitalized name used in task names, e.g. "Main"
func (s *SourceSet) TaskSuffix() string {
	if s.Name == "" {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

// Discover finds source sets following the src/<name>/kotlin and src/<name>/java
// conventions under projectDir. The main source set sorts first, the rest by name.
func Discover(projectDir string) ([]*SourceSet, error) {
	srcDir := filepath.Join(projectDir, "src")
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", srcDir, err)
	}

	var sets []*SourceSet
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		set := New(entry.Name())
		for _, lang := range languageDirs {
			root := filepath.Join(srcDir, entry.Name(), lang)
			if info, err := os.Stat(root); err == nil && info.IsDir() {
				set.AddRoot(root)
			}
		}
		if len(set.roots) > 0 {
			sets = append(sets, set)
		}
	}

	SortSets(sets)
	return sets, nil
}

// SortSets orders source sets with "main" first, then by name
func SortSets(sets []*SourceSet) {
	sort.SliceStable(sets, func(i, j int) bool {
		if sets[i].Name == "main" || sets[j].Name == "main" {
			return sets[i].Name == "main" && sets[j].Name != "main"
		}
		return sets[i].Name < sets[j].Name
	})
}
