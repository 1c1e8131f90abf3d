package sourceset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Resolver turns a source set and its filters into the concrete list of files in scope
type Resolver struct {
	ProjectDir string
	Extensions []string
}

// NewResolver creates a resolver for Kotlin sources under projectDir
func NewResolver(projectDir string) *Resolver {
	return &Resolver{
		ProjectDir: filepath.Clean(projectDir),
		Extensions: []string{".kt", ".kts"},
	}
}

// Resolve walks every root of the set and returns absolute paths of matching
// files, sorted by project-relative path. Roots that do not exist are skipped.
func (r *Resolver) Resolve(set *SourceSet, filters Filters) ([]string, error) {
	type entry struct {
		abs string
		rel string
	}

	seen := make(map[string]struct{})
	var files []entry

	for _, root := range set.Roots() {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to stat source root %s: %w", root, err)
		}
		if !info.IsDir() {
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !r.hasExtension(d.Name()) {
				return nil
			}

			rootRel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if !filters.Match(rootRel) {
				return nil
			}

			if _, ok := seen[path]; ok {
				return nil
			}
			seen[path] = struct{}{}

			projectRel, err := filepath.Rel(r.ProjectDir, path)
			if err != nil {
				return err
			}
			files = append(files, entry{abs: path, rel: filepath.ToSlash(projectRel)})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk source root %s: %w", root, err)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.abs
	}
	return out, nil
}

func (r *Resolver) hasExtension(name string) bool {
	for _, ext := range r.Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
