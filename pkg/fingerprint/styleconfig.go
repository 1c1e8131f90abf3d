package fingerprint

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StyleConfigName is the directory-scoped style override file read by ktlint
const StyleConfigName = ".editorconfig"

// StyleConfigFiles returns every style config file that can affect files under
// roots: those inside each root and those in each ancestor directory of a root
// up to and including projectDir. Paths are absolute and sorted.
func StyleConfigFiles(projectDir string, roots []string) ([]string, error) {
	projectDir = filepath.Clean(projectDir)
	found := make(map[string]struct{})

	addIfFile := func(path string) {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			found[path] = struct{}{}
		}
	}

	for _, root := range roots {
		root = filepath.Clean(root)

		// ancestors, stopping at the project directory
		if rel, err := filepath.Rel(projectDir, root); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			dir := filepath.Dir(root)
			for {
				addIfFile(filepath.Join(dir, StyleConfigName))
				if dir == projectDir {
					break
				}
				parent := filepath.Dir(dir)
				if parent == dir {
					break
				}
				dir = parent
			}
		}

		if _, err := os.Stat(root); err != nil {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && d.Name() == StyleConfigName {
				found[path] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(found))
	for path := range found {
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}
