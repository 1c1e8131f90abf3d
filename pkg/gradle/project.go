// Package gradle reads what a Gradle project says about ktlint: the build
// script's ktlint block and the version catalog.
package gradle

import (
	"os"
	"path/filepath"
)

var settingsFiles = []string{"settings.gradle.kts", "settings.gradle"}

// IsProjectRoot reports whether dir holds a Gradle build or settings script
func IsProjectRoot(dir string) bool {
	if FindBuildFile(dir) != "" {
		return true
	}
	for _, name := range settingsFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up from startDir to the nearest Gradle project
// directory. When none is found startDir itself is returned.
func FindProjectRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	current := abs
	for {
		if IsProjectRoot(current) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		current = parent
	}
}
