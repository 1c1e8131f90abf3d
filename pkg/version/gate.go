// Package version validates the configured ktlint version before any task runs.
package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// DefaultFloor is the lowest ktlint version the task orchestration supports
const DefaultFloor = "0.22.0"

// DefaultVersion is the ktlint version used when nothing else is configured
const DefaultVersion = "0.22.0"

// UnsupportedError is returned when the declared linter version is below the floor
type UnsupportedError struct {
	Floor    string
	Detected string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("Ktlint versions less than %s are not supported. Detected Ktlint version: %s.", e.Floor, e.Detected)
}

// Gate checks declared linter versions against a minimum
type Gate struct {
	Floor string
}

// NewGate creates a gate for the given floor, falling back to DefaultFloor
func NewGate(floor string) *Gate {
	if strings.TrimSpace(floor) == "" {
		floor = DefaultFloor
	}
	return &Gate{Floor: floor}
}

// Check returns nil when declared is at or above the floor
func (g *Gate) Check(declared string) error {
	if !Valid(g.Floor) {
		return fmt.Errorf("invalid minimum ktlint version %q", g.Floor)
	}
	if !Valid(declared) {
		return fmt.Errorf("invalid ktlint version %q", declared)
	}
	if !AtLeast(declared, g.Floor) {
		return &UnsupportedError{Floor: g.Floor, Detected: declared}
	}
	return nil
}

// Valid reports whether v is a semantic version, with or without a leading "v"
func Valid(v string) bool {
	return semver.IsValid(canonical(v))
}

// AtLeast reports whether v >= floor. Invalid versions never satisfy a floor.
func AtLeast(v, floor string) bool {
	cv, cf := canonical(v), canonical(floor)
	if !semver.IsValid(cv) || !semver.IsValid(cf) {
		return false
	}
	return semver.Compare(cv, cf) >= 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
