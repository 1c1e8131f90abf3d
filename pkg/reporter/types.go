// Package reporter writes lint violations in every enabled report format.
package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"klint/pkg/version"
)

// Violation is a single lint finding. File is project-relative with forward slashes.
type Violation struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
	Rule    string `json:"rule,omitempty"`
}

func (v Violation) String() string {
	s := fmt.Sprintf("%s:%d:%d: %s", v.File, v.Line, v.Col, v.Message)
	if v.Rule != "" {
		s += " (" + v.Rule + ")"
	}
	return s
}

// Type is one of the fixed report formats
type Type int

const (
	Plain Type = iota
	PlainGroupByFile
	Checkstyle
	JSON
)

// writerFunc renders sorted violations into w
type writerFunc func(w io.Writer, violations []Violation) error

type typeInfo struct {
	name      string
	extension string
	since     string
	write     writerFunc
}

var types = map[Type]typeInfo{
	Plain:            {name: "PLAIN", extension: "txt", since: "0.9.0", write: writePlain},
	PlainGroupByFile: {name: "PLAIN_GROUP_BY_FILE", extension: "group_by_file.txt", since: "0.9.0", write: writePlainGrouped},
	Checkstyle:       {name: "CHECKSTYLE", extension: "xml", since: "0.9.0", write: writeCheckstyle},
	JSON:             {name: "JSON", extension: "json", since: "0.9.0", write: writeJSON},
}

// AllTypes returns every report format in declaration order
func AllTypes() []Type {
	return []Type{Plain, PlainGroupByFile, Checkstyle, JSON}
}

func (t Type) String() string {
	if info, ok := types[t]; ok {
		return info.name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Extension returns the artifact file extension, without the leading dot
func (t Type) Extension() string {
	return types[t].extension
}

// AvailableSince returns the first ktlint version that ships this reporter
func (t Type) AvailableSince() string {
	return types[t].since
}

// AvailableFor reports whether the reporter can be used with the given ktlint version
func (t Type) AvailableFor(linterVersion string) bool {
	return version.AtLeast(linterVersion, t.AvailableSince())
}

// ParseType parses a reporter name such as "checkstyle" or "PLAIN_GROUP_BY_FILE"
func ParseType(name string) (Type, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, t := range AllTypes() {
		if types[t].name == normalized {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown reporter %q", name)
}

// ParseTypes parses a list of reporter names, dropping duplicates
func ParseTypes(names []string) ([]Type, error) {
	var out []Type
	seen := make(map[Type]bool)
	for _, name := range names {
		t, err := ParseType(name)
		if err != nil {
			return nil, err
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	SortTypes(out)
	return out, nil
}

// SortTypes orders types by declaration order
func SortTypes(ts []Type) {
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })
}

// Names returns the reporter names, sorted
func Names(ts []Type) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	sort.Strings(out)
	return out
}

// SortViolations orders violations by file, line and column
func SortViolations(violations []Violation) []Violation {
	out := make([]Violation, len(violations))
	copy(out, violations)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
	return out
}
