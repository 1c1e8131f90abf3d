// Package fingerprint computes relocation-safe identities for lint task inputs.
//
// A fingerprint covers the task name and kind, every in-scope file (project
// relative path plus content hash), every style config file, the linter
// version, the enabled reporters and the filter rules. Absolute paths, host
// names and timestamps never enter the digest, so a project copied to another
// directory or machine produces the same fingerprints.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// Fingerprint is an opaque hex digest of a task's inputs
type Fingerprint string

func (f Fingerprint) String() string {
	return string(f)
}

// Short returns the first 12 characters, enough for logs
func (f Fingerprint) Short() string {
	if len(f) > 12 {
		return string(f[:12])
	}
	return string(f)
}

// FileDigest pairs a project-relative slash path with the sha256 of its content
type FileDigest struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// Inputs holds everything that decides whether a task must run again
type Inputs struct {
	// Task is the task name, e.g. "ktlintMainSourceSetCheck"
	Task string
	// Kind separates task actions that share inputs, e.g. "check" and "format"
	Kind string
	// Files are the in-scope source files
	Files []FileDigest
	// StyleConfigs are the style config files (.editorconfig) that affect the scope
	StyleConfigs []FileDigest
	// LinterVersion is the configured ktlint version
	LinterVersion string
	// Reporters are the enabled reporter names; order is irrelevant
	Reporters []string
	// Filters are the normalized filter rules; order is irrelevant
	Filters []string
	// Flags are other settings that change a task's result, e.g. "ignoreFailures=true"
	Flags []string
}

// Compute returns the fingerprint of in. Unordered sets (files, style configs,
// reporters, filters) are sorted and de-duplicated before hashing, and every
// field is length-prefixed so adjacent values cannot run together.
func Compute(in Inputs) Fingerprint {
	h := sha256.New()

	writeField(h, "klint-fingerprint-v1")
	writeField(h, in.Task)
	writeField(h, in.Kind)
	writeField(h, in.LinterVersion)

	writeDigests(h, in.Files)
	writeDigests(h, in.StyleConfigs)
	writeStrings(h, in.Reporters)
	writeStrings(h, in.Filters)
	writeStrings(h, in.Flags)

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

func writeField(h hash.Hash, s string) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(s)))
	h.Write(prefix[:])
	h.Write([]byte(s))
}

func writeCount(h hash.Hash, n int) {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(n))
	h.Write(prefix[:])
}

func writeStrings(h hash.Hash, values []string) {
	sorted := uniqueSorted(values)
	writeCount(h, len(sorted))
	for _, v := range sorted {
		writeField(h, v)
	}
}

func writeDigests(h hash.Hash, digests []FileDigest) {
	sorted := SortDigests(digests)
	writeCount(h, len(sorted))
	for _, d := range sorted {
		writeField(h, d.Path)
		writeField(h, d.Hash)
	}
}

// SortDigests returns a copy of digests sorted by path with duplicate paths removed
func SortDigests(digests []FileDigest) []FileDigest {
	out := make([]FileDigest, 0, len(digests))
	seen := make(map[string]struct{}, len(digests))
	for _, d := range digests {
		if _, ok := seen[d.Path]; ok {
			continue
		}
		seen[d.Path] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func uniqueSorted(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
