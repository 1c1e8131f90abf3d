// Package buildcache shares task results between project copies and machines.
//
// Entries are keyed by task fingerprint and hold the task verdict plus the
// content of every declared output, addressed by project-relative path. A
// project restored at a different absolute location resolves the same keys.
package buildcache

import (
	"context"
	"encoding/json"
	"fmt"

	"klint/pkg/reporter"
)

// Artifact is a task output. Path is project-relative with forward slashes.
type Artifact struct {
	Path    string `json:"path"`
	Content []byte `json:"content,omitempty"`
}

// Entry is a cached task execution
type Entry struct {
	Fingerprint string               `json:"fingerprint"`
	Task        string               `json:"task"`
	Failed      bool                 `json:"failed,omitempty"`
	Violations  []reporter.Violation `json:"violations,omitempty"`
	Summary     string               `json:"summary,omitempty"`
	Artifacts   []Artifact           `json:"artifacts"`
}

// Cache stores entries by fingerprint
type Cache interface {
	// Get returns the entry for fingerprint, or nil on a miss
	Get(ctx context.Context, fingerprint string) (*Entry, error)
	// Put stores an entry, replacing any existing one
	Put(ctx context.Context, entry *Entry) error
}

func validateEntry(entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry is nil")
	}
	if entry.Fingerprint == "" {
		return fmt.Errorf("cache entry has no fingerprint")
	}
	return nil
}

// encode serializes a whole entry, content included, for object stores
func encode(entry *Entry) ([]byte, error) {
	return json.Marshal(entry)
}

func decode(fingerprint string, data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("parsing cache entry %s: %w", fingerprint, err)
	}
	if entry.Fingerprint != fingerprint {
		return nil, fmt.Errorf("cache entry %s holds fingerprint %s", fingerprint, entry.Fingerprint)
	}
	return &entry, nil
}

func objectKey(prefix, fingerprint string) string {
	if prefix == "" {
		return fingerprint + ".json"
	}
	return prefix + "/" + fingerprint + ".json"
}
