package buildcache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"klint/pkg/fsutil"
)

// DirCache stores entries in a local directory, one sub-directory per entry
// sharded by the first two characters of the fingerprint
type DirCache struct {
	Dir string
}

// NewDirCache creates a cache rooted at dir
func NewDirCache(dir string) *DirCache {
	return &DirCache{Dir: dir}
}

func (c *DirCache) entryPath(fingerprint string) string {
	if len(fingerprint) < 2 {
		return filepath.Join(c.Dir, fingerprint)
	}
	return filepath.Join(c.Dir, fingerprint[:2], fingerprint)
}

func (c *DirCache) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entryDir := c.entryPath(fingerprint)

	data, err := os.ReadFile(filepath.Join(entryDir, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cache metadata: %w", err)
	}
	entry, err := decode(fingerprint, data)
	if err != nil {
		return nil, err
	}

	for i := range entry.Artifacts {
		blob := filepath.Join(entryDir, "artifacts", fmt.Sprintf("%d.blob", i))
		content, err := os.ReadFile(blob)
		if err != nil {
			return nil, fmt.Errorf("reading artifact %d: %w", i, err)
		}
		entry.Artifacts[i].Content = content
	}
	return entry, nil
}

// Put writes blobs first and metadata last into a temp directory that is then
// renamed into place. A crash leaves a miss, never a partial entry.
func (c *DirCache) Put(ctx context.Context, entry *Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entryDir := c.entryPath(entry.Fingerprint)
	parentDir := filepath.Dir(entryDir)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmpDir, err := os.MkdirTemp(parentDir, "tmp-entry-"+entry.Fingerprint+"-")
	if err != nil {
		return fmt.Errorf("creating temp cache entry dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	artifactsDir := filepath.Join(tmpDir, "artifacts")
	if err := os.MkdirAll(artifactsDir, 0755); err != nil {
		return fmt.Errorf("creating cache artifacts dir: %w", err)
	}
	for i, artifact := range entry.Artifacts {
		blob := filepath.Join(artifactsDir, fmt.Sprintf("%d.blob", i))
		if err := fsutil.WriteFileAtomic(blob, artifact.Content, 0644); err != nil {
			return fmt.Errorf("writing artifact %d: %w", i, err)
		}
	}

	metadata := *entry
	metadata.Artifacts = make([]Artifact, len(entry.Artifacts))
	for i, a := range entry.Artifacts {
		metadata.Artifacts[i] = Artifact{Path: a.Path}
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache metadata: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(tmpDir, "metadata.json"), data, 0644); err != nil {
		return fmt.Errorf("writing cache metadata: %w", err)
	}

	_ = os.RemoveAll(entryDir)
	if err := os.Rename(tmpDir, entryDir); err != nil {
		return fmt.Errorf("committing cache entry: %w", err)
	}
	committed = true
	return nil
}
