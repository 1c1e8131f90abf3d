package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultMemoSize = 8192

type memoKey struct {
	path  string
	size  int64
	mtime int64
}

// Engine hashes project files. Content hashes are memoized by path, size and
// modification time; the memo only saves work and never changes a result
// unless a file is rewritten without changing size or mtime, which callers
// that rewrite files handle with Forget.
type Engine struct {
	root    string
	workers int
	memo    *lru.Cache[memoKey, string]
	flight  singleflight.Group
}

// NewEngine creates an engine for files under projectDir
func NewEngine(projectDir string) (*Engine, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	memo, err := lru.New[memoKey, string](defaultMemoSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create hash memo: %w", err)
	}
	return &Engine{
		root:    abs,
		workers: runtime.GOMAXPROCS(0),
		memo:    memo,
	}, nil
}

// Root returns the absolute project directory
func (e *Engine) Root() string {
	return e.root
}

// RelPath converts an absolute path to a project-relative slash path
func (e *Engine) RelPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), nil
	}
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

// AbsPath converts a project-relative slash path back to an absolute path
func (e *Engine) AbsPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

// Digest hashes the given files in parallel and returns digests sorted by
// project-relative path
func (e *Engine) Digest(ctx context.Context, files []string) ([]FileDigest, error) {
	digests := make([]FileDigest, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			abs := e.AbsPath(file)
			rel, err := e.RelPath(abs)
			if err != nil {
				return err
			}
			if strings.HasPrefix(rel, "../") {
				return fmt.Errorf("file %s is outside project directory %s", abs, e.root)
			}
			sum, err := e.HashFile(abs)
			if err != nil {
				return err
			}
			digests[i] = FileDigest{Path: rel, Hash: sum}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return SortDigests(digests), nil
}

// HashFile returns the hex sha256 of the file content
func (e *Engine) HashFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	key := memoKey{path: path, size: info.Size(), mtime: info.ModTime().UnixNano()}
	if sum, ok := e.memo.Get(key); ok {
		return sum, nil
	}

	// check and format tasks over the same source set often hash the same
	// file at the same time
	v, err, _ := e.flight.Do(path, func() (interface{}, error) {
		return hashContent(path)
	})
	if err != nil {
		return "", err
	}
	sum := v.(string)
	e.memo.Add(key, sum)
	return sum, nil
}

// Forget drops memoized hashes for the given files, e.g. after a formatter rewrote them
func (e *Engine) Forget(files []string) {
	forget := make(map[string]struct{}, len(files))
	for _, f := range files {
		forget[e.AbsPath(f)] = struct{}{}
	}
	for _, key := range e.memo.Keys() {
		if _, ok := forget[key.path]; ok {
			e.memo.Remove(key)
		}
	}
}

func hashContent(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
