// Package watch re-runs work when Kotlin sources or style configs change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Options configures a watcher
type Options struct {
	// Debounce is how long the watcher waits for more events before firing
	Debounce time.Duration
	// IgnoreDirs are directory names that are never watched
	IgnoreDirs []string
	// Extensions are the file extensions that trigger a run
	Extensions []string
	// Names are exact file names that trigger a run
	Names []string
}

// DefaultOptions watches Kotlin sources and .editorconfig files and skips
// build output and VCS metadata
func DefaultOptions() Options {
	return Options{
		Debounce:   200 * time.Millisecond,
		IgnoreDirs: []string{".git", ".gradle", ".idea", "build", "node_modules"},
		Extensions: []string{".kt", ".kts"},
		Names:      []string{".editorconfig"},
	}
}

// Handler receives the sorted set of changed paths of one debounced batch
type Handler func(ctx context.Context, changed []string)

// Watcher watches directory trees for relevant changes
type Watcher struct {
	opts    Options
	logger  *slog.Logger
	watcher *fsnotify.Watcher
}

// New creates a watcher over the given root directories. Missing roots are skipped.
func New(roots []string, opts Options, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{opts: opts, logger: logger, watcher: fw}
	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) addRecursive(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignoredDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignoredDir(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	for _, ignored := range w.opts.IgnoreDirs {
		if name == ignored {
			return true
		}
	}
	return false
}

// Relevant reports whether a change to path should trigger a run
func (w *Watcher) Relevant(path string) bool {
	base := filepath.Base(path)
	for _, name := range w.opts.Names {
		if base == name {
			return true
		}
	}
	ext := filepath.Ext(base)
	for _, e := range w.opts.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Run blocks until ctx is done, calling handler once per debounced batch of
// relevant changes. The handler runs on the watcher goroutine, so events that
// arrive while it runs are batched for the next call.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.ignoredDir(info.Name()) {
					if err := w.addRecursive(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if event.Has(fsnotify.Chmod) || !w.Relevant(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-timerC:
			timer, timerC = nil, nil
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			sort.Strings(changed)
			clear(pending)
			handler(ctx, changed)
		}
	}
}
