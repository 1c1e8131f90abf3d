package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"klint/pkg/fsutil"
)

// DefaultDir is where file-backed records live, relative to the project
const DefaultDir = "build/klint/records"

// FileStore keeps one JSON document per task in a directory
type FileStore struct {
	Dir string
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(task string) string {
	return filepath.Join(s.Dir, url.PathEscape(task)+".json")
}

func (s *FileStore) Load(task string) (*TaskRecord, error) {
	data, err := os.ReadFile(s.path(task))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record for %s: %w", task, err)
	}

	var rec TaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, task, err)
	}
	if rec.Task != task || rec.Fingerprint == "" {
		return nil, fmt.Errorf("%w: %s: unexpected content", ErrCorrupt, task)
	}
	return &rec, nil
}

func (s *FileStore) Save(rec *TaskRecord) error {
	if rec == nil || rec.Task == "" {
		return fmt.Errorf("record must have a task name")
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record for %s: %w", rec.Task, err)
	}
	if err := fsutil.WriteFileAtomic(s.path(rec.Task), data, 0644); err != nil {
		return fmt.Errorf("failed to write record for %s: %w", rec.Task, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
