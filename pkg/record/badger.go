package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// DefaultBadgerDir is where badger-backed records live, relative to the project
const DefaultBadgerDir = "build/klint/records.db"

const keyPrefix = "record/"

// BadgerConfig configures a BadgerStore
type BadgerConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string
	// InMemory keeps everything in memory; used by tests
	InMemory bool
	// Logger receives badger's internal logs; nil silences them
	Logger *slog.Logger
}

// BadgerStore keeps task records in an embedded badger database. Each save is
// a single transaction.
type BadgerStore struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens (or creates) a badger record store
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent record store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create record store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger record store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Load(task string) (*TaskRecord, error) {
	var rec *TaskRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + task))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var decoded TaskRecord
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrCorrupt, task, err)
			}
			if decoded.Task != task || decoded.Fingerprint == "" {
				return fmt.Errorf("%w: %s: unexpected content", ErrCorrupt, task)
			}
			rec = &decoded
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load record for %s: %w", task, err)
	}
	return rec, nil
}

func (s *BadgerStore) Save(rec *TaskRecord) error {
	if rec == nil || rec.Task == "" {
		return fmt.Errorf("record must have a task name")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record for %s: %w", rec.Task, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+rec.Task), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save record for %s: %w", rec.Task, err)
	}
	return nil
}

// put stores raw bytes under a task key; tests use it to plant corrupt records
func (s *BadgerStore) put(task string, raw []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+task), raw)
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
