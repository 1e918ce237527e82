// Package filestore keeps each key as <dir>/<key>.json on local disk.
//
// Every call reads or writes the file directly, so several server processes
// pointed at the same directory see each other's writes. Writes go through a
// temp file and rename, so a reader never observes a half-written document.
// Update holds an in-process mutex and an advisory lock on <key>.json.lock,
// so read-modify-writes are serialised across processes sharing the
// directory too.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/moby/sys/atomicwriter"

	"github.com/sakif/tasktracker/internal/kvstore"
)

const (
	ext     = ".json"
	lockExt = ".lock"

	lockRetryDelay = 10 * time.Millisecond
)

var _ kvstore.Store = (*Store)(nil)

type Store struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// New creates dir if needed. The path is made absolute so every process
// resolves the same location regardless of its working directory.
func New(dir string, logger *slog.Logger) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolving %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: creating %s: %w", abs, err)
	}
	return &Store{dir: abs, logger: logger}, nil
}

// Dir is the absolute data directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key string) (string, error) {
	if !kvstore.ValidKey(key) {
		return "", fmt.Errorf("filestore: %q: %w", key, kvstore.ErrInvalidKey)
	}
	return filepath.Join(s.dir, key+ext), nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	return s.read(p)
}

func (s *Store) read(p string) ([]byte, bool, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("filestore: reading %s: %w", p, err)
	}
	return data, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	return s.write(p, value)
}

func (s *Store) write(p string, value []byte) error {
	if err := atomicwriter.WriteFile(p, value, 0o644); err != nil {
		return fmt.Errorf("filestore: writing %s: %w", p, err)
	}
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filestore: removing %s: %w", p, err)
	}
	return nil
}

// Clear removes every *.json document in the directory. Lock files and
// anything else are left alone.
func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+ext))
	if err != nil {
		return fmt.Errorf("filestore: listing %s: %w", s.dir, err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("filestore: removing %s: %w", m, err)
		}
	}
	s.logger.Info("store cleared", slog.String("dir", s.dir), slog.Int("files", len(matches)))
	return nil
}

func (s *Store) Update(ctx context.Context, key string, fn kvstore.UpdateFunc) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fl := flock.New(p + lockExt)
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("filestore: locking %s: %w", p, err)
	}
	if !locked {
		return fmt.Errorf("filestore: locking %s: %w", p, ctx.Err())
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("releasing file lock", slog.String("path", fl.Path()), slog.String("error", err.Error()))
		}
	}()

	cur, ok, err := s.read(p)
	if err != nil {
		return err
	}
	next, err := fn(cur, ok)
	if err != nil {
		if errors.Is(err, kvstore.ErrSkipWrite) {
			return nil
		}
		return err
	}
	return s.write(p, next)
}

func (s *Store) Close() error { return nil }
