// Package memstore keeps blobs in process memory. It satisfies the kvstore
// contract within one process only and is meant for tests and throwaway
// development servers.
package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/sakif/tasktracker/internal/kvstore"
)

var _ kvstore.Store = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	data map[string][]byte
}

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if !kvstore.ValidKey(key) {
		return nil, false, kvstore.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if !kvstore.ValidKey(key) {
		return kvstore.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = clone(value)
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	if !kvstore.ValidKey(key) {
		return kvstore.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]byte)
	return nil
}

func (s *Store) Update(ctx context.Context, key string, fn kvstore.UpdateFunc) error {
	if !kvstore.ValidKey(key) {
		return kvstore.ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	cur, ok := s.data[key]
	next, err := fn(clone(cur), ok)
	if err != nil {
		if errors.Is(err, kvstore.ErrSkipWrite) {
			return nil
		}
		return err
	}
	s.data[key] = clone(next)
	return nil
}

func (s *Store) Close() error { return nil }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
