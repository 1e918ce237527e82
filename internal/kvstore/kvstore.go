// Package kvstore is the durable key-value layer under the user, project and
// task stores.
//
// Each key holds one JSON document: the whole collection for that entity
// type. Backends differ in where the document lives (a shared directory, a
// SQL table, Redis, an S3 bucket, process memory) but share one contract:
//
//   - Get on a key that was never written reports absence, not an error.
//   - Remove on an absent key succeeds.
//   - Update is an atomic read-modify-write of one key. Concurrent Updates
//     on the same key are serialised; none of them is lost.
//
// Backends that resolve write conflicts optimistically (Redis, S3) may call
// the Update callback more than once, so callbacks must not have side
// effects outside their return values.
package kvstore

import (
	"context"
	"errors"
)

// ErrSkipWrite may be returned by an Update callback to leave the stored
// value untouched. Update then returns nil.
var ErrSkipWrite = errors.New("kvstore: skip write")

// ErrInvalidKey is returned for keys a backend cannot address.
var ErrInvalidKey = errors.New("kvstore: invalid key")

// UpdateFunc receives the current value (ok is false when the key is
// absent) and returns the value to store.
type UpdateFunc func(current []byte, ok bool) ([]byte, error)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}

// ValidKey reports whether key is usable by every backend: non-empty,
// no path separators, no leading dot.
func ValidKey(key string) bool {
	if key == "" || key[0] == '.' {
		return false
	}
	for _, r := range key {
		if r == '/' || r == '\\' || r == 0 {
			return false
		}
	}
	return true
}
