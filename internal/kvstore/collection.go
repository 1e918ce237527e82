package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Collection is a typed view of one key holding a JSON array of T.
//
// A blob that does not decode is treated as an empty collection and logged;
// callers never see a parse failure.
type Collection[T any] struct {
	store  Store
	key    string
	logger *slog.Logger
}

func NewCollection[T any](store Store, key string, logger *slog.Logger) *Collection[T] {
	return &Collection[T]{store: store, key: key, logger: logger}
}

func (c *Collection[T]) Key() string {
	return c.key
}

// Load returns every item under the key, in storage order.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("kvstore: loading %s: %w", c.key, err)
	}
	return c.decode(raw, ok), nil
}

// Save overwrites the whole collection. Prefer Mutate for anything that
// depends on the current contents.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	data, err := c.encode(items)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, c.key, data); err != nil {
		return fmt.Errorf("kvstore: saving %s: %w", c.key, err)
	}
	return nil
}

// Mutate loads the collection, passes it to fn and stores the result, all
// inside one atomic Update. fn may return ErrSkipWrite to leave the
// collection as it was; any other error aborts the write and is returned
// unchanged so callers can match on it.
func (c *Collection[T]) Mutate(ctx context.Context, fn func(items []T) ([]T, error)) error {
	var fnErr error
	err := c.store.Update(ctx, c.key, func(cur []byte, ok bool) ([]byte, error) {
		fnErr = nil
		next, err := fn(c.decode(cur, ok))
		if err != nil {
			if !errors.Is(err, ErrSkipWrite) {
				fnErr = err
			}
			return nil, err
		}
		return c.encode(next)
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("kvstore: updating %s: %w", c.key, err)
	}
	return nil
}

func (c *Collection[T]) decode(raw []byte, ok bool) []T {
	items := []T{}
	if !ok || len(raw) == 0 {
		return items
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		c.logger.Warn("corrupt collection treated as empty",
			slog.String("key", c.key),
			slog.String("error", err.Error()),
		)
		return []T{}
	}
	return items
}

func (c *Collection[T]) encode(items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("kvstore: encoding %s: %w", c.key, err)
	}
	return data, nil
}
