// Package redisstore keeps blobs as plain Redis strings under a key prefix.
//
// Update uses optimistic locking: WATCH the key, read it, then write inside
// MULTI/EXEC. If another client touched the key in between, EXEC fails and
// the whole read-modify-write is retried.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/sakif/tasktracker/internal/kvstore"
)

const (
	defaultPrefix  = "tasktracker:"
	maxUpdateTries = 64
	clearScanBatch = 100
)

var ErrTooManyConflicts = errors.New("redisstore: too many concurrent writers")

var _ kvstore.Store = (*Store)(nil)

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// New connects and pings the server.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: pinging %s: %w", opts.Addr, err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix, logger: logger}, nil
}

func (s *Store) redisKey(key string) (string, error) {
	if !kvstore.ValidKey(key) {
		return "", fmt.Errorf("redisstore: %q: %w", key, kvstore.ErrInvalidKey)
	}
	return s.prefix + key, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k, err := s.redisKey(key)
	if err != nil {
		return nil, false, err
	}
	return get(ctx, s.client, k)
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func get(ctx context.Context, c getter, k string) ([]byte, bool, error) {
	v, err := c.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redisstore: reading %s: %w", k, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	k, err := s.redisKey(key)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, k, value, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: writing %s: %w", k, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	k, err := s.redisKey(key)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("redisstore: removing %s: %w", k, err)
	}
	return nil
}

// Clear deletes every key under the prefix. Keys belonging to other
// applications on the same database are untouched.
func (s *Store) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", clearScanBatch).Result()
		if err != nil {
			return fmt.Errorf("redisstore: scanning %s*: %w", s.prefix, err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redisstore: clearing: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *Store) Update(ctx context.Context, key string, fn kvstore.UpdateFunc) error {
	k, err := s.redisKey(key)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		cur, ok, err := get(ctx, tx, k)
		if err != nil {
			return err
		}
		next, err := fn(cur, ok)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxUpdateTries; attempt++ {
		err := s.client.Watch(ctx, txf, k)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, kvstore.ErrSkipWrite):
			return nil
		case errors.Is(err, redis.TxFailedErr):
			s.logger.Debug("redis update conflict, retrying",
				slog.String("key", key),
				slog.Int("attempt", attempt),
			)
			continue
		default:
			return err
		}
	}
	return fmt.Errorf("%w: key %s", ErrTooManyConflicts, key)
}

func (s *Store) Close() error {
	return s.client.Close()
}
