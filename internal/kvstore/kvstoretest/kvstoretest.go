// Package kvstoretest holds the behaviour every kvstore backend must share.
// Backend test files call Run with a constructor for a fresh, empty store.
package kvstoretest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tasktracker/internal/kvstore"
)

// Concurrency is the number of goroutines racing in the lost-update test.
const Concurrency = 10

func Run(t *testing.T, newStore func(t *testing.T) kvstore.Store) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SetGet", func(t *testing.T) { testSetGet(t, newStore(t)) })
	t.Run("SetOverwrites", func(t *testing.T) { testSetOverwrites(t, newStore(t)) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, newStore(t)) })
	t.Run("Clear", func(t *testing.T) { testClear(t, newStore(t)) })
	t.Run("InvalidKey", func(t *testing.T) { testInvalidKey(t, newStore(t)) })
	t.Run("UpdateCreates", func(t *testing.T) { testUpdateCreates(t, newStore(t)) })
	t.Run("UpdateSkip", func(t *testing.T) { testUpdateSkip(t, newStore(t)) })
	t.Run("UpdateError", func(t *testing.T) { testUpdateError(t, newStore(t)) })
	t.Run("ConcurrentUpdates", func(t *testing.T) { testConcurrentUpdates(t, newStore(t)) })
}

func testGetMissing(t *testing.T, s kvstore.Store) {
	v, ok, err := s.Get(context.Background(), "users")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func testSetGet(t *testing.T, s kvstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "users", []byte(`[{"id":"1"}]`)))

	v, ok, err := s.Get(ctx, "users")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"id":"1"}]`, string(v))
}

func testSetOverwrites(t *testing.T, s kvstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "tasks", []byte(`[1]`)))
	require.NoError(t, s.Set(ctx, "tasks", []byte(`[2]`)))

	v, _, err := s.Get(ctx, "tasks")
	require.NoError(t, err)
	assert.JSONEq(t, `[2]`, string(v))
}

func testRemove(t *testing.T, s kvstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "projects", []byte(`[]`)))
	require.NoError(t, s.Remove(ctx, "projects"))

	_, ok, err := s.Get(ctx, "projects")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.Remove(ctx, "projects"), "removing an absent key succeeds")
}

func testClear(t *testing.T, s kvstore.Store) {
	ctx := context.Background()
	for _, k := range []string{"users", "projects", "tasks"} {
		require.NoError(t, s.Set(ctx, k, []byte(`[]`)))
	}

	require.NoError(t, s.Clear(ctx))

	for _, k := range []string{"users", "projects", "tasks"} {
		_, ok, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, "key %s survived Clear", k)
	}
}

func testInvalidKey(t *testing.T, s kvstore.Store) {
	err := s.Set(context.Background(), "../escape", []byte(`[]`))
	assert.ErrorIs(t, err, kvstore.ErrInvalidKey)
}

func testUpdateCreates(t *testing.T, s kvstore.Store) {
	ctx := context.Background()
	var sawOK bool

	err := s.Update(ctx, "counter", func(cur []byte, ok bool) ([]byte, error) {
		sawOK = ok
		return []byte("1"), nil
	})
	require.NoError(t, err)
	assert.False(t, sawOK)

	err = s.Update(ctx, "counter", func(cur []byte, ok bool) ([]byte, error) {
		sawOK = ok
		assert.Equal(t, "1", string(cur))
		return []byte("2"), nil
	})
	require.NoError(t, err)
	assert.True(t, sawOK)

	v, _, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "2", string(v))
}

func testUpdateSkip(t *testing.T, s kvstore.Store) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "users", []byte(`["keep"]`)))

	err := s.Update(ctx, "users", func(cur []byte, ok bool) ([]byte, error) {
		return nil, kvstore.ErrSkipWrite
	})
	require.NoError(t, err)

	v, _, err := s.Get(ctx, "users")
	require.NoError(t, err)
	assert.JSONEq(t, `["keep"]`, string(v))
}

func testUpdateError(t *testing.T, s kvstore.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, "users", func(cur []byte, ok bool) ([]byte, error) {
		return []byte(`["lost"]`), boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok, err := s.Get(ctx, "users")
	require.NoError(t, err)
	assert.False(t, ok, "failed update must not write")
}

// testConcurrentUpdates increments one counter from many goroutines. A
// plain Get-then-Set would lose increments; Update must not.
func testConcurrentUpdates(t *testing.T, s kvstore.Store) {
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, Concurrency)

	for i := 0; i < Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Update(ctx, "counter", func(cur []byte, ok bool) ([]byte, error) {
				n := 0
				if ok {
					var err error
					if n, err = strconv.Atoi(string(cur)); err != nil {
						return nil, err
					}
				}
				return []byte(strconv.Itoa(n + 1)), nil
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	v, ok, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strconv.Itoa(Concurrency), string(v))
}
