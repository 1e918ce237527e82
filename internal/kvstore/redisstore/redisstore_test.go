package redisstore

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tasktracker/internal/kvstore"
	"github.com/sakif/tasktracker/internal/kvstore/kvstoretest"
)

// Runs only against a real server, e.g. TRACKER_TEST_REDIS_ADDR=localhost:6379.
// Each subtest gets its own prefix so runs never collide.
func TestStore(t *testing.T) {
	addr := os.Getenv("TRACKER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TRACKER_TEST_REDIS_ADDR not set")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	kvstoretest.Run(t, func(t *testing.T) kvstore.Store {
		s, err := New(context.Background(), Options{
			Addr:   addr,
			Prefix: "tasktracker-test-" + xid.New().String() + ":",
		}, logger)
		require.NoError(t, err)
		t.Cleanup(func() {
			s.Clear(context.Background())
			s.Close()
		})
		return s
	})
}

func TestNew_Unreachable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ctx, Options{Addr: "127.0.0.1:1"}, logger)
	require.Error(t, err)
}
