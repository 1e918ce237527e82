// Package backend opens the kvstore.Store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/tasktracker/internal/config"
	"github.com/sakif/tasktracker/internal/kvstore"
	"github.com/sakif/tasktracker/internal/kvstore/filestore"
	"github.com/sakif/tasktracker/internal/kvstore/memstore"
	"github.com/sakif/tasktracker/internal/kvstore/redisstore"
	"github.com/sakif/tasktracker/internal/kvstore/s3store"
	"github.com/sakif/tasktracker/internal/kvstore/sqlstore"
)

// Open returns the configured store. The caller owns it and must Close it.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kvstore.Store, error) {
	logger = logger.With(slog.String("store", cfg.StoreBackend))

	switch cfg.StoreBackend {
	case config.BackendFile:
		s, err := filestore.New(cfg.DataDir, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("using file store", slog.String("dir", s.Dir()))
		return s, nil

	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("backend: creating sqlite directory: %w", err)
		}
		logger.Info("using sqlite store", slog.String("path", cfg.SQLitePath))
		return sqlstore.Open(ctx, sqlstore.SQLite, sqlstore.SQLiteDSN(cfg.SQLitePath), logger)

	case config.BackendPostgres:
		logger.Info("using postgres store")
		return sqlstore.Open(ctx, sqlstore.Postgres, cfg.PostgresDSN, logger)

	case config.BackendRedis:
		logger.Info("using redis store", slog.String("addr", cfg.RedisAddr))
		return redisstore.New(ctx, redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, logger)

	case config.BackendS3:
		logger.Info("using s3 store", slog.String("bucket", cfg.S3Bucket))
		return s3store.New(ctx, s3store.Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		}, logger)

	case config.BackendMemory:
		logger.Warn("using in-memory store; data is lost on exit and not shared between processes")
		return memstore.New(), nil
	}

	return nil, fmt.Errorf("backend: unknown store backend %q", cfg.StoreBackend)
}
