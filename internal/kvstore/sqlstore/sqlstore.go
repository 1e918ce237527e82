// Package sqlstore keeps blobs in a single kv_blobs table in SQLite or
// Postgres.
//
// Update runs inside a transaction that holds a write lock on the key for
// its whole read-modify-write: SQLite transactions start IMMEDIATE, Postgres
// takes a transaction-scoped advisory lock derived from the key.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/sakif/tasktracker/internal/kvstore"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driver() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseDialect() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite3"
}

var _ kvstore.Store = (*Store)(nil)

type Store struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *slog.Logger
}

// SQLiteDSN builds a modernc.org/sqlite DSN for a database file with WAL,
// a busy timeout and IMMEDIATE transactions.
func SQLiteDSN(path string) string {
	return "file:" + path +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
}

// Open connects, verifies the connection and runs migrations.
func Open(ctx context.Context, dialect Dialect, dsn string, logger *slog.Logger) (*Store, error) {
	if dialect != SQLite && dialect != Postgres {
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}

	db, err := sqlx.Open(dialect.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening database: %w", err)
	}
	if dialect == SQLite {
		// One writer at a time; extra connections would only wait on the
		// database lock.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: pinging database: %w", err)
	}

	s := &Store{db: db, dialect: dialect, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !kvstore.ValidKey(key) {
		return nil, false, kvstore.ErrInvalidKey
	}
	return s.get(ctx, s.db, key)
}

func (s *Store) get(ctx context.Context, q sqlx.QueryerContext, key string) ([]byte, bool, error) {
	var value string
	err := sqlx.GetContext(ctx, q, &value,
		s.db.Rebind(`SELECT blob_value FROM kv_blobs WHERE blob_key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: reading %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if !kvstore.ValidKey(key) {
		return kvstore.ErrInvalidKey
	}
	return s.put(ctx, s.db, key, value)
}

func (s *Store) put(ctx context.Context, e sqlx.ExecerContext, key string, value []byte) error {
	_, err := e.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO kv_blobs (blob_key, blob_value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (blob_key) DO UPDATE
		SET blob_value = excluded.blob_value, updated_at = CURRENT_TIMESTAMP`),
		key, string(value))
	if err != nil {
		return fmt.Errorf("sqlstore: writing %s: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if !kvstore.ValidKey(key) {
		return kvstore.ErrInvalidKey
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM kv_blobs WHERE blob_key = ?`), key); err != nil {
		return fmt.Errorf("sqlstore: removing %s: %w", key, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_blobs`); err != nil {
		return fmt.Errorf("sqlstore: clearing: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, key string, fn kvstore.UpdateFunc) error {
	if !kvstore.ValidKey(key) {
		return kvstore.ErrInvalidKey
	}

	err := withTx(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if s.dialect == Postgres {
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
				return fmt.Errorf("sqlstore: locking %s: %w", key, err)
			}
		}

		cur, ok, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}
		next, err := fn(cur, ok)
		if err != nil {
			return err
		}
		return s.put(ctx, tx, key, next)
	})
	if errors.Is(err, kvstore.ErrSkipWrite) {
		return nil
	}
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// withTx commits when fn succeeds and rolls back on error or panic.
func withTx(ctx context.Context, db *sqlx.DB, fn func(ctx context.Context, tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx, tx)
}
