package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its base FS, dialect and logger in package globals.
var gooseMu sync.Mutex

// gooseUpContext is a seam so tests can observe migration calls.
var gooseUpContext = goose.UpContext

// Migrate brings the schema up to date. It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{logger: s.logger})
	if err := goose.SetDialect(s.dialect.gooseDialect()); err != nil {
		return fmt.Errorf("sqlstore: setting migration dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("sqlstore: running migrations: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "migrations"))
}
