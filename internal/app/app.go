// Package app is the composition root shared by the HTTP server and the
// admin CLI: one store, the repositories over it, and the services over
// those.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/config"
	"github.com/sakif/tasktracker/internal/kvstore"
	"github.com/sakif/tasktracker/internal/kvstore/backend"
	"github.com/sakif/tasktracker/internal/repository/kv"
	"github.com/sakif/tasktracker/internal/service"
)

// App owns the store; Close releases it.
type App struct {
	Config *config.Config
	Store  kvstore.Store

	Tokens   *auth.TokenService
	Auth     *service.AuthService
	Projects *service.ProjectService
	Tasks    *service.TaskService
}

// Open connects the configured backend and wires everything over it.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app: opening store: %w", err)
	}
	a, err := New(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

// New wires services over an already-open store. Tests pass a memstore.
func New(cfg *config.Config, store kvstore.Store, logger *slog.Logger) (*App, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	policy, err := service.ParseOwnerPolicy(cfg.CrossOwnerPolicy)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	passwords := auth.NewPasswordServiceWithCost(cfg.BcryptCost)

	users := kv.NewUserStore(store, logger)
	projects := kv.NewProjectStore(store, logger)
	tasks := kv.NewTaskStore(store, logger)

	return &App{
		Config:   cfg,
		Store:    store,
		Tokens:   tokens,
		Auth:     service.NewAuthService(users, projects, tasks, tokens, passwords, logger),
		Projects: service.NewProjectService(projects, policy, logger),
		Tasks:    service.NewTaskService(tasks, policy, logger),
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
