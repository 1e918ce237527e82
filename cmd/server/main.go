// Command server runs the task tracker HTTP server.
//
// Configuration comes from defaults, .env, the environment, an optional JSON
// file (-config) and flags, later sources winning. See internal/config.
//
//	go run ./cmd/server -store sqlite -port 8080
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/tasktracker/internal/app"
	"github.com/sakif/tasktracker/internal/config"
	"github.com/sakif/tasktracker/internal/server"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate has already accepted the level.
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if cfg.UsesDevSecret() {
		logger.Warn("JWT_SECRET not set, using the built-in development secret")
	}
	if !cfg.GitHubEnabled() {
		logger.Info("GitHub sign-in disabled (GITHUB_CLIENT_ID / GITHUB_CLIENT_SECRET unset)")
	}

	a, err := app.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(a, logger)
	if err != nil {
		a.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM and closes the store on the way out.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
