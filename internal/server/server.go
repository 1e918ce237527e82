// Package server wires handlers, middleware and routes into an HTTP server.
//
// Keeping this out of main makes the whole router testable with httptest:
// tests build a Server over an in-memory store and call Handler().
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/tasktracker/internal/app"
	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/handler"
	"github.com/sakif/tasktracker/internal/middleware"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and the App behind it. Start closes the App on
// the way out.
type Server struct {
	router *chi.Mux
	app    *app.App
	logger *slog.Logger
}

// New builds the router over a.
func New(a *app.App, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		app:    a,
		logger: logger,
	}
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("server: setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	GET  /healthz                   liveness
//	GET  /static/*                  files from StaticDir
//	     /api/auth/...              signup, login, me, logout, GitHub
//	     /api/projects[/stats|/{id}] RequireAuth
//	     /api/tasks[/stats|/{id}]    RequireAuth
//	GET  /, /login, /signup, /dashboard, /projects*, /tasks*  page shell behind Gate
//
// MIDDLEWARE ORDER: RequestID first so every later layer can log it,
// Logger outside Recoverer so a recovered panic is logged as a 500.
func (s *Server) setupRoutes() error {
	cfg := s.app.Config

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	cookies := auth.SessionCookies{TTL: s.app.Tokens.TTL(), ForceSecure: cfg.CookieSecure}
	requireAuth := auth.RequireAuth(s.app.Auth, cookies)

	var github handler.GitHubAuthenticator
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	}
	authHandler := handler.NewAuthHandler(s.app.Auth, github, cookies, s.logger)
	projectHandler := handler.NewProjectHandler(s.app.Projects, s.logger)
	taskHandler := handler.NewTaskHandler(s.app.Tasks, s.logger)
	pageHandler, err := handler.NewPageHandler(s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	s.router.Get("/healthz", handler.HandleHealth)

	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		fileServer := http.FileServer(http.Dir(cfg.StaticDir))
		s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	} else {
		s.logger.Debug("static directory not found; /static disabled", slog.String("dir", cfg.StaticDir))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.HandleSignup)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.With(requireAuth).Get("/me", authHandler.HandleMe)
			r.With(requireAuth).Delete("/me", authHandler.HandleDeleteMe)
			if authHandler.GitHubEnabled() {
				r.Get("/github/login", authHandler.HandleGitHubLogin)
				r.Get("/github/callback", authHandler.HandleGitHubCallback)
			}
		})

		r.Route("/projects", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", projectHandler.HandleList)
			r.Post("/", projectHandler.HandleCreate)
			r.Get("/stats", projectHandler.HandleStats)
			r.Get("/{id}", projectHandler.HandleGet)
			r.Put("/{id}", projectHandler.HandleUpdate)
			r.Delete("/{id}", projectHandler.HandleDelete)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", taskHandler.HandleList)
			r.Post("/", taskHandler.HandleCreate)
			r.Get("/stats", taskHandler.HandleStats)
			r.Get("/{id}", taskHandler.HandleGet)
			r.Put("/{id}", taskHandler.HandleUpdate)
			r.Delete("/{id}", taskHandler.HandleDelete)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Not found"}` + "\n"))
		})
	})

	s.router.Group(func(r chi.Router) {
		r.Use(auth.Gate(s.app.Auth, cookies))
		r.Get("/", pageHandler.HandleHome)
		r.Get("/login", pageHandler.Page("Log in", "login"))
		r.Get("/signup", pageHandler.Page("Sign up", "signup"))
		r.Get("/dashboard", pageHandler.Page("Dashboard", "dashboard"))
		r.Get("/projects", pageHandler.Page("Projects", "projects"))
		r.Get("/projects/*", pageHandler.Page("Project", "project"))
		r.Get("/tasks", pageHandler.Page("Tasks", "tasks"))
		r.Get("/tasks/*", pageHandler.Page("Task", "task"))
	})

	return nil
}

// Start serves on the configured port until SIGINT or SIGTERM, then drains
// in-flight requests for up to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer func() {
		if err := s.app.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	port := s.app.Config.Port
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", port)),
			slog.String("store", s.app.Config.StoreBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
