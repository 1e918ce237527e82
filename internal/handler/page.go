// Package handler contains the HTTP handlers: JSON endpoints under /api and
// the server-rendered page shell.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the request (path params, query, JSON body)
//  2. Call a service
//  3. Write the response (status, headers, body)
//
// Business rules live in package service, never here.
package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageHandler renders the page shell. The templates are parsed once at
// startup; base.html defines the layout and page.html fills its "content"
// block.
type PageHandler struct {
	templates *template.Template
	logger    *slog.Logger
}

func NewPageHandler(logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/page.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{templates: tmpl, logger: logger}, nil
}

type pageData struct {
	Title string
	Page  string
	User  *model.PublicUser
}

// HandleHome sends signed-in visitors to the dashboard and everyone else to
// the login page. Gate has already resolved the user, if any.
//
// HTTP: GET /
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
		return
	}
	http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
}

// Page returns a handler rendering the shell for one page. page names the
// client-side view ("dashboard", "tasks", ...).
func (h *PageHandler) Page(title, page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData{Title: title, Page: page}
		if u, ok := auth.UserFromContext(r.Context()); ok {
			data.User = u
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
			h.logger.Error("failed to render template",
				slog.String("page", page),
				slog.String("error", err.Error()),
			)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}
