package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/service"
)

// ProjectService is the part of service.ProjectService the HTTP layer uses.
type ProjectService interface {
	List(ctx context.Context, userID string) ([]model.Project, error)
	Get(ctx context.Context, userID, id string) (*model.Project, error)
	Create(ctx context.Context, userID string, in model.CreateProjectInput) (*model.Project, error)
	Update(ctx context.Context, userID, id string, in model.UpdateProjectInput) (*model.Project, error)
	Delete(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string) (model.ProjectStats, error)
}

var _ ProjectService = (*service.ProjectService)(nil)

// ProjectHandler serves /api/projects. Every route sits behind
// RequireAuth and only ever sees the caller's own projects.
type ProjectHandler struct {
	projects ProjectService
	logger   *slog.Logger
}

func NewProjectHandler(projects ProjectService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

type projectResponse struct {
	Project *model.Project `json:"project"`
}

// HandleList: GET /api/projects → {"projects":[...]}
func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	projects, err := h.projects.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]model.Project{"projects": projects})
}

// HandleCreate: POST /api/projects {"name":"...","description":"..."}
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in model.CreateProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.projects.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectResponse{Project: p})
}

// HandleStats: GET /api/projects/stats → {"stats":{"total":n}}
func (h *ProjectHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	stats, err := h.projects.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.ProjectStats{"stats": stats})
}

// HandleGet: GET /api/projects/{id}
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	p, err := h.projects.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Project: p})
}

// HandleUpdate: PUT /api/projects/{id} with any subset of name and
// description.
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in model.UpdateProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.projects.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Project: p})
}

// HandleDelete: DELETE /api/projects/{id}
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := h.projects.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Project deleted successfully")
}
