package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/service"
)

// TaskService is the part of service.TaskService the HTTP layer uses.
type TaskService interface {
	List(ctx context.Context, userID string) ([]model.Task, error)
	ListByProject(ctx context.Context, userID, projectID string) ([]model.Task, error)
	Get(ctx context.Context, userID, id string) (*model.Task, error)
	Create(ctx context.Context, userID string, in model.CreateTaskInput) (*model.Task, error)
	Update(ctx context.Context, userID, id string, in model.UpdateTaskInput) (*model.Task, error)
	Delete(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string) (model.TaskStats, error)
}

var _ TaskService = (*service.TaskService)(nil)

// TaskHandler serves /api/tasks.
type TaskHandler struct {
	tasks  TaskService
	logger *slog.Logger
}

func NewTaskHandler(tasks TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

type taskResponse struct {
	Task *model.Task `json:"task"`
}

// HandleList returns the caller's tasks, optionally narrowed to one
// project.
//
// HTTP: GET /api/tasks[?projectId=<id>] → {"tasks":[...]}
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var (
		tasks []model.Task
		err   error
	)
	if projectID := r.URL.Query().Get("projectId"); projectID != "" {
		tasks, err = h.tasks.ListByProject(r.Context(), userID, projectID)
	} else {
		tasks, err = h.tasks.List(r.Context(), userID)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]model.Task{"tasks": tasks})
}

// HandleCreate adds a task. Status defaults to todo and priority to medium.
//
// HTTP: POST /api/tasks
// BODY: {"title":"...","description":"...","status":"todo","priority":"high",
//
//	"projectId":"...","dueDate":"2025-07-01"}
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in model.CreateTaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t, err := h.tasks.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskResponse{Task: t})
}

// HandleStats: GET /api/tasks/stats → {"stats":{"total","todo","inProgress","completed"}}
func (h *TaskHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	stats, err := h.tasks.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.TaskStats{"stats": stats})
}

func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	t, err := h.tasks.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{Task: t})
}

// HandleUpdate applies a partial update. Omitted fields are untouched;
// "projectId": null and "dueDate": null clear those fields.
//
// HTTP: PUT /api/tasks/{id}
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var in model.UpdateTaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t, err := h.tasks.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{Task: t})
}

func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := h.tasks.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Task deleted successfully")
}
