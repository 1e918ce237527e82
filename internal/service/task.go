package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/tasktracker/internal/apperror"
	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/repository"
)

// TaskService applies ownership and validation rules to tasks.
type TaskService struct {
	repo   repository.TaskRepository
	policy OwnerPolicy
	logger *slog.Logger
}

func NewTaskService(repo repository.TaskRepository, policy OwnerPolicy, logger *slog.Logger) *TaskService {
	return &TaskService{repo: repo, policy: policy, logger: logger}
}

// List returns the user's tasks in creation order.
func (s *TaskService) List(ctx context.Context, userID string) ([]model.Task, error) {
	tasks, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/task: listing for %s: %w", userID, err)
	}
	return tasks, nil
}

// ListByProject narrows List to one project. The project itself is not
// looked up, so a deleted project still lists its leftover tasks.
func (s *TaskService) ListByProject(ctx context.Context, userID, projectID string) ([]model.Task, error) {
	tasks, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []model.Task{}
	for _, t := range tasks {
		if t.ProjectID != nil && *t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *TaskService) Get(ctx context.Context, userID, id string) (*model.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.OwnedBy(userID) {
		return nil, s.policy.foreign("task", id)
	}
	return t, nil
}

// Create requires a title and description; status and priority, when
// given, must be known values.
func (s *TaskService) Create(ctx context.Context, userID string, in model.CreateTaskInput) (*model.Task, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Description) == "" {
		return nil, apperror.ValidationFailed("", "Title and description are required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, invalidStatus()
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return nil, invalidPriority()
	}

	t, err := s.repo.Create(ctx, in, userID)
	if err != nil {
		return nil, fmt.Errorf("service/task: creating: %w", err)
	}

	s.logger.Info("task created",
		slog.String("id", t.ID),
		slog.String("userID", userID),
	)
	return t, nil
}

func (s *TaskService) Update(ctx context.Context, userID, id string, in model.UpdateTaskInput) (*model.Task, error) {
	if err := validateTaskUpdate(in); err != nil {
		return nil, err
	}

	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	t, err := s.repo.Update(ctx, id, in, userID)
	if err != nil {
		return nil, fmt.Errorf("service/task: updating %s: %w", id, err)
	}
	return t, nil
}

func validateTaskUpdate(in model.UpdateTaskInput) error {
	if in.Title.Set && (in.Title.Null || strings.TrimSpace(in.Title.Value) == "") {
		return apperror.ValidationFailed("title", "Title cannot be empty")
	}
	if in.Description.Set && (in.Description.Null || strings.TrimSpace(in.Description.Value) == "") {
		return apperror.ValidationFailed("description", "Description cannot be empty")
	}
	if in.Status.Set && (in.Status.Null || !in.Status.Value.Valid()) {
		return invalidStatus()
	}
	if in.Priority.Set && (in.Priority.Null || !in.Priority.Value.Valid()) {
		return invalidPriority()
	}
	return nil
}

func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	ok, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("service/task: deleting %s: %w", id, err)
	}
	if !ok {
		return apperror.NotFound("task", id)
	}

	s.logger.Info("task deleted", slog.String("id", id), slog.String("userID", userID))
	return nil
}

func (s *TaskService) Stats(ctx context.Context, userID string) (model.TaskStats, error) {
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return model.TaskStats{}, fmt.Errorf("service/task: stats for %s: %w", userID, err)
	}
	return stats, nil
}

func invalidStatus() error {
	return apperror.ValidationFailed("status", "Status must be one of todo, in_progress, completed")
}

func invalidPriority() error {
	return apperror.ValidationFailed("priority", "Priority must be one of low, medium, high")
}
