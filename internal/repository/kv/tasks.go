package kv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/tasktracker/internal/apperror"
	"github.com/sakif/tasktracker/internal/kvstore"
	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/repository"
)

var _ repository.TaskRepository = (*TaskStore)(nil)

type TaskStore struct {
	tasks *kvstore.Collection[model.Task]
	opts  options
}

func NewTaskStore(store kvstore.Store, logger *slog.Logger, opts ...Option) *TaskStore {
	return &TaskStore{
		tasks: kvstore.NewCollection[model.Task](store, TasksKey, logger),
		opts:  buildOptions(opts),
	}
}

func (s *TaskStore) GetAll(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.tasks.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository/kv: listing tasks: %w", err)
	}
	return tasks, nil
}

// GetByID does not check ownership; callers must.
func (s *TaskStore) GetByID(ctx context.Context, id string) (*model.Task, error) {
	tasks, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i], nil
		}
	}
	return nil, apperror.NotFound("task", id)
}

func (s *TaskStore) GetByUserID(ctx context.Context, userID string) ([]model.Task, error) {
	tasks, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	owned := []model.Task{}
	for _, t := range tasks {
		if t.OwnedBy(userID) {
			owned = append(owned, t)
		}
	}
	return owned, nil
}

// Create stores a new task, defaulting status to todo and priority to
// medium when the input leaves them empty.
func (s *TaskStore) Create(ctx context.Context, in model.CreateTaskInput, userID string) (*model.Task, error) {
	status := in.Status
	if status == "" {
		status = model.StatusTodo
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	var projectID *string
	if in.ProjectID != nil && *in.ProjectID != "" {
		v := *in.ProjectID
		projectID = &v
	}
	var due *model.Date
	if in.DueDate != nil {
		d := *in.DueDate
		due = &d
	}

	var created model.Task
	err := s.tasks.Mutate(ctx, func(tasks []model.Task) ([]model.Task, error) {
		now := s.opts.now()
		created = model.Task{
			ID:          s.opts.newID(),
			Title:       in.Title,
			Description: in.Description,
			Status:      status,
			Priority:    priority,
			ProjectID:   projectID,
			UserID:      userID,
			CreatedAt:   now,
			UpdatedAt:   now,
			DueDate:     due,
		}
		return append(tasks, created), nil
	})
	if err != nil {
		return nil, fmt.Errorf("repository/kv: creating task: %w", err)
	}
	return &created, nil
}

// Update applies the fields present in in. Missing and foreign tasks both
// yield NotFound.
func (s *TaskStore) Update(ctx context.Context, id string, in model.UpdateTaskInput, userID string) (*model.Task, error) {
	var updated *model.Task
	err := s.tasks.Mutate(ctx, func(tasks []model.Task) ([]model.Task, error) {
		updated = nil
		for i := range tasks {
			t := &tasks[i]
			if t.ID != id || !t.OwnedBy(userID) {
				continue
			}
			applyTaskUpdate(t, in)
			t.UpdatedAt = bump(s.opts.now(), t.UpdatedAt)
			cp := *t
			updated = &cp
			return tasks, nil
		}
		return nil, kvstore.ErrSkipWrite
	})
	if err != nil {
		return nil, fmt.Errorf("repository/kv: updating task %s: %w", id, err)
	}
	if updated == nil {
		return nil, apperror.NotFound("task", id)
	}
	return updated, nil
}

func applyTaskUpdate(t *model.Task, in model.UpdateTaskInput) {
	if in.Title.Present() {
		t.Title = in.Title.Value
	}
	if in.Description.Present() {
		t.Description = in.Description.Value
	}
	if in.Status.Present() {
		t.Status = in.Status.Value
	}
	if in.Priority.Present() {
		t.Priority = in.Priority.Value
	}
	if in.ProjectID.Set {
		if in.ProjectID.Null || in.ProjectID.Value == "" {
			t.ProjectID = nil
		} else {
			v := in.ProjectID.Value
			t.ProjectID = &v
		}
	}
	if in.DueDate.Set {
		if in.DueDate.Null {
			t.DueDate = nil
		} else {
			d := in.DueDate.Value
			t.DueDate = &d
		}
	}
}

func (s *TaskStore) Delete(ctx context.Context, id, userID string) (bool, error) {
	n, err := s.remove(ctx, func(t model.Task) bool { return t.ID == id && t.OwnedBy(userID) })
	if err != nil {
		return false, fmt.Errorf("repository/kv: deleting task %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *TaskStore) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	n, err := s.remove(ctx, func(t model.Task) bool { return t.OwnedBy(userID) })
	if err != nil {
		return 0, fmt.Errorf("repository/kv: deleting tasks of %s: %w", userID, err)
	}
	return n, nil
}

func (s *TaskStore) remove(ctx context.Context, match func(model.Task) bool) (int, error) {
	var removed int
	err := s.tasks.Mutate(ctx, func(tasks []model.Task) ([]model.Task, error) {
		removed = 0
		kept := tasks[:0]
		for _, t := range tasks {
			if match(t) {
				removed++
				continue
			}
			kept = append(kept, t)
		}
		if removed == 0 {
			return nil, kvstore.ErrSkipWrite
		}
		return kept, nil
	})
	return removed, err
}

// Stats counts the user's tasks by status.
func (s *TaskStore) Stats(ctx context.Context, userID string) (model.TaskStats, error) {
	tasks, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return model.TaskStats{}, err
	}
	stats := model.TaskStats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case model.StatusTodo:
			stats.Todo++
		case model.StatusInProgress:
			stats.InProgress++
		case model.StatusCompleted:
			stats.Completed++
		}
	}
	return stats, nil
}
