// Package repository declares the storage contracts the services depend on.
// The kv subpackage implements them over a kvstore.Store.
package repository

import (
	"context"

	"github.com/sakif/tasktracker/internal/model"
)

// UserRepository is the user directory. Lookups that find nothing return an
// error matching apperror.ErrNotFound. Create rejects a duplicate email with
// an error matching apperror.ErrConflict, atomically with the insert.
type UserRepository interface {
	Create(ctx context.Context, email, passwordHash, name string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]model.User, error)
}

// ProjectRepository is ownership-scoped: Update and Delete only touch a
// project whose id AND owner match, and report NotFound / false otherwise.
type ProjectRepository interface {
	GetAll(ctx context.Context) ([]model.Project, error)
	GetByID(ctx context.Context, id string) (*model.Project, error)
	GetByUserID(ctx context.Context, userID string) ([]model.Project, error)
	Create(ctx context.Context, in model.CreateProjectInput, userID string) (*model.Project, error)
	Update(ctx context.Context, id string, in model.UpdateProjectInput, userID string) (*model.Project, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
	DeleteByUserID(ctx context.Context, userID string) (int, error)
	Stats(ctx context.Context, userID string) (model.ProjectStats, error)
}

// TaskRepository has the same ownership rules as ProjectRepository.
type TaskRepository interface {
	GetAll(ctx context.Context) ([]model.Task, error)
	GetByID(ctx context.Context, id string) (*model.Task, error)
	GetByUserID(ctx context.Context, userID string) ([]model.Task, error)
	Create(ctx context.Context, in model.CreateTaskInput, userID string) (*model.Task, error)
	Update(ctx context.Context, id string, in model.UpdateTaskInput, userID string) (*model.Task, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
	DeleteByUserID(ctx context.Context, userID string) (int, error)
	Stats(ctx context.Context, userID string) (model.TaskStats, error)
}
