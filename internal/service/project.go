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

// ProjectService applies ownership and validation rules to projects.
type ProjectService struct {
	repo   repository.ProjectRepository
	policy OwnerPolicy
	logger *slog.Logger
}

func NewProjectService(repo repository.ProjectRepository, policy OwnerPolicy, logger *slog.Logger) *ProjectService {
	return &ProjectService{repo: repo, policy: policy, logger: logger}
}

// List returns the user's projects in creation order.
func (s *ProjectService) List(ctx context.Context, userID string) ([]model.Project, error) {
	projects, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/project: listing for %s: %w", userID, err)
	}
	return projects, nil
}

// Get returns one project, applying the owner policy to foreign ones.
func (s *ProjectService) Get(ctx context.Context, userID, id string) (*model.Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.OwnedBy(userID) {
		return nil, s.policy.foreign("project", id)
	}
	return p, nil
}

func (s *ProjectService) Create(ctx context.Context, userID string, in model.CreateProjectInput) (*model.Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperror.ValidationFailed("name", "Name is required")
	}

	p, err := s.repo.Create(ctx, in, userID)
	if err != nil {
		return nil, fmt.Errorf("service/project: creating: %w", err)
	}

	s.logger.Info("project created",
		slog.String("id", p.ID),
		slog.String("userID", userID),
	)
	return p, nil
}

// Update applies the fields present in in. A present name must not be
// blank.
func (s *ProjectService) Update(ctx context.Context, userID, id string, in model.UpdateProjectInput) (*model.Project, error) {
	if in.Name.Set {
		if in.Name.Null || strings.TrimSpace(in.Name.Value) == "" {
			return nil, apperror.ValidationFailed("name", "Name is required")
		}
		in.Name.Value = strings.TrimSpace(in.Name.Value)
	}

	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	p, err := s.repo.Update(ctx, id, in, userID)
	if err != nil {
		return nil, fmt.Errorf("service/project: updating %s: %w", id, err)
	}
	return p, nil
}

// Delete removes the project. Its tasks keep their projectId.
func (s *ProjectService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	ok, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("service/project: deleting %s: %w", id, err)
	}
	if !ok {
		return apperror.NotFound("project", id)
	}

	s.logger.Info("project deleted", slog.String("id", id), slog.String("userID", userID))
	return nil
}

func (s *ProjectService) Stats(ctx context.Context, userID string) (model.ProjectStats, error) {
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return model.ProjectStats{}, fmt.Errorf("service/project: stats for %s: %w", userID, err)
	}
	return stats, nil
}
