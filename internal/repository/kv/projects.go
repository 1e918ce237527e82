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

var _ repository.ProjectRepository = (*ProjectStore)(nil)

type ProjectStore struct {
	projects *kvstore.Collection[model.Project]
	opts     options
}

func NewProjectStore(store kvstore.Store, logger *slog.Logger, opts ...Option) *ProjectStore {
	return &ProjectStore{
		projects: kvstore.NewCollection[model.Project](store, ProjectsKey, logger),
		opts:     buildOptions(opts),
	}
}

// GetAll returns every user's projects. Not for request paths.
func (s *ProjectStore) GetAll(ctx context.Context) ([]model.Project, error) {
	projects, err := s.projects.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository/kv: listing projects: %w", err)
	}
	return projects, nil
}

// GetByID does not check ownership; callers must.
func (s *ProjectStore) GetByID(ctx context.Context, id string) (*model.Project, error) {
	projects, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].ID == id {
			return &projects[i], nil
		}
	}
	return nil, apperror.NotFound("project", id)
}

func (s *ProjectStore) GetByUserID(ctx context.Context, userID string) ([]model.Project, error) {
	projects, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	owned := []model.Project{}
	for _, p := range projects {
		if p.OwnedBy(userID) {
			owned = append(owned, p)
		}
	}
	return owned, nil
}

func (s *ProjectStore) Create(ctx context.Context, in model.CreateProjectInput, userID string) (*model.Project, error) {
	var created model.Project
	err := s.projects.Mutate(ctx, func(projects []model.Project) ([]model.Project, error) {
		now := s.opts.now()
		created = model.Project{
			ID:          s.opts.newID(),
			Name:        in.Name,
			Description: in.Description,
			UserID:      userID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return append(projects, created), nil
	})
	if err != nil {
		return nil, fmt.Errorf("repository/kv: creating project: %w", err)
	}
	return &created, nil
}

// Update applies the fields present in in. A project that does not exist
// and one owned by someone else both yield NotFound.
func (s *ProjectStore) Update(ctx context.Context, id string, in model.UpdateProjectInput, userID string) (*model.Project, error) {
	var updated *model.Project
	err := s.projects.Mutate(ctx, func(projects []model.Project) ([]model.Project, error) {
		updated = nil
		for i := range projects {
			p := &projects[i]
			if p.ID != id || !p.OwnedBy(userID) {
				continue
			}
			if in.Name.Present() {
				p.Name = in.Name.Value
			}
			if in.Description.Present() {
				p.Description = in.Description.Value
			}
			p.UpdatedAt = bump(s.opts.now(), p.UpdatedAt)
			cp := *p
			updated = &cp
			return projects, nil
		}
		return nil, kvstore.ErrSkipWrite
	})
	if err != nil {
		return nil, fmt.Errorf("repository/kv: updating project %s: %w", id, err)
	}
	if updated == nil {
		return nil, apperror.NotFound("project", id)
	}
	return updated, nil
}

func (s *ProjectStore) Delete(ctx context.Context, id, userID string) (bool, error) {
	n, err := s.remove(ctx, func(p model.Project) bool { return p.ID == id && p.OwnedBy(userID) })
	if err != nil {
		return false, fmt.Errorf("repository/kv: deleting project %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *ProjectStore) DeleteByUserID(ctx context.Context, userID string) (int, error) {
	n, err := s.remove(ctx, func(p model.Project) bool { return p.OwnedBy(userID) })
	if err != nil {
		return 0, fmt.Errorf("repository/kv: deleting projects of %s: %w", userID, err)
	}
	return n, nil
}

func (s *ProjectStore) remove(ctx context.Context, match func(model.Project) bool) (int, error) {
	var removed int
	err := s.projects.Mutate(ctx, func(projects []model.Project) ([]model.Project, error) {
		removed = 0
		kept := projects[:0]
		for _, p := range projects {
			if match(p) {
				removed++
				continue
			}
			kept = append(kept, p)
		}
		if removed == 0 {
			return nil, kvstore.ErrSkipWrite
		}
		return kept, nil
	})
	return removed, err
}

func (s *ProjectStore) Stats(ctx context.Context, userID string) (model.ProjectStats, error) {
	projects, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return model.ProjectStats{}, err
	}
	return model.ProjectStats{Total: len(projects)}, nil
}
