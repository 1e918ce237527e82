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

var _ repository.UserRepository = (*UserStore)(nil)

type UserStore struct {
	users *kvstore.Collection[model.User]
	opts  options
}

func NewUserStore(store kvstore.Store, logger *slog.Logger, opts ...Option) *UserStore {
	return &UserStore{
		users: kvstore.NewCollection[model.User](store, UsersKey, logger),
		opts:  buildOptions(opts),
	}
}

// Create inserts a user unless the email is already registered. The check
// and the insert happen inside the same atomic update.
func (s *UserStore) Create(ctx context.Context, email, passwordHash, name string) (*model.User, error) {
	var created model.User
	err := s.users.Mutate(ctx, func(users []model.User) ([]model.User, error) {
		for _, u := range users {
			if u.Email == email {
				return nil, apperror.AlreadyExists("User already exists")
			}
		}
		created = model.User{
			ID:           s.opts.newID(),
			Email:        email,
			PasswordHash: passwordHash,
			Name:         name,
			CreatedAt:    s.opts.now(),
		}
		return append(users, created), nil
	})
	if err != nil {
		return nil, fmt.Errorf("repository/kv: creating user: %w", err)
	}
	return &created, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	users, err := s.users.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository/kv: finding user by email: %w", err)
	}
	for i := range users {
		if users[i].Email == email {
			return &users[i], nil
		}
	}
	return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "user not found"}
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	users, err := s.users.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository/kv: finding user %s: %w", id, err)
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

func (s *UserStore) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.users.Mutate(ctx, func(users []model.User) ([]model.User, error) {
		removed = false
		kept := users[:0]
		for _, u := range users {
			if u.ID == id {
				removed = true
				continue
			}
			kept = append(kept, u)
		}
		if !removed {
			return nil, kvstore.ErrSkipWrite
		}
		return kept, nil
	})
	if err != nil {
		return false, fmt.Errorf("repository/kv: deleting user %s: %w", id, err)
	}
	return removed, nil
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository/kv: listing users: %w", err)
	}
	return users, nil
}
