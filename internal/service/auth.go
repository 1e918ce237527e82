package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/tasktracker/internal/apperror"
	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/repository"
)

// MinPasswordLength is the shortest password Signup accepts, in characters.
const MinPasswordLength = 6

var _ auth.Verifier = (*AuthService)(nil)

// AuthService owns account lifecycle: signup, login, session verification,
// GitHub sign-in and account deletion.
//
// DEPENDENCIES:
//   - users               → the user directory
//   - projects, tasks     → only for DeleteAccount's cascade
//   - tokens, passwords   → credential primitives from package auth
type AuthService struct {
	users     repository.UserRepository
	projects  repository.ProjectRepository
	tasks     repository.TaskRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	projects repository.ProjectRepository,
	tasks repository.TaskRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		projects:  projects,
		tasks:     tasks,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the signed-in user with a freshly minted token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.PublicUser
	Token string
}

// Signup validates input, creates the account and signs it in.
//
// The duplicate-email pre-check gives the common case a cheap answer; the
// repository's atomic insert is what actually guarantees uniqueness when
// two signups race. Both report "User already exists".
func (s *AuthService) Signup(ctx context.Context, email, password, name string) (*AuthResult, error) {
	if strings.TrimSpace(email) == "" || password == "" || strings.TrimSpace(name) == "" {
		return nil, apperror.ValidationFailed("", "Email, password, and name are required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperror.AlreadyExists("User already exists")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "Password must be 72 bytes or fewer")
	}

	user, err := s.users.Create(ctx, email, hash, name)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.AlreadyExists("User already exists")
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks the password and signs the user in. An unknown email and a
// wrong password produce the same error, and take about the same time.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyDummy(password)
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: finding user: %w", err)
	}

	// Accounts created through GitHub have no password.
	if user.PasswordHash == "" {
		s.passwords.VerifyDummy(password)
		return nil, apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: verifying password for %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// VerifyToken resolves a session token to its user. It never returns an
// error: anything that stops the token resolving (bad signature, expiry, a
// deleted user, a storage failure) reports false.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*model.PublicUser, bool) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.logger.Debug("rejected session token", slog.String("error", err.Error()))
		return nil, false
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("session lookup failed",
				slog.String("userID", claims.UserID),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	return user.Public(), true
}

// LoginWithGitHub signs in the account whose email matches the GitHub
// profile, creating a password-less account on first use.
func (s *AuthService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.Email == "" {
		return nil, fmt.Errorf("service/auth: GitHub profile has no email")
	}

	user, err := s.users.FindByEmail(ctx, gh.Email)
	if errors.Is(err, apperror.ErrNotFound) {
		user, err = s.users.Create(ctx, gh.Email, "", gh.DisplayName())
		if errors.Is(err, apperror.ErrConflict) {
			// Lost a race with a concurrent signup for the same email.
			user, err = s.users.FindByEmail(ctx, gh.Email)
		} else if err == nil {
			s.logger.Info("user signed up via GitHub",
				slog.String("userID", user.ID),
				slog.String("login", gh.Login),
			)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: resolving GitHub user %s: %w", gh.Login, err)
	}

	s.logger.Info("user logged in via GitHub", slog.String("userID", user.ID))
	return s.issue(user)
}

// DeleteAccount removes the user and everything they own. The user record
// goes first so the session stops resolving even if the cascade fails.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	ok, err := s.users.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: deleting user %s: %w", userID, err)
	}
	if !ok {
		return apperror.NotFound("user", userID)
	}

	tasks, err := s.tasks.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: deleting tasks of %s: %w", userID, err)
	}
	projects, err := s.projects.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: deleting projects of %s: %w", userID, err)
	}

	s.logger.Info("account deleted",
		slog.String("userID", userID),
		slog.Int("projects", projects),
		slog.Int("tasks", tasks),
	)
	return nil
}

// ListUsers returns every account without password hashes.
func (s *AuthService) ListUsers(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/auth: listing users: %w", err)
	}
	out := make([]model.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, *users[i].Public())
	}
	return out, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", user.ID, err)
	}
	return &AuthResult{User: user.Public(), Token: token}, nil
}
