package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/tasktracker/internal/apperror"
	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/service"
)

const oauthStateCookie = "oauth_state"

// AccountService is the part of service.AuthService the HTTP layer uses.
type AccountService interface {
	Signup(ctx context.Context, email, password, name string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*service.AuthResult, error)
	DeleteAccount(ctx context.Context, userID string) error
}

// GitHubAuthenticator is implemented by *auth.GitHubProvider.
type GitHubAuthenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

var (
	_ AccountService      = (*service.AuthService)(nil)
	_ GitHubAuthenticator = (*auth.GitHubProvider)(nil)
)

// AuthHandler serves /api/auth: password signup and login, the current
// session, logout, account deletion and the optional GitHub flow.
type AuthHandler struct {
	accounts AccountService
	github   GitHubAuthenticator // nil when GitHub sign-in is not configured
	cookies  auth.SessionCookies
	logger   *slog.Logger
}

func NewAuthHandler(accounts AccountService, github GitHubAuthenticator, cookies auth.SessionCookies, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		github:   github,
		cookies:  cookies,
		logger:   logger,
	}
}

// GitHubEnabled reports whether the GitHub routes should be mounted.
func (h *AuthHandler) GitHubEnabled() bool {
	return h.github != nil
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	Message string            `json:"message,omitempty"`
	User    *model.PublicUser `json:"user"`
}

// HandleSignup creates an account and signs it in.
//
// HTTP: POST /api/auth/signup
// BODY: {"email":"a@x.com","password":"secret1","name":"A"}
//
// A taken email is a 400 here, not a 409: the signup form treats it like
// any other input problem.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.accounts.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrConflict) && errors.As(err, &appErr) {
			writeErrorMessage(w, http.StatusBadRequest, appErr.Message)
			return
		}
		writeError(w, r, h.logger, err)
		return
	}

	h.cookies.Set(w, r, res.Token)
	writeJSON(w, http.StatusCreated, userResponse{Message: "User created successfully", User: res.User})
}

// HandleLogin checks credentials and sets the session cookie.
//
// HTTP: POST /api/auth/login
// BODY: {"email":"a@x.com","password":"secret1"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.cookies.Set(w, r, res.Token)
	writeJSON(w, http.StatusOK, userResponse{User: res.User})
}

// HandleMe returns the user RequireAuth resolved from the cookie.
//
// HTTP: GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// HandleLogout clears the session cookie. The token itself stays valid
// until it expires; there is no server-side session to end.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w, r)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// HandleDeleteMe deletes the signed-in account with its projects and
// tasks, then clears the cookie.
//
// HTTP: DELETE /api/auth/me
func (h *AuthHandler) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), userID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.cookies.Clear(w, r)
	writeMessage(w, http.StatusOK, "Account deleted successfully")
}

// HandleGitHubLogin redirects to GitHub with a fresh state value, kept in
// a 10-minute cookie so the callback can prove it started here.
//
// HTTP: GET /api/auth/github/login
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback finishes the GitHub flow.
//
// HTTP: GET /api/auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Check the state against the cookie (CSRF)
//  2. Exchange the code for a GitHub profile
//  3. Find or create the account by email and set the session cookie
//  4. Redirect to the dashboard
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("github callback: state mismatch")
		writeErrorMessage(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/login?error=github_denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeErrorMessage(w, http.StatusBadRequest, "Missing OAuth code")
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrNoVerifiedEmail) {
			writeErrorMessage(w, http.StatusBadRequest, "GitHub account has no verified email")
			return
		}
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.accounts.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.cookies.Set(w, r, res.Token)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
