package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tasktracker/internal/apperror"
	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/handler"
	"github.com/sakif/tasktracker/internal/model"
	"github.com/sakif/tasktracker/internal/service"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testUser = &model.PublicUser{ID: "u1", Email: "a@x.com", Name: "A"}

// newRequest builds a request as RequireAuth and chi would hand it over:
// the user in the context and the {id} route param filled in.
func newRequest(method, target, body string, id string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rctx := chi.NewRouteContext()
	if id != "" {
		rctx.URLParams.Add("id", id)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(auth.WithUser(ctx, testUser))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var out handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out.Error
}

// fakeTasks records the last call and returns canned results.
type fakeTasks struct {
	err         error
	task        *model.Task
	tasks       []model.Task
	gotUserID   string
	gotID       string
	gotProject  string
	gotCreate   model.CreateTaskInput
	gotUpdate   model.UpdateTaskInput
	listProject bool
}

func (f *fakeTasks) List(_ context.Context, userID string) ([]model.Task, error) {
	f.gotUserID = userID
	return f.tasks, f.err
}

func (f *fakeTasks) ListByProject(_ context.Context, userID, projectID string) ([]model.Task, error) {
	f.gotUserID, f.gotProject, f.listProject = userID, projectID, true
	return f.tasks, f.err
}

func (f *fakeTasks) Get(_ context.Context, userID, id string) (*model.Task, error) {
	f.gotUserID, f.gotID = userID, id
	return f.task, f.err
}

func (f *fakeTasks) Create(_ context.Context, userID string, in model.CreateTaskInput) (*model.Task, error) {
	f.gotUserID, f.gotCreate = userID, in
	return f.task, f.err
}

func (f *fakeTasks) Update(_ context.Context, userID, id string, in model.UpdateTaskInput) (*model.Task, error) {
	f.gotUserID, f.gotID, f.gotUpdate = userID, id, in
	return f.task, f.err
}

func (f *fakeTasks) Delete(_ context.Context, userID, id string) error {
	f.gotUserID, f.gotID = userID, id
	return f.err
}

func (f *fakeTasks) Stats(_ context.Context, userID string) (model.TaskStats, error) {
	f.gotUserID = userID
	return model.TaskStats{Total: 3, Todo: 1, InProgress: 1, Completed: 1}, f.err
}

// =========================================================================
// ERROR MAPPING TESTS
// =========================================================================

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"validation", apperror.ValidationFailed("title", "Title and description are required"), http.StatusBadRequest, "Title and description are required"},
		{"not found", wrapped(apperror.NotFound("task", "t1")), http.StatusNotFound, "task not found with id t1"},
		{"forbidden", apperror.Forbidden("You do not have access to this task"), http.StatusForbidden, "You do not have access to this task"},
		{"unauthorized", apperror.Unauthorized("Not authenticated"), http.StatusUnauthorized, "Not authenticated"},
		{"conflict", apperror.Conflict("task", "t1"), http.StatusConflict, "task conflict with id t1"},
		{"unexpected", errors.New("disk full at /var/lib/secret"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewTaskHandler(&fakeTasks{err: tt.err}, testLogger())
			rr := httptest.NewRecorder()

			h.HandleGet(rr, newRequest(http.MethodGet, "/api/tasks/t1", "", "t1"))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantBody, errorMessage(t, rr))
		})
	}
}

func wrapped(err error) error {
	return errors.Join(errors.New("service/task"), err)
}

// =========================================================================
// TASK HANDLER TESTS
// =========================================================================

func TestTaskHandler_List(t *testing.T) {
	t.Run("all tasks", func(t *testing.T) {
		fake := &fakeTasks{tasks: []model.Task{{ID: "t1", Title: "T"}}}
		rr := httptest.NewRecorder()

		handler.NewTaskHandler(fake, testLogger()).HandleList(rr, newRequest(http.MethodGet, "/api/tasks", "", ""))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "u1", fake.gotUserID)
		assert.False(t, fake.listProject)
		var body struct{ Tasks []model.Task }
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		require.Len(t, body.Tasks, 1)
	})

	t.Run("by project", func(t *testing.T) {
		fake := &fakeTasks{tasks: []model.Task{}}
		rr := httptest.NewRecorder()

		handler.NewTaskHandler(fake, testLogger()).HandleList(rr, newRequest(http.MethodGet, "/api/tasks?projectId=p9", "", ""))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, fake.listProject)
		assert.Equal(t, "p9", fake.gotProject)
		assert.JSONEq(t, `{"tasks":[]}`, rr.Body.String())
	})
}

func TestTaskHandler_Create(t *testing.T) {
	fake := &fakeTasks{task: &model.Task{ID: "t1", Title: "T", Status: model.StatusTodo}}
	rr := httptest.NewRecorder()

	body := `{"title":"T","description":"D","priority":"high","dueDate":"2025-07-01"}`
	handler.NewTaskHandler(fake, testLogger()).HandleCreate(rr, newRequest(http.MethodPost, "/api/tasks", body, ""))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "T", fake.gotCreate.Title)
	assert.Equal(t, model.PriorityHigh, fake.gotCreate.Priority)
	require.NotNil(t, fake.gotCreate.DueDate)
	assert.Equal(t, "2025-07-01", fake.gotCreate.DueDate.String())
	assert.Contains(t, decodeBody(t, rr), "task")
}

func TestTaskHandler_CreateBadJSON(t *testing.T) {
	for _, body := range []string{`{"title":`, `[]`} {
		fake := &fakeTasks{}
		rr := httptest.NewRecorder()

		handler.NewTaskHandler(fake, testLogger()).HandleCreate(rr, newRequest(http.MethodPost, "/api/tasks", body, ""))

		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Equal(t, "Invalid JSON body", errorMessage(t, rr))
		assert.Empty(t, fake.gotUserID, "service must not be called")
	}
}

func TestTaskHandler_UpdatePassesPresence(t *testing.T) {
	fake := &fakeTasks{task: &model.Task{ID: "t1"}}
	rr := httptest.NewRecorder()

	handler.NewTaskHandler(fake, testLogger()).HandleUpdate(rr,
		newRequest(http.MethodPut, "/api/tasks/t1", `{"status":"completed","projectId":null}`, "t1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "t1", fake.gotID)
	assert.True(t, fake.gotUpdate.Status.Present())
	assert.Equal(t, model.StatusCompleted, fake.gotUpdate.Status.Value)
	assert.True(t, fake.gotUpdate.ProjectID.Set)
	assert.True(t, fake.gotUpdate.ProjectID.Null)
	assert.False(t, fake.gotUpdate.Title.Set)
}

func TestTaskHandler_DeleteAndStats(t *testing.T) {
	fake := &fakeTasks{}
	h := handler.NewTaskHandler(fake, testLogger())

	rr := httptest.NewRecorder()
	h.HandleDelete(rr, newRequest(http.MethodDelete, "/api/tasks/t1", "", "t1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Task deleted successfully"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.HandleStats(rr, newRequest(http.MethodGet, "/api/tasks/stats", "", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"stats":{"total":3,"todo":1,"inProgress":1,"completed":1}}`, rr.Body.String())
}

func TestTaskHandler_NoUserInContext(t *testing.T) {
	fake := &fakeTasks{}
	rr := httptest.NewRecorder()

	handler.NewTaskHandler(fake, testLogger()).HandleList(rr, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Not authenticated", errorMessage(t, rr))
}

// =========================================================================
// AUTH HANDLER TESTS
// =========================================================================

// fakeAccounts is an AccountService with canned outcomes.
type fakeAccounts struct {
	signupErr  error
	loginErr   error
	githubUser *auth.GitHubUser
	deleted    string
}

func (f *fakeAccounts) Signup(_ context.Context, email, _, name string) (*service.AuthResult, error) {
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &service.AuthResult{User: &model.PublicUser{ID: "u1", Email: email, Name: name}, Token: "tok-signup"}, nil
}

func (f *fakeAccounts) Login(_ context.Context, email, _ string) (*service.AuthResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &service.AuthResult{User: &model.PublicUser{ID: "u1", Email: email}, Token: "tok-login"}, nil
}

func (f *fakeAccounts) LoginWithGitHub(_ context.Context, gh *auth.GitHubUser) (*service.AuthResult, error) {
	f.githubUser = gh
	return &service.AuthResult{User: &model.PublicUser{ID: "u1", Email: gh.Email}, Token: "tok-github"}, nil
}

func (f *fakeAccounts) DeleteAccount(_ context.Context, userID string) error {
	f.deleted = userID
	return nil
}

type fakeGitHub struct {
	user *auth.GitHubUser
	err  error
}

func (f *fakeGitHub) AuthURL(state string) string {
	return "https://github.example/authorize?state=" + state
}

func (f *fakeGitHub) Exchange(context.Context, string) (*auth.GitHubUser, error) {
	return f.user, f.err
}

func newAuthHandler(accounts *fakeAccounts, github handler.GitHubAuthenticator) *handler.AuthHandler {
	return handler.NewAuthHandler(accounts, github, auth.SessionCookies{TTL: 7 * 24 * time.Hour}, testLogger())
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Signup(t *testing.T) {
	rr := httptest.NewRecorder()
	body := `{"email":"a@x.com","password":"secret1","name":"A"}`

	newAuthHandler(&fakeAccounts{}, nil).HandleSignup(rr, httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rr.Code)
	got := decodeBody(t, rr)
	assert.JSONEq(t, `"User created successfully"`, string(got["message"]))
	assert.NotContains(t, string(got["user"]), "passwordHash")
	cookie := sessionCookie(rr)
	require.NotNil(t, cookie)
	assert.Equal(t, "tok-signup", cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestAuthHandler_SignupDuplicateIsBadRequest(t *testing.T) {
	rr := httptest.NewRecorder()
	accounts := &fakeAccounts{signupErr: apperror.AlreadyExists("User already exists")}

	newAuthHandler(accounts, nil).HandleSignup(rr, httptest.NewRequest(http.MethodPost, "/api/auth/signup",
		strings.NewReader(`{"email":"a@x.com","password":"secret1","name":"A"}`)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "User already exists", errorMessage(t, rr))
	assert.Nil(t, sessionCookie(rr))
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		loginErr   error
		wantStatus int
		wantError  string
	}{
		{"success", `{"email":"a@x.com","password":"secret1"}`, nil, http.StatusOK, ""},
		{"bad credentials", `{"email":"a@x.com","password":"nope"}`, apperror.InvalidCredentials(), http.StatusUnauthorized, "Invalid credentials"},
		{"missing password", `{"email":"a@x.com"}`, nil, http.StatusBadRequest, "Email and password are required"},
		{"empty email", `{"email":"","password":"secret1"}`, nil, http.StatusBadRequest, "Email and password are required"},
		{"empty body", ``, nil, http.StatusBadRequest, "Request body is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(tt.body))

			newAuthHandler(&fakeAccounts{loginErr: tt.loginErr}, nil).HandleLogin(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, errorMessage(t, rr))
				assert.Nil(t, sessionCookie(rr))
				return
			}
			require.NotNil(t, sessionCookie(rr))
			assert.Contains(t, decodeBody(t, rr), "user")
		})
	}
}

func TestAuthHandler_MeAndLogout(t *testing.T) {
	h := newAuthHandler(&fakeAccounts{}, nil)

	rr := httptest.NewRecorder()
	h.HandleMe(rr, newRequest(http.MethodGet, "/api/auth/me", "", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"u1"`)

	rr = httptest.NewRecorder()
	h.HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestAuthHandler_DeleteMe(t *testing.T) {
	accounts := &fakeAccounts{}
	rr := httptest.NewRecorder()

	newAuthHandler(accounts, nil).HandleDeleteMe(rr, newRequest(http.MethodDelete, "/api/auth/me", "", ""))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", accounts.deleted)
	assert.Contains(t, rr.Header().Get("Set-Cookie"), "Max-Age=0")
}

// =========================================================================
// GITHUB FLOW TESTS
// =========================================================================

func TestAuthHandler_GitHubLoginSetsState(t *testing.T) {
	h := newAuthHandler(&fakeAccounts{}, &fakeGitHub{})
	require.True(t, h.GitHubEnabled())
	rr := httptest.NewRecorder()

	h.HandleGitHubLogin(rr, httptest.NewRequest(http.MethodGet, "/api/auth/github/login", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	var state string
	for _, c := range rr.Result().Cookies() {
		if c.Name == "oauth_state" {
			state = c.Value
		}
	}
	require.NotEmpty(t, state)
	assert.Equal(t, "https://github.example/authorize?state="+state, rr.Header().Get("Location"))
}

func TestAuthHandler_GitHubCallback(t *testing.T) {
	callback := func(query, state string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/github/callback?"+query, nil)
		if state != "" {
			req.AddCookie(&http.Cookie{Name: "oauth_state", Value: state})
		}
		return req
	}

	t.Run("state mismatch", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newAuthHandler(&fakeAccounts{}, &fakeGitHub{}).HandleGitHubCallback(rr, callback("code=c&state=evil", "good"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid OAuth state", errorMessage(t, rr))
	})

	t.Run("denied", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newAuthHandler(&fakeAccounts{}, &fakeGitHub{}).HandleGitHubCallback(rr, callback("error=access_denied&state=s", "s"))
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/login?error=github_denied", rr.Header().Get("Location"))
	})

	t.Run("exchange failure", func(t *testing.T) {
		rr := httptest.NewRecorder()
		gh := &fakeGitHub{err: errors.New("github down")}
		newAuthHandler(&fakeAccounts{}, gh).HandleGitHubCallback(rr, callback("code=c&state=s", "s"))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Internal server error", errorMessage(t, rr))
	})

	t.Run("no verified email", func(t *testing.T) {
		rr := httptest.NewRecorder()
		gh := &fakeGitHub{err: auth.ErrNoVerifiedEmail}
		newAuthHandler(&fakeAccounts{}, gh).HandleGitHubCallback(rr, callback("code=c&state=s", "s"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("success", func(t *testing.T) {
		rr := httptest.NewRecorder()
		accounts := &fakeAccounts{}
		gh := &fakeGitHub{user: &auth.GitHubUser{ID: 1, Login: "octo", Email: "octo@x.com"}}
		newAuthHandler(accounts, gh).HandleGitHubCallback(rr, callback("code=c&state=s", "s"))

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
		require.NotNil(t, accounts.githubUser)
		assert.Equal(t, "octo@x.com", accounts.githubUser.Email)
		require.NotNil(t, sessionCookie(rr))
		assert.Equal(t, "tok-github", sessionCookie(rr).Value)
	})
}

// =========================================================================
// PAGE AND HEALTH TESTS
// =========================================================================

func TestPageHandler(t *testing.T) {
	h, err := handler.NewPageHandler(testLogger())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.Page("Dashboard", "dashboard")(rr, newRequest(http.MethodGet, "/dashboard", "", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "<title>Dashboard · Task Tracker</title>")
	assert.Contains(t, rr.Body.String(), `data-user-id="u1"`)

	rr = httptest.NewRecorder()
	h.HandleHome(rr, newRequest(http.MethodGet, "/", "", ""))
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	h.HandleHome(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	rr = httptest.NewRecorder()
	h.Page("Log in", "login")(rr, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.NotContains(t, rr.Body.String(), "data-user-id")
}

func TestHandleHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	handler.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
