package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tasktracker/internal/app"
	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/config"
	"github.com/sakif/tasktracker/internal/kvstore/memstore"
)

// =========================================================================
// HELPERS
// =========================================================================

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StoreBackend = config.BackendMemory
	cfg.BcryptCost = 4
	cfg.StaticDir = t.TempDir()
	for _, m := range mutate {
		m(cfg)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	a, err := app.New(cfg, memstore.New(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	srv, err := New(a, logger)
	require.NoError(t, err)
	return &testServer{t: t, handler: srv.Handler()}
}

// do sends a request, optionally with a session token, and returns the
// recorder.
func (s *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func tokenFrom(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName && c.Value != "" {
			return c.Value
		}
	}
	t.Fatalf("no session cookie in response (status %d)", rr.Code)
	return ""
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

type userEnvelope struct {
	Message string `json:"message"`
	User    struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type taskEnvelope struct {
	Task struct {
		ID        string  `json:"id"`
		Title     string  `json:"title"`
		Status    string  `json:"status"`
		Priority  string  `json:"priority"`
		ProjectID *string `json:"projectId"`
		CreatedAt string  `json:"createdAt"`
		UpdatedAt string  `json:"updatedAt"`
	} `json:"task"`
}

func (s *testServer) signup(email string) (id, token string) {
	s.t.Helper()
	rr := s.do(http.MethodPost, "/api/auth/signup", `{"email":"`+email+`","password":"secret123","name":"N"}`, "")
	require.Equal(s.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[userEnvelope](s.t, rr).User.ID, tokenFrom(s.t, rr)
}

// =========================================================================
// AUTH SCENARIOS
// =========================================================================

func TestScenario_SignupLogin(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/api/auth/signup", `{"email":"a@x.com","password":"secret123","name":"A"}`, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	signup := decode[userEnvelope](t, rr)
	assert.Equal(t, "User created successfully", signup.Message)
	tokenFrom(t, rr)

	rr = s.do(http.MethodPost, "/api/auth/login", `{"email":"a@x.com"}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Email and password are required"}`, rr.Body.String())

	rr = s.do(http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"wrong-pass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, rr.Body.String())

	rr = s.do(http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"secret123"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	login := decode[userEnvelope](t, rr)
	assert.Equal(t, signup.User.ID, login.User.ID)
	token := tokenFrom(t, rr)

	rr = s.do(http.MethodGet, "/api/auth/me", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, signup.User.ID, decode[userEnvelope](t, rr).User.ID)

	rr = s.do(http.MethodPost, "/api/auth/signup", `{"email":"a@x.com","password":"secret123","name":"A"}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"User already exists"}`, rr.Body.String())
}

func TestScenario_Me(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/api/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Not authenticated"}`, rr.Body.String())

	rr = s.do(http.MethodGet, "/api/auth/me", "", "garbage")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid token"}`, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestScenario_DeleteAccount(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signup("a@x.com")
	rr := s.do(http.MethodPost, "/api/tasks", `{"title":"T","description":"D"}`, token)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = s.do(http.MethodDelete, "/api/auth/me", "", token)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodGet, "/api/tasks", "", token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "token of a deleted user no longer resolves")

	_, token = s.signup("a@x.com")
	rr = s.do(http.MethodGet, "/api/tasks", "", token)
	assert.JSONEq(t, `{"tasks":[]}`, rr.Body.String())
}

// =========================================================================
// TASK SCENARIOS
// =========================================================================

func TestScenario_TaskLifecycle(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signup("a@x.com")

	rr := s.do(http.MethodPost, "/api/tasks", `{"title":"T","description":"D"}`, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[taskEnvelope](t, rr).Task
	assert.Equal(t, "todo", created.Status)
	assert.Equal(t, "medium", created.Priority)
	assert.Nil(t, created.ProjectID)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	rr = s.do(http.MethodPut, "/api/tasks/"+created.ID, `{"status":"completed"}`, token)
	require.Equal(t, http.StatusOK, rr.Code)
	updated := decode[taskEnvelope](t, rr).Task
	assert.Equal(t, "T", updated.Title)
	assert.Greater(t, updated.UpdatedAt, created.UpdatedAt)

	rr = s.do(http.MethodGet, "/api/tasks/stats", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"stats":{"total":1,"todo":0,"inProgress":0,"completed":1}}`, rr.Body.String())

	rr = s.do(http.MethodDelete, "/api/tasks/"+created.ID, "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Task deleted successfully"}`, rr.Body.String())

	rr = s.do(http.MethodGet, "/api/tasks/"+created.ID, "", token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestScenario_TaskValidation(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signup("a@x.com")

	rr := s.do(http.MethodPost, "/api/tasks", `{"title":"T"}`, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Title and description are required"}`, rr.Body.String())

	rr = s.do(http.MethodPost, "/api/tasks", `{"title":"T","description":"D"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestScenario_CrossOwnerDeleteIsConcealed(t *testing.T) {
	s := newTestServer(t)
	_, owner := s.signup("u1@x.com")
	_, intruder := s.signup("u2@x.com")

	rr := s.do(http.MethodPost, "/api/tasks", `{"title":"T","description":"D"}`, owner)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[taskEnvelope](t, rr).Task.ID

	rr = s.do(http.MethodDelete, "/api/tasks/"+id, "", intruder)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodGet, "/api/tasks", "", intruder)
	assert.JSONEq(t, `{"tasks":[]}`, rr.Body.String())

	rr = s.do(http.MethodGet, "/api/tasks/"+id, "", owner)
	assert.Equal(t, http.StatusOK, rr.Code, "owner still has the task")
}

func TestScenario_CrossOwnerForbidPolicy(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.CrossOwnerPolicy = config.PolicyForbid })
	_, owner := s.signup("u1@x.com")
	_, intruder := s.signup("u2@x.com")

	rr := s.do(http.MethodPost, "/api/projects", `{"name":"P"}`, owner)
	require.Equal(t, http.StatusCreated, rr.Code)
	var p struct {
		Project struct{ ID string } `json:"project"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))

	rr = s.do(http.MethodPut, "/api/projects/"+p.Project.ID, `{"name":"mine now"}`, intruder)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

// =========================================================================
// PROJECT SCENARIOS
// =========================================================================

func TestScenario_Projects(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signup("a@x.com")

	rr := s.do(http.MethodPost, "/api/projects", `{"description":"no name"}`, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Name is required"}`, rr.Body.String())

	rr = s.do(http.MethodPost, "/api/projects", `{"name":"Home","description":"chores"}`, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		Project struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"project"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	pid := created.Project.ID

	rr = s.do(http.MethodPost, "/api/tasks", `{"title":"in","description":"d","projectId":"`+pid+`"}`, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = s.do(http.MethodPost, "/api/tasks", `{"title":"out","description":"d"}`, token)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = s.do(http.MethodGet, "/api/tasks?projectId="+pid, "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	var listed struct {
		Tasks []struct{ Title string } `json:"tasks"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&listed))
	require.Len(t, listed.Tasks, 1)
	assert.Equal(t, "in", listed.Tasks[0].Title)

	rr = s.do(http.MethodGet, "/api/projects/stats", "", token)
	assert.JSONEq(t, `{"stats":{"total":1}}`, rr.Body.String())

	rr = s.do(http.MethodDelete, "/api/projects/"+pid, "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Project deleted successfully"}`, rr.Body.String())

	rr = s.do(http.MethodGet, "/api/projects", "", token)
	assert.JSONEq(t, `{"projects":[]}`, rr.Body.String())
}

// =========================================================================
// PAGE, STATIC AND MISC ROUTES
// =========================================================================

func TestRoutes_Pages(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signup("a@x.com")

	tests := []struct {
		name         string
		path         string
		token        string
		wantStatus   int
		wantLocation string
	}{
		{"home anonymous", "/", "", http.StatusTemporaryRedirect, "/login"},
		{"home signed in", "/", token, http.StatusTemporaryRedirect, "/dashboard"},
		{"dashboard anonymous", "/dashboard", "", http.StatusTemporaryRedirect, "/login?redirect=%2Fdashboard"},
		{"task page anonymous", "/tasks/abc", "", http.StatusTemporaryRedirect, "/login?redirect=%2Ftasks%2Fabc"},
		{"login signed in", "/login", token, http.StatusTemporaryRedirect, "/dashboard"},
		{"login anonymous", "/login", "", http.StatusOK, ""},
		{"dashboard signed in", "/dashboard", token, http.StatusOK, ""},
		{"project page signed in", "/projects/p1", token, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(http.MethodGet, tt.path, "", tt.token)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantLocation, rr.Header().Get("Location"))
		})
	}
}

func TestRoutes_Static(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/app.css", []byte("body{}"), 0o644))
	s := newTestServer(t, func(c *config.Config) { c.StaticDir = dir })

	rr := s.do(http.MethodGet, "/static/app.css", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "body{}", rr.Body.String())
}

func TestRoutes_HealthAndUnknownAPI(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rr.Body.String())

	rr = s.do(http.MethodGet, "/api/auth/github/login", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code, "GitHub routes are off without credentials")
}

func TestRoutes_GitHubEnabled(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.GitHubClientID = "id"
		c.GitHubClientSecret = "secret"
		c.GitHubCallbackURL = "http://localhost:8080/api/auth/github/callback"
	})

	rr := s.do(http.MethodGet, "/api/auth/github/login", "", "")
	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Location"), "https://github.com/login/oauth/authorize"))
}
