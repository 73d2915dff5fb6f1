package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/project-tracker/internal/auth"
	"github.com/ayush/project-tracker/internal/docs"
	"github.com/ayush/project-tracker/internal/logging"
	"github.com/ayush/project-tracker/internal/models"
	"github.com/ayush/project-tracker/internal/projects"
	"github.com/ayush/project-tracker/internal/store"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	authSvc *auth.Service
}

func newTestAPI(t *testing.T, rateLimit int) *testAPI {
	t.Helper()
	mem := store.NewMemoryStore()
	log := logging.Discard()
	tokens := auth.NewTokenCodec("0123456789abcdef0123456789abcdef", time.Hour)
	authSvc := auth.NewService(mem, auth.NewBcryptHasher(bcrypt.MinCost), tokens)

	doc, err := docs.New("test")
	require.NoError(t, err)

	h := NewRouter(Deps{
		Auth:              auth.NewHandler(authSvc, log),
		Projects:          projects.NewHandler(projects.NewService(mem), log),
		Tokens:            tokens,
		Docs:              doc,
		Log:               log,
		CORSOrigins:       []string{"http://localhost:5173"},
		RateLimitRequests: rateLimit,
		RateLimitWindow:   time.Minute,
	})
	return &testAPI{t: t, handler: h, authSvc: authSvc}
}

func (a *testAPI) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (a *testAPI) register(name, email string) (models.User, string) {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "password123",
	})
	require.Equal(a.t, http.StatusCreated, code)
	var resp struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &resp))
	return resp.User, resp.Token
}

func (a *testAPI) login(email, password string) string {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &resp))
	return resp.Token
}

func (a *testAPI) createProject(token string, body any) models.Project {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/projects", token, body)
	require.Equal(a.t, http.StatusCreated, code, string(env.Data))
	var p models.Project
	require.NoError(a.t, json.Unmarshal(env.Data, &p))
	return p
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestRegister_HidesHashAndRejectsDuplicates(t *testing.T) {
	api := newTestAPI(t, 100)

	code, env := api.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)
	assert.NotContains(t, string(env.Data), "password")
	assert.Contains(t, string(env.Data), `"role":"user"`)

	code, env = api.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Alice Again", "email": "alice@example.com", "password": "password456",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)
	assert.Equal(t, "CONFLICT", env.Error.Code)
}

func TestRegister_ReportsEveryInvalidField(t *testing.T) {
	api := newTestAPI(t, 100)

	code, env := api.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": "A", "email": "not-an-email", "password": "short",
	})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	fields := map[string]bool{}
	for _, d := range env.Error.Details {
		fields[d.Field] = true
	}
	assert.Equal(t, map[string]bool{"name": true, "email": true, "password": true}, fields)

	code, env = api.do(http.MethodPost, "/auth/register", "", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	api := newTestAPI(t, 100)
	api.register("Alice", "alice@example.com")

	req := func(email, password string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"email": email, "password": password})
		r := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		api.handler.ServeHTTP(rec, r)
		return rec
	}

	unknown := req("nobody@example.com", "password123")
	wrong := req("alice@example.com", "wrong-password")

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.JSONEq(t, unknown.Body.String(), wrong.Body.String())
}

func TestMe(t *testing.T) {
	api := newTestAPI(t, 100)
	user, token := api.register("Alice", "alice@example.com")

	code, env := api.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	me := decodeData[models.User](t, env)
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, "alice@example.com", me.Email)

	code, env = api.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	code, _ = api.do(http.MethodGet, "/auth/me", token+"x", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCreateProject_Defaults(t *testing.T) {
	api := newTestAPI(t, 100)
	user, token := api.register("Alice", "alice@example.com")

	code, env := api.do(http.MethodPost, "/projects", token, map[string]string{"title": "  Roadmap  "})
	require.Equal(t, http.StatusCreated, code)
	assert.Contains(t, string(env.Data), `"description":null`)

	p := decodeData[models.Project](t, env)
	assert.Equal(t, "Roadmap", p.Title)
	assert.Equal(t, models.StatusTodo, p.Status)
	assert.Nil(t, p.Description)
	assert.Equal(t, user.ID, p.OwnerID)

	code, env = api.do(http.MethodPost, "/projects", token, map[string]string{"title": "ok title", "status": "archived"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "status", env.Error.Details[0].Field)
}

func TestProjects_OwnershipVersusExistence(t *testing.T) {
	api := newTestAPI(t, 100)
	_, alice := api.register("Alice", "alice@example.com")
	_, bob := api.register("Bob", "bob@example.com")
	p := api.createProject(alice, map[string]string{"title": "Secret plan"})

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		var body any
		if method == http.MethodPatch {
			body = map[string]string{"title": "Hijacked"}
		}

		code, env := api.do(method, "/projects/"+p.ID, bob, body)
		assert.Equal(t, http.StatusForbidden, code, method)
		assert.Equal(t, "FORBIDDEN", env.Error.Code, method)

		code, env = api.do(method, "/projects/"+uuid.NewString(), bob, body)
		assert.Equal(t, http.StatusNotFound, code, method)
		assert.Equal(t, "NOT_FOUND", env.Error.Code, method)
	}

	code, env := api.do(http.MethodGet, "/projects/not-a-uuid", alice, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "id", env.Error.Details[0].Field)

	code, env = api.do(http.MethodGet, "/projects/"+p.ID, alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Secret plan", decodeData[models.Project](t, env).Title)
}

func TestProjects_UppercaseIDResolves(t *testing.T) {
	api := newTestAPI(t, 100)
	_, token := api.register("Alice", "alice@example.com")
	p := api.createProject(token, map[string]string{"title": "Shouting ids"})

	code, env := api.do(http.MethodGet, "/projects/"+strings.ToUpper(p.ID), token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, p.ID, decodeData[models.Project](t, env).ID)
}

func TestUpdateProject_Partial(t *testing.T) {
	api := newTestAPI(t, 100)
	_, token := api.register("Alice", "alice@example.com")
	p := api.createProject(token, map[string]string{"title": "Original", "description": "keep me"})

	code, env := api.do(http.MethodPatch, "/projects/"+p.ID, token, map[string]string{"status": "doing"})
	require.Equal(t, http.StatusOK, code)
	updated := decodeData[models.Project](t, env)
	assert.Equal(t, models.StatusDoing, updated.Status)
	assert.Equal(t, "Original", updated.Title)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "keep me", *updated.Description)
	assert.False(t, updated.UpdatedAt.Before(p.UpdatedAt))

	code, env = api.do(http.MethodPatch, "/projects/"+p.ID, token, map[string]string{"title": "no"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "title", env.Error.Details[0].Field)
}

func TestListProjects_Pagination(t *testing.T) {
	api := newTestAPI(t, 100)
	_, alice := api.register("Alice", "alice@example.com")
	_, bob := api.register("Bob", "bob@example.com")
	for i := range 3 {
		api.createProject(alice, map[string]string{"title": fmt.Sprintf("Project %d", i)})
	}
	api.createProject(bob, map[string]string{"title": "Bob's project"})

	code, env := api.do(http.MethodGet, "/projects?limit=1", alice, nil)
	require.Equal(t, http.StatusOK, code)
	page := decodeData[models.Page[models.Project]](t, env)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Limit)
	assert.Equal(t, 0, page.Offset)

	code, env = api.do(http.MethodGet, "/projects?limit=500&offset=-4", alice, nil)
	require.Equal(t, http.StatusOK, code)
	page = decodeData[models.Page[models.Project]](t, env)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 50, page.Limit)
	assert.Equal(t, 0, page.Offset)

	code, env = api.do(http.MethodGet, "/projects?limit=abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestDeleteProject(t *testing.T) {
	api := newTestAPI(t, 100)
	_, token := api.register("Alice", "alice@example.com")
	p := api.createProject(token, map[string]string{"title": "Short lived"})

	code, env := api.do(http.MethodDelete, "/projects/"+p.ID, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"Project deleted"}`, string(env.Data))

	code, _ = api.do(http.MethodGet, "/projects/"+p.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t, 100)
	_, alice := api.register("Alice", "alice@example.com")
	p := api.createProject(alice, map[string]string{"title": "Alice's project"})

	created, err := api.authSvc.EnsureAdmin(context.Background(), "Root", "root@example.com", "rootpassword")
	require.NoError(t, err)
	require.True(t, created)
	admin := api.login("root@example.com", "rootpassword")

	code, env := api.do(http.MethodGet, "/admin/projects", alice, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	code, _ = api.do(http.MethodGet, "/admin/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = api.do(http.MethodGet, "/admin/projects", admin, nil)
	require.Equal(t, http.StatusOK, code)
	page := decodeData[models.Page[models.ProjectWithOwner]](t, env)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "alice@example.com", page.Items[0].Owner.Email)

	code, _ = api.do(http.MethodDelete, "/admin/projects/"+p.ID, alice, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodDelete, "/admin/projects/"+p.ID, admin, nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = api.do(http.MethodGet, "/projects/"+p.ID, alice, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	code, _ = api.do(http.MethodDelete, "/admin/projects/"+p.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRateLimit_AuthRoutes(t *testing.T) {
	api := newTestAPI(t, 2)

	api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "a@example.com", "password": "x"})
	api.do(http.MethodPost, "/auth/register", "", map[string]string{"name": "A"})

	code, env := api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "a@example.com", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", env.Error.Code)

	code, _ = api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code, "only auth routes are limited")
}

func TestHealthDocsAndUnknownRoutes(t *testing.T) {
	api := newTestAPI(t, 100)

	code, env := api.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))

	code, env = api.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	code, env = api.do(http.MethodPut, "/health", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/openapi.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"openapi": "3.0.3"`)
}
