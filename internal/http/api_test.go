package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"taskflow/internal/auth"
	"taskflow/internal/domain"
	"taskflow/internal/repository"
	"taskflow/internal/repository/sqlite"
	"taskflow/internal/service"
	"taskflow/internal/storage"
)

type testServer struct {
	router *gin.Engine
	users  repository.UserRepository
	tokens auth.TokenCodec
}

type stubExports struct {
	exported []domain.Actor
}

func (s *stubExports) Export(_ context.Context, actor domain.Actor) (*service.Export, error) {
	s.exported = append(s.exported, actor)
	key := fmt.Sprintf("task-exports/user-%d/snap.json", actor.ID)
	return &service.Export{
		Key:         key,
		Location:    "s3://exports/" + key,
		Count:       2,
		DownloadURL: "https://exports.example/" + key,
		CreatedAt:   time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
	}, nil
}

func (s *stubExports) ListExports(_ context.Context, actor domain.Actor) ([]storage.ObjectInfo, error) {
	modified := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	return []storage.ObjectInfo{{
		Key:          fmt.Sprintf("task-exports/user-%d/snap.json", actor.ID),
		Size:         42,
		LastModified: &modified,
	}}, nil
}

func newTestServer(t *testing.T, exports service.ExportService) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	users := sqlite.NewUserRepository(db)
	tasks := sqlite.NewTaskRepository(db)
	require.NoError(t, users.Init(ctx))
	require.NoError(t, tasks.Init(ctx))

	hasher, err := auth.NewHasher(auth.HasherConfig{Cost: bcrypt.MinCost})
	require.NoError(t, err)
	tokens, err := auth.NewTokenCodec(auth.TokenConfig{Secret: []byte("api-test-secret")})
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	authService, err := service.NewAuthService(users, hasher, tokens, logger)
	require.NoError(t, err)

	handler := NewHandler(
		authService,
		service.NewTaskService(tasks, nil),
		exports,
		auth.NewResolver(tokens, users, logger),
		logger,
		Options{
			AppName:         "TaskFlow API",
			Version:         "1.0.0",
			Environment:     "test",
			DefaultPageSize: 20,
			MaxPageSize:     50,
		},
	)
	router := gin.New()
	handler.RegisterRoutes(router)

	return &testServer{router: router, users: users, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// signup registers and logs in, returning the access token.
func (s *testServer) signup(t *testing.T, username string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    username + "@x.com",
		"username": username,
		"password": "longenough1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": username,
		"password": "longenough1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["access_token"].(string)
}

func (s *testServer) createTask(t *testing.T, token string, body any) map[string]any {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/tasks", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)
}

func TestMetadataEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.0.0", decode(t, rec)["version"])

	rec = srv.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["environment"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRegisterLoginAndEmptyList(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    "a@x.com",
		"username": "alice",
		"password": "longenough1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode(t, rec)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, true, user["is_active"])
	assert.Equal(t, false, user["is_superuser"])
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "$2a$")

	rec = srv.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": "alice",
		"password": "longenough1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode(t, rec)
	assert.Equal(t, "bearer", login["token_type"])
	assert.Equal(t, float64(1800), login["expires_in"])
	token := login["access_token"].(string)

	rec = srv.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", decode(t, rec)["email"])

	rec = srv.do(t, http.MethodGet, "/api/v1/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode(t, rec)
	assert.Equal(t, []any{}, list["tasks"])
	assert.Equal(t, float64(0), list["total"])
	assert.Equal(t, float64(1), list["page"])
	assert.Equal(t, float64(20), list["page_size"])
	assert.Equal(t, float64(1), list["total_pages"])
}

func TestRegisterConflicts(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.signup(t, "alice")

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    "alice@x.com",
		"username": "alice",
		"password": "longenough1",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "CONFLICT", body["code"])
	assert.Equal(t, "email", body["metadata"].(map[string]any)["field"])

	rec = srv.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    "other@x.com",
		"username": "alice",
		"password": "longenough1",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "username", decode(t, rec)["metadata"].(map[string]any)["field"])
}

func TestLoginFailuresLookAlike(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.signup(t, "alice")

	wrong := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "wrongpassword"})
	unknown := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "nobody", "password": "longenough1"})

	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "Bearer", wrong.Header().Get("WWW-Authenticate"))
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    "not-an-email",
		"username": "al",
		"password": "short",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
	fields := map[string]string{}
	for _, f := range body["fields"].([]any) {
		entry := f.(map[string]any)
		fields[entry["field"].(string)] = entry["rule"].(string)
	}
	assert.Equal(t, map[string]string{"email": "email", "username": "min", "password": "min"}, fields)

	rec = srv.do(t, http.MethodPost, "/api/v1/auth/register", "", "{not json")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decode(t, rec)["code"])

	token := srv.signup(t, "alice")
	cases := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"missing title", http.MethodPost, "/api/v1/tasks", gin.H{"description": "x"}},
		{"long title", http.MethodPost, "/api/v1/tasks", gin.H{"title": strings.Repeat("a", 201)}},
		{"bad priority", http.MethodPost, "/api/v1/tasks", gin.H{"title": "x", "priority": "urgent"}},
		{"bad status", http.MethodPost, "/api/v1/tasks", gin.H{"title": "x", "status": "done"}},
		{"bad due date", http.MethodPost, "/api/v1/tasks", gin.H{"title": "x", "due_date": "tomorrow"}},
		{"bad task id", http.MethodGet, "/api/v1/tasks/abc", nil},
		{"zero task id", http.MethodGet, "/api/v1/tasks/0", nil},
		{"page zero", http.MethodGet, "/api/v1/tasks?page=0", nil},
		{"page size zero", http.MethodGet, "/api/v1/tasks?page_size=0", nil},
		{"negative page", http.MethodGet, "/api/v1/tasks?page=-1", nil},
		{"page size over max", http.MethodGet, "/api/v1/tasks?page_size=51", nil},
		{"page not a number", http.MethodGet, "/api/v1/tasks?page=two", nil},
		{"bad status filter", http.MethodGet, "/api/v1/tasks?status=done", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := srv.do(t, tc.method, tc.path, token, tc.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.Equal(t, "VALIDATION_FAILED", decode(t, rec)["code"])
		})
	}
}

func fieldNames(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var names []string
	for _, f := range decode(t, rec)["fields"].([]any) {
		names = append(names, f.(map[string]any)["field"].(string))
	}
	return names
}

func TestValidationFieldsUseWireNames(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":     "a@x.com",
		"username":  "alice",
		"password":  "longenough1",
		"full_name": strings.Repeat("n", 101),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"full_name"}, fieldNames(t, rec))

	token := srv.signup(t, "alice")
	rec = srv.do(t, http.MethodGet, "/api/v1/tasks?page_size=0", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"page_size"}, fieldNames(t, rec))

	task := srv.createTask(t, token, gin.H{"title": "Buy milk"})
	path := fmt.Sprintf("/api/v1/tasks/%d", int64(task["id"].(float64)))
	rec = srv.do(t, http.MethodPut, path, token, gin.H{"title": "", "status": "done"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.ElementsMatch(t, []string{"title", "status"}, fieldNames(t, rec))
}

func TestRegisterRejectsPaddedShortUsername(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    "a@x.com",
		"username": "  al  ",
		"password": "longenough1",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "VALIDATION_FAILED", decode(t, rec)["code"])

	_, err := srv.users.GetByUsername(context.Background(), "al")
	assert.Error(t, err)
}

func TestBearerRequirements(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/api/v1/tasks", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Basic YWxpY2U6cHc=")
	basic := httptest.NewRecorder()
	srv.router.ServeHTTP(basic, req)
	assert.Equal(t, http.StatusForbidden, basic.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/tasks", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, auth.MsgInvalidCredentials, decode(t, rec)["error"])

	past, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret: []byte("api-test-secret"),
		Now:    func() time.Time { return time.Now().Add(-2 * time.Hour) },
	})
	require.NoError(t, err)
	expired, err := past.IssueDefault(1)
	require.NoError(t, err)
	rec = srv.do(t, http.MethodGet, "/api/v1/auth/me", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ghost, err := srv.tokens.IssueDefault(999)
	require.NoError(t, err)
	rec = srv.do(t, http.MethodGet, "/api/v1/tasks", ghost, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInactiveUserTokenRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "alice")

	user, err := srv.users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, srv.users.Update(context.Background(), user))

	rec := srv.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTaskLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "alice")

	task := srv.createTask(t, token, gin.H{"title": "Buy milk"})
	assert.Equal(t, "medium", task["priority"])
	assert.Equal(t, "todo", task["status"])
	assert.Equal(t, false, task["is_completed"])
	assert.Nil(t, task["completed_at"])
	path := fmt.Sprintf("/api/v1/tasks/%d", int64(task["id"].(float64)))

	rec := srv.do(t, http.MethodPatch, path+"/complete", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	completed := decode(t, rec)
	assert.Equal(t, true, completed["is_completed"])
	assert.Equal(t, "completed", completed["status"])
	assert.NotNil(t, completed["completed_at"])

	rec = srv.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = srv.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec)["code"])
}

func TestUpdateTaskPartialAndClear(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "alice")

	task := srv.createTask(t, token, gin.H{
		"title":       "Buy milk",
		"description": "semi-skimmed",
		"priority":    "low",
		"due_date":    "2026-11-02T08:00:00Z",
	})
	path := fmt.Sprintf("/api/v1/tasks/%d", int64(task["id"].(float64)))

	rec := srv.do(t, http.MethodPut, path, token, gin.H{"title": "Buy oat milk"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode(t, rec)
	assert.Equal(t, "Buy oat milk", updated["title"])
	assert.Equal(t, "semi-skimmed", updated["description"])
	assert.Equal(t, "low", updated["priority"])
	assert.Equal(t, "2026-11-02T08:00:00Z", updated["due_date"])

	rec = srv.do(t, http.MethodPut, path, token, `{"description": null, "due_date": null, "title": null, "status": "in_progress"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cleared := decode(t, rec)
	assert.Nil(t, cleared["description"])
	assert.Nil(t, cleared["due_date"])
	assert.Equal(t, "Buy oat milk", cleared["title"])
	assert.Equal(t, "in_progress", cleared["status"])

	rec = srv.do(t, http.MethodPut, path, token, gin.H{"title": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = srv.do(t, http.MethodPut, path, token, gin.H{"priority": "urgent"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestForeignTasks(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := srv.signup(t, "alice")
	bob := srv.signup(t, "bob")

	task := srv.createTask(t, alice, gin.H{"title": "private"})
	path := fmt.Sprintf("/api/v1/tasks/%d", int64(task["id"].(float64)))

	for _, req := range []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, path, nil},
		{http.MethodPut, path, gin.H{"title": "mine now"}},
		{http.MethodPatch, path + "/complete", nil},
		{http.MethodDelete, path, nil},
	} {
		rec := srv.do(t, req.method, req.path, bob, req.body)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", req.method, req.path)
		assert.Equal(t, "FORBIDDEN", decode(t, rec)["code"])
	}

	rec := srv.do(t, http.MethodGet, "/api/v1/tasks", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["total"])

	rec = srv.do(t, http.MethodGet, "/api/v1/tasks/999999", bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPagination(t *testing.T) {
	srv := newTestServer(t, nil)
	token := srv.signup(t, "alice")

	for i := 0; i < 5; i++ {
		priority := "low"
		if i%2 == 0 {
			priority = "high"
		}
		srv.createTask(t, token, gin.H{"title": fmt.Sprintf("task %d", i), "priority": priority})
	}

	rec := srv.do(t, http.MethodGet, "/api/v1/tasks?page=1&page_size=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode(t, rec)
	assert.Len(t, page["tasks"], 2)
	assert.Equal(t, float64(5), page["total"])
	assert.Equal(t, float64(3), page["total_pages"])

	rec = srv.do(t, http.MethodGet, "/api/v1/tasks?priority=high", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), decode(t, rec)["total"])
}

func TestUpdateProfile(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := srv.signup(t, "alice")
	srv.signup(t, "bob")

	rec := srv.do(t, http.MethodPatch, "/api/v1/auth/me", alice, gin.H{"full_name": "Alice Liddell"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Alice Liddell", decode(t, rec)["full_name"])

	rec = srv.do(t, http.MethodPatch, "/api/v1/auth/me", alice, gin.H{"email": "bob@x.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodPatch, "/api/v1/auth/me", alice, gin.H{"password": "brandnewpass"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "brandnewpass"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExportRoutes(t *testing.T) {
	t.Run("not registered without storage", func(t *testing.T) {
		srv := newTestServer(t, nil)
		token := srv.signup(t, "alice")
		rec := srv.do(t, http.MethodPost, "/api/v1/tasks/export", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("registered with storage", func(t *testing.T) {
		exports := &stubExports{}
		srv := newTestServer(t, exports)
		token := srv.signup(t, "alice")

		rec := srv.do(t, http.MethodPost, "/api/v1/tasks/export", token, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decode(t, rec)
		assert.Equal(t, float64(2), body["count"])
		assert.Contains(t, body["download_url"], "https://exports.example/")
		require.Len(t, exports.exported, 1)

		rec = srv.do(t, http.MethodGet, "/api/v1/tasks/exports", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode(t, rec)["exports"].([]any)
		require.Len(t, list, 1)
		assert.Equal(t, "2026-10-14T09:00:00Z", list[0].(map[string]any)["last_modified"])

		rec = srv.do(t, http.MethodPost, "/api/v1/tasks/export", "", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"bearer":       {"Bearer abc", "abc", true},
		"lowercase":    {"bearer abc", "abc", true},
		"empty":        {"", "", false},
		"scheme only":  {"Bearer", "", false},
		"other scheme": {"Token abc", "", false},
		"extra parts":  {"Bearer a b", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			token, ok := bearerToken(tc.header)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.token, token)
		})
	}
}
