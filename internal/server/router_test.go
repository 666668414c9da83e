package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/suite"

	"taskdesk/backend/internal/cache"
	"taskdesk/backend/internal/config"
	"taskdesk/backend/internal/database"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/server"
)

func testConfig(t *testing.T, overrides map[string]string) *config.Config {
	t.Helper()

	env := map[string]string{
		"DB_DRIVER":          "sqlite",
		"REDIS_ENABLED":      "false",
		"RATE_LIMIT_ENABLED": "false",
		"BCRYPT_COST":        "4",
	}
	for k, v := range overrides {
		env[k] = v
	}

	cfg, err := config.LoadConfigFrom(context.Background(), envconfig.MapLookuper(env))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func newTestRouter(t *testing.T, cfg *config.Config, mr *miniredis.Miniredis) (*gin.Engine, *server.Dependencies) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := database.NewDatabasePool(database.MemoryPoolConfig())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	if err := database.Migrate(pool.DB); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	var redisCache *cache.RedisCache
	if mr != nil {
		redisCache = cache.NewRedisCache(&redis.Options{Addr: mr.Addr(), DialTimeout: time.Second, ReadTimeout: time.Second}, cache.DefaultBreakerConfig())
		t.Cleanup(func() { redisCache.Close() })
	}

	deps := server.BuildDependencies(cfg, pool, redisCache)
	return server.NewRouter(deps), deps
}

type APISuite struct {
	suite.Suite
	router *gin.Engine
	deps   *server.Dependencies
	redis  *miniredis.Miniredis
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.redis = miniredis.RunT(s.T())
	s.router, s.deps = newTestRouter(s.T(), testConfig(s.T(), nil), s.redis)
}

type session struct {
	ID      string
	Email   string
	Access  string
	Refresh string
}

func (s *APISuite) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *APISuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (s *APISuite) register(email, username string) session {
	w := s.request(http.MethodPost, "/register/", map[string]any{
		"email":    email,
		"username": username,
		"password": "van_Rossum",
	}, "")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		ID     string `json:"id"`
		Email  string `json:"email"`
		Tokens struct {
			Refresh string `json:"refresh"`
			Access  string `json:"access"`
		} `json:"tokens"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return session{ID: body.ID, Email: body.Email, Access: body.Tokens.Access, Refresh: body.Tokens.Refresh}
}

func (s *APISuite) createTask(owner session, title string, assignee session) string {
	w := s.request(http.MethodPost, "/tasks/", map[string]any{
		"title":       title,
		"description": "description of " + title,
		"assigned_to": assignee.ID,
	}, owner.Access)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return s.decode(w)["id"].(string)
}

func (s *APISuite) TestRegister() {
	w := s.request(http.MethodPost, "/register/", map[string]any{
		"email":    "test@test.com",
		"username": "Guido",
		"password": "van_Rossum",
	}, "")

	s.Equal(http.StatusCreated, w.Code)
	body := s.decode(w)
	s.Equal("test@test.com", body["email"])
	s.Equal("Guido", body["username"])
	s.NotEmpty(body["id"])
	s.NotContains(body, "password")

	tokens := body["tokens"].(map[string]any)
	s.NotEmpty(tokens["access"])
	s.NotEmpty(tokens["refresh"])
}

func (s *APISuite) TestRegister_DuplicateEmail() {
	s.register("test@test.com", "Guido")

	w := s.request(http.MethodPost, "/register/", map[string]any{
		"email":    "test@test.com",
		"username": "Other",
		"password": "secret",
	}, "")

	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"email": ["user with this email address already exists."]}`, w.Body.String())
}

func (s *APISuite) TestRegister_ValidationErrors() {
	w := s.request(http.MethodPost, "/register/", nil, "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{
		"email": ["This field is required."],
		"username": ["This field is required."],
		"password": ["This field is required."]
	}`, w.Body.String())

	w = s.request(http.MethodPost, "/register/", map[string]any{
		"email":    123,
		"username": "Guido",
		"password": "van_Rossum",
	}, "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"email": ["Enter a valid email address."]}`, w.Body.String())

	w = s.request(http.MethodPost, "/register/", map[string]any{
		"email":    "test@test.com",
		"username": []string{"Guido"},
		"password": "van_Rossum",
	}, "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"username": ["Not a valid string."]}`, w.Body.String())
}

func (s *APISuite) TestMalformedBodies() {
	w := s.request(http.MethodPost, "/login/", `{"email": `, "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.True(strings.HasPrefix(s.decode(w)["detail"].(string), "JSON parse error - "))

	w = s.request(http.MethodPost, "/login/", `["a", "b"]`, "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"non_field_errors": ["Invalid data. Expected a dictionary, but got list."]}`, w.Body.String())
}

func (s *APISuite) TestLogin() {
	s.register("test@test.com", "Guido")

	w := s.request(http.MethodPost, "/login/", map[string]any{
		"email":    "test@test.com",
		"password": "van_Rossum",
	}, "")
	s.Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal("test@test.com", body["email"])
	tokens := body["tokens"].(map[string]any)
	s.NotEmpty(tokens["access"])
	s.NotEmpty(tokens["refresh"])

	for _, payload := range []map[string]any{
		{"email": "test@test.com", "password": "python"},
		{"email": "unknown@test.com", "password": "van_Rossum"},
	} {
		w = s.request(http.MethodPost, "/login/", payload, "")
		s.Equal(http.StatusBadRequest, w.Code)
		s.JSONEq(`{"non_field_errors": ["Incorrect Credentials"]}`, w.Body.String())
	}
}

func (s *APISuite) TestRefresh() {
	user := s.register("test@test.com", "Guido")

	w := s.request(http.MethodPost, "/token/refresh/", map[string]any{"refresh": user.Refresh}, "")
	s.Equal(http.StatusOK, w.Code)
	access := s.decode(w)["access"].(string)
	s.NotEmpty(access)

	w = s.request(http.MethodGet, "/users/me/", nil, access)
	s.Equal(http.StatusOK, w.Code, "a refreshed access token authenticates")

	w = s.request(http.MethodPost, "/token/refresh/", map[string]any{}, "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"refresh": ["This field is required."]}`, w.Body.String())

	for _, bad := range []any{123, "not.a.token", user.Access} {
		w = s.request(http.MethodPost, "/token/refresh/", map[string]any{"refresh": bad}, "")
		s.Equal(http.StatusUnauthorized, w.Code)
		s.JSONEq(`{"detail": "Token is invalid or expired", "code": "token_not_valid"}`, w.Body.String())
	}
}

func (s *APISuite) TestVerify() {
	user := s.register("test@test.com", "Guido")

	for _, token := range []string{user.Access, user.Refresh} {
		w := s.request(http.MethodPost, "/token/verify/", map[string]any{"token": token}, "")
		s.Equal(http.StatusOK, w.Code)
		s.JSONEq(`{}`, w.Body.String())
	}

	w := s.request(http.MethodPost, "/token/verify/", map[string]any{"token": "junk"}, "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("token_not_valid", s.decode(w)["code"])
}

func (s *APISuite) TestLogout() {
	user := s.register("test@test.com", "Guido")

	w := s.request(http.MethodPost, "/logout/", map[string]any{"refresh": user.Refresh}, "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.JSONEq(`{"detail": "Authentication credentials were not provided.", "code": "not_authenticated"}`, w.Body.String())

	w = s.request(http.MethodPost, "/logout/", map[string]any{}, user.Access)
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"refresh": ["This field is required."]}`, w.Body.String())

	w = s.request(http.MethodPost, "/logout/", map[string]any{"refresh": "garbage"}, user.Access)
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"refresh": ["Token is invalid or expired"]}`, w.Body.String())

	w = s.request(http.MethodPost, "/logout/", map[string]any{"refresh": user.Refresh}, user.Access)
	s.Equal(http.StatusResetContent, w.Code)
	s.Empty(w.Body.String())

	w = s.request(http.MethodPost, "/token/refresh/", map[string]any{"refresh": user.Refresh}, "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("token_not_valid", s.decode(w)["code"])

	w = s.request(http.MethodPost, "/token/verify/", map[string]any{"token": user.Refresh}, "")
	s.Equal(http.StatusUnauthorized, w.Code)

	s.Len(s.redis.Keys(), 1, "blacklisted jti is mirrored to redis")
}

func (s *APISuite) TestProfile() {
	user := s.register("test@test.com", "Guido")
	s.register("other@test.com", "Other")

	w := s.request(http.MethodGet, "/users/me/", nil, "")
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.request(http.MethodGet, "/users/me/", nil, user.Access)
	s.Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal(user.ID, body["id"])
	s.Equal("Guido", body["username"])
	s.Equal(true, body["is_active"])
	s.Equal(false, body["is_staff"])
	s.Equal(false, body["is_superuser"])
	s.Contains(body, "last_login")
	s.Contains(body, "date_joined")
	s.NotContains(body, "password")

	w = s.request(http.MethodPut, "/users/me/", map[string]any{"username": "Guido"}, user.Access)
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"email": ["This field is required."]}`, w.Body.String())

	w = s.request(http.MethodPatch, "/users/me/", map[string]any{"username": "BDFL", "is_staff": true}, user.Access)
	s.Equal(http.StatusOK, w.Code)
	body = s.decode(w)
	s.Equal("BDFL", body["username"])
	s.Equal(false, body["is_staff"], "flags are read only")

	w = s.request(http.MethodPatch, "/users/me/", map[string]any{"email": "other@test.com"}, user.Access)
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"email": ["user with this email address already exists."]}`, w.Body.String())

	w = s.request(http.MethodPut, "/users/me/", map[string]any{"email": "new@test.com", "username": "Guido"}, user.Access)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("new@test.com", s.decode(w)["email"])

	w = s.request(http.MethodPost, "/users/me/", map[string]any{}, user.Access)
	s.Equal(http.StatusMethodNotAllowed, w.Code)
	s.JSONEq(`{"detail": "Method \"POST\" not allowed."}`, w.Body.String())
}

func (s *APISuite) TestCreateTask_ForcesCreator() {
	ann := s.register("ann@test.com", "ann")
	bob := s.register("bob@test.com", "bob")

	w := s.request(http.MethodPost, "/tasks/", map[string]any{
		"title":       "Write docs",
		"description": "All of them",
		"assigned_to": bob.ID,
		"created_by":  bob.ID,
	}, ann.Access)
	s.Equal(http.StatusCreated, w.Code, w.Body.String())

	body := s.decode(w)
	s.Equal("Write docs", body["title"])
	s.Equal("All of them", body["description"])
	s.Equal(bob.ID, body["assigned_to"])
	s.NotContains(body, "created_by")

	w = s.request(http.MethodGet, "/tasks/"+body["id"].(string)+"/", nil, "")
	s.Equal(http.StatusOK, w.Code)
	read := s.decode(w)
	s.Equal("ann", read["created_by"])
	s.Equal("bob", read["assigned_to"])
}

func (s *APISuite) TestCreateTask_RequiresAuthentication() {
	w := s.request(http.MethodPost, "/tasks/", map[string]any{"title": "x"}, "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("not_authenticated", s.decode(w)["code"])

	w = s.request(http.MethodPost, "/tasks/", map[string]any{"title": "x"}, "not-a-token")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.JSONEq(`{"detail": "Given token not valid for any token type", "code": "token_not_valid"}`, w.Body.String())
}

func (s *APISuite) TestCreateTask_Validation() {
	ann := s.register("ann@test.com", "ann")

	w := s.request(http.MethodPost, "/tasks/", map[string]any{}, ann.Access)
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{
		"title": ["This field is required."],
		"description": ["This field is required."],
		"assigned_to": ["This field is required."]
	}`, w.Body.String())

	s.createTask(ann, "Same", ann)
	w = s.request(http.MethodPost, "/tasks/", map[string]any{
		"title":       "Same",
		"description": "again",
		"assigned_to": ann.ID,
	}, ann.Access)
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{"title": ["Task with this task name already exists."]}`, w.Body.String())

	w = s.request(http.MethodPost, "/tasks/", map[string]any{
		"title":       strings.Repeat("t", 91),
		"description": "desc",
		"assigned_to": "42",
	}, ann.Access)
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{
		"title": ["Ensure this field has no more than 90 characters."],
		"assigned_to": ["Must be a valid UUID."]
	}`, w.Body.String())
}

func (s *APISuite) TestTaskWrites_OnlyCreator() {
	ann := s.register("ann@test.com", "ann")
	bob := s.register("bob@test.com", "bob")
	id := s.createTask(ann, "Ann's task", bob)
	path := "/tasks/" + id + "/"

	forbidden := `{"detail": "You do not have permission to perform this action."}`

	w := s.request(http.MethodPut, path, map[string]any{
		"title":       "Bob's now",
		"description": "mine",
		"assigned_to": bob.ID,
	}, bob.Access)
	s.Equal(http.StatusForbidden, w.Code)
	s.JSONEq(forbidden, w.Body.String())

	w = s.request(http.MethodPatch, path, map[string]any{"title": "Bob's now"}, bob.Access)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodDelete, path, nil, bob.Access)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.request(http.MethodGet, path, nil, bob.Access)
	s.Equal(http.StatusOK, w.Code, "non-creators can still read")
	s.Equal("Ann's task", s.decode(w)["title"])

	w = s.request(http.MethodPatch, path, map[string]any{"description": "updated"}, ann.Access)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("updated", s.decode(w)["description"])

	w = s.request(http.MethodPut, path, map[string]any{"title": "Renamed"}, ann.Access)
	s.Equal(http.StatusBadRequest, w.Code)
	s.JSONEq(`{
		"description": ["This field is required."],
		"assigned_to": ["This field is required."]
	}`, w.Body.String())

	w = s.request(http.MethodDelete, path, nil, ann.Access)
	s.Equal(http.StatusNoContent, w.Code)
	s.Empty(w.Body.String())

	w = s.request(http.MethodGet, path, nil, "")
	s.Equal(http.StatusNotFound, w.Code)
	s.JSONEq(`{"detail": "Not found."}`, w.Body.String())
}

func (s *APISuite) TestTaskList() {
	ann := s.register("ann@test.com", "ann")
	s.createTask(ann, "b", ann)
	s.createTask(ann, "a", ann)

	w := s.request(http.MethodGet, "/tasks/", nil, "")
	s.Equal(http.StatusOK, w.Code)

	var tasks []map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &tasks))
	s.Require().Len(tasks, 2)
	s.Equal("a", tasks[0]["title"])
	s.Equal("b", tasks[1]["title"])
	s.Equal("ann", tasks[0]["created_by"])

	w = s.request(http.MethodGet, "/tasks/not-a-uuid/", nil, "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APISuite) TestTaskRead_DanglingReference() {
	ann := s.register("ann@test.com", "ann")
	bob := s.register("bob@test.com", "bob")
	id := s.createTask(ann, "Orphan", bob)

	db := s.deps.DB.DB
	s.Require().NoError(db.Exec("PRAGMA foreign_keys = OFF").Error)
	s.Require().NoError(db.Where("id = ?", bob.ID).Delete(&models.User{}).Error)

	w := s.request(http.MethodGet, "/tasks/"+id+"/", nil, "")
	s.Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.Equal("ann", body["created_by"])
	s.Nil(body["assigned_to"])
}

func (s *APISuite) TestCollection_MethodNotAllowed() {
	ann := s.register("ann@test.com", "ann")

	for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		w := s.request(method, "/tasks/", map[string]any{}, ann.Access)
		s.Equal(http.StatusMethodNotAllowed, w.Code, method)
		s.JSONEq(`{"detail": "Method \"`+method+`\" not allowed."}`, w.Body.String())
	}
}

func (s *APISuite) TestUnknownRoute() {
	w := s.request(http.MethodGet, "/nowhere/", nil, "")
	s.Equal(http.StatusNotFound, w.Code)
	s.JSONEq(`{"detail": "Not found."}`, w.Body.String())
}

func (s *APISuite) TestHealthAndMetrics() {
	w := s.request(http.MethodGet, "/health", nil, "")
	s.Equal(http.StatusOK, w.Code)
	s.Equal("healthy", s.decode(w)["status"])

	w = s.request(http.MethodGet, "/health/ready", nil, "")
	s.Equal(http.StatusOK, w.Code)

	w = s.request(http.MethodGet, "/health/live", nil, "")
	s.Equal(http.StatusOK, w.Code)

	s.redis.Close()
	w = s.request(http.MethodGet, "/health", nil, "")
	s.Equal(http.StatusServiceUnavailable, w.Code)
	w = s.request(http.MethodGet, "/health/ready", nil, "")
	s.Equal(http.StatusOK, w.Code, "readiness does not depend on redis")

	w = s.request(http.MethodGet, "/metrics", nil, "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "taskdesk_http_requests_total")
}

func (s *APISuite) TestCORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/tasks/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"RATE_LIMIT_ENABLED": "true",
		"RATE_LIMIT_RPM":     "1",
		"RATE_LIMIT_BURST":   "2",
	})
	router, _ := newTestRouter(t, cfg, nil)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/tasks/", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected [200 200 429], got %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected health probes to bypass the limiter, got %d", w.Code)
	}
}

func TestRouter_WithoutRedis(t *testing.T) {
	router, deps := newTestRouter(t, testConfig(t, nil), nil)
	if deps.Cache != nil {
		t.Fatal("Expected no cache")
	}

	body := `{"email": "test@test.com", "username": "Guido", "password": "van_Rossum"}`
	req := httptest.NewRequest(http.MethodPost, "/register/", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	var registered struct {
		Tokens struct {
			Refresh string `json:"refresh"`
			Access  string `json:"access"`
		} `json:"tokens"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &registered); err != nil {
		t.Fatal(err)
	}

	logout := `{"refresh": "` + registered.Tokens.Refresh + `"}`
	req = httptest.NewRequest(http.MethodPost, "/logout/", strings.NewReader(logout))
	req.Header.Set("Authorization", "Bearer "+registered.Tokens.Access)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusResetContent {
		t.Fatalf("Expected status %d, got %d", http.StatusResetContent, w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/token/refresh/", strings.NewReader(logout))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected blacklisted token to be rejected, got %d", w.Code)
	}
}
