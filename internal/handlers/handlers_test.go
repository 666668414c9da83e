package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"

	apierrors "taskdesk/backend/internal/errors"
	"taskdesk/backend/internal/middleware"
	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/services"
)

type MockAuthService struct {
	user        *models.User
	err         error
	lastRefresh *string
	lastPartial bool
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput) (*services.RegisterResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &services.RegisterResult{User: m.user, Tokens: services.TokenPair{Refresh: "r", Access: "a"}}, nil
}

func (m *MockAuthService) Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &services.LoginResult{User: m.user, Tokens: services.TokenPair{Refresh: "r", Access: "a"}}, nil
}

func (m *MockAuthService) RefreshToken(ctx context.Context, in services.TokenInput) (string, error) {
	m.lastRefresh = in.Refresh
	if m.err != nil {
		return "", m.err
	}
	return "new-access", nil
}

func (m *MockAuthService) VerifyToken(ctx context.Context, in services.VerifyInput) error {
	return m.err
}

func (m *MockAuthService) Logout(ctx context.Context, in services.TokenInput) error {
	m.lastRefresh = in.Refresh
	return m.err
}

func (m *MockAuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	if accessToken != "valid" {
		return nil, apierrors.ErrAccessTokenNotValid
	}
	return m.user, nil
}

func (m *MockAuthService) GetProfile(ctx context.Context, user *models.User) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return user, nil
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, user *models.User, in services.ProfileInput, partial bool) (*models.User, error) {
	m.lastPartial = partial
	if m.err != nil {
		return nil, m.err
	}
	updated := *user
	if in.Username != nil {
		updated.Username = *in.Username
	}
	return &updated, nil
}

func (m *MockAuthService) CreateSuperuser(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	return m.user, m.err
}

func (m *MockAuthService) FlushExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	return 0, m.err
}

func testUser() *models.User {
	return &models.User{
		ID:         uuid.Must(uuid.NewV4()),
		Email:      "test@test.com",
		Username:   "Guido",
		IsActive:   true,
		DateJoined: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// withUser authenticates every request as user, standing in for RequireAuth.
func withUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(middleware.ContextKeyUser, user)
		}
		c.Next()
	}
}

func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	switch b := body.(type) {
	case nil:
		buf = &bytes.Buffer{}
	case string:
		buf = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		buf = bytes.NewBuffer(data)
	}

	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
