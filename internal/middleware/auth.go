package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	apierrors "taskdesk/backend/internal/errors"
	"taskdesk/backend/internal/models"
)

const (
	ContextKeyUser   = "user"
	ContextKeyUserID = "user_id"

	authHeaderScheme = "Bearer"
)

// Authenticator resolves an access token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// RequireAuth rejects requests that do not carry a valid bearer access token.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return authenticate(auth, true)
}

// OptionalAuth lets anonymous requests through but still rejects a bearer
// token that is present and invalid.
func OptionalAuth(auth Authenticator) gin.HandlerFunc {
	return authenticate(auth, false)
}

func authenticate(auth Authenticator, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			apierrors.Abort(c, err)
			return
		}

		if token == "" {
			if required {
				apierrors.Abort(c, apierrors.ErrNotAuthenticated)
				return
			}
			c.Next()
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			apierrors.Abort(c, err)
			return
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyUserID, user.ID.String())
		c.Next()
	}
}

// bearerToken returns "" when the header is absent or uses another scheme.
func bearerToken(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) == 0 || parts[0] != authHeaderScheme {
		return "", nil
	}
	if len(parts) != 2 {
		return "", apierrors.ErrBadAuthorizationHeader
	}
	return parts[1], nil
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	value, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}
