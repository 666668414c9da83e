package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskdesk/backend/internal/logger"
)

const authenticateHeader = `Bearer realm="api"`

// Respond writes err as a JSON response. Errors the package does not know
// about are logged and rendered as an opaque 500.
func Respond(c *gin.Context, err error) {
	var (
		verr *ValidationError
		aerr *AuthenticationError
		perr *ParseError
	)

	switch {
	case stderrors.As(err, &verr):
		c.JSON(http.StatusBadRequest, verr.Fields)
	case stderrors.As(err, &perr):
		c.JSON(http.StatusBadRequest, gin.H{"detail": perr.Error()})
	case stderrors.As(err, &aerr):
		c.Header("WWW-Authenticate", authenticateHeader)
		c.JSON(http.StatusUnauthorized, aerr)
	case stderrors.Is(err, ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"detail": "You do not have permission to perform this action."})
	case stderrors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	case stderrors.Is(err, ErrThrottled):
		c.JSON(http.StatusTooManyRequests, gin.H{"detail": "Request was throttled."})
	default:
		log := logger.Get()
		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString("request_id")).
			Msg("unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "A server error occurred."})
	}
}

// Abort renders err and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Respond(c, err)
	c.Abort()
}

// MethodNotAllowed renders gin's NoMethod responses.
func MethodNotAllowed() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"detail": fmt.Sprintf("Method \"%s\" not allowed.", c.Request.Method),
		})
	}
}

func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		Respond(c, ErrNotFound)
	}
}
