package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "taskdesk/backend/internal/errors"
	"taskdesk/backend/internal/services"
)

type LogoutHandler struct {
	authService services.AuthService
}

type LogoutRequest struct {
	Refresh *text `json:"refresh"`
}

func NewLogoutHandler(authService services.AuthService) *LogoutHandler {
	return &LogoutHandler{authService: authService}
}

// Logout blacklists the submitted refresh token and answers 205 with no body.
func (h *LogoutHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := bindJSON(c, &req); err != nil {
		apierrors.Respond(c, err)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), services.TokenInput{Refresh: req.Refresh.ptr()}); err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.Status(http.StatusResetContent)
}
