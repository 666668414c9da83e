package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "taskdesk/backend/internal/errors"
	"taskdesk/backend/internal/services"
)

type RefreshHandler struct {
	authService services.AuthService
}

type RefreshRequest struct {
	Refresh *text `json:"refresh"`
}

type VerifyRequest struct {
	Token *text `json:"token"`
}

func NewRefreshHandler(authService services.AuthService) *RefreshHandler {
	return &RefreshHandler{authService: authService}
}

// Refresh exchanges a refresh token for a new access token.
func (h *RefreshHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := bindJSON(c, &req); err != nil {
		apierrors.Respond(c, err)
		return
	}

	access, err := h.authService.RefreshToken(c.Request.Context(), services.TokenInput{Refresh: req.Refresh.ptr()})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"access": access})
}

func (h *RefreshHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := bindJSON(c, &req); err != nil {
		apierrors.Respond(c, err)
		return
	}

	if err := h.authService.VerifyToken(c.Request.Context(), services.VerifyInput{Token: req.Token.ptr()}); err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}
