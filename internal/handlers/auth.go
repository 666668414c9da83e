package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "taskdesk/backend/internal/errors"
	"taskdesk/backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

type LoginRequest struct {
	Email    *text `json:"email"`
	Password *text `json:"password"`
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		apierrors.Respond(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email.ptr(),
		Password: req.Password.ptr(),
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Email:  result.User.Email,
		Tokens: newTokensResponse(result.Tokens),
	})
}
