package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "taskdesk/backend/internal/errors"
	"taskdesk/backend/internal/services"
)

type RegisterHandler struct {
	authService services.AuthService
}

func NewRegisterHandler(authService services.AuthService) *RegisterHandler {
	return &RegisterHandler{authService: authService}
}

type RegistrationRequest struct {
	Email    *text `json:"email"`
	Username *text `json:"username"`
	Password *text `json:"password"`
}

func (h *RegisterHandler) Registration(c *gin.Context) {
	var req RegistrationRequest
	if err := bindJSON(c, &req); err != nil {
		apierrors.Respond(c, err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), services.RegisterInput{
		Email:    req.Email.ptr(),
		Username: req.Username.ptr(),
		Password: req.Password.ptr(),
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		ID:       result.User.ID.String(),
		Email:    result.User.Email,
		Username: result.User.Username,
		Tokens:   newTokensResponse(result.Tokens),
	})
}
