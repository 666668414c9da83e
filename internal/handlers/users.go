package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "taskdesk/backend/internal/errors"
	"taskdesk/backend/internal/middleware"
	"taskdesk/backend/internal/services"
)

// UserHandler serves the authenticated caller's own record.
type UserHandler struct {
	authService services.AuthService
}

type UserProfileRequest struct {
	Email    *text `json:"email"`
	Username *text `json:"username"`
}

func NewUserHandler(authService services.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

func (h *UserHandler) GetUserProfile(c *gin.Context) {
	user, err := h.authService.GetProfile(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserProfileResponse(user))
}

func (h *UserHandler) UpdateUserProfile(c *gin.Context) {
	h.update(c, false)
}

func (h *UserHandler) PatchUserProfile(c *gin.Context) {
	h.update(c, true)
}

func (h *UserHandler) update(c *gin.Context, partial bool) {
	current := middleware.CurrentUser(c)
	if current == nil {
		apierrors.Respond(c, apierrors.ErrNotAuthenticated)
		return
	}

	var req UserProfileRequest
	if err := bindJSON(c, &req); err != nil {
		apierrors.Respond(c, err)
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), current, services.ProfileInput{
		Email:    req.Email.ptr(),
		Username: req.Username.ptr(),
	}, partial)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserProfileResponse(user))
}
