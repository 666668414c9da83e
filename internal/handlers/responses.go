package handlers

import (
	"time"

	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/services"
)

type TokensResponse struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

type RegistrationResponse struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Username string         `json:"username"`
	Tokens   TokensResponse `json:"tokens"`
}

type LoginResponse struct {
	Email  string         `json:"email"`
	Tokens TokensResponse `json:"tokens"`
}

type UserProfileResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	LastLogin   *time.Time `json:"last_login"`
	DateJoined  time.Time  `json:"date_joined"`
}

// TaskResponse is the read shape: people are rendered by username and a
// reference to a user that no longer exists renders as null.
type TaskResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	CreatedBy   *string `json:"created_by"`
	AssignedTo  *string `json:"assigned_to"`
}

// TaskWriteResponse is returned from create and update.
type TaskWriteResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	AssignedTo  string `json:"assigned_to"`
}

func newTokensResponse(pair services.TokenPair) TokensResponse {
	return TokensResponse{Refresh: pair.Refresh, Access: pair.Access}
}

func newUserProfileResponse(user *models.User) UserProfileResponse {
	return UserProfileResponse{
		ID:          user.ID.String(),
		Email:       user.Email,
		Username:    user.Username,
		IsActive:    user.IsActive,
		IsStaff:     user.IsStaff,
		IsSuperuser: user.IsSuperuser,
		LastLogin:   user.LastLogin,
		DateJoined:  user.DateJoined,
	}
}

func newTaskResponse(task *models.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID.String(),
		Title:       task.Title,
		Description: task.Description,
		CreatedBy:   username(task.CreatedBy),
		AssignedTo:  username(task.AssignedTo),
	}
}

func newTaskWriteResponse(task *models.Task) TaskWriteResponse {
	return TaskWriteResponse{
		ID:          task.ID.String(),
		Title:       task.Title,
		Description: task.Description,
		AssignedTo:  task.AssignedToID.String(),
	}
}

func username(user *models.User) *string {
	if user == nil {
		return nil
	}
	return &user.Username
}
