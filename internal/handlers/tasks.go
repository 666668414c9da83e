package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "taskdesk/backend/internal/errors"
	"taskdesk/backend/internal/middleware"
	"taskdesk/backend/internal/services"
)

type TaskHandler struct {
	taskService services.TaskService
}

// TaskRequest has no created_by: the creator always comes from the token.
type TaskRequest struct {
	Title       *text `json:"title"`
	Description *text `json:"description"`
	AssignedTo  *text `json:"assigned_to"`
}

func (r TaskRequest) input() services.TaskInput {
	return services.TaskInput{
		Title:       r.Title.ptr(),
		Description: r.Description.ptr(),
		AssignedTo:  r.AssignedTo.ptr(),
	}
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	tasks, err := h.taskService.List(c.Request.Context())
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	response := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		response = append(response, newTaskResponse(&tasks[i]))
	}
	c.JSON(http.StatusOK, response)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	task, err := h.taskService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req TaskRequest
	if err := bindJSON(c, &req); err != nil {
		apierrors.Respond(c, err)
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), middleware.CurrentUser(c), req.input())
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, newTaskWriteResponse(task))
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	h.update(c, false)
}

func (h *TaskHandler) PatchTask(c *gin.Context) {
	h.update(c, true)
}

func (h *TaskHandler) update(c *gin.Context, partial bool) {
	var req TaskRequest
	if err := bindJSON(c, &req); err != nil {
		apierrors.Respond(c, err)
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req.input(), partial)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, newTaskWriteResponse(task))
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.taskService.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id")); err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
