package apihandlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"imgtasks/internal/models"
	"imgtasks/internal/services"
)

type APIHandler struct {
	Tasks *services.TaskService
}

func NewAPIHandler(tasks *services.TaskService) *APIHandler {
	return &APIHandler{Tasks: tasks}
}

type createTaskRequest struct {
	SourceLocation string `json:"sourceLocation" binding:"required"`
}

// CreateTaskHandler admits a new task. An Idempotency-Key header makes the
// call safe to repeat: a repeated key returns the original task with 200
// instead of 201.
func (h *APIHandler) CreateTaskHandler(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	params := services.CreateTaskParams{SourceLocation: req.SourceLocation}
	if token := c.GetHeader("Idempotency-Key"); token != "" {
		params.IdempotencyToken = &token
	}

	task, existed, err := h.Tasks.CreateTask(c.Request.Context(), params)
	if err != nil {
		log.WithError(err).Error("create task failed")
		RespondError(c, err)
		return
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"data": task})
}

// GetTaskHandler returns one task by id.
func (h *APIHandler) GetTaskHandler(c *gin.Context) {
	task, err := h.Tasks.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": task})
}

// ListTasksHandler returns a recency-ordered page, optionally filtered by
// status.
func (h *APIHandler) ListTasksHandler(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	var statusFilter *models.TaskStatus
	if raw := c.Query("status"); raw != "" {
		status := models.TaskStatus(raw)
		statusFilter = &status
	}

	result, err := h.Tasks.ListTasks(c.Request.Context(), page, limit, statusFilter)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// RetryTaskHandler re-admits a failed task.
func (h *APIHandler) RetryTaskHandler(c *gin.Context) {
	task, err := h.Tasks.RetryTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": task})
}
