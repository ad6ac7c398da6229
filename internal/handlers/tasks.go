package handlers

import (
	"net/http"
	"time"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskHandler struct {
	db          *gorm.DB
	taskService services.TaskService
	directEdit  services.DirectEditService
}

func NewTaskHandler(db *gorm.DB, taskService services.TaskService, directEdit services.DirectEditService) *TaskHandler {
	return &TaskHandler{db: db, taskService: taskService, directEdit: directEdit}
}

type createTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	ProjectID   *string    `json:"project_id"`
	AssigneeIDs []string   `json:"assignee_ids"`
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	input := services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	}

	if req.ProjectID != nil {
		projectID, err := uuid.FromString(*req.ProjectID)
		if err != nil {
			respondError(c, apperrors.ErrValidation.WithMessage("invalid project_id"))
			return
		}
		input.ProjectID = &projectID
	}

	for _, raw := range req.AssigneeIDs {
		assigneeID, err := uuid.FromString(raw)
		if err != nil {
			respondError(c, apperrors.ErrValidation.WithMessage("invalid assignee id %q", raw))
			return
		}
		input.AssigneeIDs = append(input.AssigneeIDs, assigneeID)
	}

	task, err := h.taskService.CreateTask(h.db, userID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	task, err := h.taskService.GetTaskByID(h.db, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	sortBy := c.DefaultQuery("sortBy", "created_at")
	order := c.DefaultQuery("order", "desc")
	page := c.DefaultQuery("page", "1")
	pageSize := c.DefaultQuery("pageSize", "10")

	tasks, total, err := h.taskService.GetTasksPaginated(h.db, sortBy, order, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": total,
	})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.taskService.SoftDeleteTask(h.db, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func (h *TaskHandler) RestoreTask(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.taskService.RestoreTask(h.db, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task restored"})
}

type directEditRequest struct {
	Changes  services.ChangeSet `json:"changes"`
	Comments string             `json:"comments"`
}

// DirectEdit is the privileged immediate-edit path; route is behind the
// RequirePrivileged middleware, and the service re-checks the editor role.
func (h *TaskHandler) DirectEdit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req directEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	task, err := h.directEdit.DirectEdit(h.db, id, userID, req.Changes, req.Comments)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}
