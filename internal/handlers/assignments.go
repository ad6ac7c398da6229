package handlers

import (
	"net/http"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type AssignmentHandler struct {
	db          *gorm.DB
	assignments services.AssignmentService
}

func NewAssignmentHandler(db *gorm.DB, assignments services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{db: db, assignments: assignments}
}

type assigneesRequest struct {
	UserIDs []string `json:"user_ids" binding:"required"`
}

func (h *AssignmentHandler) parseUserIDs(c *gin.Context, raw []string) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.FromString(r)
		if err != nil {
			respondError(c, apperrors.ErrValidation.WithMessage("invalid user id %q", r))
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func (h *AssignmentHandler) Assign(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req assigneesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	userIDs, ok := h.parseUserIDs(c, req.UserIDs)
	if !ok {
		return
	}

	if err := h.assignments.Assign(h.db, taskID, userIDs, actorID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "assignees added"})
}

func (h *AssignmentHandler) ReplaceAll(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req assigneesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	userIDs, ok := h.parseUserIDs(c, req.UserIDs)
	if !ok {
		return
	}

	if err := h.assignments.ReplaceAll(h.db, taskID, userIDs, actorID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "assignees replaced"})
}

func (h *AssignmentHandler) Unassign(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.assignments.Unassign(h.db, taskID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func (h *AssignmentHandler) ListForTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	assignees, err := h.assignments.ListForTask(h.db, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignees": assignees})
}

func (h *AssignmentHandler) ListTasksForUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	tasks, err := h.assignments.ListTasksForUser(h.db, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}
