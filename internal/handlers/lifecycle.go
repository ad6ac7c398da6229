package handlers

import (
	"net/http"

	"taskflow/backend/internal/monitoring"
	"taskflow/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type LifecycleHandler struct {
	db        *gorm.DB
	lifecycle services.LifecycleService
	metrics   *monitoring.Metrics
}

func NewLifecycleHandler(db *gorm.DB, lifecycle services.LifecycleService, metrics *monitoring.Metrics) *LifecycleHandler {
	return &LifecycleHandler{db: db, lifecycle: lifecycle, metrics: metrics}
}

type noteRequest struct {
	Note string `json:"note"`
}

type commentsRequest struct {
	Comments string `json:"comments"`
}

// respondTransition maps the normalized result onto the wire: a rejected
// guard is a 422 carrying the guard's message verbatim.
func (h *LifecycleHandler) respondTransition(c *gin.Context, action string, result services.TransitionResult, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	if h.metrics != nil {
		h.metrics.CountTransition(action)
	}
	c.JSON(http.StatusOK, result)
}

func (h *LifecycleHandler) StartWork(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req noteRequest
	c.ShouldBindJSON(&req)

	result, err := h.lifecycle.StartWork(h.db, taskID, userID, req.Note)
	h.respondTransition(c, "start_work", result, err)
}

func (h *LifecycleHandler) RequestReview(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.lifecycle.RequestReview(h.db, taskID, userID)
	h.respondTransition(c, "request_review", result, err)
}

func (h *LifecycleHandler) ApproveAndClose(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req commentsRequest
	c.ShouldBindJSON(&req)

	result, err := h.lifecycle.ApproveAndClose(h.db, taskID, userID, req.Comments)
	h.respondTransition(c, "approve_and_close", result, err)
}

func (h *LifecycleHandler) RejectAndReopen(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req commentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	result, err := h.lifecycle.RejectAndReopen(h.db, taskID, userID, req.Comments)
	h.respondTransition(c, "reject_and_reopen", result, err)
}

func (h *LifecycleHandler) Reopen(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.lifecycle.Reopen(h.db, taskID, userID)
	h.respondTransition(c, "reopen", result, err)
}

type logProgressRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// LogProgress is the legacy manual status write.
func (h *LifecycleHandler) LogProgress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req logProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if err := h.lifecycle.LogProgress(h.db, taskID, userID, req.Status, req.Note); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "progress logged"})
}

func (h *LifecycleHandler) History(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	logs, err := h.lifecycle.History(h.db, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": logs})
}
