package handlers

import (
	"net/http"

	"taskflow/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type EditRequestHandler struct {
	db           *gorm.DB
	editRequests services.EditRequestService
}

func NewEditRequestHandler(db *gorm.DB, editRequests services.EditRequestService) *EditRequestHandler {
	return &EditRequestHandler{db: db, editRequests: editRequests}
}

type createEditRequestBody struct {
	Changes services.ChangeSet `json:"changes"`
}

func (h *EditRequestHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req createEditRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	request, err := h.editRequests.Create(h.db, taskID, userID, req.Changes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

func (h *EditRequestHandler) Approve(c *gin.Context) {
	reviewerID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	requestID, ok := parseIDParam(c, "request_id")
	if !ok {
		return
	}

	var req commentsRequest
	c.ShouldBindJSON(&req)

	request, err := h.editRequests.Approve(h.db, requestID, reviewerID, req.Comments)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *EditRequestHandler) Reject(c *gin.Context) {
	reviewerID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	requestID, ok := parseIDParam(c, "request_id")
	if !ok {
		return
	}

	var req commentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	request, err := h.editRequests.Reject(h.db, requestID, reviewerID, req.Comments)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *EditRequestHandler) ListPending(c *gin.Context) {
	requests, err := h.editRequests.ListPending(h.db)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h *EditRequestHandler) ListForTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	requests, err := h.editRequests.ListForTask(h.db, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (h *EditRequestHandler) History(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	requests, err := h.editRequests.History(h.db, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}
