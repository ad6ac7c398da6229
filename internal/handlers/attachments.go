package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/models"
	"taskflow/backend/internal/services"
	"taskflow/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type AttachmentHandler struct {
	db    *gorm.DB
	store *storage.Store
	tasks services.TaskService
}

func NewAttachmentHandler(db *gorm.DB, store *storage.Store, tasks services.TaskService) *AttachmentHandler {
	return &AttachmentHandler{db: db, store: store, tasks: tasks}
}

func (h *AttachmentHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		unauthenticated(c)
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.tasks.GetTaskByID(h.db, taskID); err != nil {
		respondError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "file field is required"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "unable to read uploaded file"})
		return
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	relPath, err := h.store.Save(taskID, fileHeader.Filename, contentType, fileHeader.Size, src)
	if err != nil {
		respondError(c, err)
		return
	}

	id, _ := uuid.NewV4()
	attachment := models.TaskAttachment{
		ID:          id,
		TaskID:      taskID,
		UploadedBy:  userID,
		FileName:    fileHeader.Filename,
		StoragePath: relPath,
		ContentType: contentType,
		SizeBytes:   fileHeader.Size,
		CreatedAt:   time.Now(),
	}
	if err := h.db.Create(&attachment).Error; err != nil {
		// keep storage consistent with the database
		h.store.Remove(relPath)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attachment)
}

func (h *AttachmentHandler) List(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var attachments []models.TaskAttachment
	if err := h.db.Where("task_id = ?", taskID).
		Order("created_at DESC").
		Find(&attachments).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attachments": attachments})
}

func (h *AttachmentHandler) Download(c *gin.Context) {
	attachmentID, ok := parseIDParam(c, "attachment_id")
	if !ok {
		return
	}

	var attachment models.TaskAttachment
	if err := h.db.First(&attachment, "id = ?", attachmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, apperrors.ErrNotFound.WithMessage("attachment not found"))
			return
		}
		respondError(c, err)
		return
	}

	f, err := h.store.Open(attachment.StoragePath)
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", `attachment; filename="`+attachment.FileName+`"`)
	if attachment.ContentType != "" {
		c.Header("Content-Type", attachment.ContentType)
	}
	c.Status(http.StatusOK)
	io.Copy(c.Writer, f)
}

func (h *AttachmentHandler) Delete(c *gin.Context) {
	attachmentID, ok := parseIDParam(c, "attachment_id")
	if !ok {
		return
	}

	var attachment models.TaskAttachment
	if err := h.db.First(&attachment, "id = ?", attachmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, apperrors.ErrNotFound.WithMessage("attachment not found"))
			return
		}
		respondError(c, err)
		return
	}

	if err := h.db.Delete(&attachment).Error; err != nil {
		respondError(c, err)
		return
	}
	if err := h.store.Remove(attachment.StoragePath); err != nil {
		respondError(c, apperrors.ErrPartialFailure.WithMessage(
			"attachment record deleted but file removal failed: %v", err))
		return
	}

	c.Status(http.StatusNoContent)
}
