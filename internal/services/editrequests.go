package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// EditRequestService captures proposed field changes for privileged review.
// At most one pending request may exist per task; the check and the insert
// run under one transaction.
type EditRequestService interface {
	Create(db *gorm.DB, taskID, requestedBy uuid.UUID, changes ChangeSet) (models.TaskEditRequest, error)
	Approve(db *gorm.DB, requestID, reviewerID uuid.UUID, comments string) (models.TaskEditRequest, error)
	Reject(db *gorm.DB, requestID, reviewerID uuid.UUID, comments string) (models.TaskEditRequest, error)
	ListPending(db *gorm.DB) ([]models.TaskEditRequest, error)
	ListForTask(db *gorm.DB, taskID uuid.UUID) ([]models.TaskEditRequest, error)
	History(db *gorm.DB, taskID uuid.UUID) ([]models.TaskEditRequest, error)
}

type EditRequestServiceImpl struct {
	assignments AssignmentService
	feed        FeedPublisher
	notifier    NotificationEnqueuer
}

func NewEditRequestService(assignments AssignmentService, feed FeedPublisher, notifier NotificationEnqueuer) *EditRequestServiceImpl {
	return &EditRequestServiceImpl{assignments: assignments, feed: feed, notifier: notifier}
}

func (s *EditRequestServiceImpl) Create(db *gorm.DB, taskID, requestedBy uuid.UUID, changes ChangeSet) (models.TaskEditRequest, error) {
	if err := changes.Validate(); err != nil {
		return models.TaskEditRequest{}, err
	}

	encoded, err := changes.Encode()
	if err != nil {
		return models.TaskEditRequest{}, err
	}

	requestID, err := uuid.NewV4()
	if err != nil {
		return models.TaskEditRequest{}, err
	}

	request := models.TaskEditRequest{
		ID:              requestID,
		TaskID:          taskID,
		RequestedBy:     requestedBy,
		ProposedChanges: encoded,
		Status:          models.EditRequestPending,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.First(&task, "id = ?", taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("task not found")
			}
			return err
		}
		if task.IsTerminal() {
			return apperrors.ErrValidation.WithMessage("closed tasks cannot be edited")
		}

		var pending int64
		err := tx.Model(&models.TaskEditRequest{}).
			Where("task_id = ? AND status = ?", taskID, models.EditRequestPending).
			Count(&pending).Error
		if err != nil {
			return err
		}
		if pending > 0 {
			return apperrors.ErrConflict.WithMessage("a pending edit request already exists for this task")
		}

		// The count above can race with a concurrent create at read
		// committed; the partial unique index on (task_id, pending) is the
		// backstop, surfaced here as the same conflict.
		if err := tx.Create(&request).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrConflict.WithMessage("a pending edit request already exists for this task")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return models.TaskEditRequest{}, err
	}

	publish(s.feed, "task_edit_requests", FeedInsert, request.ID, request)

	if reviewers, lookupErr := listReviewerIDs(db); lookupErr == nil {
		notify(s.notifier, reviewers, taskID, models.NotificationEditRequested,
			"An edit request is awaiting review ("+changes.Summary()+")")
	}

	return request, nil
}

// Approve copies the proposed changes onto the task and marks the request
// approved in one transaction. Optional comments are patched in afterwards as
// a best-effort secondary update whose failure does not roll back the
// approval.
func (s *EditRequestServiceImpl) Approve(db *gorm.DB, requestID, reviewerID uuid.UUID, comments string) (models.TaskEditRequest, error) {
	var request models.TaskEditRequest

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := requirePrivilegedReviewer(tx, reviewerID); err != nil {
			return err
		}
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("edit request not found")
			}
			return err
		}
		if request.Status != models.EditRequestPending {
			return apperrors.ErrConflict.WithMessage("edit request is already %s", request.Status)
		}

		changes, err := DecodeChangeSet(request.ProposedChanges)
		if err != nil {
			return err
		}

		if err := changes.apply(tx, request.TaskID); err != nil {
			return err
		}
		if changes.AssigneeIDs != nil {
			if err := s.assignments.ReplaceAll(tx, request.TaskID, *changes.AssigneeIDs, reviewerID); err != nil {
				return err
			}
		}

		now := time.Now()
		request.Status = models.EditRequestApproved
		request.ReviewedBy = &reviewerID
		request.ReviewedAt = &now
		return tx.Model(&models.TaskEditRequest{}).Where("id = ?", requestID).Updates(map[string]interface{}{
			"status":      models.EditRequestApproved,
			"reviewed_by": reviewerID,
			"reviewed_at": now,
		}).Error
	})
	if err != nil {
		return models.TaskEditRequest{}, err
	}

	if strings.TrimSpace(comments) != "" {
		patchErr := db.Model(&models.TaskEditRequest{}).Where("id = ?", requestID).
			Update("comments", comments).Error
		if patchErr != nil {
			log.Printf("approval comment patch failed for request %s: %v", requestID, patchErr)
		} else {
			request.Comments = comments
		}
	}

	publish(s.feed, "task_edit_requests", FeedUpdate, request.ID, request)
	publish(s.feed, "tasks", FeedUpdate, request.TaskID, map[string]interface{}{"id": request.TaskID})
	notify(s.notifier, []uuid.UUID{request.RequestedBy}, request.TaskID, models.NotificationEditResolved,
		"Your edit request was approved")

	return request, nil
}

func (s *EditRequestServiceImpl) Reject(db *gorm.DB, requestID, reviewerID uuid.UUID, comments string) (models.TaskEditRequest, error) {
	// Rejection without justification is disallowed; validated before any
	// write.
	if strings.TrimSpace(comments) == "" {
		return models.TaskEditRequest{}, apperrors.ErrValidation.WithMessage("rejection comments are required")
	}

	var request models.TaskEditRequest
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := requirePrivilegedReviewer(tx, reviewerID); err != nil {
			return err
		}
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("edit request not found")
			}
			return err
		}
		if request.Status != models.EditRequestPending {
			return apperrors.ErrConflict.WithMessage("edit request is already %s", request.Status)
		}

		now := time.Now()
		request.Status = models.EditRequestRejected
		request.ReviewedBy = &reviewerID
		request.ReviewedAt = &now
		request.Comments = comments
		return tx.Model(&models.TaskEditRequest{}).Where("id = ?", requestID).Updates(map[string]interface{}{
			"status":      models.EditRequestRejected,
			"reviewed_by": reviewerID,
			"reviewed_at": now,
			"comments":    comments,
		}).Error
	})
	if err != nil {
		return models.TaskEditRequest{}, err
	}

	publish(s.feed, "task_edit_requests", FeedUpdate, request.ID, request)
	notify(s.notifier, []uuid.UUID{request.RequestedBy}, request.TaskID, models.NotificationEditResolved,
		"Your edit request was rejected: "+comments)

	return request, nil
}

// requirePrivilegedReviewer guards the moderation entry points. The route
// middleware already gates them, but direct service calls get the same check.
func requirePrivilegedReviewer(tx *gorm.DB, reviewerID uuid.UUID) error {
	var reviewer models.User
	if err := tx.First(&reviewer, "id = ?", reviewerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound.WithMessage("user not found")
		}
		return err
	}
	if !reviewer.IsPrivileged() {
		return apperrors.ErrForbidden.WithMessage("edit request review requires a manager or admin role")
	}
	return nil
}

func (s *EditRequestServiceImpl) ListPending(db *gorm.DB) ([]models.TaskEditRequest, error) {
	var requests []models.TaskEditRequest
	err := db.Where("status = ?", models.EditRequestPending).
		Order("created_at desc").Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *EditRequestServiceImpl) ListForTask(db *gorm.DB, taskID uuid.UUID) ([]models.TaskEditRequest, error) {
	var requests []models.TaskEditRequest
	err := db.Where("task_id = ?", taskID).Order("created_at desc").Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// History is the raw per-task projection, newest first, pending included.
func (s *EditRequestServiceImpl) History(db *gorm.DB, taskID uuid.UUID) ([]models.TaskEditRequest, error) {
	return s.ListForTask(db, taskID)
}
