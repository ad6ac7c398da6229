package services

import (
	"errors"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// DirectEditService is the privileged bypass of the edit-request workflow:
// changes are applied immediately, with the audit log entry written in the
// same transaction.
type DirectEditService interface {
	DirectEdit(db *gorm.DB, taskID, editedBy uuid.UUID, changes ChangeSet, comments string) (models.Task, error)
}

type DirectEditServiceImpl struct {
	assignments AssignmentService
	feed        FeedPublisher
	notifier    NotificationEnqueuer
}

func NewDirectEditService(assignments AssignmentService, feed FeedPublisher, notifier NotificationEnqueuer) *DirectEditServiceImpl {
	return &DirectEditServiceImpl{assignments: assignments, feed: feed, notifier: notifier}
}

func (s *DirectEditServiceImpl) DirectEdit(db *gorm.DB, taskID, editedBy uuid.UUID, changes ChangeSet, comments string) (models.Task, error) {
	if err := changes.Validate(); err != nil {
		return models.Task{}, err
	}

	var task models.Task
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, "id = ?", taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("task not found")
			}
			return err
		}
		if task.IsTerminal() {
			return apperrors.ErrValidation.WithMessage("closed tasks cannot be edited")
		}

		var editor models.User
		if err := tx.First(&editor, "id = ?", editedBy).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("user not found")
			}
			return err
		}
		if !editor.IsPrivileged() {
			return apperrors.ErrForbidden.WithMessage("direct edits require a manager or admin role")
		}

		if err := changes.apply(tx, taskID); err != nil {
			return err
		}
		if changes.AssigneeIDs != nil {
			if err := s.assignments.ReplaceAll(tx, taskID, *changes.AssigneeIDs, editedBy); err != nil {
				return err
			}
		}

		note := "direct edit: " + changes.Summary()
		if comments != "" {
			note += " (" + comments + ")"
		}
		if err := appendProgressLog(tx, taskID, editedBy, task.LifecycleStatus, note); err != nil {
			return err
		}

		return tx.First(&task, "id = ?", taskID).Error
	})
	if err != nil {
		return models.Task{}, err
	}

	publish(s.feed, "tasks", FeedUpdate, taskID, task)
	notify(s.notifier, assigneeIDs(db, s.assignments, taskID), taskID, models.NotificationEditResolved,
		"Task \""+task.Title+"\" was updated by a manager")

	return task, nil
}
