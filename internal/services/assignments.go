package services

import (
	"errors"
	"log"
	"time"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignmentService maintains the task<->assignee mapping.
type AssignmentService interface {
	Assign(db *gorm.DB, taskID uuid.UUID, userIDs []uuid.UUID, assignedBy uuid.UUID) error
	Unassign(db *gorm.DB, taskID, userID uuid.UUID) error
	ReplaceAll(db *gorm.DB, taskID uuid.UUID, userIDs []uuid.UUID, assignedBy uuid.UUID) error
	ListForTask(db *gorm.DB, taskID uuid.UUID) ([]models.TaskAssignee, error)
	IsAssigned(db *gorm.DB, taskID, userID uuid.UUID) (bool, error)
	ListTasksForUser(db *gorm.DB, userID uuid.UUID) ([]models.Task, error)
}

type AssignmentServiceImpl struct{}

func NewAssignmentService() *AssignmentServiceImpl {
	return &AssignmentServiceImpl{}
}

// Assign upserts one row per user with conflict-ignore on (task_id, user_id),
// so re-assigning an already-assigned user is a no-op.
func (s *AssignmentServiceImpl) Assign(db *gorm.DB, taskID uuid.UUID, userIDs []uuid.UUID, assignedBy uuid.UUID) error {
	if len(userIDs) == 0 {
		return apperrors.ErrValidation.WithMessage("at least one assignee is required")
	}

	rows := make([]models.TaskAssignee, 0, len(userIDs))
	seen := make(map[uuid.UUID]bool, len(userIDs))
	now := time.Now()
	for _, userID := range userIDs {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		rows = append(rows, models.TaskAssignee{
			TaskID:     taskID,
			UserID:     userID,
			AssignedBy: assignedBy,
			AssignedAt: now,
		})
	}

	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// Unassign is unconditionally idempotent: deleting a mapping that does not
// exist is not an error.
func (s *AssignmentServiceImpl) Unassign(db *gorm.DB, taskID, userID uuid.UUID) error {
	return db.Where("task_id = ? AND user_id = ?", taskID, userID).
		Delete(&models.TaskAssignee{}).Error
}

// ReplaceAll swaps the full assignee set in one transaction, so a failure
// between delete and insert cannot leave the task unassigned.
func (s *AssignmentServiceImpl) ReplaceAll(db *gorm.DB, taskID uuid.UUID, userIDs []uuid.UUID, assignedBy uuid.UUID) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskAssignee{}).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}
		return s.Assign(tx, taskID, userIDs, assignedBy)
	})
}

// ListForTask returns assignee rows with user profiles preloaded. If the
// profile join fails the assignee rows are still returned without user data
// rather than failing the whole listing.
func (s *AssignmentServiceImpl) ListForTask(db *gorm.DB, taskID uuid.UUID) ([]models.TaskAssignee, error) {
	var assignees []models.TaskAssignee
	err := db.Preload("User").Where("task_id = ?", taskID).
		Order("assigned_at asc").Find(&assignees).Error
	if err == nil {
		return assignees, nil
	}

	log.Printf("assignee user join failed for task %s, returning without profiles: %v", taskID, err)
	assignees = nil
	if err := db.Where("task_id = ?", taskID).Order("assigned_at asc").Find(&assignees).Error; err != nil {
		return nil, err
	}
	return assignees, nil
}

func (s *AssignmentServiceImpl) IsAssigned(db *gorm.DB, taskID, userID uuid.UUID) (bool, error) {
	var row models.TaskAssignee
	err := db.Where("task_id = ? AND user_id = ?", taskID, userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *AssignmentServiceImpl) ListTasksForUser(db *gorm.DB, userID uuid.UUID) ([]models.Task, error) {
	var tasks []models.Task
	err := db.Joins("JOIN task_assignees ON task_assignees.task_id = tasks.id").
		Where("task_assignees.user_id = ?", userID).
		Order("tasks.created_at desc").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
