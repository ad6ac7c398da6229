package services

import (
	"errors"
	"strconv"
	"time"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type CreateTaskInput struct {
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
	ProjectID   *uuid.UUID
	AssigneeIDs []uuid.UUID
}

// TaskService covers task CRUD outside the lifecycle and edit workflows.
type TaskService interface {
	CreateTask(db *gorm.DB, createdBy uuid.UUID, input CreateTaskInput) (models.Task, error)
	GetTaskByID(db *gorm.DB, id uuid.UUID) (models.Task, error)
	GetTasksPaginated(db *gorm.DB, sortBy, order, page, pageSize string) ([]models.Task, int64, error)
	GetTasksByProject(db *gorm.DB, projectID uuid.UUID) ([]models.Task, error)
	SoftDeleteTask(db *gorm.DB, id uuid.UUID) error
	RestoreTask(db *gorm.DB, id uuid.UUID) error
}

type TaskServiceImpl struct {
	assignments AssignmentService
	feed        FeedPublisher
	notifier    NotificationEnqueuer
}

func NewTaskService(assignments AssignmentService, feed FeedPublisher, notifier NotificationEnqueuer) *TaskServiceImpl {
	return &TaskServiceImpl{assignments: assignments, feed: feed, notifier: notifier}
}

// CreateTask creates a task in todo with zero or more assignees. Creation is
// a manager/admin operation; assignee rows are written in the same
// transaction as the task.
func (s *TaskServiceImpl) CreateTask(db *gorm.DB, createdBy uuid.UUID, input CreateTaskInput) (models.Task, error) {
	if input.Title == "" {
		return models.Task{}, apperrors.ErrValidation.WithMessage("title is required")
	}
	if input.Priority == "" {
		input.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(input.Priority) {
		return models.Task{}, apperrors.ErrValidation.WithMessage("invalid priority %q", input.Priority)
	}

	taskID, err := uuid.NewV4()
	if err != nil {
		return models.Task{}, err
	}

	task := models.Task{
		ID:              taskID,
		ProjectID:       input.ProjectID,
		CreatedBy:       createdBy,
		Title:           input.Title,
		Description:     input.Description,
		Priority:        input.Priority,
		DueDate:         input.DueDate,
		LifecycleStatus: models.LifecycleToDo,
		ReviewStatus:    models.ReviewNone,
		Status:          "pending",
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var creator models.User
		if err := tx.First(&creator, "id = ?", createdBy).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("user not found")
			}
			return err
		}
		if !creator.IsPrivileged() {
			return apperrors.ErrForbidden.WithMessage("task creation requires a manager or admin role")
		}

		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		if len(input.AssigneeIDs) > 0 {
			if err := s.assignments.Assign(tx, task.ID, input.AssigneeIDs, createdBy); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}

	publish(s.feed, "tasks", FeedInsert, task.ID, task)
	notify(s.notifier, input.AssigneeIDs, task.ID, models.NotificationTaskAssigned,
		"You have been assigned to task \""+task.Title+"\"")

	return task, nil
}

func (s *TaskServiceImpl) GetTaskByID(db *gorm.DB, id uuid.UUID) (models.Task, error) {
	var task models.Task
	err := db.Preload("Assignees").Preload("Assignees.User").First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, apperrors.ErrNotFound.WithMessage("task not found")
		}
		return models.Task{}, err
	}
	return task, nil
}

func (s *TaskServiceImpl) GetTasksPaginated(db *gorm.DB, sortBy, order, page, pageSize string) ([]models.Task, int64, error) {
	allowedSort := map[string]bool{
		"created_at": true, "updated_at": true, "due_date": true,
		"priority": true, "lifecycle_status": true, "title": true,
	}
	if !allowedSort[sortBy] {
		sortBy = "created_at"
	}
	if order != "asc" {
		order = "desc"
	}

	pageNum, err := strconv.Atoi(page)
	if err != nil || pageNum < 1 {
		pageNum = 1
	}
	size, err := strconv.Atoi(pageSize)
	if err != nil || size < 1 || size > 100 {
		size = 10
	}

	var total int64
	if err := db.Model(&models.Task{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []models.Task
	err = db.Order(sortBy + " " + order).
		Offset((pageNum - 1) * size).
		Limit(size).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (s *TaskServiceImpl) GetTasksByProject(db *gorm.DB, projectID uuid.UUID) ([]models.Task, error) {
	var tasks []models.Task
	err := db.Where("project_id = ?", projectID).Order("created_at desc").Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// SoftDeleteTask hides the task; reversible via RestoreTask. Closed tasks are
// terminal and cannot be deleted.
func (s *TaskServiceImpl) SoftDeleteTask(db *gorm.DB, id uuid.UUID) error {
	task, err := s.GetTaskByID(db, id)
	if err != nil {
		return err
	}
	if task.IsTerminal() {
		return apperrors.ErrTransitionRejected.WithMessage("closed tasks cannot be deleted")
	}
	if err := db.Delete(&models.Task{}, "id = ?", id).Error; err != nil {
		return err
	}
	publish(s.feed, "tasks", FeedDelete, id, map[string]interface{}{"id": id})
	return nil
}

func (s *TaskServiceImpl) RestoreTask(db *gorm.DB, id uuid.UUID) error {
	var task models.Task
	err := db.Unscoped().First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound.WithMessage("task not found")
		}
		return err
	}
	if !task.DeletedAt.Valid {
		return apperrors.ErrValidation.WithMessage("task is not deleted")
	}
	err = db.Unscoped().Model(&models.Task{}).Where("id = ?", id).
		Update("deleted_at", nil).Error
	if err != nil {
		return err
	}
	task.DeletedAt = gorm.DeletedAt{}
	publish(s.feed, "tasks", FeedUpdate, id, task)
	return nil
}
