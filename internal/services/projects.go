package services

import (
	"errors"
	"time"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type ProjectService interface {
	CreateProject(db *gorm.DB, createdBy uuid.UUID, name, description string) (models.Project, error)
	GetProjectByID(db *gorm.DB, id uuid.UUID) (models.Project, error)
	ListProjects(db *gorm.DB) ([]models.Project, error)
	CloseProject(db *gorm.DB, projectID, closedBy uuid.UUID) (int64, error)
	ReopenProject(db *gorm.DB, projectID, reopenedBy uuid.UUID) (int64, error)
}

type ProjectServiceImpl struct {
	feed     FeedPublisher
	notifier NotificationEnqueuer
}

func NewProjectService(feed FeedPublisher, notifier NotificationEnqueuer) *ProjectServiceImpl {
	return &ProjectServiceImpl{feed: feed, notifier: notifier}
}

func (s *ProjectServiceImpl) CreateProject(db *gorm.DB, createdBy uuid.UUID, name, description string) (models.Project, error) {
	if name == "" {
		return models.Project{}, apperrors.ErrValidation.WithMessage("project name is required")
	}
	projectID, err := uuid.NewV4()
	if err != nil {
		return models.Project{}, err
	}
	project := models.Project{
		ID:          projectID,
		Name:        name,
		Description: description,
		Status:      models.ProjectActive,
		CreatedBy:   createdBy,
	}
	if err := db.Create(&project).Error; err != nil {
		return models.Project{}, err
	}
	publish(s.feed, "projects", FeedInsert, project.ID, project)
	return project, nil
}

func (s *ProjectServiceImpl) GetProjectByID(db *gorm.DB, id uuid.UUID) (models.Project, error) {
	var project models.Project
	err := db.Preload("Tasks").First(&project, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Project{}, apperrors.ErrNotFound.WithMessage("project not found")
		}
		return models.Project{}, err
	}
	return project, nil
}

func (s *ProjectServiceImpl) ListProjects(db *gorm.DB) ([]models.Project, error) {
	var projects []models.Project
	err := db.Order("created_at desc").Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// CloseProject closes the project and cascades closure to all its open
// tasks, tagging them with the project-closed closure reason so ReopenProject
// can tell them apart from independently closed tasks. Returns the number of
// tasks closed by the cascade.
func (s *ProjectServiceImpl) CloseProject(db *gorm.DB, projectID, closedBy uuid.UUID) (int64, error) {
	var closed int64

	err := db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("project not found")
			}
			return err
		}
		if project.Status != models.ProjectActive {
			return apperrors.ErrConflict.WithMessage("project is already %s", project.Status)
		}

		now := time.Now()
		if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Updates(map[string]interface{}{
			"status":    models.ProjectClosed,
			"closed_by": closedBy,
			"closed_at": now,
		}).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Task{}).
			Where("project_id = ? AND lifecycle_status <> ?", projectID, models.LifecycleClosed).
			Updates(map[string]interface{}{
				"lifecycle_status": models.LifecycleClosed,
				"review_status":    models.ReviewNone,
				"archived_at":      now,
				"archive_reason":   "project closed",
				"closure_reason":   models.ClosureProjectClosed,
			})
		if res.Error != nil {
			return res.Error
		}
		closed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	publish(s.feed, "projects", FeedUpdate, projectID, map[string]interface{}{
		"id": projectID, "status": models.ProjectClosed, "tasks_closed": closed,
	})
	return closed, nil
}

// ReopenProject reactivates the project and exactly the tasks that were
// closed by the project-closure cascade; tasks closed independently (review
// approval) stay closed.
func (s *ProjectServiceImpl) ReopenProject(db *gorm.DB, projectID, reopenedBy uuid.UUID) (int64, error) {
	var reopened int64

	err := db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("project not found")
			}
			return err
		}
		if project.Status != models.ProjectClosed {
			return apperrors.ErrConflict.WithMessage("only closed projects can be reopened")
		}

		if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Updates(map[string]interface{}{
			"status":    models.ProjectActive,
			"closed_by": nil,
			"closed_at": nil,
		}).Error; err != nil {
			return err
		}

		res := tx.Model(&models.Task{}).
			Where("project_id = ? AND lifecycle_status = ? AND closure_reason = ?",
				projectID, models.LifecycleClosed, models.ClosureProjectClosed).
			Updates(map[string]interface{}{
				"lifecycle_status": models.LifecycleInProgress,
				"archived_at":      nil,
				"archive_reason":   "",
				"closure_reason":   "",
			})
		if res.Error != nil {
			return res.Error
		}
		reopened = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	publish(s.feed, "projects", FeedUpdate, projectID, map[string]interface{}{
		"id": projectID, "status": models.ProjectActive, "tasks_reopened": reopened,
	})
	return reopened, nil
}
