package services

import (
	"fmt"
	"time"

	"taskflow/backend/internal/cache"
	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// CachedTaskService layers the task read paths over the two-level cache.
// Write paths delegate and invalidate; the cache never becomes the source of
// truth, it only absorbs dashboard-style repeat reads.
type CachedTaskService struct {
	tasks TaskService
	cache cache.Cache
}

func NewCachedTaskService(tasks TaskService, cacheInstance cache.Cache) *CachedTaskService {
	return &CachedTaskService{tasks: tasks, cache: cacheInstance}
}

func (s *CachedTaskService) CreateTask(db *gorm.DB, createdBy uuid.UUID, input CreateTaskInput) (models.Task, error) {
	task, err := s.tasks.CreateTask(db, createdBy, input)
	if err != nil {
		return task, err
	}
	s.cache.DeletePattern("tasks:page:*")
	if input.ProjectID != nil {
		s.cache.Delete(projectTasksKey(*input.ProjectID))
	}
	return task, nil
}

func (s *CachedTaskService) GetTaskByID(db *gorm.DB, id uuid.UUID) (models.Task, error) {
	key := taskKey(id)

	var cached models.Task
	if err := s.cache.Get(key, &cached); err == nil {
		return cached, nil
	}

	task, err := s.tasks.GetTaskByID(db, id)
	if err != nil {
		return task, err
	}
	s.cache.Set(key, task, 5*time.Minute)
	return task, nil
}

func (s *CachedTaskService) GetTasksPaginated(db *gorm.DB, sortBy, order, page, pageSize string) ([]models.Task, int64, error) {
	key := fmt.Sprintf("tasks:page:%s:%s:%s:%s", sortBy, order, page, pageSize)

	var cached struct {
		Tasks []models.Task `json:"tasks"`
		Total int64         `json:"total"`
	}
	if err := s.cache.Get(key, &cached); err == nil {
		return cached.Tasks, cached.Total, nil
	}

	tasks, total, err := s.tasks.GetTasksPaginated(db, sortBy, order, page, pageSize)
	if err != nil {
		return tasks, total, err
	}

	cached.Tasks = tasks
	cached.Total = total
	s.cache.Set(key, cached, 2*time.Minute)
	return tasks, total, nil
}

func (s *CachedTaskService) GetTasksByProject(db *gorm.DB, projectID uuid.UUID) ([]models.Task, error) {
	key := projectTasksKey(projectID)

	var cached []models.Task
	if err := s.cache.Get(key, &cached); err == nil {
		return cached, nil
	}

	tasks, err := s.tasks.GetTasksByProject(db, projectID)
	if err != nil {
		return tasks, err
	}
	s.cache.Set(key, tasks, 2*time.Minute)
	return tasks, nil
}

func (s *CachedTaskService) SoftDeleteTask(db *gorm.DB, id uuid.UUID) error {
	if err := s.tasks.SoftDeleteTask(db, id); err != nil {
		return err
	}
	s.invalidateTask(db, id)
	return nil
}

func (s *CachedTaskService) RestoreTask(db *gorm.DB, id uuid.UUID) error {
	if err := s.tasks.RestoreTask(db, id); err != nil {
		return err
	}
	s.invalidateTask(db, id)
	return nil
}

// InvalidateTask drops all cached views of one task. Exposed so the
// lifecycle and edit services can invalidate after their own writes.
func (s *CachedTaskService) InvalidateTask(db *gorm.DB, id uuid.UUID) {
	s.invalidateTask(db, id)
}

func (s *CachedTaskService) invalidateTask(db *gorm.DB, id uuid.UUID) {
	s.cache.Delete(taskKey(id))
	s.cache.DeletePattern("tasks:page:*")

	var task models.Task
	if err := db.Unscoped().Select("project_id").First(&task, "id = ?", id).Error; err == nil && task.ProjectID != nil {
		s.cache.Delete(projectTasksKey(*task.ProjectID))
	}
}

func taskKey(id uuid.UUID) string {
	return "tasks:id:" + id.String()
}

func projectTasksKey(projectID uuid.UUID) string {
	return "tasks:project:" + projectID.String()
}
