package services_test

import (
	"testing"

	"taskflow/backend/internal/models"
	"taskflow/backend/internal/services"

	"github.com/gofrs/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Token{},
		&models.Project{},
		&models.Task{},
		&models.TaskAssignee{},
		&models.TaskEditRequest{},
		&models.TaskProgressLog{},
		&models.TaskAttachment{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate schema: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username, role string) models.User {
	t.Helper()

	user := models.User{
		ID:       uuid.Must(uuid.NewV4()),
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to seed user %s: %v", username, err)
	}
	return user
}

func seedTask(t *testing.T, db *gorm.DB, createdBy uuid.UUID, title, status string) models.Task {
	t.Helper()

	task := models.Task{
		ID:              uuid.Must(uuid.NewV4()),
		CreatedBy:       createdBy,
		Title:           title,
		Priority:        models.PriorityMedium,
		LifecycleStatus: status,
		ReviewStatus:    models.ReviewNone,
		Status:          "pending",
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("Failed to seed task %s: %v", title, err)
	}
	return task
}

func assignUsers(t *testing.T, db *gorm.DB, taskID uuid.UUID, assignedBy uuid.UUID, userIDs ...uuid.UUID) {
	t.Helper()

	svc := services.NewAssignmentService()
	if err := svc.Assign(db, taskID, userIDs, assignedBy); err != nil {
		t.Fatalf("Failed to seed assignees: %v", err)
	}
}

func reloadTask(t *testing.T, db *gorm.DB, id uuid.UUID) models.Task {
	t.Helper()

	var task models.Task
	if err := db.First(&task, "id = ?", id).Error; err != nil {
		t.Fatalf("Failed to reload task: %v", err)
	}
	return task
}

func progressLogCount(t *testing.T, db *gorm.DB, taskID uuid.UUID) int64 {
	t.Helper()

	var count int64
	if err := db.Model(&models.TaskProgressLog{}).Where("task_id = ?", taskID).Count(&count).Error; err != nil {
		t.Fatalf("Failed to count progress log: %v", err)
	}
	return count
}

// feedRecorder captures published feed events for assertions.
type feedRecorder struct {
	events []recordedEvent
}

type recordedEvent struct {
	Table     string
	EventType string
	RowID     uuid.UUID
}

func (f *feedRecorder) Publish(table, eventType string, rowID uuid.UUID, payload interface{}) {
	f.events = append(f.events, recordedEvent{Table: table, EventType: eventType, RowID: rowID})
}

// notifyRecorder captures enqueued notifications for assertions.
type notifyRecorder struct {
	calls []recordedNotification
}

type recordedNotification struct {
	Recipients []uuid.UUID
	TaskID     uuid.UUID
	Type       string
	Message    string
}

func (n *notifyRecorder) EnqueueNotification(recipients []uuid.UUID, taskID uuid.UUID, notifType, message string) {
	n.calls = append(n.calls, recordedNotification{
		Recipients: recipients,
		TaskID:     taskID,
		Type:       notifType,
		Message:    message,
	})
}
