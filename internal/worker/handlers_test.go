package worker_test

import (
	"testing"
	"time"

	"taskflow/backend/internal/models"
	"taskflow/backend/internal/services"
	"taskflow/backend/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupHandlerFixtures(t *testing.T) (*gorm.DB, *redis.Client) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	err = db.AutoMigrate(&models.User{}, &models.Task{}, &models.TaskAssignee{}, &models.Notification{})
	if err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	return db, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func waitForNotifications(t *testing.T, db *gorm.DB, want int64) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var count int64
		if err := db.Model(&models.Notification{}).Count(&count).Error; err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count >= want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d notifications", want)
}

func TestNotificationFanout(t *testing.T) {
	db, client := setupHandlerFixtures(t)

	alice := uuid.Must(uuid.NewV4())
	bob := uuid.Must(uuid.NewV4())
	taskID := uuid.Must(uuid.NewV4())

	queue := worker.NewQueue(client)
	enqueuer := worker.NewEnqueuer(queue)
	enqueuer.EnqueueNotification([]uuid.UUID{alice, bob}, taskID, models.NotificationReviewRequested, "Review requested for \"Ship release notes\"")

	w := worker.New(worker.Config{
		RedisClient:  client,
		PollInterval: 50 * time.Millisecond,
		Queues:       []string{worker.QueueNotifications},
	})
	worker.RegisterHandlers(w, db, services.NewNotificationService(nil))
	w.Start(1)
	defer w.Stop()

	waitForNotifications(t, db, 2)

	var rows []models.Notification
	if err := db.Order("created_at").Find(&rows).Error; err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	recipients := map[uuid.UUID]bool{}
	for _, row := range rows {
		recipients[row.RecipientID] = true
		if row.Type != models.NotificationReviewRequested {
			t.Errorf("Expected type %q, got %q", models.NotificationReviewRequested, row.Type)
		}
		if row.TaskID == nil || *row.TaskID != taskID {
			t.Errorf("Expected task id %s on notification", taskID)
		}
		if row.Read {
			t.Error("New notification should be unread")
		}
	}
	if !recipients[alice] || !recipients[bob] {
		t.Errorf("Expected notifications for both recipients, got %v", recipients)
	}
}

func TestOverdueReminderNotifiesAssignees(t *testing.T) {
	db, client := setupHandlerFixtures(t)

	assignee := uuid.Must(uuid.NewV4())
	creator := uuid.Must(uuid.NewV4())
	yesterday := time.Now().Add(-24 * time.Hour)

	overdue := models.Task{
		ID: uuid.Must(uuid.NewV4()), CreatedBy: creator, Title: "File the compliance report",
		Priority: models.PriorityMedium, DueDate: &yesterday,
		LifecycleStatus: models.LifecycleInProgress, ReviewStatus: models.ReviewNone, Status: "pending",
	}
	if err := db.Create(&overdue).Error; err != nil {
		t.Fatalf("Failed to seed task: %v", err)
	}
	if err := db.Create(&models.TaskAssignee{TaskID: overdue.ID, UserID: assignee, AssignedBy: creator, AssignedAt: time.Now()}).Error; err != nil {
		t.Fatalf("Failed to seed assignee: %v", err)
	}

	// A closed overdue task must not trigger a reminder.
	closed := models.Task{
		ID: uuid.Must(uuid.NewV4()), CreatedBy: creator, Title: "Old closed task",
		Priority: models.PriorityMedium, DueDate: &yesterday,
		LifecycleStatus: models.LifecycleClosed, ReviewStatus: models.ReviewNone, Status: "pending",
	}
	if err := db.Create(&closed).Error; err != nil {
		t.Fatalf("Failed to seed closed task: %v", err)
	}
	if err := db.Create(&models.TaskAssignee{TaskID: closed.ID, UserID: assignee, AssignedBy: creator, AssignedAt: time.Now()}).Error; err != nil {
		t.Fatalf("Failed to seed closed task assignee: %v", err)
	}

	queue := worker.NewQueue(client)
	if err := queue.Enqueue(worker.QueueReminders, worker.JobTypeOverdueReminder, nil); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	w := worker.New(worker.Config{
		RedisClient:  client,
		PollInterval: 50 * time.Millisecond,
		Queues:       []string{worker.QueueReminders},
	})
	worker.RegisterHandlers(w, db, services.NewNotificationService(nil))
	w.Start(1)
	defer w.Stop()

	waitForNotifications(t, db, 1)

	var rows []models.Notification
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected exactly 1 reminder, got %d", len(rows))
	}
	row := rows[0]
	if row.RecipientID != assignee {
		t.Errorf("Expected reminder for assignee %s, got %s", assignee, row.RecipientID)
	}
	if row.Type != models.NotificationTaskOverdue {
		t.Errorf("Expected type %q, got %q", models.NotificationTaskOverdue, row.Type)
	}
	if row.TaskID == nil || *row.TaskID != overdue.ID {
		t.Errorf("Expected reminder to reference the overdue task")
	}
}
