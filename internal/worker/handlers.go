package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"taskflow/backend/internal/models"
	"taskflow/backend/internal/services"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// NotificationFanoutPayload is produced by the service layer when a
// lifecycle or edit event needs to reach a set of users.
type NotificationFanoutPayload struct {
	Recipients []uuid.UUID `json:"recipients"`
	TaskID     uuid.UUID   `json:"task_id"`
	Type       string      `json:"type"`
	Message    string      `json:"message"`
}

// Enqueuer adapts the queue to the service layer's fire-and-forget
// notification contract: enqueue failures are logged, never propagated.
type Enqueuer struct {
	queue *Queue
}

func NewEnqueuer(queue *Queue) *Enqueuer {
	return &Enqueuer{queue: queue}
}

func (e *Enqueuer) EnqueueNotification(recipients []uuid.UUID, taskID uuid.UUID, notifType, message string) {
	payload := NotificationFanoutPayload{
		Recipients: recipients,
		TaskID:     taskID,
		Type:       notifType,
		Message:    message,
	}
	if err := e.queue.Enqueue(QueueNotifications, JobTypeNotificationFanout, payload); err != nil {
		log.Printf("worker: notification enqueue failed (type=%s task=%s): %v", notifType, taskID, err)
	}
}

// RegisterHandlers wires the job handlers that need database access.
func RegisterHandlers(w *Worker, db *gorm.DB, notifications services.NotificationService) {
	w.RegisterHandler(JobTypeNotificationFanout, notificationFanoutHandler(db, notifications))
	w.RegisterHandler(JobTypeOverdueReminder, overdueReminderHandler(db, notifications))
}

func notificationFanoutHandler(db *gorm.DB, notifications services.NotificationService) JobHandler {
	return func(ctx context.Context, job *Job) error {
		var payload NotificationFanoutPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode fanout payload: %w", err)
		}

		taskID := payload.TaskID
		var failed int
		for _, recipient := range payload.Recipients {
			if _, err := notifications.Create(db.WithContext(ctx), recipient, &taskID, payload.Type, payload.Message); err != nil {
				failed++
				log.Printf("worker: notification for %s failed: %v", recipient, err)
			}
		}
		if failed == len(payload.Recipients) && failed > 0 {
			return fmt.Errorf("all %d notification writes failed", failed)
		}
		return nil
	}
}

// overdueReminderHandler notifies assignees of open tasks whose due date has
// passed. Scheduled periodically by the reminder ticker in main.
func overdueReminderHandler(db *gorm.DB, notifications services.NotificationService) JobHandler {
	return func(ctx context.Context, job *Job) error {
		var tasks []models.Task
		err := db.WithContext(ctx).
			Preload("Assignees").
			Where("due_date < ? AND lifecycle_status IN ?", time.Now(),
				[]string{models.LifecycleToDo, models.LifecycleInProgress}).
			Find(&tasks).Error
		if err != nil {
			return fmt.Errorf("overdue scan: %w", err)
		}

		for _, task := range tasks {
			taskID := task.ID
			for _, assignee := range task.Assignees {
				message := fmt.Sprintf("Task %q is overdue (due %s)", task.Title, task.DueDate.Format("2006-01-02"))
				if _, err := notifications.Create(db.WithContext(ctx), assignee.UserID, &taskID, models.NotificationTaskOverdue, message); err != nil {
					log.Printf("worker: overdue reminder for %s failed: %v", assignee.UserID, err)
				}
			}
		}
		return nil
	}
}
