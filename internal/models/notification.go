package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Notification types produced by lifecycle and project events.
const (
	NotificationTaskAssigned    = "task_assigned"
	NotificationReviewRequested = "review_requested"
	NotificationTaskApproved    = "task_approved"
	NotificationTaskRejected    = "task_rejected"
	NotificationTaskReopened    = "task_reopened"
	NotificationEditRequested   = "edit_requested"
	NotificationEditResolved    = "edit_resolved"
	NotificationProjectClosed   = "project_closed"
	NotificationTaskOverdue     = "task_overdue"
)

type Notification struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	RecipientID uuid.UUID  `json:"recipient_id" gorm:"type:uuid;not null;index"`
	TaskID      *uuid.UUID `json:"task_id,omitempty" gorm:"type:uuid"`
	Type        string     `json:"type" gorm:"not null"`
	Message     string     `json:"message" gorm:"not null"`
	Read        bool       `json:"read" gorm:"default:false;index"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}
