package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Project statuses.
const (
	ProjectActive    = "active"
	ProjectClosed    = "closed"
	ProjectCompleted = "completed"
	ProjectArchived  = "archived"
)

// Project groups tasks. Closing a project cascades closure to its open
// tasks; reopening reactivates only the tasks closed by that cascade.
type Project struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	Status      string    `json:"status" gorm:"not null;default:'active';index"`
	CreatedBy   uuid.UUID `json:"created_by" gorm:"type:uuid;not null"`

	ClosedBy *uuid.UUID `json:"closed_by,omitempty" gorm:"type:uuid"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Tasks []Task `json:"tasks,omitempty" gorm:"foreignKey:ProjectID"`
}
