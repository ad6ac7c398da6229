package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Lifecycle statuses. Distinct from the legacy free-text Status field that is
// kept for backward compatibility with older rows.
const (
	LifecycleToDo       = "todo"
	LifecycleInProgress = "in_progress"
	LifecycleDone       = "done"
	LifecycleClosed     = "closed"
)

// Review sub-states.
const (
	ReviewNone    = "none"
	ReviewPending = "pending_review"
	ReviewActive  = "under_review"
)

// Task priorities. Immutable after creation.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Closure reasons recorded when a task reaches closed, so that reopening a
// project reactivates only the tasks it closed.
const (
	ClosureReviewApproved = "review_approved"
	ClosureProjectClosed  = "project_closed"
)

type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty" gorm:"type:uuid;index"`
	CreatedBy   uuid.UUID  `json:"created_by" gorm:"type:uuid;not null"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	Priority    string     `json:"priority" gorm:"not null;default:'medium'"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	LifecycleStatus string `json:"lifecycle_status" gorm:"not null;default:'todo';index"`
	ReviewStatus    string `json:"review_status" gorm:"not null;default:'none'"`

	// Legacy free-text status, written by the manual progress-log path only.
	Status string `json:"status" gorm:"not null;default:'pending'"`

	StartedBy   *uuid.UUID `json:"started_by,omitempty" gorm:"type:uuid"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ReviewedBy     *uuid.UUID `json:"reviewed_by,omitempty" gorm:"type:uuid"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	ReviewComments string     `json:"review_comments,omitempty"`

	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	ArchiveReason string     `json:"archive_reason,omitempty"`
	ClosureReason string     `json:"closure_reason,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Assignees   []TaskAssignee    `json:"assignees,omitempty" gorm:"foreignKey:TaskID"`
	ProgressLog []TaskProgressLog `json:"progress_log,omitempty" gorm:"foreignKey:TaskID"`
}

func (t *Task) IsTerminal() bool {
	return t.LifecycleStatus == LifecycleClosed
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TaskAssignee is the task<->user join row. Uniqueness per (task, user) is
// enforced by the composite primary key together with conflict-ignore upserts.
type TaskAssignee struct {
	TaskID     uuid.UUID `json:"task_id" gorm:"type:uuid;not null;primaryKey"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;not null;primaryKey"`
	AssignedBy uuid.UUID `json:"assigned_by" gorm:"type:uuid;not null"`
	AssignedAt time.Time `json:"assigned_at"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Edit-request statuses. pending is the only non-terminal status.
const (
	EditRequestPending  = "pending"
	EditRequestApproved = "approved"
	EditRequestRejected = "rejected"
)

type TaskEditRequest struct {
	ID uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	// The partial unique index holds the one-pending-per-task invariant at
	// the database, so concurrent creates cannot both commit a pending row.
	TaskID      uuid.UUID `json:"task_id" gorm:"type:uuid;not null;index;uniqueIndex:uniq_task_edit_request_pending,where:status = 'pending'"`
	RequestedBy uuid.UUID `json:"requested_by" gorm:"type:uuid;not null"`

	// ProposedChanges holds the JSON-encoded partial change set; only fields
	// being changed are present.
	ProposedChanges string `json:"proposed_changes" gorm:"type:text;not null"`

	Status     string     `json:"status" gorm:"not null;default:'pending';index"`
	ReviewedBy *uuid.UUID `json:"reviewed_by,omitempty" gorm:"type:uuid"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	Comments   string     `json:"comments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskProgressLog rows are append-only: written on every lifecycle transition
// and by manual status writes, never updated or deleted.
type TaskProgressLog struct {
	ID     uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID uuid.UUID `json:"task_id" gorm:"type:uuid;not null;index"`
	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;not null"`
	Status string    `json:"status" gorm:"not null"`
	Note   string    `json:"note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TaskAttachment records an uploaded file for a task. StoragePath follows the
// convention <task-id>/<unix-timestamp>.<ext>.
type TaskAttachment struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID      uuid.UUID `json:"task_id" gorm:"type:uuid;not null;index"`
	UploadedBy  uuid.UUID `json:"uploaded_by" gorm:"type:uuid;not null"`
	FileName    string    `json:"file_name" gorm:"not null"`
	StoragePath string    `json:"storage_path" gorm:"not null"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`

	CreatedAt time.Time `json:"created_at"`
}
