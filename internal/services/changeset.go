package services

import (
	"encoding/json"
	"time"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// ChangeSet is a partial record of task fields being changed. Only populated
// fields are applied; title, description, due date, priority, and the
// assignee set are the complete editable surface. Priority and due date are
// immutable outside the edit-request and direct-edit paths, which is why the
// plain task update endpoint does not accept a ChangeSet.
type ChangeSet struct {
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Priority    *string      `json:"priority,omitempty"`
	AssigneeIDs *[]uuid.UUID `json:"assignee_ids,omitempty"`
}

func (c ChangeSet) IsEmpty() bool {
	return c.Title == nil && c.Description == nil && c.DueDate == nil &&
		c.Priority == nil && c.AssigneeIDs == nil
}

func (c ChangeSet) Validate() error {
	if c.IsEmpty() {
		return apperrors.ErrValidation.WithMessage("no fields to change")
	}
	if c.Title != nil && *c.Title == "" {
		return apperrors.ErrValidation.WithMessage("title cannot be empty")
	}
	if c.Priority != nil && !models.ValidPriority(*c.Priority) {
		return apperrors.ErrValidation.WithMessage("invalid priority %q", *c.Priority)
	}
	return nil
}

func (c ChangeSet) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DecodeChangeSet(raw string) (ChangeSet, error) {
	var c ChangeSet
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return ChangeSet{}, err
	}
	return c, nil
}

// apply writes the scalar fields onto the task row. Assignee changes are
// handled by the caller through the assignment service so both run in the
// same transaction.
func (c ChangeSet) apply(tx *gorm.DB, taskID uuid.UUID) error {
	updates := map[string]interface{}{}
	if c.Title != nil {
		updates["title"] = *c.Title
	}
	if c.Description != nil {
		updates["description"] = *c.Description
	}
	if c.DueDate != nil {
		updates["due_date"] = *c.DueDate
	}
	if c.Priority != nil {
		updates["priority"] = *c.Priority
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&models.Task{}).Where("id = ?", taskID).Updates(updates).Error
}

// Summary renders a short human-readable list of the fields being changed,
// used in audit notes and notifications.
func (c ChangeSet) Summary() string {
	fields := ""
	add := func(name string) {
		if fields != "" {
			fields += ", "
		}
		fields += name
	}
	if c.Title != nil {
		add("title")
	}
	if c.Description != nil {
		add("description")
	}
	if c.DueDate != nil {
		add("due date")
	}
	if c.Priority != nil {
		add("priority")
	}
	if c.AssigneeIDs != nil {
		add("assignees")
	}
	return fields
}
