package services

import (
	"errors"
	"strings"
	"time"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/lifecycle"
	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// TransitionResult is the normalized outcome returned to handlers: a success
// flag plus the message the guard produced on rejection. Handlers surface the
// message verbatim and never invent their own error text.
type TransitionResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Task    models.Task `json:"task,omitempty"`
}

// LifecycleService exposes the four state-changing intents plus reopen and
// the legacy manual progress write.
type LifecycleService interface {
	StartWork(db *gorm.DB, taskID, userID uuid.UUID, note string) (TransitionResult, error)
	RequestReview(db *gorm.DB, taskID, userID uuid.UUID) (TransitionResult, error)
	ApproveAndClose(db *gorm.DB, taskID, reviewerID uuid.UUID, comments string) (TransitionResult, error)
	RejectAndReopen(db *gorm.DB, taskID, reviewerID uuid.UUID, comments string) (TransitionResult, error)
	Reopen(db *gorm.DB, taskID, userID uuid.UUID) (TransitionResult, error)
	LogProgress(db *gorm.DB, taskID, userID uuid.UUID, status, note string) error
	History(db *gorm.DB, taskID uuid.UUID) ([]models.TaskProgressLog, error)
}

type LifecycleServiceImpl struct {
	assignments AssignmentService
	feed        FeedPublisher
	notifier    NotificationEnqueuer
}

func NewLifecycleService(assignments AssignmentService, feed FeedPublisher, notifier NotificationEnqueuer) *LifecycleServiceImpl {
	return &LifecycleServiceImpl{assignments: assignments, feed: feed, notifier: notifier}
}

func (s *LifecycleServiceImpl) StartWork(db *gorm.DB, taskID, userID uuid.UUID, note string) (TransitionResult, error) {
	res, task, err := s.transition(db, taskID, userID, lifecycle.ActionStartWork, "", func(tx *gorm.DB, out lifecycle.Outcome) map[string]interface{} {
		now := time.Now()
		return map[string]interface{}{
			"started_by": userID,
			"started_at": now,
		}
	})
	if err != nil || !res.Success {
		return res, err
	}

	// A caller-supplied note becomes a second log entry, distinct from the
	// transition's own row.
	if strings.TrimSpace(note) != "" {
		if logErr := appendProgressLog(db, taskID, userID, task.LifecycleStatus, note); logErr != nil {
			return res, logErr
		}
	}
	return res, nil
}

func (s *LifecycleServiceImpl) RequestReview(db *gorm.DB, taskID, userID uuid.UUID) (TransitionResult, error) {
	res, task, err := s.transition(db, taskID, userID, lifecycle.ActionRequestReview, "", func(tx *gorm.DB, out lifecycle.Outcome) map[string]interface{} {
		now := time.Now()
		return map[string]interface{}{
			"completed_at": now,
		}
	})
	if err != nil || !res.Success {
		return res, err
	}

	// Reviewer notification is fire-and-forget: the worker owns delivery and
	// a queue failure never fails the transition.
	reviewers, lookupErr := listReviewerIDs(db)
	if lookupErr == nil {
		notify(s.notifier, reviewers, taskID, models.NotificationReviewRequested,
			"Task \""+task.Title+"\" is ready for review")
	}
	return res, nil
}

func (s *LifecycleServiceImpl) ApproveAndClose(db *gorm.DB, taskID, reviewerID uuid.UUID, comments string) (TransitionResult, error) {
	res, task, err := s.transition(db, taskID, reviewerID, lifecycle.ActionApproveAndClose, comments, func(tx *gorm.DB, out lifecycle.Outcome) map[string]interface{} {
		now := time.Now()
		updates := map[string]interface{}{
			"reviewed_by":    reviewerID,
			"reviewed_at":    now,
			"archived_at":    now,
			"archive_reason": "approved and closed",
			"closure_reason": out.ClosureReason,
		}
		if strings.TrimSpace(comments) != "" {
			updates["review_comments"] = comments
		}
		return updates
	})
	if err != nil || !res.Success {
		return res, err
	}

	notify(s.notifier, assigneeIDs(db, s.assignments, taskID), taskID, models.NotificationTaskApproved,
		"Task \""+task.Title+"\" was approved and closed")
	return res, nil
}

func (s *LifecycleServiceImpl) RejectAndReopen(db *gorm.DB, taskID, reviewerID uuid.UUID, comments string) (TransitionResult, error) {
	// Rejection without justification is disallowed; validated before any
	// write.
	if strings.TrimSpace(comments) == "" {
		return TransitionResult{}, apperrors.ErrValidation.WithMessage("rejection comments are required")
	}

	res, task, err := s.transition(db, taskID, reviewerID, lifecycle.ActionRejectAndReopen, comments, func(tx *gorm.DB, out lifecycle.Outcome) map[string]interface{} {
		now := time.Now()
		return map[string]interface{}{
			"reviewed_by":     reviewerID,
			"reviewed_at":     now,
			"review_comments": comments,
			"completed_at":    nil,
		}
	})
	if err != nil || !res.Success {
		return res, err
	}

	notify(s.notifier, assigneeIDs(db, s.assignments, taskID), taskID, models.NotificationTaskRejected,
		"Task \""+task.Title+"\" was sent back: "+comments)
	return res, nil
}

func (s *LifecycleServiceImpl) Reopen(db *gorm.DB, taskID, userID uuid.UUID) (TransitionResult, error) {
	res, task, err := s.transition(db, taskID, userID, lifecycle.ActionReopen, "", func(tx *gorm.DB, out lifecycle.Outcome) map[string]interface{} {
		return map[string]interface{}{
			"archived_at":    nil,
			"archive_reason": "",
			"closure_reason": "",
			"completed_at":   nil,
		}
	})
	if err != nil || !res.Success {
		return res, err
	}

	notify(s.notifier, assigneeIDs(db, s.assignments, taskID), taskID, models.NotificationTaskReopened,
		"Task \""+task.Title+"\" was reopened")
	return res, nil
}

// transition runs guard evaluation, the task update, and the progress-log
// append in one transaction. Guard rejections come back as a failed
// TransitionResult carrying the guard's message; infrastructure errors come
// back as errors.
func (s *LifecycleServiceImpl) transition(
	db *gorm.DB,
	taskID, actorID uuid.UUID,
	action lifecycle.Action,
	note string,
	extraUpdates func(tx *gorm.DB, out lifecycle.Outcome) map[string]interface{},
) (TransitionResult, models.Task, error) {
	var task models.Task

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, "id = ?", taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("task not found")
			}
			return err
		}

		actor, err := s.resolveActor(tx, taskID, actorID)
		if err != nil {
			return err
		}

		out, err := lifecycle.Evaluate(task.LifecycleStatus, action, actor)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"lifecycle_status": out.Lifecycle,
			"review_status":    out.Review,
		}
		if extraUpdates != nil {
			for k, v := range extraUpdates(tx, out) {
				updates[k] = v
			}
		}
		if err := tx.Model(&models.Task{}).Where("id = ?", taskID).Updates(updates).Error; err != nil {
			return err
		}

		logNote := note
		if err := appendProgressLog(tx, taskID, actorID, out.LogStatus, logNote); err != nil {
			return err
		}

		return tx.First(&task, "id = ?", taskID).Error
	})

	if err != nil {
		var appErr *apperrors.Exception
		if errors.As(err, &appErr) && (appErr.Code == apperrors.ErrTransitionRejected.Code || appErr.Code == apperrors.ErrForbidden.Code) {
			// Guard rejections are part of the contract: surfaced as a
			// failed result with the guard's message, not as a transport
			// error.
			return TransitionResult{Success: false, Message: appErr.Message}, task, nil
		}
		return TransitionResult{}, task, err
	}

	publish(s.feed, "tasks", FeedUpdate, taskID, task)
	return TransitionResult{Success: true, Task: task}, task, nil
}

func (s *LifecycleServiceImpl) resolveActor(tx *gorm.DB, taskID, actorID uuid.UUID) (lifecycle.Actor, error) {
	assigned, err := s.assignments.IsAssigned(tx, taskID, actorID)
	if err != nil {
		return lifecycle.Actor{}, err
	}

	var user models.User
	if err := tx.First(&user, "id = ?", actorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lifecycle.Actor{}, apperrors.ErrNotFound.WithMessage("user not found")
		}
		return lifecycle.Actor{}, err
	}

	return lifecycle.Actor{IsAssignee: assigned, IsPrivileged: user.IsPrivileged()}, nil
}

// LogProgress is the legacy manual status write: it updates the free-text
// status field and appends the log row in one transaction so the task and
// its log cannot diverge.
func (s *LifecycleServiceImpl) LogProgress(db *gorm.DB, taskID, userID uuid.UUID, status, note string) error {
	if strings.TrimSpace(status) == "" {
		return apperrors.ErrValidation.WithMessage("status is required")
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).Where("id = ?", taskID).Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrNotFound.WithMessage("task not found")
		}
		return appendProgressLog(tx, taskID, userID, status, note)
	})
	if err != nil {
		return err
	}

	publish(s.feed, "task_progress_logs", FeedInsert, taskID, map[string]interface{}{
		"task_id": taskID, "status": status, "note": note,
	})
	return nil
}

func (s *LifecycleServiceImpl) History(db *gorm.DB, taskID uuid.UUID) ([]models.TaskProgressLog, error) {
	var logs []models.TaskProgressLog
	err := db.Where("task_id = ?", taskID).Order("created_at desc").Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func appendProgressLog(tx *gorm.DB, taskID, userID uuid.UUID, status, note string) error {
	logID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	entry := models.TaskProgressLog{
		ID:     logID,
		TaskID: taskID,
		UserID: userID,
		Status: status,
		Note:   note,
	}
	return tx.Create(&entry).Error
}

func listReviewerIDs(db *gorm.DB) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.Model(&models.User{}).
		Where("role IN ? AND is_active = ?", []string{models.RoleManager, models.RoleAdmin}, true).
		Pluck("id", &ids).Error
	return ids, err
}

func assigneeIDs(db *gorm.DB, assignments AssignmentService, taskID uuid.UUID) []uuid.UUID {
	rows, err := assignments.ListForTask(db, taskID)
	if err != nil {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	return ids
}
