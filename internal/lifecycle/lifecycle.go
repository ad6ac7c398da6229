package lifecycle

import (
	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/models"
)

// Action is one of the recognized state-changing intents.
type Action string

const (
	ActionStartWork       Action = "start_work"
	ActionRequestReview   Action = "request_review"
	ActionApproveAndClose Action = "approve_and_close"
	ActionRejectAndReopen Action = "reject_and_reopen"
	ActionReopen          Action = "reopen"
)

// Actor carries the facts the guards need about the caller.
type Actor struct {
	IsAssignee   bool
	IsPrivileged bool
}

// Outcome describes the state a permitted transition lands in.
type Outcome struct {
	Lifecycle     string
	Review        string
	ClosureReason string
	LogStatus     string
}

type transition struct {
	from    string
	guard   func(Actor) *apperrors.Exception
	outcome Outcome
}

func requireAssignee(a Actor) *apperrors.Exception {
	if !a.IsAssignee {
		return apperrors.ErrForbidden.WithMessage("only an assignee of this task may perform this action")
	}
	return nil
}

func requirePrivileged(a Actor) *apperrors.Exception {
	if !a.IsPrivileged {
		return apperrors.ErrForbidden.WithMessage("only a manager or admin may perform this action")
	}
	return nil
}

// table is the complete transition surface: the four client intents plus the
// privileged reopen of a closed task.
var table = map[Action]transition{
	ActionStartWork: {
		from:  models.LifecycleToDo,
		guard: requireAssignee,
		outcome: Outcome{
			Lifecycle: models.LifecycleInProgress,
			Review:    models.ReviewNone,
			LogStatus: models.LifecycleInProgress,
		},
	},
	ActionRequestReview: {
		from:  models.LifecycleInProgress,
		guard: requireAssignee,
		outcome: Outcome{
			Lifecycle: models.LifecycleDone,
			Review:    models.ReviewPending,
			LogStatus: models.LifecycleDone,
		},
	},
	ActionApproveAndClose: {
		from:  models.LifecycleDone,
		guard: requirePrivileged,
		outcome: Outcome{
			Lifecycle:     models.LifecycleClosed,
			Review:        models.ReviewNone,
			ClosureReason: models.ClosureReviewApproved,
			LogStatus:     models.LifecycleClosed,
		},
	},
	ActionRejectAndReopen: {
		from:  models.LifecycleDone,
		guard: requirePrivileged,
		outcome: Outcome{
			Lifecycle: models.LifecycleInProgress,
			Review:    models.ReviewNone,
			LogStatus: models.LifecycleInProgress,
		},
	},
	ActionReopen: {
		from:  models.LifecycleClosed,
		guard: requirePrivileged,
		outcome: Outcome{
			Lifecycle: models.LifecycleInProgress,
			Review:    models.ReviewNone,
			LogStatus: models.LifecycleInProgress,
		},
	},
}

// Evaluate runs the guard for action against the current lifecycle status.
// It is a pure function: callers apply the returned outcome and append the
// progress log inside their own transaction.
func Evaluate(current string, action Action, actor Actor) (Outcome, error) {
	tr, ok := table[action]
	if !ok {
		return Outcome{}, apperrors.ErrValidation.WithMessage("unknown action %q", action)
	}
	if current != tr.from {
		return Outcome{}, apperrors.ErrTransitionRejected.WithMessage(
			"cannot %s a task in status %q (requires %q)", verb(action), current, tr.from)
	}
	if err := tr.guard(actor); err != nil {
		return Outcome{}, err
	}
	return tr.outcome, nil
}

func verb(action Action) string {
	switch action {
	case ActionStartWork:
		return "start work on"
	case ActionRequestReview:
		return "request review for"
	case ActionApproveAndClose:
		return "approve"
	case ActionRejectAndReopen:
		return "reject"
	case ActionReopen:
		return "reopen"
	}
	return string(action)
}
