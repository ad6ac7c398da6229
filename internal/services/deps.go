package services

import (
	"github.com/gofrs/uuid"
)

// Feed event types mirror the row-level operations delivered to subscribers.
const (
	FeedInsert = "INSERT"
	FeedUpdate = "UPDATE"
	FeedDelete = "DELETE"
)

// FeedPublisher pushes row-level change events to the realtime feed. A nil
// publisher is legal; write paths treat publishing as fire-and-forget.
type FeedPublisher interface {
	Publish(table, eventType string, rowID uuid.UUID, payload interface{})
}

// NotificationEnqueuer hands notification fan-out to the background worker.
// Enqueue failures must be logged by the implementation, never propagated:
// notification delivery is a side effect that cannot fail a transition.
type NotificationEnqueuer interface {
	EnqueueNotification(recipients []uuid.UUID, taskID uuid.UUID, notifType, message string)
}

func publish(p FeedPublisher, table, eventType string, rowID uuid.UUID, payload interface{}) {
	if p == nil {
		return
	}
	p.Publish(table, eventType, rowID, payload)
}

func notify(n NotificationEnqueuer, recipients []uuid.UUID, taskID uuid.UUID, notifType, message string) {
	if n == nil || len(recipients) == 0 {
		return
	}
	n.EnqueueNotification(recipients, taskID, notifType, message)
}
