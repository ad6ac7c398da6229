package services_test

import (
	"errors"
	"testing"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/models"
	"taskflow/backend/internal/services"

	"github.com/gofrs/uuid"
)

func TestNotificationLifecycle(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewNotificationService(nil)
	alice := seedUser(t, db, "alice", models.RoleMember)
	bob := seedUser(t, db, "bob", models.RoleMember)

	n1, err := svc.Create(db, alice.ID, nil, models.NotificationTaskAssigned, "You were assigned")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Create(db, alice.ID, nil, models.NotificationTaskReopened, "Task reopened"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	count, err := svc.UnreadCount(db, alice.ID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 unread, got %d", count)
	}

	if err := svc.MarkRead(db, n1.ID, alice.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	// Marking an already-read notification again is a no-op.
	if err := svc.MarkRead(db, n1.ID, alice.ID); err != nil {
		t.Errorf("Second MarkRead should not error, got %v", err)
	}

	unread, err := svc.ListForUser(db, alice.ID, true)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(unread) != 1 {
		t.Errorf("Expected 1 unread after MarkRead, got %d", len(unread))
	}

	// Bob cannot mark Alice's notification.
	if err := svc.MarkRead(db, unread[0].ID, bob.ID); err == nil {
		t.Error("Expected ownership error marking another user's notification")
	}

	updated, err := svc.MarkAllRead(db, alice.ID)
	if err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	if updated != 1 {
		t.Errorf("Expected 1 row updated, got %d", updated)
	}
}

func TestMarkReadMissingNotification(t *testing.T) {
	db := setupTestDB(t)
	svc := services.NewNotificationService(nil)
	alice := seedUser(t, db, "alice", models.RoleMember)

	err := svc.MarkRead(db, uuid.Must(uuid.NewV4()), alice.ID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}
