package realtime

import (
	"context"
	"testing"
	"time"

	"taskflow/backend/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

func setupHub(t *testing.T) *Hub {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewHub(client, config.FeedConfig{ChannelPrefix: "feed", SubscriberBuffer: 8})
}

func TestPublishReachesSubscriber(t *testing.T) {
	hub := setupHub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := hub.Subscribe(ctx, "tasks", uuid.Nil)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Close()

	rowID := uuid.Must(uuid.NewV4())
	hub.Publish("tasks", "UPDATE", rowID, map[string]string{"title": "updated"})

	select {
	case event := <-sub.C:
		if event.EventType != "UPDATE" {
			t.Errorf("expected UPDATE, got %s", event.EventType)
		}
		if event.RowID != rowID {
			t.Errorf("expected row %s, got %s", rowID, event.RowID)
		}
		if event.Table != "tasks" {
			t.Errorf("expected table tasks, got %s", event.Table)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestRowFilterDropsOtherRows(t *testing.T) {
	hub := setupHub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wantRow := uuid.Must(uuid.NewV4())
	otherRow := uuid.Must(uuid.NewV4())

	sub, err := hub.Subscribe(ctx, "tasks", wantRow)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Close()

	hub.Publish("tasks", "UPDATE", otherRow, map[string]string{"title": "other"})
	hub.Publish("tasks", "UPDATE", wantRow, map[string]string{"title": "mine"})

	select {
	case event := <-sub.C:
		if event.RowID != wantRow {
			t.Errorf("filter leaked event for row %s", event.RowID)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for filtered event")
	}
}

func TestCloseReleasesSubscription(t *testing.T) {
	hub := setupHub(t)

	ctx := context.Background()
	sub, err := hub.Subscribe(ctx, "notifications", uuid.Nil)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	sub.Close()

	// The event channel must be closed after Close so readers terminate.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel not closed after Close")
		}
	}
}
