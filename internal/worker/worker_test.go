package worker_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"taskflow/backend/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestEnqueueAndProcess(t *testing.T) {
	client := setupRedis(t)
	queue := worker.NewQueue(client)

	var processed atomic.Int32
	w := worker.New(worker.Config{
		RedisClient:  client,
		PollInterval: 50 * time.Millisecond,
		Queues:       []string{worker.QueueNotifications},
	})
	w.RegisterHandler(worker.JobTypeNotificationFanout, func(ctx context.Context, job *worker.Job) error {
		processed.Add(1)
		return nil
	})

	if err := queue.Enqueue(worker.QueueNotifications, worker.JobTypeNotificationFanout, map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	size, err := queue.Size(worker.QueueNotifications)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 1 {
		t.Fatalf("Expected queue size 1, got %d", size)
	}

	w.Start(1)
	defer w.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for processed.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if processed.Load() != 1 {
		t.Errorf("Expected 1 processed job, got %d", processed.Load())
	}
}

func TestJobCarriesPayload(t *testing.T) {
	client := setupRedis(t)
	queue := worker.NewQueue(client)

	type payload struct {
		Message string `json:"message"`
	}

	got := make(chan payload, 1)
	w := worker.New(worker.Config{
		RedisClient:  client,
		PollInterval: 50 * time.Millisecond,
		Queues:       []string{worker.QueueReminders},
	})
	w.RegisterHandler(worker.JobTypeOverdueReminder, func(ctx context.Context, job *worker.Job) error {
		var p payload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
			return err
		}
		got <- p
		return nil
	})

	if err := queue.Enqueue(worker.QueueReminders, worker.JobTypeOverdueReminder, payload{Message: "check overdue"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	w.Start(1)
	defer w.Stop()

	select {
	case p := <-got:
		if p.Message != "check overdue" {
			t.Errorf("Expected payload message %q, got %q", "check overdue", p.Message)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for job")
	}
}

func TestEnqueueAtDefersProcessing(t *testing.T) {
	client := setupRedis(t)
	queue := worker.NewQueue(client)

	err := queue.EnqueueAt(worker.QueueReminders, worker.JobTypeOverdueReminder, nil, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("EnqueueAt failed: %v", err)
	}

	var processed atomic.Int32
	w := worker.New(worker.Config{
		RedisClient:  client,
		PollInterval: 50 * time.Millisecond,
		Queues:       []string{worker.QueueReminders},
	})
	w.RegisterHandler(worker.JobTypeOverdueReminder, func(ctx context.Context, job *worker.Job) error {
		processed.Add(1)
		return nil
	})
	w.Start(1)
	defer w.Stop()

	// The job cycles back onto its queue until its process time arrives,
	// so the handler must never fire.
	time.Sleep(300 * time.Millisecond)

	if processed.Load() != 0 {
		t.Errorf("Job scheduled for the future should not have run, got %d runs", processed.Load())
	}
}

func TestStopDrainsWorkers(t *testing.T) {
	client := setupRedis(t)

	w := worker.New(worker.Config{
		RedisClient:  client,
		PollInterval: 50 * time.Millisecond,
	})
	w.Start(2)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
