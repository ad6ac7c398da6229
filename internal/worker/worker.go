package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypeNotificationFanout JobType = "notification_fanout"
	JobTypeOverdueReminder    JobType = "overdue_reminder"
)

// Queue names. Notifications are latency-sensitive; reminders are not.
const (
	QueueNotifications = "notifications"
	QueueReminders     = "reminders"
	queueRetry         = "retry_queue"
	queueDead          = "dead_queue"
)

type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	MaxTries  int             `json:"max_tries"`
	CreatedAt time.Time       `json:"created_at"`
	ProcessAt time.Time       `json:"process_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

type Worker struct {
	client   *redis.Client
	handlers map[JobType]JobHandler
	queues   []string
	poll     time.Duration
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type Config struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	Queues       []string
}

func New(config Config) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	queues := config.Queues
	if len(queues) == 0 {
		queues = []string{QueueNotifications, queueRetry, QueueReminders}
	}
	poll := config.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}

	return &Worker{
		client:   config.RedisClient,
		handlers: make(map[JobType]JobHandler),
		queues:   queues,
		poll:     poll,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

func (w *Worker) Start(concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	log.Printf("worker: starting %d goroutines on queues %v", concurrency, w.queues)

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.loop()
	}
}

func (w *Worker) Stop() {
	log.Println("worker: stopping")
	w.cancel()
	w.wg.Wait()
	log.Println("worker: stopped")
}

func (w *Worker) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			if err := w.processNext(); err != nil {
				if w.ctx.Err() != nil {
					return
				}
				log.Printf("worker: %v", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) processNext() error {
	result, err := w.client.BLPop(w.ctx, w.poll, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("pop failed: %w", err)
	}
	if len(result) < 2 {
		return fmt.Errorf("malformed pop result")
	}

	queue, jobData := result[0], result[1]

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return fmt.Errorf("unmarshal job: %w", err)
	}

	if time.Now().Before(job.ProcessAt) {
		return w.push(queue, &job)
	}

	return w.execute(&job)
}

func (w *Worker) execute(job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no handler for job type %q", job.Type)
	}

	ctx, cancel := context.WithTimeout(w.ctx, 30*time.Second)
	defer cancel()

	err := handler(ctx, job)
	if err == nil {
		return nil
	}

	job.Attempts++
	if job.Attempts < job.MaxTries {
		delay := time.Duration(1<<job.Attempts) * time.Minute
		job.ProcessAt = time.Now().Add(delay)
		log.Printf("worker: job %s failed (attempt %d/%d), retrying in %s: %v",
			job.ID, job.Attempts, job.MaxTries, delay, err)
		return w.push(queueRetry, job)
	}

	log.Printf("worker: job %s failed permanently after %d attempts: %v", job.ID, job.Attempts, err)
	return w.moveToDeadQueue(job, err)
}

func (w *Worker) push(queue string, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return w.client.RPush(w.ctx, queue, data).Err()
}

func (w *Worker) moveToDeadQueue(job *Job, jobErr error) error {
	dead := map[string]interface{}{
		"original_job": job,
		"error":        jobErr.Error(),
		"failed_at":    time.Now(),
	}
	data, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("marshal dead job: %w", err)
	}
	return w.client.RPush(w.ctx, queueDead, data).Err()
}

// Queue is the producer side, used by the HTTP process to hand work to the
// worker pool.
type Queue struct {
	client *redis.Client
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Enqueue(queue string, jobType JobType, payload interface{}) error {
	return q.EnqueueAt(queue, jobType, payload, time.Now())
}

func (q *Queue) EnqueueAt(queue string, jobType JobType, payload interface{}, processAt time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	jobID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	job := &Job{
		ID:        jobID.String(),
		Type:      jobType,
		Payload:   raw,
		MaxTries:  3,
		CreatedAt: time.Now(),
		ProcessAt: processAt,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return q.client.RPush(ctx, queue, data).Err()
}

func (q *Queue) Size(queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return q.client.LLen(ctx, queue).Result()
}
