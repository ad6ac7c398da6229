package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"taskflow/backend/internal/cache"
	"taskflow/backend/internal/config"
	"taskflow/backend/internal/handlers"
	"taskflow/backend/internal/middleware"
	"taskflow/backend/internal/models"
	"taskflow/backend/internal/monitoring"
	"taskflow/backend/internal/realtime"
	"taskflow/backend/internal/services"
	"taskflow/backend/internal/storage"
	"taskflow/backend/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	redisClient := cache.NewRedisClient(cfg.Redis, cfg.GetRedisAddr())

	var redisCache *cache.RedisCache
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("redis unavailable, running without L2 cache and feed: %v", err)
	} else {
		redisCache = cache.NewRedisCache(redisClient)
	}
	cancelPing()

	appCache := cache.NewMultiLevelCache(redisCache)

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	queue := worker.NewQueue(redisClient)
	enqueuer := worker.NewEnqueuer(queue)

	var hub *realtime.Hub
	var feed services.FeedPublisher
	if redisCache != nil {
		hub = realtime.NewHub(redisClient, cfg.Feed)
		feed = hub
	}

	assignments := services.NewAssignmentService()
	notifications := services.NewNotificationService(feed)
	tasks := services.NewTaskService(assignments, feed, enqueuer)
	cachedTasks := services.NewCachedTaskService(tasks, appCache)
	lifecycle := services.NewLifecycleService(assignments, feed, enqueuer)
	editRequests := services.NewEditRequestService(assignments, feed, enqueuer)
	directEdit := services.NewDirectEditService(assignments, feed, enqueuer)
	projects := services.NewProjectService(feed, enqueuer)
	authService := services.NewAuthService(cfg.Auth)
	registerService := services.NewRegisterService(cfg.Auth)

	bgWorker := worker.New(worker.Config{
		RedisClient:  redisClient,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		Queues:       cfg.Worker.Queues,
	})
	worker.RegisterHandlers(bgWorker, db, notifications)
	bgWorker.Start(cfg.Worker.Concurrency)

	reminderStop := startReminderLoop(queue, cfg.Worker.ReminderInterval)

	metrics := monitoring.NewMetrics()
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)

	router := handlers.NewRouter(handlers.RouterDeps{
		Config:        cfg,
		Auth:          handlers.NewAuthHandler(db, authService, registerService, cfg.Auth.AccessTokenTTL),
		Tasks:         handlers.NewTaskHandler(db, cachedTasks, directEdit),
		Assignments:   handlers.NewAssignmentHandler(db, assignments),
		Lifecycle:     handlers.NewLifecycleHandler(db, lifecycle, metrics),
		EditRequests:  handlers.NewEditRequestHandler(db, editRequests),
		Projects:      handlers.NewProjectHandler(db, projects, cachedTasks),
		Notifications: handlers.NewNotificationHandler(db, notifications),
		Attachments:   handlers.NewAttachmentHandler(db, store, cachedTasks),
		Feed:          handlers.NewFeedHandler(hub, cfg.Feed.HeartbeatInterval),
		Metrics:       metrics,
		RateLimiter:   rateLimiter,
		HealthChecks:  healthChecks(db, redisClient),
	})

	server := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	close(reminderStop)
	bgWorker.Stop()
	rateLimiter.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("redis close: %v", err)
	}
	log.Println("bye")
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Token{},
		&models.Project{},
		&models.Task{},
		&models.TaskAssignee{},
		&models.TaskEditRequest{},
		&models.TaskProgressLog{},
		&models.TaskAttachment{},
		&models.Notification{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

// startReminderLoop periodically enqueues an overdue scan for the worker.
// Returning channel stops the loop when closed.
func startReminderLoop(queue *worker.Queue, interval time.Duration) chan struct{} {
	stop := make(chan struct{})
	if interval <= 0 {
		return stop
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := queue.Enqueue(worker.QueueReminders, worker.JobTypeOverdueReminder, nil); err != nil {
					log.Printf("reminder enqueue failed: %v", err)
				}
			}
		}
	}()
	return stop
}

func healthChecks(db *gorm.DB, redisClient *redis.Client) map[string]monitoring.HealthCheckFunc {
	return map[string]monitoring.HealthCheckFunc{
		"database": func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		},
		"redis": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		},
	}
}
