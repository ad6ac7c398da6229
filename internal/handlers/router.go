package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"taskflow/backend/internal/config"
	"taskflow/backend/internal/middleware"
	"taskflow/backend/internal/monitoring"
)

// RouterDeps collects everything the HTTP surface needs. Handlers are
// constructed by the caller so tests can swap in mock services.
type RouterDeps struct {
	Config        *config.Config
	Auth          *AuthHandler
	Tasks         *TaskHandler
	Assignments   *AssignmentHandler
	Lifecycle     *LifecycleHandler
	EditRequests  *EditRequestHandler
	Projects      *ProjectHandler
	Notifications *NotificationHandler
	Attachments   *AttachmentHandler
	Feed          *FeedHandler
	Metrics       *monitoring.Metrics
	RateLimiter   *middleware.RateLimiter
	HealthChecks  map[string]monitoring.HealthCheckFunc
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Middleware())
	}

	router.GET("/health", monitoring.HealthHandler(deps.HealthChecks))
	if deps.Metrics != nil {
		router.GET("/metrics", deps.Metrics.Handler())
	}

	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/register", deps.Auth.Register)
		auth.POST("/token", deps.Auth.Token)
		auth.POST("/refresh", deps.Auth.Refresh)
		auth.POST("/logout", deps.Auth.Logout)
	}

	secured := api.Group("")
	secured.Use(middleware.Auth(deps.Config.Auth.JWTSecret))

	tasks := secured.Group("/tasks")
	{
		tasks.GET("", deps.Tasks.GetTasks)
		tasks.GET("/:id", deps.Tasks.GetTaskByID)
		tasks.DELETE("/:id", deps.Tasks.DeleteTask)

		tasks.POST("/:id/assignees", deps.Assignments.Assign)
		tasks.PUT("/:id/assignees", deps.Assignments.ReplaceAll)
		tasks.DELETE("/:id/assignees/:user_id", deps.Assignments.Unassign)
		tasks.GET("/:id/assignees", deps.Assignments.ListForTask)

		tasks.POST("/:id/start", deps.Lifecycle.StartWork)
		tasks.POST("/:id/request-review", deps.Lifecycle.RequestReview)
		tasks.POST("/:id/progress", deps.Lifecycle.LogProgress)
		tasks.GET("/:id/history", deps.Lifecycle.History)

		tasks.POST("/:id/edit-requests", deps.EditRequests.Create)
		tasks.GET("/:id/edit-requests", deps.EditRequests.ListForTask)
		tasks.GET("/:id/edit-requests/history", deps.EditRequests.History)

		tasks.POST("/:id/attachments", deps.Attachments.Upload)
		tasks.GET("/:id/attachments", deps.Attachments.List)
	}

	attachments := secured.Group("/attachments")
	{
		attachments.GET("/:attachment_id", deps.Attachments.Download)
		attachments.DELETE("/:attachment_id", deps.Attachments.Delete)
	}

	projects := secured.Group("/projects")
	{
		projects.POST("", deps.Projects.Create)
		projects.GET("", deps.Projects.List)
		projects.GET("/:id", deps.Projects.Get)
		projects.GET("/:id/tasks", deps.Projects.Tasks)
	}

	notifications := secured.Group("/notifications")
	{
		notifications.GET("", deps.Notifications.List)
		notifications.GET("/unread-count", deps.Notifications.UnreadCount)
		notifications.POST("/:id/read", deps.Notifications.MarkRead)
		notifications.POST("/read-all", deps.Notifications.MarkAllRead)
	}

	secured.GET("/users/:user_id/tasks", deps.Assignments.ListTasksForUser)
	secured.GET("/feed/:table", deps.Feed.Stream)

	// Task creation, review decisions, edit moderation and project lifecycle
	// are manager operations. Services re-check the role so direct calls stay
	// safe.
	privileged := secured.Group("")
	privileged.Use(middleware.RequirePrivileged())
	{
		privileged.POST("/tasks", deps.Tasks.CreateTask)
		privileged.POST("/tasks/:id/approve", deps.Lifecycle.ApproveAndClose)
		privileged.POST("/tasks/:id/reject", deps.Lifecycle.RejectAndReopen)
		privileged.POST("/tasks/:id/reopen", deps.Lifecycle.Reopen)
		privileged.POST("/tasks/:id/restore", deps.Tasks.RestoreTask)
		privileged.PATCH("/tasks/:id", deps.Tasks.DirectEdit)

		privileged.GET("/edit-requests/pending", deps.EditRequests.ListPending)
		privileged.POST("/edit-requests/:request_id/approve", deps.EditRequests.Approve)
		privileged.POST("/edit-requests/:request_id/reject", deps.EditRequests.Reject)

		privileged.POST("/projects/:id/close", deps.Projects.Close)
		privileged.POST("/projects/:id/reopen", deps.Projects.Reopen)
	}

	return router
}
