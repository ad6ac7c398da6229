package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/handlers"
	"taskflow/backend/internal/middleware"
	"taskflow/backend/internal/models"
	"taskflow/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type MockLifecycleService struct {
	result      services.TransitionResult
	err         error
	lastAction  string
	logProgress error
	history     []models.TaskProgressLog
}

func (m *MockLifecycleService) StartWork(db *gorm.DB, taskID, userID uuid.UUID, note string) (services.TransitionResult, error) {
	m.lastAction = "start_work"
	return m.result, m.err
}

func (m *MockLifecycleService) RequestReview(db *gorm.DB, taskID, userID uuid.UUID) (services.TransitionResult, error) {
	m.lastAction = "request_review"
	return m.result, m.err
}

func (m *MockLifecycleService) ApproveAndClose(db *gorm.DB, taskID, reviewerID uuid.UUID, comments string) (services.TransitionResult, error) {
	m.lastAction = "approve_and_close"
	return m.result, m.err
}

func (m *MockLifecycleService) RejectAndReopen(db *gorm.DB, taskID, reviewerID uuid.UUID, comments string) (services.TransitionResult, error) {
	m.lastAction = "reject_and_reopen"
	return m.result, m.err
}

func (m *MockLifecycleService) Reopen(db *gorm.DB, taskID, userID uuid.UUID) (services.TransitionResult, error) {
	m.lastAction = "reopen"
	return m.result, m.err
}

func (m *MockLifecycleService) LogProgress(db *gorm.DB, taskID, userID uuid.UUID, status, note string) error {
	m.lastAction = "log_progress"
	return m.logProgress
}

func (m *MockLifecycleService) History(db *gorm.DB, taskID uuid.UUID) ([]models.TaskProgressLog, error) {
	return m.history, m.err
}

func setupLifecycleRouter(mock *MockLifecycleService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewLifecycleHandler(nil, mock, nil)
	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uuid.Must(uuid.NewV4()).String())
		c.Next()
	})

	router.POST("/tasks/:id/start", handler.StartWork)
	router.POST("/tasks/:id/request-review", handler.RequestReview)
	router.POST("/tasks/:id/approve", handler.ApproveAndClose)
	router.POST("/tasks/:id/reject", handler.RejectAndReopen)
	router.POST("/tasks/:id/progress", handler.LogProgress)
	router.GET("/tasks/:id/history", handler.History)
	return router
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStartWorkSuccess(t *testing.T) {
	mock := &MockLifecycleService{result: services.TransitionResult{Success: true}}
	router := setupLifecycleRouter(mock)
	taskID := uuid.Must(uuid.NewV4())

	w := postJSON(router, "/tasks/"+taskID.String()+"/start", map[string]string{"note": "on it"})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if mock.lastAction != "start_work" {
		t.Errorf("Expected start_work to be called, got %q", mock.lastAction)
	}
}

func TestStartWorkGuardRejectionIs422(t *testing.T) {
	mock := &MockLifecycleService{result: services.TransitionResult{
		Success: false,
		Message: "only an assignee of this task may perform this action",
	}}
	router := setupLifecycleRouter(mock)
	taskID := uuid.Must(uuid.NewV4())

	w := postJSON(router, "/tasks/"+taskID.String()+"/start", nil)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}

	var body services.TransitionResult
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Success {
		t.Error("Expected success=false in response")
	}
	if body.Message != "only an assignee of this task may perform this action" {
		t.Errorf("Guard message must be surfaced verbatim, got %q", body.Message)
	}
}

func TestStartWorkInvalidTaskID(t *testing.T) {
	mock := &MockLifecycleService{}
	router := setupLifecycleRouter(mock)

	w := postJSON(router, "/tasks/not-a-uuid/start", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestApproveServiceErrorMapsStatus(t *testing.T) {
	mock := &MockLifecycleService{err: apperrors.ErrNotFound.WithMessage("task not found")}
	router := setupLifecycleRouter(mock)
	taskID := uuid.Must(uuid.NewV4())

	w := postJSON(router, "/tasks/"+taskID.String()+"/approve", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestRejectRequiresBody(t *testing.T) {
	mock := &MockLifecycleService{result: services.TransitionResult{Success: true}}
	router := setupLifecycleRouter(mock)
	taskID := uuid.Must(uuid.NewV4())

	req, _ := http.NewRequest("POST", "/tasks/"+taskID.String()+"/reject", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestLogProgressRequiresStatusField(t *testing.T) {
	mock := &MockLifecycleService{}
	router := setupLifecycleRouter(mock)
	taskID := uuid.Must(uuid.NewV4())

	w := postJSON(router, "/tasks/"+taskID.String()+"/progress", map[string]string{"note": "no status"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestLogProgressCreated(t *testing.T) {
	mock := &MockLifecycleService{}
	router := setupLifecycleRouter(mock)
	taskID := uuid.Must(uuid.NewV4())

	w := postJSON(router, "/tasks/"+taskID.String()+"/progress", map[string]string{"status": "blocked"})

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d", http.StatusCreated, w.Code)
	}
}

func TestHistoryReturnsLogs(t *testing.T) {
	mock := &MockLifecycleService{history: []models.TaskProgressLog{
		{ID: uuid.Must(uuid.NewV4()), Status: "in_progress"},
	}}
	router := setupLifecycleRouter(mock)
	taskID := uuid.Must(uuid.NewV4())

	req, _ := http.NewRequest("GET", "/tasks/"+taskID.String()+"/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var body map[string][]models.TaskProgressLog
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if len(body["history"]) != 1 {
		t.Errorf("Expected 1 history entry, got %d", len(body["history"]))
	}
}
