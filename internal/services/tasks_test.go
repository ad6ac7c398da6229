package services_test

import (
	"errors"
	"testing"

	"taskflow/backend/internal/apperrors"
	"taskflow/backend/internal/models"
	"taskflow/backend/internal/services"

	"github.com/gofrs/uuid"
)

func newTaskService() services.TaskService {
	return services.NewTaskService(services.NewAssignmentService(), nil, nil)
}

func TestCreateTaskWithAssignees(t *testing.T) {
	db := setupTestDB(t)
	svc := newTaskService()
	manager := seedUser(t, db, "kate", models.RoleManager)
	member := seedUser(t, db, "liam", models.RoleMember)

	task, err := svc.CreateTask(db, manager.ID, services.CreateTaskInput{
		Title:       "Draft release notes",
		Priority:    models.PriorityHigh,
		AssigneeIDs: []uuid.UUID{member.ID},
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if task.LifecycleStatus != models.LifecycleToDo {
		t.Errorf("Expected new task in %q, got %q", models.LifecycleToDo, task.LifecycleStatus)
	}

	loaded, err := svc.GetTaskByID(db, task.ID)
	if err != nil {
		t.Fatalf("GetTaskByID failed: %v", err)
	}
	if len(loaded.Assignees) != 1 || loaded.Assignees[0].UserID != member.ID {
		t.Errorf("Expected one assignee %s, got %v", member.ID, loaded.Assignees)
	}
}

func TestCreateTaskByMemberForbidden(t *testing.T) {
	db := setupTestDB(t)
	svc := newTaskService()
	member := seedUser(t, db, "liam", models.RoleMember)

	_, err := svc.CreateTask(db, member.ID, services.CreateTaskInput{Title: "Draft release notes"})
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Errorf("Expected forbidden, got %v", err)
	}

	var count int64
	if err := db.Model(&models.Task{}).Count(&count).Error; err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no task rows, got %d", count)
	}
}

func TestCreateTaskUnknownCreator(t *testing.T) {
	db := setupTestDB(t)
	svc := newTaskService()

	_, err := svc.CreateTask(db, uuid.Must(uuid.NewV4()), services.CreateTaskInput{Title: "Draft release notes"})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	db := setupTestDB(t)
	svc := newTaskService()
	manager := seedUser(t, db, "kate", models.RoleManager)

	_, err := svc.CreateTask(db, manager.ID, services.CreateTaskInput{})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestCreateTaskRejectsUnknownPriority(t *testing.T) {
	db := setupTestDB(t)
	svc := newTaskService()
	manager := seedUser(t, db, "kate", models.RoleManager)

	_, err := svc.CreateTask(db, manager.ID, services.CreateTaskInput{
		Title:    "Draft release notes",
		Priority: "blocker",
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestCreateTaskDefaultsPriority(t *testing.T) {
	db := setupTestDB(t)
	svc := newTaskService()
	manager := seedUser(t, db, "kate", models.RoleManager)

	task, err := svc.CreateTask(db, manager.ID, services.CreateTaskInput{Title: "Draft release notes"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.Priority != models.PriorityMedium {
		t.Errorf("Expected default priority %q, got %q", models.PriorityMedium, task.Priority)
	}
}

func TestGetTaskByIDNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := newTaskService()

	_, err := svc.GetTaskByID(db, uuid.Must(uuid.NewV4()))
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestGetTasksPaginatedDefaults(t *testing.T) {
	db := setupTestDB(t)
	svc := newTaskService()
	manager := seedUser(t, db, "kate", models.RoleManager)
	for i := 0; i < 15; i++ {
		seedTask(t, db, manager.ID, "Task", models.LifecycleToDo)
	}

	tasks, total, err := svc.GetTasksPaginated(db, "nonsense", "sideways", "0", "9999")
	if err != nil {
		t.Fatalf("GetTasksPaginated failed: %v", err)
	}
	if total != 15 {
		t.Errorf("Expected total 15, got %d", total)
	}
	if len(tasks) != 10 {
		t.Errorf("Expected default page size 10, got %d", len(tasks))
	}
}

func TestSoftDeleteClosedTaskRejected(t *testing.T) {
	db := setupTestDB(t)
	svc := newTaskService()
	manager := seedUser(t, db, "kate", models.RoleManager)
	task := seedTask(t, db, manager.ID, "Archived work", models.LifecycleClosed)

	err := svc.SoftDeleteTask(db, task.ID)
	if !errors.Is(err, apperrors.ErrTransitionRejected) {
		t.Errorf("Expected transition rejection, got %v", err)
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	db := setupTestDB(t)
	svc := newTaskService()
	manager := seedUser(t, db, "kate", models.RoleManager)
	task := seedTask(t, db, manager.ID, "Temporary work", models.LifecycleToDo)

	if err := svc.SoftDeleteTask(db, task.ID); err != nil {
		t.Fatalf("SoftDeleteTask failed: %v", err)
	}

	if _, err := svc.GetTaskByID(db, task.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected deleted task to be invisible, got %v", err)
	}

	if err := svc.RestoreTask(db, task.ID); err != nil {
		t.Fatalf("RestoreTask failed: %v", err)
	}

	restored, err := svc.GetTaskByID(db, task.ID)
	if err != nil {
		t.Fatalf("Expected restored task to be visible, got %v", err)
	}
	if restored.ID != task.ID {
		t.Errorf("Restored wrong task: %s", restored.ID)
	}
}

func TestRestoreNotDeletedTask(t *testing.T) {
	db := setupTestDB(t)
	svc := newTaskService()
	manager := seedUser(t, db, "kate", models.RoleManager)
	task := seedTask(t, db, manager.ID, "Live work", models.LifecycleToDo)

	err := svc.RestoreTask(db, task.ID)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestGetTasksByProject(t *testing.T) {
	db := setupTestDB(t)
	svc := newTaskService()
	manager := seedUser(t, db, "kate", models.RoleManager)
	projectID := uuid.Must(uuid.NewV4())
	project := models.Project{ID: projectID, Name: "Q3 launch", Status: models.ProjectActive, CreatedBy: manager.ID}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("Failed to seed project: %v", err)
	}

	inProject := models.Task{
		ID: uuid.Must(uuid.NewV4()), ProjectID: &projectID, CreatedBy: manager.ID,
		Title: "Launch checklist", Priority: models.PriorityMedium,
		LifecycleStatus: models.LifecycleToDo, ReviewStatus: models.ReviewNone, Status: "pending",
	}
	if err := db.Create(&inProject).Error; err != nil {
		t.Fatalf("Failed to seed task: %v", err)
	}
	seedTask(t, db, manager.ID, "Unrelated", models.LifecycleToDo)

	tasks, err := svc.GetTasksByProject(db, projectID)
	if err != nil {
		t.Fatalf("GetTasksByProject failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != inProject.ID {
		t.Errorf("Expected only the project task, got %v", tasks)
	}
}
