package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskcal/internal/calendar"
	"taskcal/internal/model"
	"taskcal/internal/repository"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title             string
	Description       string
	Project           string
	Priority          model.Priority
	StartDate         *time.Time
	Deadline          *time.Time
	EstimatedDuration int
	AssigneeIDs       []string
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo    *repository.TaskRepository
	userRepo    *repository.UserRepository
	projectRepo *repository.ProjectRepository
}

func NewTaskService(taskRepo *repository.TaskRepository, userRepo *repository.UserRepository, projectRepo *repository.ProjectRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo, userRepo: userRepo, projectRepo: projectRepo}
}

// CreateTask adds a task owned by manager. Only managers create tasks.
func (s *TaskService) CreateTask(ctx context.Context, manager *model.User, input TaskInput) (*model.Task, error) {
	if !manager.IsManager() {
		return nil, fmt.Errorf("user %s cannot create tasks: %w", manager.ID, calendar.ErrUnauthorized)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if input.StartDate != nil && input.Deadline != nil && input.Deadline.Before(*input.StartDate) {
		return nil, &calendar.InvalidDateError{Field: "deadline", Value: input.Deadline.Format(time.RFC3339)}
	}
	priority := input.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, priority)
	}

	assignees, err := s.userRepo.FindByIDs(ctx, input.AssigneeIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve assignees: %w", err)
	}
	for _, u := range assignees {
		if u.IsManager() {
			return nil, fmt.Errorf("%w: user %s is a manager and cannot be assigned", ErrInvalidInput, u.ID)
		}
	}

	var projectID *string
	if input.Project != "" {
		project, err := s.projectRepo.GetOrCreate(ctx, manager.ID, strings.TrimSpace(input.Project))
		if err != nil {
			return nil, err
		}
		if project != nil {
			projectID = &project.ID
		}
	}

	task := model.Task{
		ProjectID:         projectID,
		CreatedByID:       manager.ID,
		Assignees:         assignees,
		Title:             title,
		Description:       input.Description,
		Status:            model.StatusNotStarted,
		Priority:          priority,
		StartDate:         input.StartDate,
		Deadline:          input.Deadline,
		EstimatedDuration: input.EstimatedDuration,
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListForUser resolves userID and returns the tasks visible to them.
func (s *TaskService) ListForUser(ctx context.Context, userID string) (*model.User, []model.Task, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.taskRepo.ListForUser(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, taskID)
}

// SetStatus changes the status of a task. The creating manager and the
// assignees may do so.
func (s *TaskService) SetStatus(ctx context.Context, taskID, actorID string, status model.Status, now time.Time) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.CreatedByID != actorID && !task.IsAssignedTo(actorID) {
		return nil, fmt.Errorf("user %s cannot change task %s: %w", actorID, taskID, calendar.ErrUnauthorized)
	}
	return s.taskRepo.UpdateStatus(ctx, taskID, status, now)
}

// DeleteTask removes a task. Only its creator may do so.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, actorID string) error {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.CreatedByID != actorID {
		return fmt.Errorf("user %s cannot delete task %s: %w", actorID, taskID, calendar.ErrUnauthorized)
	}
	return s.taskRepo.Delete(ctx, taskID)
}
