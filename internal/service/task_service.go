package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"chore-tracker/internal/model"
	"chore-tracker/internal/repository"
)

// TaskInput represents data required to create or edit a chore.
type TaskInput struct {
	Title         string
	Description   string
	Frequency     model.Frequency
	Priority      model.Priority
	AssignedToAll bool
	Assignees     []string
	StartDate     *time.Time
}

// TaskService wraps chore CRUD plus the enrichment pipeline.
type TaskService struct {
	taskRepo *repository.TaskRepository
	logRepo  *repository.CompletionLogRepository
	clock    Clock
}

func NewTaskService(taskRepo *repository.TaskRepository, logRepo *repository.CompletionLogRepository, clock Clock) *TaskService {
	return &TaskService{taskRepo: taskRepo, logRepo: logRepo, clock: clock}
}

func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (*model.Task, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if err := validateAssignment(input.AssignedToAll, input.Assignees); err != nil {
		return nil, err
	}

	task := model.Task{
		ID:            uuid.NewString(),
		Title:         input.Title,
		Description:   input.Description,
		Frequency:     input.Frequency,
		Priority:      input.Priority,
		IsActive:      true,
		AssignedToAll: input.AssignedToAll,
		Assignees:     input.Assignees,
		StartDate:     input.StartDate,
		CreatedAt:     s.clock.Now(),
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}

	enrichTask(&task, nil, s.clock.Now())

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies edits to an existing task and re-runs enrichment.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, input TaskInput) (*model.Task, error) {
	if err := validateAssignment(input.AssignedToAll, input.Assignees); err != nil {
		return nil, err
	}

	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if input.Title != "" {
		task.Title = input.Title
	}
	task.Description = input.Description
	if input.Frequency != "" {
		task.Frequency = input.Frequency
	}
	if input.Priority != "" {
		task.Priority = input.Priority
	}
	task.AssignedToAll = input.AssignedToAll
	task.Assignees = input.Assignees
	task.StartDate = input.StartDate

	if err := s.Enrich(ctx, task); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// SetActive flips the active flag without touching scheduling state.
func (s *TaskService) SetActive(ctx context.Context, taskID string, active bool) (*model.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	task.IsActive = active
	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask returns a single task with derived fields freshly recomputed.
func (s *TaskService) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.Enrich(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task together with all of its completion logs.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := s.loadTask(ctx, taskID); err != nil {
		return err
	}
	return s.taskRepo.Delete(ctx, taskID)
}

// ListActive returns all active tasks, enriched for display. The persisted
// derived fields are ignored on load and recomputed from scratch.
func (s *TaskService) ListActive(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.taskRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.enrichAll(ctx, tasks)
}

// ListAll returns every task, enriched, for owner management views.
func (s *TaskService) ListAll(ctx context.Context) ([]model.Task, error) {
	tasks, err := s.taskRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.enrichAll(ctx, tasks)
}

// Enrich recomputes the derived fields on the task in place.
func (s *TaskService) Enrich(ctx context.Context, task *model.Task) error {
	logs, err := s.logRepo.ListRecentByTask(ctx, task.ID, 3)
	if err != nil {
		return fmt.Errorf("load completion logs: %w", err)
	}
	enrichTask(task, logs, s.clock.Now())
	return nil
}

func (s *TaskService) enrichAll(ctx context.Context, tasks []model.Task) ([]model.Task, error) {
	for i := range tasks {
		if err := s.Enrich(ctx, &tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

func (s *TaskService) loadTask(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// validateAssignment enforces the invariant that a task is assigned either
// to all helpers or to an explicit non-empty list, never both.
func validateAssignment(assignedToAll bool, assignees []string) error {
	if assignedToAll && len(assignees) > 0 {
		return ErrInvalidAssignment
	}
	if !assignedToAll && len(assignees) == 0 {
		return ErrInvalidAssignment
	}
	return nil
}
