package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"chore-tracker/internal/model"
	"chore-tracker/internal/repository"
)

// DefaultUndoWindow is how long a completion stays reversible.
const DefaultUndoWindow = 5 * time.Minute

// CompletionService is the completion ledger: it records completion events,
// undoes them within the undo window, and keeps the task's cached
// last-completed timestamp consistent with the remaining log entries.
type CompletionService struct {
	taskRepo   *repository.TaskRepository
	logRepo    *repository.CompletionLogRepository
	clock      Clock
	undoWindow time.Duration
}

func NewCompletionService(taskRepo *repository.TaskRepository, logRepo *repository.CompletionLogRepository, clock Clock, undoWindow time.Duration) *CompletionService {
	if undoWindow <= 0 {
		undoWindow = DefaultUndoWindow
	}
	return &CompletionService{taskRepo: taskRepo, logRepo: logRepo, clock: clock, undoWindow: undoWindow}
}

// RecordCompletion appends a completion event for the task, stamps the undo
// deadline, updates the task's last-completed cache and re-runs enrichment
// before persisting.
func (s *CompletionService) RecordCompletion(ctx context.Context, taskID string, completedBy model.User, note string, photos []string) (*model.Task, *model.CompletionLog, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	entry := model.CompletionLog{
		ID:              uuid.NewString(),
		TaskID:          task.ID,
		CompletedAt:     now,
		CompletedBy:     completedBy.ID,
		CompletedByName: completedBy.Name,
		Note:            note,
		Photos:          photos,
		UndoUntil:       now.Add(s.undoWindow),
	}
	if err := s.logRepo.Create(ctx, &entry); err != nil {
		return nil, nil, err
	}

	task.LastCompletedAt = &now
	if err := s.refresh(ctx, task, now); err != nil {
		return nil, nil, err
	}

	log.Printf("[info] completion recorded task=%s by=%s undo_until=%s", task.ID, completedBy.ID, entry.UndoUntil.Format(time.RFC3339))
	return task, &entry, nil
}

// UndoCompletion hard-deletes the log entry and recomputes the task's
// last-completed timestamp from the remaining entries. Fails with
// ErrStaleUndo once the entry's undo window has elapsed.
func (s *CompletionService) UndoCompletion(ctx context.Context, taskID, logID string) (*model.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	entry, err := s.logRepo.FindByID(ctx, logID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("completion log %s: %w", logID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if entry.TaskID != task.ID {
		return nil, fmt.Errorf("completion log %s does not belong to task %s: %w", logID, taskID, ErrNotFound)
	}

	now := s.clock.Now()
	if !now.Before(entry.UndoUntil) {
		return nil, fmt.Errorf("completion log %s: %w", logID, ErrStaleUndo)
	}

	if err := s.logRepo.Delete(ctx, logID); err != nil {
		return nil, err
	}

	// The cache must reflect the remaining entries, not simply be cleared.
	remaining, err := s.logRepo.ListByTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		task.LastCompletedAt = nil
	} else {
		last := remaining[0].CompletedAt
		task.LastCompletedAt = &last
	}

	if err := s.refresh(ctx, task, now); err != nil {
		return nil, err
	}

	log.Printf("[info] completion undone task=%s log=%s", task.ID, logID)
	return task, nil
}

// LastThree returns up to three most recent completion timestamps for the
// task, newest first. Recomputed fresh on each call.
func (s *CompletionService) LastThree(ctx context.Context, taskID string) ([]time.Time, error) {
	logs, err := s.logRepo.ListRecentByTask(ctx, taskID, 3)
	if err != nil {
		return nil, err
	}
	return lastThreeOf(logs), nil
}

// CanUndo reports whether the undo window for the entry is still open.
func (s *CompletionService) CanUndo(entry model.CompletionLog) bool {
	return s.clock.Now().Before(entry.UndoUntil)
}

func (s *CompletionService) refresh(ctx context.Context, task *model.Task, now time.Time) error {
	logs, err := s.logRepo.ListRecentByTask(ctx, task.ID, 3)
	if err != nil {
		return fmt.Errorf("load completion logs: %w", err)
	}
	enrichTask(task, logs, now)
	return s.taskRepo.Save(ctx, task)
}

func (s *CompletionService) loadTask(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}
