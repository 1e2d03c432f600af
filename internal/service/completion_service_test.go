package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"chore-tracker/internal/model"
	"chore-tracker/internal/repository"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type testEnv struct {
	taskSvc       *TaskService
	completionSvc *CompletionService
	logRepo       *repository.CompletionLogRepository
	clock         *fixedClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	clock := &fixedClock{now: time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)}
	taskRepo := repository.NewTaskRepository(db)
	logRepo := repository.NewCompletionLogRepository(db)

	return &testEnv{
		taskSvc:       NewTaskService(taskRepo, logRepo, clock),
		completionSvc: NewCompletionService(taskRepo, logRepo, clock, DefaultUndoWindow),
		logRepo:       logRepo,
		clock:         clock,
	}
}

func (e *testEnv) createTask(t *testing.T) *model.Task {
	t.Helper()
	task, err := e.taskSvc.CreateTask(context.Background(), TaskInput{
		Title:         "Полить цветы",
		Frequency:     model.FrequencyWeekly,
		Priority:      model.PriorityMedium,
		AssignedToAll: true,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

var completer = model.User{ID: "u-h1", Name: "Петя", Role: model.RoleHelper}

func TestRecordCompletionUpdatesTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t)

	updated, entry, err := env.completionSvc.RecordCompletion(ctx, task.ID, completer, "полил все", nil)
	if err != nil {
		t.Fatalf("record completion: %v", err)
	}

	if updated.LastCompletedAt == nil || !updated.LastCompletedAt.Equal(env.clock.Now()) {
		t.Errorf("lastCompletedAt = %v, want %v", updated.LastCompletedAt, env.clock.Now())
	}
	if want := env.clock.Now().Add(5 * time.Minute); !entry.UndoUntil.Equal(want) {
		t.Errorf("undoUntil = %v, want %v", entry.UndoUntil, want)
	}
	if entry.CompletedByName != completer.Name {
		t.Errorf("completedByName = %q, want %q", entry.CompletedByName, completer.Name)
	}

	// Derived fields follow the new completion: due again in 7 days.
	if updated.NextDueAt == nil || updated.NextDueAt.Day() != 27 {
		t.Errorf("nextDueAt = %v, want the 27th", updated.NextDueAt)
	}
	if updated.Status != model.StatusOK {
		t.Errorf("status right after completion = %s, want %s", updated.Status, model.StatusOK)
	}
	if len(updated.LastCompletions) != 1 {
		t.Errorf("lastCompletions has %d entries, want 1", len(updated.LastCompletions))
	}
}

func TestRecordThenUndoRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t)

	before := task.LastCompletedAt // nil for a fresh task

	_, entry, err := env.completionSvc.RecordCompletion(ctx, task.ID, completer, "", nil)
	if err != nil {
		t.Fatalf("record completion: %v", err)
	}

	restored, err := env.completionSvc.UndoCompletion(ctx, task.ID, entry.ID)
	if err != nil {
		t.Fatalf("undo completion: %v", err)
	}

	if before == nil && restored.LastCompletedAt != nil {
		t.Errorf("undo must restore lastCompletedAt to nil, got %v", restored.LastCompletedAt)
	}
	if len(restored.LastCompletions) != 0 {
		t.Errorf("lastCompletions after undo = %d entries, want 0", len(restored.LastCompletions))
	}
}

func TestUndoRecomputesLastCompletedFromRemaining(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t)

	_, _, err := env.completionSvc.RecordCompletion(ctx, task.ID, completer, "", nil)
	if err != nil {
		t.Fatalf("first completion: %v", err)
	}
	first := env.clock.Now()

	env.clock.advance(2 * time.Minute)
	_, second, err := env.completionSvc.RecordCompletion(ctx, task.ID, completer, "", nil)
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}

	restored, err := env.completionSvc.UndoCompletion(ctx, task.ID, second.ID)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}

	if restored.LastCompletedAt == nil || restored.LastCompletedAt.Unix() != first.Unix() {
		t.Errorf("lastCompletedAt = %v, want the first completion %v", restored.LastCompletedAt, first)
	}
}

func TestUndoAfterWindowFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t)

	_, entry, err := env.completionSvc.RecordCompletion(ctx, task.ID, completer, "", nil)
	if err != nil {
		t.Fatalf("record completion: %v", err)
	}

	env.clock.advance(6 * time.Minute)

	if _, err := env.completionSvc.UndoCompletion(ctx, task.ID, entry.ID); !errors.Is(err, ErrStaleUndo) {
		t.Fatalf("late undo error = %v, want ErrStaleUndo", err)
	}

	// The entry must survive a rejected undo.
	logs, err := env.logRepo.ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("log entries after rejected undo = %d, want 1", len(logs))
	}
}

func TestUndoAtExactDeadlineFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t)

	_, entry, err := env.completionSvc.RecordCompletion(ctx, task.ID, completer, "", nil)
	if err != nil {
		t.Fatalf("record completion: %v", err)
	}

	env.clock.advance(5 * time.Minute)

	if _, err := env.completionSvc.UndoCompletion(ctx, task.ID, entry.ID); !errors.Is(err, ErrStaleUndo) {
		t.Fatalf("undo at now == undoUntil error = %v, want ErrStaleUndo", err)
	}
}

func TestLastThreeLimits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t)

	check := func(wantLen int) {
		t.Helper()
		recent, err := env.completionSvc.LastThree(ctx, task.ID)
		if err != nil {
			t.Fatalf("lastThree: %v", err)
		}
		if len(recent) != wantLen {
			t.Fatalf("lastThree returned %d entries, want %d", len(recent), wantLen)
		}
		for i := 1; i < len(recent); i++ {
			if recent[i].After(recent[i-1]) {
				t.Fatalf("lastThree not descending: %v", recent)
			}
		}
	}

	check(0)

	for i := 0; i < 10; i++ {
		if _, _, err := env.completionSvc.RecordCompletion(ctx, task.ID, completer, "", nil); err != nil {
			t.Fatalf("completion %d: %v", i, err)
		}
		switch i {
		case 0:
			check(1)
		case 2:
			check(3)
		}
		env.clock.advance(time.Hour)
	}

	check(3)
}

func TestDeleteTaskCascadesToLogs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	task := env.createTask(t)

	for i := 0; i < 3; i++ {
		if _, _, err := env.completionSvc.RecordCompletion(ctx, task.ID, completer, "", nil); err != nil {
			t.Fatalf("completion %d: %v", i, err)
		}
		env.clock.advance(time.Minute)
	}

	if err := env.taskSvc.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}

	logs, err := env.logRepo.ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("orphaned logs after task delete: %d", len(logs))
	}

	if _, err := env.taskSvc.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted task error = %v, want ErrNotFound", err)
	}
}

func TestCompletionNotFoundErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, _, err := env.completionSvc.RecordCompletion(ctx, "no-such-task", completer, "", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("record on missing task error = %v, want ErrNotFound", err)
	}

	task := env.createTask(t)
	if _, err := env.completionSvc.UndoCompletion(ctx, task.ID, "no-such-log"); !errors.Is(err, ErrNotFound) {
		t.Errorf("undo of missing log error = %v, want ErrNotFound", err)
	}

	// A log belonging to another task must not be undoable through this one.
	other := env.createTask(t)
	_, entry, err := env.completionSvc.RecordCompletion(ctx, other.ID, completer, "", nil)
	if err != nil {
		t.Fatalf("record completion: %v", err)
	}
	if _, err := env.completionSvc.UndoCompletion(ctx, task.ID, entry.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-task undo error = %v, want ErrNotFound", err)
	}
}

func TestCreateTaskRejectsBadAssignment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.taskSvc.CreateTask(ctx, TaskInput{
		Title:         "Посуда",
		Frequency:     model.FrequencyWeekly,
		AssignedToAll: true,
		Assignees:     []string{"u-h1"},
	})
	if !errors.Is(err, ErrInvalidAssignment) {
		t.Errorf("all + explicit list error = %v, want ErrInvalidAssignment", err)
	}

	_, err = env.taskSvc.CreateTask(ctx, TaskInput{
		Title:     "Посуда",
		Frequency: model.FrequencyWeekly,
	})
	if !errors.Is(err, ErrInvalidAssignment) {
		t.Errorf("no assignment error = %v, want ErrInvalidAssignment", err)
	}
}
