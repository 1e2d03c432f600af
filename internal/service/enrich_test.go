package service

import (
	"reflect"
	"testing"
	"time"

	"chore-tracker/internal/model"
)

func TestEnrichTaskOverwritesStaleCache(t *testing.T) {
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	staleDue := now.AddDate(0, 0, -30)

	task := model.Task{
		Frequency:       model.FrequencyWeekly,
		LastCompletedAt: datePtr(now.AddDate(0, 0, -1)),
		// Stale persisted cache that must be ignored.
		NextDueAt:       &staleDue,
		Status:          model.StatusOverdue,
		LastCompletions: []time.Time{staleDue},
	}

	logs := []model.CompletionLog{
		{CompletedAt: now.AddDate(0, 0, -1)},
	}
	enrichTask(&task, logs, now)

	want := startOfDay(now.AddDate(0, 0, 6))
	if task.NextDueAt == nil || !task.NextDueAt.Equal(want) {
		t.Errorf("nextDueAt = %v, want %v", task.NextDueAt, want)
	}
	if task.Status != model.StatusOK {
		t.Errorf("status = %s, want %s", task.Status, model.StatusOK)
	}
	if len(task.LastCompletions) != 1 || !task.LastCompletions[0].Equal(logs[0].CompletedAt) {
		t.Errorf("lastCompletions = %v", task.LastCompletions)
	}
}

func TestEnrichTaskDoesNotTouchLogs(t *testing.T) {
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	task := model.Task{Frequency: model.FrequencyWeekly, CreatedAt: now}

	logs := []model.CompletionLog{
		{ID: "l1", CompletedAt: now.Add(-time.Hour)},
		{ID: "l2", CompletedAt: now.Add(-2 * time.Hour)},
	}
	original := make([]model.CompletionLog, len(logs))
	copy(original, logs)

	enrichTask(&task, logs, now)

	if !reflect.DeepEqual(logs, original) {
		t.Errorf("enrichment mutated the log entries: %v", logs)
	}
}

func TestLastThreeOfTruncates(t *testing.T) {
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	var logs []model.CompletionLog
	for i := 0; i < 5; i++ {
		logs = append(logs, model.CompletionLog{CompletedAt: now.Add(-time.Duration(i) * time.Hour)})
	}

	recent := lastThreeOf(logs)
	if len(recent) != 3 {
		t.Fatalf("got %d entries, want 3", len(recent))
	}
	if !recent[0].Equal(logs[0].CompletedAt) {
		t.Errorf("most recent first, got %v", recent[0])
	}
}
