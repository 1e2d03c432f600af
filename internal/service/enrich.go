package service

import (
	"time"

	"chore-tracker/internal/model"
)

// enrichTask recomputes the derived fields (next due date, status, last three
// completions) onto the task from its stored fields and completion log. It
// never touches the log entries themselves. logs must be ordered most recent
// first, as the log repository returns them.
func enrichTask(task *model.Task, logs []model.CompletionLog, now time.Time) {
	task.NextDueAt = NextDue(*task)
	task.Status = Classify(*task, now)
	task.LastCompletions = lastThreeOf(logs)
}

func lastThreeOf(logs []model.CompletionLog) []time.Time {
	n := len(logs)
	if n > 3 {
		n = 3
	}
	recent := make([]time.Time, 0, n)
	for _, entry := range logs[:n] {
		recent = append(recent, entry.CompletedAt)
	}
	return recent
}
