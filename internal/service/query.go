package service

import (
	"sort"

	"chore-tracker/internal/model"
)

// TaskFilter narrows a task list. Zero-valued fields are ignored; the set
// criteria are AND-combined.
type TaskFilter struct {
	Viewer     *model.User     // role-based visibility
	ActiveOnly bool
	Frequency  model.Frequency // "" means all
	Priority   model.Priority  // "" means all
	AssigneeID string          // owner-only drill-down by helper
}

// FilterTasks applies the filter to the slice, preserving input order.
func FilterTasks(tasks []model.Task, filter TaskFilter) []model.Task {
	result := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if filter.Viewer != nil && !task.VisibleTo(*filter.Viewer) {
			continue
		}
		if filter.ActiveOnly && !task.IsActive {
			continue
		}
		if filter.Frequency != "" && task.Frequency != filter.Frequency {
			continue
		}
		if filter.Priority != "" && task.Priority != filter.Priority {
			continue
		}
		if filter.AssigneeID != "" && !assignedTo(task, filter.AssigneeID) {
			continue
		}
		result = append(result, task)
	}
	return result
}

func assignedTo(task model.Task, userID string) bool {
	if task.AssignedToAll {
		return true
	}
	for _, id := range task.Assignees {
		if id == userID {
			return true
		}
	}
	return false
}

// SortTasksByStatus orders tasks by status severity, then priority. The sort
// is stable, so tasks equal on both keys keep their relative input order.
func SortTasksByStatus(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Status.Rank() != tasks[j].Status.Rank() {
			return tasks[i].Status.Rank() < tasks[j].Status.Rank()
		}
		return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
	})
}

// GroupTasksByStatus partitions tasks by status for section-based display.
// Statuses with no tasks are absent from the map.
func GroupTasksByStatus(tasks []model.Task) map[model.Status][]model.Task {
	groups := make(map[model.Status][]model.Task, 4)
	for _, task := range tasks {
		groups[task.Status] = append(groups[task.Status], task)
	}
	return groups
}

// StatusOrder is the fixed display order of the status sections.
var StatusOrder = []model.Status{
	model.StatusOverdue,
	model.StatusDueToday,
	model.StatusUpcoming,
	model.StatusOK,
}
