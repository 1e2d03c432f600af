package service

import (
	"testing"

	"chore-tracker/internal/model"
)

var (
	owner   = model.User{ID: "u-owner", Name: "Мама", Role: model.RoleOwner}
	helper1 = model.User{ID: "u-h1", Name: "Петя", Role: model.RoleHelper}
	helper2 = model.User{ID: "u-h2", Name: "Маша", Role: model.RoleHelper}
)

func TestHelperSeesOnlyAssignedTasks(t *testing.T) {
	tasks := []model.Task{
		{ID: "t1", Title: "Пылесос", AssignedToAll: true, IsActive: true},
		{ID: "t2", Title: "Посуда", Assignees: []string{helper1.ID}, IsActive: true},
		{ID: "t3", Title: "Мусор", Assignees: []string{helper2.ID}, IsActive: true},
	}

	got := FilterTasks(tasks, TaskFilter{Viewer: &helper1})
	if len(got) != 2 {
		t.Fatalf("helper1 sees %d tasks, want 2", len(got))
	}
	for _, task := range got {
		if task.ID == "t3" {
			t.Errorf("helper1 must not see a task assigned only to helper2")
		}
	}

	if got := FilterTasks(tasks, TaskFilter{Viewer: &owner}); len(got) != 3 {
		t.Errorf("owner sees %d tasks, want all 3", len(got))
	}
}

func TestFiltersAreANDCombined(t *testing.T) {
	tasks := []model.Task{
		{ID: "t1", Frequency: model.FrequencyWeekly, Priority: model.PriorityHigh, IsActive: true, AssignedToAll: true},
		{ID: "t2", Frequency: model.FrequencyWeekly, Priority: model.PriorityLow, IsActive: true, AssignedToAll: true},
		{ID: "t3", Frequency: model.FrequencyMonthly, Priority: model.PriorityHigh, IsActive: true, AssignedToAll: true},
		{ID: "t4", Frequency: model.FrequencyWeekly, Priority: model.PriorityHigh, IsActive: false, AssignedToAll: true},
	}

	got := FilterTasks(tasks, TaskFilter{
		ActiveOnly: true,
		Frequency:  model.FrequencyWeekly,
		Priority:   model.PriorityHigh,
	})
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("combined filter = %v, want just t1", taskIDs(got))
	}
}

func TestFilterByExplicitAssignee(t *testing.T) {
	tasks := []model.Task{
		{ID: "t1", AssignedToAll: true},
		{ID: "t2", Assignees: []string{helper1.ID}},
		{ID: "t3", Assignees: []string{helper2.ID}},
	}

	got := FilterTasks(tasks, TaskFilter{AssigneeID: helper1.ID})
	if len(got) != 2 {
		t.Fatalf("assignee filter = %v, want t1 and t2", taskIDs(got))
	}
}

func TestSortTasksByStatusThenPriority(t *testing.T) {
	tasks := []model.Task{
		{ID: "ok-high", Status: model.StatusOK, Priority: model.PriorityHigh},
		{ID: "due-low", Status: model.StatusDueToday, Priority: model.PriorityLow},
		{ID: "overdue-med", Status: model.StatusOverdue, Priority: model.PriorityMedium},
		{ID: "due-high", Status: model.StatusDueToday, Priority: model.PriorityHigh},
		{ID: "upcoming", Status: model.StatusUpcoming, Priority: model.PriorityMedium},
	}

	SortTasksByStatus(tasks)

	want := []string{"overdue-med", "due-high", "due-low", "upcoming", "ok-high"}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Fatalf("sorted order = %v, want %v", taskIDs(tasks), want)
		}
	}
}

func TestSortIsStableForEqualKeys(t *testing.T) {
	tasks := []model.Task{
		{ID: "first", Status: model.StatusUpcoming, Priority: model.PriorityMedium},
		{ID: "second", Status: model.StatusUpcoming, Priority: model.PriorityMedium},
		{ID: "third", Status: model.StatusUpcoming, Priority: model.PriorityMedium},
	}

	SortTasksByStatus(tasks)

	want := []string{"first", "second", "third"}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Fatalf("stable sort broke input order: %v", taskIDs(tasks))
		}
	}
}

func TestGroupTasksByStatus(t *testing.T) {
	tasks := []model.Task{
		{ID: "t1", Status: model.StatusOverdue},
		{ID: "t2", Status: model.StatusOK},
		{ID: "t3", Status: model.StatusOverdue},
	}

	groups := GroupTasksByStatus(tasks)
	if len(groups[model.StatusOverdue]) != 2 {
		t.Errorf("overdue bucket has %d tasks, want 2", len(groups[model.StatusOverdue]))
	}
	if len(groups[model.StatusOK]) != 1 {
		t.Errorf("ok bucket has %d tasks, want 1", len(groups[model.StatusOK]))
	}
	if len(groups[model.StatusDueToday]) != 0 || len(groups[model.StatusUpcoming]) != 0 {
		t.Errorf("unexpected tasks in empty buckets")
	}
}

func taskIDs(tasks []model.Task) []string {
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	return ids
}
