package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"chore-tracker/internal/model"
)

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	taskSvc *TaskService
	clock   Clock
}

func NewReminderService(taskSvc *TaskService, clock Clock) *ReminderService {
	return &ReminderService{taskSvc: taskSvc, clock: clock}
}

var statusHeadings = map[model.Status]string{
	model.StatusOverdue:  "⚠️ <b>Просроченные</b>",
	model.StatusDueToday: "⏰ <b>На сегодня</b>",
	model.StatusUpcoming: "⏳ <b>Скоро</b>",
	model.StatusOK:       "🟢 <b>Без спешки</b>",
}

// DailySummary renders the member's visible active chores grouped by status.
// An empty task set produces a calm summary, never an error.
func (s *ReminderService) DailySummary(ctx context.Context, user model.User) (string, error) {
	tasks, err := s.taskSvc.ListActive(ctx)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	visible := FilterTasks(tasks, TaskFilter{Viewer: &user, ActiveOnly: true})
	SortTasksByStatus(visible)
	groups := GroupTasksByStatus(visible)

	var builder strings.Builder
	builder.WriteString("🏠 <b>Домашние дела</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	if len(visible) == 0 {
		builder.WriteString("— на тебе сейчас нет дел, отдыхай 🙂")
		return strings.TrimSpace(builder.String()), nil
	}

	for _, status := range StatusOrder {
		section := groups[status]
		if len(section) == 0 {
			continue
		}
		builder.WriteString(statusHeadings[status])
		builder.WriteByte('\n')
		for _, task := range section {
			builder.WriteString(formatTaskLine(task, now))
		}
		builder.WriteByte('\n')
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatTaskLine(task model.Task, now time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("• %s", html.EscapeString(strings.TrimSpace(task.Title))))
	sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", priorityLabel(task.Priority)))

	if task.NextDueAt != nil {
		due := task.NextDueAt.In(now.Location())
		switch task.Status {
		case model.StatusOverdue:
			sb.WriteString(fmt.Sprintf("\n   ⏰ до %s — <b>просрочено</b>", due.Format("2006-01-02")))
		case model.StatusDueToday:
			sb.WriteString("\n   ⏰ срок сегодня")
		default:
			sb.WriteString(fmt.Sprintf("\n   ⏰ до %s · осталось %d дн.", due.Format("2006-01-02"), daysBetween(now, due)))
		}
	}

	if len(task.LastCompletions) > 0 {
		last := task.LastCompletions[0].In(now.Location())
		sb.WriteString(fmt.Sprintf("\n   ✅ Последний раз: %s", last.Format("2006-01-02")))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func priorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "важно"
	case model.PriorityLow:
		return "не срочно"
	default:
		return "обычное"
	}
}
