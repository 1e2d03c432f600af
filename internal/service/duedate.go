package service

import (
	"time"

	"chore-tracker/internal/model"
)

// Upcoming thresholds in whole days until the due day.
const (
	weeklyUpcomingDays  = 3
	monthlyUpcomingDays = 5
)

// NextDue computes the next due date for a task from its baseline: last
// completion if present, else start date, else creation time. The baseline
// is truncated to the start of its calendar day before arithmetic, so
// time-of-day never shifts the result. Returns nil when the task has no
// baseline at all.
func NextDue(task model.Task) *time.Time {
	baseline := baselineDate(task)
	if baseline == nil {
		return nil
	}

	day := startOfDay(*baseline)
	switch task.Frequency {
	case model.FrequencyWeekly:
		due := day.AddDate(0, 0, 7)
		return &due
	case model.FrequencyMonthly:
		due := addCalendarMonth(day)
		return &due
	default:
		return nil
	}
}

func baselineDate(task model.Task) *time.Time {
	if task.LastCompletedAt != nil {
		return task.LastCompletedAt
	}
	if task.StartDate != nil {
		return task.StartDate
	}
	if !task.CreatedAt.IsZero() {
		created := task.CreatedAt
		return &created
	}
	return nil
}

// addCalendarMonth moves one month forward keeping the day-of-month, clamped
// to the last day when the target month is shorter (Jan 31 -> Feb 28/29).
// Go's AddDate would normalize past the month end instead.
func addCalendarMonth(day time.Time) time.Time {
	year, month, dom := day.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	if last := daysInMonth(month, year); dom > last {
		dom = last
	}
	return time.Date(year, month, dom, 0, 0, 0, 0, day.Location())
}

func daysInMonth(month time.Month, year int) int {
	// Move to next month, roll back a day.
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	firstOfNextMonth := firstOfMonth.AddDate(0, 1, 0)
	lastOfMonth := firstOfNextMonth.AddDate(0, 0, -1)
	return lastOfMonth.Day()
}

// Classify derives the task status from its NextDueAt relative to now, using
// day granularity in now's location. A task without a due date is OK.
func Classify(task model.Task, now time.Time) model.Status {
	if task.NextDueAt == nil {
		return model.StatusOK
	}

	today := startOfDay(now)
	dueDay := startOfDay(task.NextDueAt.In(now.Location()))

	switch {
	case today.After(dueDay):
		return model.StatusOverdue
	case today.Equal(dueDay):
		return model.StatusDueToday
	}

	daysUntilDue := daysBetween(today, dueDay)
	threshold := weeklyUpcomingDays
	if task.Frequency == model.FrequencyMonthly {
		threshold = monthlyUpcomingDays
	}
	if daysUntilDue <= threshold {
		return model.StatusUpcoming
	}
	return model.StatusOK
}
