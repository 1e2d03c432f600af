package model

import "time"

// Frequency is how often a chore recurs.
type Frequency string

const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Priority of a chore.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the sort rank of the priority (High=0, Medium=1, Low=2).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Status classifies a task relative to its next due date.
type Status string

const (
	StatusOverdue  Status = "overdue"
	StatusDueToday Status = "due_today"
	StatusUpcoming Status = "upcoming"
	StatusOK       Status = "ok"
)

// Rank returns the display severity: Overdue(0) < DueToday(1) < Upcoming(2) < OK(3).
func (s Status) Rank() int {
	switch s {
	case StatusOverdue:
		return 0
	case StatusDueToday:
		return 1
	case StatusUpcoming:
		return 2
	default:
		return 3
	}
}

// Task is a recurring household chore.
//
// NextDueAt, Status and LastCompletions are a persisted render cache: they
// are recomputed from the stored fields plus the completion log on every
// enrichment pass and are never treated as authoritative on their own.
type Task struct {
	ID          string `gorm:"primaryKey"`
	Title       string
	Description string
	Frequency   Frequency `gorm:"index"`
	Priority    Priority  `gorm:"index"`
	IsActive    bool      `gorm:"default:true"`

	// Assignment is either "all helpers" or an explicit list, never both.
	AssignedToAll bool
	Assignees     []string `gorm:"serializer:json"`

	StartDate       *time.Time
	LastCompletedAt *time.Time

	NextDueAt       *time.Time
	Status          Status
	LastCompletions []time.Time `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// VisibleTo reports whether the given user may see the task. The owner sees
// everything; a helper only tasks assigned to everyone or to them explicitly.
func (t Task) VisibleTo(user User) bool {
	if user.Role == RoleOwner {
		return true
	}
	if t.AssignedToAll {
		return true
	}
	for _, id := range t.Assignees {
		if id == user.ID {
			return true
		}
	}
	return false
}
