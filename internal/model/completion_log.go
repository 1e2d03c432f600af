package model

import "time"

// CompletionLog is one completion event for a task. Entries are immutable
// once created; undo removes the row instead of flagging it.
type CompletionLog struct {
	ID              string `gorm:"primaryKey"`
	TaskID          string `gorm:"index"`
	CompletedAt     time.Time
	CompletedBy     string
	CompletedByName string
	Note            string
	Photos          []string `gorm:"serializer:json"`

	// UndoUntil is fixed at creation time (completion time + undo window).
	UndoUntil time.Time

	CreatedAt time.Time
}
