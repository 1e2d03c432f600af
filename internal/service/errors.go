package service

import "errors"

var (
	// ErrNotFound is returned when a referenced task, log or user does not
	// exist in the store. It usually indicates a logic error upstream, such
	// as an undo arriving after the task was already deleted.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAssignment is returned when a task carries both an explicit
	// assignee list and the assigned-to-all flag, or neither.
	ErrInvalidAssignment = errors.New("assignment must be all helpers or a non-empty list")

	// ErrStaleUndo is returned when an undo arrives after the undo window
	// for the completion has elapsed.
	ErrStaleUndo = errors.New("undo window has elapsed")
)
