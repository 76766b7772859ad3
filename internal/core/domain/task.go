package domain

import (
	"errors"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	StatusNew        TaskStatus = "new"
	StatusInProgress TaskStatus = "in-progress"
	StatusOnHold     TaskStatus = "on-hold"
	StatusCompleted  TaskStatus = "completed"
	StatusCanceled   TaskStatus = "canceled"
	StatusArchived   TaskStatus = "archived"
)

var ErrInvalidCredentials = errors.New("invalid email or password")
var ErrUserNotFound = errors.New("user not found")
var ErrTaskNotFound = errors.New("task not found")
var ErrMalformedInput = errors.New("malformed input")
var ErrFilenameConflict = errors.New("filename already in use")
var ErrNoAttachment = errors.New("task has no attachment")
var ErrSessionNotFound = errors.New("session not found")
var ErrForbidden = errors.New("access forbidden")

// ValidStatus reports whether s is one of the known task statuses.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case StatusNew, StatusInProgress, StatusOnHold, StatusCompleted, StatusCanceled, StatusArchived:
		return true
	}
	return false
}

// Task is the core aggregate root. Filename, when non-nil, references the
// stored attachment and is unique across all tasks at any instant.
type Task struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	AuthorID       string     `json:"author_id"`
	AssignedUserID *string    `json:"assigned_user_id"`
	Status         TaskStatus `json:"status"`
	Filename       *string    `json:"filename"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
