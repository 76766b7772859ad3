package domain

import "time"

// Audit actions recorded in the task_events collection.
const (
	ActionCreated           = "created"
	ActionUpdated           = "updated"
	ActionDeleted           = "deleted"
	ActionAttachmentChanged = "attachment_changed"
	ActionAttachmentRemoved = "attachment_removed"
)

// TaskEvent records a single mutation applied to a task.
type TaskEvent struct {
	TaskID     string
	Action     string
	ActorID    string
	OccurredAt time.Time
}
