package ports

import (
	"context"
	"io"

	"github.com/taskhive/task-system/internal/core/domain"
)

// ListTasksInput carries all parameters for the task list endpoint.
type ListTasksInput struct {
	AuthorID       string
	AssignedUserID string
	Status         string
	Page           int
	Limit          int
	Order          string
}

// ListTasksResult is returned by List.
type ListTasksResult struct {
	Tasks      []*domain.Task
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// CreateTaskInput carries all data needed to create a task.
type CreateTaskInput struct {
	Name           string
	AuthorID       string
	AssignedUserID *string
	Status         domain.TaskStatus
}

// UpdateTaskInput is the partial update accepted by the service. Nil fields
// are left unchanged.
type UpdateTaskInput struct {
	Name           *string
	AssignedUserID *string
	ClearAssignee  bool
	Status         *domain.TaskStatus
}

// TaskEventInput is the payload handed to the audit dispatcher.
type TaskEventInput struct {
	TaskID  string
	Action  string
	ActorID string
}

// TaskService defines use-case operations for tasks.
type TaskService interface {
	List(ctx context.Context, input ListTasksInput) (*ListTasksResult, error)
	Get(ctx context.Context, id string) (*domain.Task, error)
	Create(ctx context.Context, input CreateTaskInput) (*domain.Task, error)
	Update(ctx context.Context, actorID, id string, input UpdateTaskInput) (*domain.Task, error)
	Delete(ctx context.Context, actorID, id string) error

	// ReplaceAttachment atomically moves ownership of filename to the task
	// and stores the file bytes. Any task previously holding filename has
	// its reference cleared in the same transaction.
	ReplaceAttachment(ctx context.Context, actorID, id, filename string, src io.Reader) (*domain.Task, error)

	// RemoveAttachment atomically clears the task's filename reference and
	// deletes the stored file.
	RemoveAttachment(ctx context.Context, actorID, id string) error

	// OpenAttachment returns the task's stored file for download along with
	// its filename.
	OpenAttachment(ctx context.Context, id string) (io.ReadCloser, string, error)

	// StreamAll exposes the repository's bulk export cursor.
	StreamAll(ctx context.Context) (TaskStream, error)
}

// AuditService consumes dispatched task events.
type AuditService interface {
	Process(ctx context.Context, input TaskEventInput) error
}
