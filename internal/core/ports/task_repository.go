package ports

import (
	"context"

	"github.com/taskhive/task-system/internal/core/domain"
)

// TaskFilter carries all query parameters for paginating tasks.
// Empty string fields are omitted from the query entirely; absence is not the
// same as matching null.
type TaskFilter struct {
	AuthorID       string // optional: filter by author
	AssignedUserID string // optional: filter by assignee
	Status         string // optional: filter by task status
	Page           int    // 1-based
	Limit          int    // max rows per page (capped at 100 by the service)
	Order          string // "asc" or "desc" on created_at; default desc
}

// TaskChanges is a partial update. Nil fields are left untouched; updated_at
// is always refreshed, even when every field is nil.
type TaskChanges struct {
	Name           *string
	AssignedUserID *string
	Status         *domain.TaskStatus
	Filename       *string
	// ClearAssignee / ClearFilename set the corresponding field to null
	// rather than leaving it unchanged.
	ClearAssignee bool
	ClearFilename bool
}

// TaskStream is a lazy, forward-only, single-pass sequence of tasks backed by
// a database cursor. Close must be safe to call after partial consumption.
type TaskStream interface {
	Next(ctx context.Context) bool
	Task() (*domain.Task, error)
	Err() error
	Close(ctx context.Context) error
}

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	// Paginate returns one page of tasks matching filter plus the full
	// filtered count. The count is computed independently of the page
	// slice, so it may exceed the returned slice length on the last page.
	Paginate(ctx context.Context, filter TaskFilter) ([]*domain.Task, int64, error)

	// FindByID returns the task or domain.ErrTaskNotFound. A structurally
	// invalid id fails with domain.ErrMalformedInput instead of absence.
	FindByID(ctx context.Context, id string) (*domain.Task, error)

	// FindByFilename returns the id of the task currently owning filename,
	// using a sparse projection. Absence is domain.ErrTaskNotFound.
	FindByFilename(ctx context.Context, filename string) (string, error)

	// Create inserts the task, stamping created_at/updated_at server-side,
	// and returns the new id.
	Create(ctx context.Context, task *domain.Task) (string, error)

	// Update applies a partial change set and returns the post-update
	// document, or domain.ErrTaskNotFound when no document matched.
	Update(ctx context.Context, id string, changes TaskChanges) (*domain.Task, error)

	// ReleaseFilename finds the task currently holding filename and sets
	// its filename field to newValue (nil clears it) in one server-side
	// operation. It reports whether a document was actually changed; false
	// means the caller lost the race for the filename.
	ReleaseFilename(ctx context.Context, filename string, newValue *string) (bool, error)

	// Delete removes the task and reports whether a document was removed.
	Delete(ctx context.Context, id string) (bool, error)

	// StreamAll opens a cursor over every task for bulk export. The caller
	// owns the stream and must Close it, including on early termination.
	StreamAll(ctx context.Context) (TaskStream, error)
}

// AuditRepository persists task mutation events.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.TaskEvent) error
}
