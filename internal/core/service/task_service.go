package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/taskhive/task-system/internal/core/domain"
	"github.com/taskhive/task-system/internal/core/ports"
	"github.com/taskhive/task-system/internal/pkg/metrics"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// FileStore abstracts the attachment storage collaborator. Only the filename
// reference lives in the task document; bytes live behind this interface.
type FileStore interface {
	Save(filename string, src io.Reader) error
	Open(filename string) (io.ReadCloser, error)
	Remove(filename string) error
}

// AuditDispatcher accepts task mutation events for asynchronous recording.
type AuditDispatcher interface {
	Enqueue(event ports.TaskEventInput)
}

// TaskService implements task use cases on top of the task repository.
type TaskService struct {
	repo  ports.TaskRepository
	tx    ports.TxRunner
	files FileStore
	audit AuditDispatcher
	log   zerolog.Logger
}

func NewTaskService(repo ports.TaskRepository, tx ports.TxRunner, files FileStore, audit AuditDispatcher, log zerolog.Logger) *TaskService {
	return &TaskService{repo: repo, tx: tx, files: files, audit: audit, log: log}
}

// List returns one page of tasks plus the full filtered count.
func (s *TaskService) List(ctx context.Context, input ports.ListTasksInput) (*ports.ListTasksResult, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	order := input.Order
	if order != "asc" {
		order = "desc"
	}

	tasks, total, err := s.repo.Paginate(ctx, ports.TaskFilter{
		AuthorID:       input.AuthorID,
		AssignedUserID: input.AssignedUserID,
		Status:         input.Status,
		Page:           page,
		Limit:          limit,
		Order:          order,
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}

	return &ports.ListTasksResult{
		Tasks:      tasks,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (*domain.Task, error) {
	return s.repo.FindByID(ctx, id)
}

// Create inserts a new task. Status defaults to "new" when not provided.
func (s *TaskService) Create(ctx context.Context, input ports.CreateTaskInput) (*domain.Task, error) {
	status := input.Status
	if status == "" {
		status = domain.StatusNew
	}
	if !domain.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrMalformedInput, status)
	}

	id, err := s.repo.Create(ctx, &domain.Task{
		Name:           input.Name,
		AuthorID:       input.AuthorID,
		AssignedUserID: input.AssignedUserID,
		Status:         status,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create task")
		return nil, err
	}

	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.TasksCreatedTotal.WithLabelValues(string(status)).Inc()
	s.audit.Enqueue(ports.TaskEventInput{TaskID: id, Action: domain.ActionCreated, ActorID: input.AuthorID})
	s.log.Info().Str("task_id", id).Str("author_id", input.AuthorID).Msg("task created")
	return task, nil
}

// Update applies a partial change set. An empty input still refreshes
// updated_at.
func (s *TaskService) Update(ctx context.Context, actorID, id string, input ports.UpdateTaskInput) (*domain.Task, error) {
	if input.Status != nil && !domain.ValidStatus(*input.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrMalformedInput, *input.Status)
	}

	task, err := s.repo.Update(ctx, id, ports.TaskChanges{
		Name:           input.Name,
		AssignedUserID: input.AssignedUserID,
		ClearAssignee:  input.ClearAssignee,
		Status:         input.Status,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Enqueue(ports.TaskEventInput{TaskID: id, Action: domain.ActionUpdated, ActorID: actorID})
	return task, nil
}

// Delete removes the task and, when it held an attachment, the stored file.
// The file removal is best-effort: the document is the source of truth.
func (s *TaskService) Delete(ctx context.Context, actorID, id string) error {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrTaskNotFound
	}

	if task.Filename != nil {
		if err := s.files.Remove(*task.Filename); err != nil {
			s.log.Warn().Err(err).Str("task_id", id).Str("filename", *task.Filename).Msg("failed to remove attachment file")
		}
	}

	s.audit.Enqueue(ports.TaskEventInput{TaskID: id, Action: domain.ActionDeleted, ActorID: actorID})
	s.log.Info().Str("task_id", id).Msg("task deleted")
	return nil
}

// ReplaceAttachment moves ownership of filename to the task. The release of
// the filename from its current owner and the claim by the target task happen
// inside one transaction, so two concurrent claims cannot both succeed.
func (s *TaskService) ReplaceAttachment(ctx context.Context, actorID, id, filename string, src io.Reader) (*domain.Task, error) {
	var updated *domain.Task

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.FindByID(txCtx, id); err != nil {
			return err
		}

		// Clear the filename from whichever other task currently holds it;
		// absence means the filename is free.
		owner, err := s.repo.FindByFilename(txCtx, filename)
		if err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
			return fmt.Errorf("check filename owner: %w", err)
		}
		if err == nil && owner != id {
			if _, err := s.repo.ReleaseFilename(txCtx, filename, nil); err != nil {
				return fmt.Errorf("release filename: %w", err)
			}
		}

		task, err := s.repo.Update(txCtx, id, ports.TaskChanges{Filename: &filename})
		if err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		metrics.AttachmentOpsTotal.WithLabelValues("replace", "error").Inc()
		return nil, err
	}

	if err := s.files.Save(filename, src); err != nil {
		s.log.Error().Err(err).Str("task_id", id).Str("filename", filename).Msg("failed to store attachment file")
		metrics.AttachmentOpsTotal.WithLabelValues("replace", "error").Inc()
		return nil, err
	}

	metrics.AttachmentOpsTotal.WithLabelValues("replace", "ok").Inc()
	s.audit.Enqueue(ports.TaskEventInput{TaskID: id, Action: domain.ActionAttachmentChanged, ActorID: actorID})
	return updated, nil
}

// RemoveAttachment clears the task's filename reference with a targeted
// atomic update and deletes the stored file. A false result from the targeted
// update means another operation took the filename first.
func (s *TaskService) RemoveAttachment(ctx context.Context, actorID, id string) error {
	var filename string

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		task, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if task.Filename == nil || *task.Filename == "" {
			return domain.ErrNoAttachment
		}
		filename = *task.Filename

		changed, err := s.repo.ReleaseFilename(txCtx, filename, nil)
		if err != nil {
			return fmt.Errorf("release filename: %w", err)
		}
		if !changed {
			return domain.ErrFilenameConflict
		}
		return nil
	})
	if err != nil {
		metrics.AttachmentOpsTotal.WithLabelValues("remove", "error").Inc()
		return err
	}

	if err := s.files.Remove(filename); err != nil {
		s.log.Warn().Err(err).Str("task_id", id).Str("filename", filename).Msg("failed to remove attachment file")
	}

	metrics.AttachmentOpsTotal.WithLabelValues("remove", "ok").Inc()
	s.audit.Enqueue(ports.TaskEventInput{TaskID: id, Action: domain.ActionAttachmentRemoved, ActorID: actorID})
	return nil
}

// OpenAttachment returns the stored file for the task's current filename.
func (s *TaskService) OpenAttachment(ctx context.Context, id string) (io.ReadCloser, string, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if task.Filename == nil || *task.Filename == "" {
		return nil, "", domain.ErrNoAttachment
	}

	rc, err := s.files.Open(*task.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("open attachment: %w", err)
	}
	return rc, *task.Filename, nil
}

// StreamAll opens the bulk export cursor. The caller owns the stream.
func (s *TaskService) StreamAll(ctx context.Context) (ports.TaskStream, error) {
	return s.repo.StreamAll(ctx)
}
