package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskhive/task-system/internal/core/domain"
	"github.com/taskhive/task-system/internal/core/ports"
)

type stubTaskRepo struct {
	tasks  map[string]*domain.Task
	nextID int

	lastFilter ports.TaskFilter
	pageTasks  []*domain.Task
	pageTotal  int64

	updateErr      error
	releaseChanged *bool // overrides the scan result when set
}

func newStubTaskRepo() *stubTaskRepo {
	return &stubTaskRepo{tasks: make(map[string]*domain.Task)}
}

func (r *stubTaskRepo) Paginate(_ context.Context, filter ports.TaskFilter) ([]*domain.Task, int64, error) {
	r.lastFilter = filter
	return r.pageTasks, r.pageTotal, nil
}

func (r *stubTaskRepo) FindByID(_ context.Context, id string) (*domain.Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *stubTaskRepo) FindByFilename(_ context.Context, filename string) (string, error) {
	for id, t := range r.tasks {
		if t.Filename != nil && *t.Filename == filename {
			return id, nil
		}
	}
	return "", domain.ErrTaskNotFound
}

func (r *stubTaskRepo) Create(_ context.Context, task *domain.Task) (string, error) {
	r.nextID++
	id := fmt.Sprintf("task-%d", r.nextID)
	clone := *task
	clone.ID = id
	clone.CreatedAt = time.Now().UTC()
	clone.UpdatedAt = clone.CreatedAt
	r.tasks[id] = &clone
	return id, nil
}

func (r *stubTaskRepo) Update(_ context.Context, id string, changes ports.TaskChanges) (*domain.Task, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if changes.Name != nil {
		t.Name = *changes.Name
	}
	if changes.ClearAssignee {
		t.AssignedUserID = nil
	} else if changes.AssignedUserID != nil {
		t.AssignedUserID = changes.AssignedUserID
	}
	if changes.Status != nil {
		t.Status = *changes.Status
	}
	if changes.ClearFilename {
		t.Filename = nil
	} else if changes.Filename != nil {
		t.Filename = changes.Filename
	}
	t.UpdatedAt = time.Now().UTC()
	clone := *t
	return &clone, nil
}

func (r *stubTaskRepo) ReleaseFilename(_ context.Context, filename string, newValue *string) (bool, error) {
	if r.releaseChanged != nil {
		return *r.releaseChanged, nil
	}
	for _, t := range r.tasks {
		if t.Filename != nil && *t.Filename == filename {
			t.Filename = newValue
			t.UpdatedAt = time.Now().UTC()
			return true, nil
		}
	}
	return false, nil
}

func (r *stubTaskRepo) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := r.tasks[id]; !ok {
		return false, nil
	}
	delete(r.tasks, id)
	return true, nil
}

func (r *stubTaskRepo) StreamAll(_ context.Context) (ports.TaskStream, error) {
	return nil, nil
}

type recordingDispatcher struct {
	events []ports.TaskEventInput
}

func (d *recordingDispatcher) Enqueue(event ports.TaskEventInput) {
	d.events = append(d.events, event)
}

func (d *recordingDispatcher) lastAction(t *testing.T) string {
	t.Helper()
	if len(d.events) == 0 {
		t.Fatalf("expected an audit event, got none")
	}
	return d.events[len(d.events)-1].Action
}

type memFileStore struct {
	files   map[string][]byte
	saveErr error
	removed []string
}

func newMemFileStore() *memFileStore {
	return &memFileStore{files: make(map[string][]byte)}
}

func (s *memFileStore) Save(filename string, src io.Reader) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	s.files[filename] = data
	return nil
}

func (s *memFileStore) Open(filename string) (io.ReadCloser, error) {
	data, ok := s.files[filename]
	if !ok {
		return nil, fmt.Errorf("no such file %q", filename)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memFileStore) Remove(filename string) error {
	s.removed = append(s.removed, filename)
	delete(s.files, filename)
	return nil
}

func newTestTaskService(repo *stubTaskRepo, files *memFileStore, audit *recordingDispatcher) *TaskService {
	return NewTaskService(repo, &passthroughTx{}, files, audit, zerolog.Nop())
}

func strptr(s string) *string { return &s }

func TestTaskService_List_Defaults(t *testing.T) {
	repo := newStubTaskRepo()
	repo.pageTotal = 25
	svc := newTestTaskService(repo, newMemFileStore(), &recordingDispatcher{})

	result, err := svc.List(context.Background(), ports.ListTasksInput{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if repo.lastFilter.Page != 1 || repo.lastFilter.Limit != 10 || repo.lastFilter.Order != "desc" {
		t.Fatalf("defaults not applied: %+v", repo.lastFilter)
	}
	if result.TotalPages != 3 {
		t.Fatalf("expected 3 pages for 25 rows at limit 10, got %d", result.TotalPages)
	}
}

func TestTaskService_List_LimitCappedAndOrderNormalized(t *testing.T) {
	repo := newStubTaskRepo()
	repo.pageTotal = 200
	svc := newTestTaskService(repo, newMemFileStore(), &recordingDispatcher{})

	result, err := svc.List(context.Background(), ports.ListTasksInput{Page: -3, Limit: 5000, Order: "ASC"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if repo.lastFilter.Limit != 100 {
		t.Fatalf("limit not capped: %d", repo.lastFilter.Limit)
	}
	if repo.lastFilter.Page != 1 {
		t.Fatalf("negative page not normalized: %d", repo.lastFilter.Page)
	}
	// Anything other than the literal "asc" sorts descending.
	if repo.lastFilter.Order != "desc" {
		t.Fatalf("order not normalized: %q", repo.lastFilter.Order)
	}
	if result.TotalPages != 2 {
		t.Fatalf("expected 2 pages for 200 rows at limit 100, got %d", result.TotalPages)
	}
}

func TestTaskService_List_ExactPageBoundary(t *testing.T) {
	repo := newStubTaskRepo()
	repo.pageTotal = 20
	svc := newTestTaskService(repo, newMemFileStore(), &recordingDispatcher{})

	result, err := svc.List(context.Background(), ports.ListTasksInput{Limit: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.TotalPages != 2 {
		t.Fatalf("expected 2 pages for 20 rows at limit 10, got %d", result.TotalPages)
	}
}

func TestTaskService_Create_DefaultsStatus(t *testing.T) {
	repo := newStubTaskRepo()
	audit := &recordingDispatcher{}
	svc := newTestTaskService(repo, newMemFileStore(), audit)

	task, err := svc.Create(context.Background(), ports.CreateTaskInput{Name: "write report", AuthorID: "u1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if task.Status != domain.StatusNew {
		t.Fatalf("expected default status %q, got %q", domain.StatusNew, task.Status)
	}
	if task.ID == "" {
		t.Fatalf("expected a generated id")
	}
	if audit.lastAction(t) != domain.ActionCreated {
		t.Fatalf("expected %q audit event, got %q", domain.ActionCreated, audit.lastAction(t))
	}
}

func TestTaskService_Create_RejectsUnknownStatus(t *testing.T) {
	svc := newTestTaskService(newStubTaskRepo(), newMemFileStore(), &recordingDispatcher{})

	_, err := svc.Create(context.Background(), ports.CreateTaskInput{Name: "x", AuthorID: "u1", Status: "finished"})
	if !errors.Is(err, domain.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestTaskService_Update(t *testing.T) {
	repo := newStubTaskRepo()
	audit := &recordingDispatcher{}
	svc := newTestTaskService(repo, newMemFileStore(), audit)

	created, err := svc.Create(context.Background(), ports.CreateTaskInput{
		Name:           "triage bug",
		AuthorID:       "u1",
		AssignedUserID: strptr("u2"),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	status := domain.StatusInProgress
	updated, err := svc.Update(context.Background(), "u1", created.ID, ports.UpdateTaskInput{
		Status:        &status,
		ClearAssignee: true,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != domain.StatusInProgress {
		t.Fatalf("status not applied: %q", updated.Status)
	}
	if updated.AssignedUserID != nil {
		t.Fatalf("assignee not cleared: %v", *updated.AssignedUserID)
	}
	if audit.lastAction(t) != domain.ActionUpdated {
		t.Fatalf("expected %q audit event, got %q", domain.ActionUpdated, audit.lastAction(t))
	}

	bad := domain.TaskStatus("bogus")
	if _, err := svc.Update(context.Background(), "u1", created.ID, ports.UpdateTaskInput{Status: &bad}); !errors.Is(err, domain.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput for bogus status, got %v", err)
	}
}

func TestTaskService_Delete_RemovesStoredFile(t *testing.T) {
	repo := newStubTaskRepo()
	files := newMemFileStore()
	audit := &recordingDispatcher{}
	svc := newTestTaskService(repo, files, audit)

	created, err := svc.Create(context.Background(), ports.CreateTaskInput{Name: "with file", AuthorID: "u1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.ReplaceAttachment(context.Background(), "u1", created.ID, "report.pdf", strings.NewReader("pdf")); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	if err := svc.Delete(context.Background(), "u1", created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := repo.tasks[created.ID]; ok {
		t.Fatalf("task document still present after delete")
	}
	if len(files.removed) != 1 || files.removed[0] != "report.pdf" {
		t.Fatalf("stored file not removed: %v", files.removed)
	}
	if audit.lastAction(t) != domain.ActionDeleted {
		t.Fatalf("expected %q audit event, got %q", domain.ActionDeleted, audit.lastAction(t))
	}
}

func TestTaskService_Delete_NotFound(t *testing.T) {
	svc := newTestTaskService(newStubTaskRepo(), newMemFileStore(), &recordingDispatcher{})

	if err := svc.Delete(context.Background(), "u1", "missing"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskService_ReplaceAttachment_MovesFilenameBetweenTasks(t *testing.T) {
	repo := newStubTaskRepo()
	files := newMemFileStore()
	svc := newTestTaskService(repo, files, &recordingDispatcher{})

	first, err := svc.Create(context.Background(), ports.CreateTaskInput{Name: "first", AuthorID: "u1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := svc.Create(context.Background(), ports.CreateTaskInput{Name: "second", AuthorID: "u1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.ReplaceAttachment(context.Background(), "u1", first.ID, "shared.txt", strings.NewReader("v1")); err != nil {
		t.Fatalf("first attach failed: %v", err)
	}

	updated, err := svc.ReplaceAttachment(context.Background(), "u1", second.ID, "shared.txt", strings.NewReader("v2"))
	if err != nil {
		t.Fatalf("second attach failed: %v", err)
	}
	if updated.Filename == nil || *updated.Filename != "shared.txt" {
		t.Fatalf("filename not claimed by second task: %+v", updated)
	}
	if repo.tasks[first.ID].Filename != nil {
		t.Fatalf("filename still referenced by the previous owner")
	}
	if string(files.files["shared.txt"]) != "v2" {
		t.Fatalf("stored bytes not replaced: %q", files.files["shared.txt"])
	}
}

func TestTaskService_ReplaceAttachment_ConflictOnClaim(t *testing.T) {
	repo := newStubTaskRepo()
	files := newMemFileStore()
	svc := newTestTaskService(repo, files, &recordingDispatcher{})

	created, err := svc.Create(context.Background(), ports.CreateTaskInput{Name: "x", AuthorID: "u1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	repo.updateErr = domain.ErrFilenameConflict
	_, err = svc.ReplaceAttachment(context.Background(), "u1", created.ID, "busy.txt", strings.NewReader("x"))
	if !errors.Is(err, domain.ErrFilenameConflict) {
		t.Fatalf("expected ErrFilenameConflict, got %v", err)
	}
	if len(files.files) != 0 {
		t.Fatalf("no file should be stored when the claim fails")
	}
}

func TestTaskService_RemoveAttachment(t *testing.T) {
	repo := newStubTaskRepo()
	files := newMemFileStore()
	audit := &recordingDispatcher{}
	svc := newTestTaskService(repo, files, audit)

	created, err := svc.Create(context.Background(), ports.CreateTaskInput{Name: "x", AuthorID: "u1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.ReplaceAttachment(context.Background(), "u1", created.ID, "doc.txt", strings.NewReader("d")); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	if err := svc.RemoveAttachment(context.Background(), "u1", created.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if repo.tasks[created.ID].Filename != nil {
		t.Fatalf("filename reference not cleared")
	}
	if len(files.removed) != 1 || files.removed[0] != "doc.txt" {
		t.Fatalf("stored file not removed: %v", files.removed)
	}
	if audit.lastAction(t) != domain.ActionAttachmentRemoved {
		t.Fatalf("expected %q audit event, got %q", domain.ActionAttachmentRemoved, audit.lastAction(t))
	}
}

func TestTaskService_RemoveAttachment_NoAttachment(t *testing.T) {
	repo := newStubTaskRepo()
	svc := newTestTaskService(repo, newMemFileStore(), &recordingDispatcher{})

	created, err := svc.Create(context.Background(), ports.CreateTaskInput{Name: "bare", AuthorID: "u1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.RemoveAttachment(context.Background(), "u1", created.ID); !errors.Is(err, domain.ErrNoAttachment) {
		t.Fatalf("expected ErrNoAttachment, got %v", err)
	}
}

func TestTaskService_RemoveAttachment_LostRace(t *testing.T) {
	repo := newStubTaskRepo()
	svc := newTestTaskService(repo, newMemFileStore(), &recordingDispatcher{})

	created, err := svc.Create(context.Background(), ports.CreateTaskInput{Name: "x", AuthorID: "u1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	filename := "contested.txt"
	repo.tasks[created.ID].Filename = &filename

	lost := false
	repo.releaseChanged = &lost

	if err := svc.RemoveAttachment(context.Background(), "u1", created.ID); !errors.Is(err, domain.ErrFilenameConflict) {
		t.Fatalf("expected ErrFilenameConflict when the targeted update matched nothing, got %v", err)
	}
}

func TestTaskService_OpenAttachment(t *testing.T) {
	repo := newStubTaskRepo()
	files := newMemFileStore()
	svc := newTestTaskService(repo, files, &recordingDispatcher{})

	created, err := svc.Create(context.Background(), ports.CreateTaskInput{Name: "x", AuthorID: "u1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, _, err := svc.OpenAttachment(context.Background(), created.ID); !errors.Is(err, domain.ErrNoAttachment) {
		t.Fatalf("expected ErrNoAttachment, got %v", err)
	}

	if _, err := svc.ReplaceAttachment(context.Background(), "u1", created.ID, "notes.md", strings.NewReader("hello")); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	rc, name, err := svc.OpenAttachment(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer rc.Close()
	if name != "notes.md" {
		t.Fatalf("unexpected filename %q", name)
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected bytes %q", data)
	}
}
