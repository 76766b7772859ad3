package handler

import (
	"encoding/csv"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskhive/task-system/internal/core/domain"
	"github.com/taskhive/task-system/internal/core/ports"
)

// TaskHandler handles HTTP requests for task operations.
type TaskHandler struct {
	service ports.TaskService
}

func NewTaskHandler(service ports.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// List handles GET /api/tasks.
//
// @Summary      List tasks with filtering and pagination
// @Tags         tasks
// @Produce      json
// @Param        page              query     int     false  "Page number (1-based)"
// @Param        limit             query     int     false  "Page size (max 100)"
// @Param        author_id         query     string  false  "Filter by author"
// @Param        assigned_user_id  query     string  false  "Filter by assignee"
// @Param        status            query     string  false  "Filter by status"
// @Param        order             query     string  false  "Sort order on created_at: asc or desc"
// @Success      200               {object}  listTasksResponse
// @Failure      400               {object}  map[string]string
// @Failure      401               {object}  map[string]string
// @Router       /api/tasks [get]
func (h *TaskHandler) List(c echo.Context) error {
	var req listTasksRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.List(c.Request().Context(), ports.ListTasksInput{
		AuthorID:       req.AuthorID,
		AssignedUserID: req.AssignedUserID,
		Status:         req.Status,
		Page:           req.Page,
		Limit:          req.Limit,
		Order:          req.Order,
	})
	if err != nil {
		return err
	}

	tasks := make([]taskResponse, 0, len(result.Tasks))
	for _, t := range result.Tasks {
		tasks = append(tasks, toTaskResponse(t))
	}

	return c.JSON(http.StatusOK, listTasksResponse{
		Tasks:      tasks,
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
	})
}

// Get handles GET /api/tasks/:id.
//
// @Summary      Get a task by id
// @Tags         tasks
// @Produce      json
// @Param        id   path      string  true  "Task id"
// @Success      200  {object}  taskResponse
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/tasks/{id} [get]
func (h *TaskHandler) Get(c echo.Context) error {
	task, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTaskResponse(task))
}

// Create handles POST /api/tasks.
//
// @Summary      Create a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        body  body      createTaskRequest  true  "Task details"
// @Success      201   {object}  taskResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/tasks [post]
func (h *TaskHandler) Create(c echo.Context) error {
	user, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.service.Create(c.Request().Context(), ports.CreateTaskInput{
		Name:           req.Name,
		AuthorID:       user.ID,
		AssignedUserID: req.AssignedUserID,
		Status:         domain.TaskStatus(req.Status),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toTaskResponse(task))
}

// Update handles PATCH /api/tasks/:id.
//
// @Summary      Update a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Task id"
// @Param        body  body      updateTaskRequest  true  "Fields to change"
// @Success      200   {object}  taskResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/tasks/{id} [patch]
func (h *TaskHandler) Update(c echo.Context) error {
	user, err := ctxSession(c)
	if err != nil {
		return err
	}

	var req updateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	input := ports.UpdateTaskInput{
		Name:           req.Name,
		AssignedUserID: req.AssignedUserID,
	}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		input.Status = &status
	}

	task, err := h.service.Update(c.Request().Context(), user.ID, c.Param("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTaskResponse(task))
}

// Delete handles DELETE /api/tasks/:id.
//
// @Summary      Delete a task
// @Tags         tasks
// @Produce      json
// @Param        id   path  string  true  "Task id"
// @Success      204  "task deleted"
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/tasks/{id} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	user, err := ctxSession(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), user.ID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadAttachment handles POST /api/tasks/:id/attachment.
//
// @Summary      Attach a file to a task
// @Tags         tasks
// @Accept       multipart/form-data
// @Produce      json
// @Param        id    path      string  true  "Task id"
// @Param        file  formData  file    true  "File to attach"
// @Success      200   {object}  taskResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/tasks/{id}/attachment [post]
func (h *TaskHandler) UploadAttachment(c echo.Context) error {
	user, err := ctxSession(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer src.Close()

	task, err := h.service.ReplaceAttachment(c.Request().Context(), user.ID, c.Param("id"), fileHeader.Filename, src)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTaskResponse(task))
}

// DownloadAttachment handles GET /api/tasks/:id/attachment.
//
// @Summary      Download a task's attachment
// @Tags         tasks
// @Produce      application/octet-stream
// @Param        id   path  string  true  "Task id"
// @Success      200  {file}    file
// @Failure      404  {object}  map[string]string
// @Router       /api/tasks/{id}/attachment [get]
func (h *TaskHandler) DownloadAttachment(c echo.Context) error {
	rc, filename, err := h.service.OpenAttachment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, rc)
}

// RemoveAttachment handles DELETE /api/tasks/:id/attachment.
//
// @Summary      Remove a task's attachment
// @Tags         tasks
// @Produce      json
// @Param        id   path  string  true  "Task id"
// @Success      204  "attachment removed"
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/tasks/{id}/attachment [delete]
func (h *TaskHandler) RemoveAttachment(c echo.Context) error {
	user, err := ctxSession(c)
	if err != nil {
		return err
	}

	if err := h.service.RemoveAttachment(c.Request().Context(), user.ID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Export handles GET /api/tasks/export. Tasks are written as CSV straight off
// the repository cursor; the full result set is never materialized in memory
// and the cursor is closed even when the client disconnects mid-stream.
//
// @Summary      Export all tasks as CSV
// @Tags         tasks
// @Produce      text/csv
// @Success      200  {string}  string  "CSV payload"
// @Router       /api/tasks/export [get]
func (h *TaskHandler) Export(c echo.Context) error {
	ctx := c.Request().Context()

	stream, err := h.service.StreamAll(ctx)
	if err != nil {
		return err
	}
	defer stream.Close(ctx)

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="tasks.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	if err := w.Write([]string{"id", "name", "author_id", "assigned_user_id", "status", "filename", "created_at", "updated_at"}); err != nil {
		return err
	}

	for stream.Next(ctx) {
		task, err := stream.Task()
		if err != nil {
			return err
		}
		if err := w.Write(csvRecord(task)); err != nil {
			return err
		}
		w.Flush()
	}
	if err := stream.Err(); err != nil && err != io.EOF {
		return err
	}

	w.Flush()
	return w.Error()
}

func csvRecord(t *domain.Task) []string {
	assignee := ""
	if t.AssignedUserID != nil {
		assignee = *t.AssignedUserID
	}
	filename := ""
	if t.Filename != nil {
		filename = *t.Filename
	}
	return []string{
		t.ID,
		t.Name,
		t.AuthorID,
		assignee,
		string(t.Status),
		filename,
		t.CreatedAt.Format(time.RFC3339),
		t.UpdatedAt.Format(time.RFC3339),
	}
}
