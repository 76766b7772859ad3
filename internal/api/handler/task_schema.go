package handler

import (
	"time"

	"github.com/taskhive/task-system/internal/core/domain"
)

// --- Request / Response types ---

type listTasksRequest struct {
	Page           int    `query:"page"             validate:"omitempty,min=1"`
	Limit          int    `query:"limit"            validate:"omitempty,min=1"`
	AuthorID       string `query:"author_id"`
	AssignedUserID string `query:"assigned_user_id"`
	Status         string `query:"status"           validate:"omitempty,oneof=new in-progress on-hold completed canceled archived"`
	Order          string `query:"order"            validate:"omitempty,oneof=asc desc"`
}

type createTaskRequest struct {
	Name           string  `json:"name"             validate:"required,min=1,max=200"`
	AssignedUserID *string `json:"assigned_user_id"`
	Status         string  `json:"status"           validate:"omitempty,oneof=new in-progress on-hold completed canceled archived"`
}

type updateTaskRequest struct {
	Name           *string `json:"name"             validate:"omitempty,min=1,max=200"`
	AssignedUserID *string `json:"assigned_user_id"`
	Status         *string `json:"status"           validate:"omitempty,oneof=new in-progress on-hold completed canceled archived"`
}

// taskResponse is the JSON shape of a task. The internal identifier is
// normalized into id; there is no _id field.
type taskResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	AuthorID       string    `json:"author_id"`
	AssignedUserID *string   `json:"assigned_user_id"`
	Status         string    `json:"status"`
	Filename       *string   `json:"filename"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type listTasksResponse struct {
	Tasks      []taskResponse `json:"tasks"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

func toTaskResponse(t *domain.Task) taskResponse {
	return taskResponse{
		ID:             t.ID,
		Name:           t.Name,
		AuthorID:       t.AuthorID,
		AssignedUserID: t.AssignedUserID,
		Status:         string(t.Status),
		Filename:       t.Filename,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
