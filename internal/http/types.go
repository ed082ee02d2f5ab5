package http

import (
	"bytes"
	"encoding/json"
	"time"

	"taskflow/internal/domain"
	"taskflow/internal/storage"
)

type registerRequest struct {
	Email    string  `json:"email" binding:"required,email,max=255"`
	Username string  `json:"username" binding:"required,min=3,max=50"`
	Password string  `json:"password" binding:"required,min=8,max=100"`
	FullName *string `json:"full_name" binding:"omitempty,max=100"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8,max=100"`
}

type updateProfileRequest struct {
	Email    *string `json:"email" binding:"omitempty,email,max=255"`
	FullName *string `json:"full_name" binding:"omitempty,max=100"`
	Password *string `json:"password" binding:"omitempty,min=8,max=100"`
}

type createTaskRequest struct {
	Title       string              `json:"title" binding:"required,min=1,max=200"`
	Description *string             `json:"description"`
	Priority    domain.TaskPriority `json:"priority" binding:"omitempty,oneof=low medium high"`
	Status      domain.TaskStatus   `json:"status" binding:"omitempty,oneof=todo in_progress completed cancelled"`
	DueDate     *time.Time          `json:"due_date"`
}

// updateTaskRequest distinguishes absent fields from explicit nulls.
type updateTaskRequest struct {
	Title       optional[string]              `json:"title"`
	Description optional[string]              `json:"description"`
	Priority    optional[domain.TaskPriority] `json:"priority"`
	Status      optional[domain.TaskStatus]   `json:"status"`
	DueDate     optional[time.Time]           `json:"due_date"`
}

// updateTaskFields is validated after decoding; nil means untouched.
type updateTaskFields struct {
	Title    *string `json:"title" binding:"omitempty,min=1,max=200"`
	Priority *string `json:"priority" binding:"omitempty,oneof=low medium high"`
	Status   *string `json:"status" binding:"omitempty,oneof=todo in_progress completed cancelled"`
}

func (r updateTaskRequest) fields() updateTaskFields {
	var out updateTaskFields
	out.Title = r.Title.Value
	if r.Priority.Value != nil {
		v := string(*r.Priority.Value)
		out.Priority = &v
	}
	if r.Status.Value != nil {
		v := string(*r.Status.Value)
		out.Status = &v
	}
	return out
}

func (r updateTaskRequest) patch() domain.TaskPatch {
	return domain.TaskPatch{
		Title:          r.Title.Value,
		Priority:       r.Priority.Value,
		Status:         r.Status.Value,
		Description:    r.Description.Value,
		SetDescription: r.Description.Set,
		DueDate:        r.DueDate.Value,
		SetDueDate:     r.DueDate.Set,
	}
}

type listTasksQuery struct {
	Page     *int   `form:"page" binding:"omitempty,min=1"`
	PageSize *int   `form:"page_size" binding:"omitempty,min=1"`
	Status   string `form:"status" binding:"omitempty,oneof=todo in_progress completed cancelled"`
	Priority string `form:"priority" binding:"omitempty,oneof=low medium high"`
}

// optional records whether a JSON field was present at all.
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type UserResponse struct {
	ID          int64   `json:"id"`
	Email       string  `json:"email"`
	Username    string  `json:"username"`
	FullName    *string `json:"full_name"`
	IsActive    bool    `json:"is_active"`
	IsSuperuser bool    `json:"is_superuser"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type TaskResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	IsCompleted bool    `json:"is_completed"`
	CompletedAt *string `json:"completed_at"`
	DueDate     *string `json:"due_date"`
	OwnerID     int64   `json:"owner_id"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type TaskListResponse struct {
	Tasks      []TaskResponse `json:"tasks"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

type ExportResponse struct {
	Key         string `json:"key"`
	Location    string `json:"location"`
	Count       int    `json:"count"`
	DownloadURL string `json:"download_url"`
	CreatedAt   string `json:"created_at"`
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		FullName:    user.FullName,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   user.UpdatedAt.Format(time.RFC3339),
	}
}

func taskToResponse(task domain.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Priority:    string(task.Priority),
		Status:      string(task.Status),
		IsCompleted: task.IsCompleted,
		CompletedAt: formatTime(task.CompletedAt),
		DueDate:     formatTime(task.DueDate),
		OwnerID:     task.OwnerID,
		CreatedAt:   task.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   task.UpdatedAt.Format(time.RFC3339),
	}
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	return StorageObjectResponse{
		Key:          obj.Key,
		Size:         obj.Size,
		LastModified: formatTime(obj.LastModified),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}
