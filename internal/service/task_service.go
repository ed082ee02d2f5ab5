package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskflow/internal/apperrors"
	"taskflow/internal/domain"
	"taskflow/internal/repository"
)

// MsgTaskNotFound is returned for task ids that do not exist.
const MsgTaskNotFound = "Task not found"

// ListOptions selects one page of the caller's tasks.
type ListOptions struct {
	Page     int
	PageSize int
	Status   *domain.TaskStatus
	Priority *domain.TaskPriority
}

// TaskService coordinates task operations on behalf of an authenticated actor.
type TaskService interface {
	Create(ctx context.Context, actor domain.Actor, input domain.TaskInput) (*domain.Task, error)
	Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Task, error)
	List(ctx context.Context, actor domain.Actor, opts ListOptions) (*domain.TaskPage, error)
	Update(ctx context.Context, actor domain.Actor, id int64, patch domain.TaskPatch) (*domain.Task, error)
	Delete(ctx context.Context, actor domain.Actor, id int64) error
	Complete(ctx context.Context, actor domain.Actor, id int64) (*domain.Task, error)
}

type taskService struct {
	tasks repository.TaskRepository
	now   func() time.Time
}

func NewTaskService(tasks repository.TaskRepository, now func() time.Time) TaskService {
	if now == nil {
		now = time.Now
	}
	return &taskService{
		tasks: tasks,
		now:   now,
	}
}

func (s *taskService) Create(ctx context.Context, actor domain.Actor, input domain.TaskInput) (*domain.Task, error) {
	if input.Title == "" {
		return nil, apperrors.Validation("title is required")
	}
	if input.Priority == "" {
		input.Priority = domain.TaskPriorityMedium
	}
	if input.Status == "" {
		input.Status = domain.TaskStatusTodo
	}
	if !input.Priority.Valid() {
		return nil, apperrors.Validation("priority is invalid")
	}
	if !input.Status.Valid() {
		return nil, apperrors.Validation("status is invalid")
	}

	task := &domain.Task{
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
		Status:      input.Status,
		DueDate:     input.DueDate,
		OwnerID:     actor.ID,
	}
	if _, err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Get checks existence before ownership, so a missing id is NOT_FOUND for
// every actor and an existing foreign one is FORBIDDEN.
func (s *taskService) Get(ctx context.Context, actor domain.Actor, id int64) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, notFoundFromStore(err, "get task")
	}
	if err := Authorize(task.OwnerID, actor); err != nil {
		return nil, err
	}
	return task, nil
}

// List only ever returns the actor's own tasks, superusers included.
func (s *taskService) List(ctx context.Context, actor domain.Actor, opts ListOptions) (*domain.TaskPage, error) {
	if opts.Page < 1 {
		return nil, apperrors.Validation("page must be at least 1")
	}
	if opts.PageSize < 1 {
		return nil, apperrors.Validation("page_size must be at least 1")
	}

	skip := (opts.Page - 1) * opts.PageSize
	tasks, total, err := s.tasks.List(ctx, domain.TaskFilter{
		OwnerID:  actor.ID,
		Status:   opts.Status,
		Priority: opts.Priority,
		Offset:   skip,
		Limit:    opts.PageSize,
	})
	if err != nil {
		return nil, err
	}

	return &domain.TaskPage{
		Tasks:      tasks,
		Total:      total,
		Page:       skip/opts.PageSize + 1,
		PageSize:   opts.PageSize,
		TotalPages: totalPages(total, opts.PageSize),
	}, nil
}

func (s *taskService) Update(ctx context.Context, actor domain.Actor, id int64, patch domain.TaskPatch) (*domain.Task, error) {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return task, nil
	}

	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, apperrors.Validation("title must not be empty")
		}
		task.Title = *patch.Title
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, apperrors.Validation("priority is invalid")
		}
		task.Priority = *patch.Priority
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperrors.Validation("status is invalid")
		}
		task.Status = *patch.Status
	}
	if patch.SetDescription {
		task.Description = patch.Description
	}
	if patch.SetDueDate {
		task.DueDate = patch.DueDate
	}

	return s.save(ctx, task)
}

func (s *taskService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, task.ID); err != nil {
		return notFoundFromStore(err, "delete task")
	}
	return nil
}

// Complete stamps the completion time on every call, including repeat calls
// on an already completed task.
func (s *taskService) Complete(ctx context.Context, actor domain.Actor, id int64) (*domain.Task, error) {
	task, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	completedAt := s.now().UTC()
	task.IsCompleted = true
	task.Status = domain.TaskStatusCompleted
	task.CompletedAt = &completedAt

	return s.save(ctx, task)
}

func (s *taskService) save(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, notFoundFromStore(err, "update task")
	}
	refreshed, err := s.tasks.Get(ctx, task.ID)
	if err != nil {
		return nil, notFoundFromStore(err, "reload task")
	}
	return refreshed, nil
}

func notFoundFromStore(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(MsgTaskNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func totalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
