package repository

import (
	"context"

	"taskflow/internal/domain"
)

// TaskRepository exposes persistence operations for Task records.
type TaskRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, task *domain.Task) (int64, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*domain.Task, error)
	// List returns the page selected by filter and the number of rows
	// matching it before pagination.
	List(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, int, error)
}
