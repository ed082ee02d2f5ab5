package domain

import "time"

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Task is a to-do item owned by exactly one user.
type Task struct {
	ID          int64
	Title       string
	Description *string
	Priority    TaskPriority
	Status      TaskStatus
	IsCompleted bool
	CompletedAt *time.Time
	DueDate     *time.Time
	OwnerID     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskInput carries the fields of a new task. Empty priority and status fall
// back to medium and todo.
type TaskInput struct {
	Title       string
	Description *string
	Priority    TaskPriority
	Status      TaskStatus
	DueDate     *time.Time
}

// TaskPatch describes a partial task update. Nil pointers are left untouched;
// Description and DueDate use an explicit Set flag so they can be cleared.
type TaskPatch struct {
	Title          *string
	Priority       *TaskPriority
	Status         *TaskStatus
	Description    *string
	SetDescription bool
	DueDate        *time.Time
	SetDueDate     bool
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Priority == nil && p.Status == nil && !p.SetDescription && !p.SetDueDate
}

// TaskFilter narrows a task listing. OwnerID is always applied.
type TaskFilter struct {
	OwnerID  int64
	Status   *TaskStatus
	Priority *TaskPriority
	Offset   int
	Limit    int
}

// TaskPage is one page of a filtered listing.
type TaskPage struct {
	Tasks      []Task
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}
