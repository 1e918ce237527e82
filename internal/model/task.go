package model

import "time"

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a unit of work owned by one user. ProjectID is a loose reference:
// nothing checks that the project exists.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	ProjectID   *string      `json:"projectId,omitempty"`
	UserID      string       `json:"userId"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	DueDate     *Date        `json:"dueDate,omitempty"`
}

func (t *Task) OwnedBy(userID string) bool {
	return t.UserID == userID
}

// CreateTaskInput leaves Status and Priority empty when the client did not
// send them; the store fills in the defaults.
type CreateTaskInput struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status,omitempty"`
	Priority    TaskPriority `json:"priority,omitempty"`
	ProjectID   *string      `json:"projectId,omitempty"`
	DueDate     *Date        `json:"dueDate,omitempty"`
}

// UpdateTaskInput is a partial update. A JSON null on ProjectID or DueDate
// clears the field.
type UpdateTaskInput struct {
	Title       Optional[string]       `json:"title"`
	Description Optional[string]       `json:"description"`
	Status      Optional[TaskStatus]   `json:"status"`
	Priority    Optional[TaskPriority] `json:"priority"`
	ProjectID   Optional[string]       `json:"projectId"`
	DueDate     Optional[Date]         `json:"dueDate"`
}

type TaskStats struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}
