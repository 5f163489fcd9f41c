package models

import (
	"time"
)

// TodoStatus represents where a todo is in its lifecycle
type TodoStatus string

const (
	TodoStatusTodo       TodoStatus = "todo"
	TodoStatusInProgress TodoStatus = "in progress"
	TodoStatusDone       TodoStatus = "done"
)

// Valid reports whether s is one of the known statuses.
func (s TodoStatus) Valid() bool {
	switch s {
	case TodoStatusTodo, TodoStatusInProgress, TodoStatusDone:
		return true
	}
	return false
}

// Todo represents a single item owned by a user
type Todo struct {
	ID          int64      `json:"id" db:"id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Status      TodoStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TodoSortFields are the columns a listing may be ordered by.
var TodoSortFields = []string{"id", "title", "description", "status", "created_at", "updated_at"}

// IsTodoSortField reports whether field may be used to order a listing.
func IsTodoSortField(field string) bool {
	for _, f := range TodoSortFields {
		if f == field {
			return true
		}
	}
	return false
}

// TodoFilter narrows and pages a todo listing. A zero Limit means no limit.
type TodoFilter struct {
	Status TodoStatus
	Sort   string
	Limit  int
	Offset int
}
