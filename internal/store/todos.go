package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tasklane/todo-api/internal/apperr"
	"github.com/tasklane/todo-api/internal/database"
	"github.com/tasklane/todo-api/internal/models"
)

const todoColumns = "id, user_id, title, description, status, created_at, updated_at"

func scanTodo(row rowScanner) (*models.Todo, error) {
	todo := &models.Todo{}
	var status string
	if err := row.Scan(&todo.ID, &todo.UserID, &todo.Title, &todo.Description, &status, &todo.CreatedAt, &todo.UpdatedAt); err != nil {
		return nil, err
	}
	todo.Status = models.TodoStatus(status)
	return todo, nil
}

// CreateTodo inserts todo and fills in its id and timestamps. An empty
// status is stored as todo.
func (s *Store) CreateTodo(ctx context.Context, todo *models.Todo) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if todo.Status == "" {
		todo.Status = models.TodoStatusTodo
	}
	now := s.now()
	todo.CreatedAt = now
	todo.UpdatedAt = now

	err := s.db.QueryRowContext(ctx,
		s.db.Rebind("INSERT INTO todos (user_id, title, description, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id"),
		todo.UserID, todo.Title, todo.Description, string(todo.Status), todo.CreatedAt, todo.UpdatedAt,
	).Scan(&todo.ID)
	if err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

// GetTodo returns the todo with id if it belongs to userID.
func (s *Store) GetTodo(ctx context.Context, id, userID int64) (*models.Todo, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT "+todoColumns+" FROM todos WHERE id = ? AND user_id = ?"),
		id, userID,
	)
	todo, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errTodoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get todo %d: %w", id, err)
	}
	return todo, nil
}

// TodoOwner returns the id of the user owning todo id, regardless of who asks.
func (s *Store) TodoOwner(ctx context.Context, id int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var owner int64
	err := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT user_id FROM todos WHERE id = ?"), id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errTodoNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get todo owner %d: %w", id, err)
	}
	return owner, nil
}

// CountTodos returns how many todos userID owns.
func (s *Store) CountTodos(ctx context.Context, userID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int
	err := s.db.QueryRowContext(ctx, s.db.Rebind("SELECT COUNT(*) FROM todos WHERE user_id = ?"), userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count todos: %w", err)
	}
	return total, nil
}

// ListTodos returns userID's todos narrowed by filter. Without a sort field
// rows come back in insertion order; with one they are ordered by it
// descending.
func (s *Store) ListTodos(ctx context.Context, userID int64, filter models.TodoFilter) ([]*models.Todo, error) {
	var q strings.Builder
	args := []any{userID}

	q.WriteString("SELECT " + todoColumns + " FROM todos WHERE user_id = ?")
	if filter.Status != "" {
		q.WriteString(" AND status = ?")
		args = append(args, string(filter.Status))
	}

	if filter.Sort != "" {
		if !models.IsTodoSortField(filter.Sort) {
			return nil, apperr.BadRequest("Invalid sort field")
		}
		// Column names cannot be bound; the whitelist above guards this.
		q.WriteString(" ORDER BY " + filter.Sort + " DESC, id DESC")
	} else {
		q.WriteString(" ORDER BY id ASC")
	}

	switch {
	case filter.Limit > 0:
		q.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, filter.Limit, filter.Offset)
	case filter.Offset > 0 && s.db.Dialect == database.DialectSQLite:
		q.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, filter.Offset)
	case filter.Offset > 0:
		q.WriteString(" OFFSET ?")
		args = append(args, filter.Offset)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(q.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := []*models.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, todo)
	}
	return todos, rows.Err()
}

// UpdateTodo persists title, description and status of an owned todo.
func (s *Store) UpdateTodo(ctx context.Context, todo *models.Todo) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	todo.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE todos SET title = ?, description = ?, status = ?, updated_at = ? WHERE id = ? AND user_id = ?"),
		todo.Title, todo.Description, string(todo.Status), todo.UpdatedAt, todo.ID, todo.UserID,
	)
	if err != nil {
		return fmt.Errorf("update todo %d: %w", todo.ID, err)
	}
	return expectRow(res)
}

// DeleteTodo removes an owned todo.
func (s *Store) DeleteTodo(ctx context.Context, id, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM todos WHERE id = ? AND user_id = ?"), id, userID)
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errTodoNotFound
	}
	return nil
}
