package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tasklane/todo-api/internal/apperr"
	"github.com/tasklane/todo-api/internal/database"
	"github.com/tasklane/todo-api/internal/models"
)

const queryTimeout = 3 * time.Second

var (
	errTodoNotFound = apperr.NotFound("Todo not found")
	errUserNotFound = apperr.NotFound("User not found")
	errEmailTaken   = apperr.Conflict("Email address already exists.")
)

// Store handles all database operations
type Store struct {
	db  *database.DB
	now func() time.Time
}

// New creates a new store instance
func New(db *database.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateUser inserts a user whose password is already hashed
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := s.now()
	user := &models.User{
		Name:      name,
		Email:     email,
		Password:  passwordHash,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.QueryRowContext(ctx,
		s.db.Rebind("INSERT INTO users (name, email, password, created_at, updated_at) VALUES (?, ?, ?, ?, ?) RETURNING id"),
		user.Name, user.Email, user.Password, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by exact email match
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	user := &models.User{}
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind("SELECT id, name, email, password, created_at, updated_at FROM users WHERE email = ?"),
		email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}
