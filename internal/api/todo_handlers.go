package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tasklane/todo-api/internal/apperr"
	"github.com/tasklane/todo-api/internal/auth"
	"github.com/tasklane/todo-api/internal/models"
	"github.com/tasklane/todo-api/internal/respond"
	"github.com/tasklane/todo-api/internal/validation"
)

// TodoStore is the persistence the todo handlers need
type TodoStore interface {
	CreateTodo(ctx context.Context, todo *models.Todo) error
	GetTodo(ctx context.Context, id, userID int64) (*models.Todo, error)
	TodoOwner(ctx context.Context, id int64) (int64, error)
	CountTodos(ctx context.Context, userID int64) (int, error)
	ListTodos(ctx context.Context, userID int64, filter models.TodoFilter) ([]*models.Todo, error)
	UpdateTodo(ctx context.Context, todo *models.Todo) error
	DeleteTodo(ctx context.Context, id, userID int64) error
}

var (
	errTodoNotFound = apperr.NotFound("Todo not found")
	errForbidden    = apperr.Forbidden("Forbidden")
)

type createTodoRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"required,max=1000"`
}

type updateTodoRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"required,max=1000"`
	Status      string `json:"status" validate:"omitempty,todostatus"`
}

type createdTodo struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type listTodosQuery struct {
	Page   int    `json:"page" validate:"gte=1"`
	Limit  int    `json:"limit" validate:"gte=0"`
	Status string `json:"status" validate:"omitempty,todostatus"`
	Sort   string `json:"sort" validate:"omitempty,oneof=id title description status created_at updated_at"`
}

type todoPage struct {
	Data  []*models.Todo `json:"data"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Total int            `json:"total"`
}

func currentUserID(r *http.Request) (int64, error) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		return 0, apperr.Unauthorized("Unauthorized")
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, apperr.Unauthorized("Unauthorized")
	}
	return id, nil
}

// todoID parses {id}; anything that is not a positive integer cannot name a
// todo.
func todoID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errTodoNotFound
	}
	return id, nil
}

// ownedTodoID resolves {id} and checks the caller owns it: 404 when it does
// not exist, 403 when it belongs to someone else.
func (api *Api) ownedTodoID(r *http.Request, userID int64) (int64, error) {
	id, err := todoID(r)
	if err != nil {
		return 0, err
	}
	owner, err := api.todos.TodoOwner(r.Context(), id)
	if err != nil {
		return 0, err
	}
	if owner != userID {
		return 0, errForbidden
	}
	return id, nil
}

func (api *Api) parseListQuery(r *http.Request) (listTodosQuery, error) {
	q := r.URL.Query()
	query := listTodosQuery{Page: 1, Status: q.Get("status"), Sort: q.Get("sort")}
	fields := map[string]string{}

	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err != nil {
			fields["page"] = validation.Message("page", "gte", "1")
		} else {
			query.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err != nil {
			fields["limit"] = validation.Message("limit", "gte", "0")
		} else {
			query.Limit = n
		}
	}

	if err := api.validator.Struct(query); err != nil {
		var appErr *apperr.Error
		if !errors.As(err, &appErr) {
			return query, err
		}
		for k, msg := range appErr.Fields {
			if _, seen := fields[k]; !seen {
				fields[k] = msg
			}
		}
	}

	if len(fields) > 0 {
		return query, apperr.Validation(fields)
	}
	return query, nil
}

// pageOffset returns the offset of page. ok is false when the page starts
// past the last of total rows, including offsets too large for an int.
func pageOffset(page, limit, total int) (offset int, ok bool) {
	if page <= 1 {
		return 0, total > 0
	}
	if limit > 0 && page-1 > math.MaxInt/limit {
		return 0, false
	}
	offset = (page - 1) * limit
	return offset, offset < total
}

func (api *Api) ListTodosHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	query, err := api.parseListQuery(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	total, err := api.todos.CountTodos(r.Context(), userID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	limit := query.Limit
	if limit == 0 {
		limit = total
	}

	todos := []*models.Todo{}
	if offset, ok := pageOffset(query.Page, limit, total); ok {
		todos, err = api.todos.ListTodos(r.Context(), userID, models.TodoFilter{
			Status: models.TodoStatus(query.Status),
			Sort:   query.Sort,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			respond.Error(w, r, err)
			return
		}
		if todos == nil {
			todos = []*models.Todo{}
		}
	}

	respond.JSON(w, http.StatusOK, todoPage{Data: todos, Page: query.Page, Limit: limit, Total: total})
}

func (api *Api) CreateTodoHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req createTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := api.validator.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}

	todo := &models.Todo{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TodoStatusTodo,
	}
	if err := api.todos.CreateTodo(r.Context(), todo); err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, createdTodo{ID: todo.ID, Title: todo.Title, Description: todo.Description})
}

func (api *Api) GetTodoHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	id, err := todoID(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	todo, err := api.todos.GetTodo(r.Context(), id, userID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, todo)
}

func (api *Api) UpdateTodoHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	id, err := api.ownedTodoID(r, userID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var req updateTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := api.validator.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}

	todo, err := api.todos.GetTodo(r.Context(), id, userID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	todo.Title = req.Title
	todo.Description = req.Description
	if req.Status != "" {
		todo.Status = models.TodoStatus(req.Status)
	}

	if err := api.todos.UpdateTodo(r.Context(), todo); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, todo)
}

func (api *Api) DeleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	id, err := api.ownedTodoID(r, userID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := api.todos.DeleteTodo(r.Context(), id, userID); err != nil {
		respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
