package validation

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasklane/todo-api/internal/apperr"
)

type signup struct {
	Name                 string `json:"name" validate:"required,alphaspace,min=2,max=50"`
	Email                string `json:"email" validate:"required,email,max=254"`
	Password             string `json:"password" validate:"required,min=8,max=255"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

type item struct {
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"required,max=1000"`
	Status      string `json:"status" validate:"omitempty,todostatus"`
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	return appErr.Fields
}

func TestValidSignup(t *testing.T) {
	v := New()
	err := v.Struct(signup{
		Name:                 "John Doe",
		Email:                "john@example.com",
		Password:             "password123",
		PasswordConfirmation: "password123",
	})
	assert.NoError(t, err)
}

func TestSignupMessages(t *testing.T) {
	v := New()
	fields := fieldsOf(t, v.Struct(signup{
		Name:                 "J0hn",
		Email:                "not-an-email",
		Password:             "short",
		PasswordConfirmation: "different",
	}))

	assert.Equal(t, "name input must contain only letters and spaces.", fields["name"])
	assert.Equal(t, "email input must be a valid email address.", fields["email"])
	assert.Equal(t, "password input must be at least 8 characters long.", fields["password"])
	assert.Equal(t, "password_confirmation input must match password.", fields["password_confirmation"])
}

func TestRequiredReportedFirst(t *testing.T) {
	v := New()
	fields := fieldsOf(t, v.Struct(item{}))

	assert.Equal(t, "title field is required.", fields["title"])
	assert.Equal(t, "description field is required.", fields["description"])
	assert.NotContains(t, fields, "status")
}

func TestItemBounds(t *testing.T) {
	v := New()
	fields := fieldsOf(t, v.Struct(item{
		Title:       "ab",
		Description: strings.Repeat("x", 1001),
		Status:      "blocked",
	}))

	assert.Equal(t, "title input must be at least 3 characters long.", fields["title"])
	assert.Equal(t, "description input must not exceed 1000 characters.", fields["description"])
	assert.Equal(t, "status must be todo, in progress, or done.", fields["status"])
}

func TestTodoStatusAcceptsKnownValues(t *testing.T) {
	v := New()
	for _, status := range []string{"todo", "in progress", "done"} {
		assert.NoError(t, v.Struct(item{Title: "Title", Description: "d", Status: status}), status)
	}
}

func TestMessageFallback(t *testing.T) {
	assert.Equal(t, "page must be at least 1.", Message("page", "gte", "1"))
	assert.Equal(t, "sort must be one of: id, title.", Message("sort", "oneof", "id title"))
	assert.Equal(t, "x input is invalid.", Message("x", "uuid", ""))
}
