package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasklane/todo-api/internal/apperr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorShapes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/todos/1", nil)

	t.Run("validation", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Error(rec, req, apperr.Validation(map[string]string{"title": "title field is required."}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		body := decode(t, rec)
		assert.Equal(t, map[string]any{"title": "title field is required."}, body["errors"])
	})

	t.Run("exposed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Error(rec, req, apperr.Forbidden("Forbidden"))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Forbidden", decode(t, rec)["message"])
	})

	t.Run("masked", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Error(rec, req, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal server error", decode(t, rec)["message"])
	})
}

func TestJSONWithoutBody(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
