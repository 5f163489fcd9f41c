package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tasklane/todo-api/internal/apperr"
	"github.com/tasklane/todo-api/internal/auth"
	"github.com/tasklane/todo-api/internal/respond"
)

// decodeJSON reads the request body into v. An empty body leaves v at its
// zero value so validation can report the missing fields; anything after the
// first JSON value is rejected.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.BadRequest("Invalid request body")
	}
	if !atEOF(dec) {
		return apperr.BadRequest("Invalid request body")
	}
	return nil
}

func (api *Api) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := api.validator.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}

	pair, err := api.auth.Register(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, pair)
}

func (api *Api) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := api.validator.Struct(req); err != nil {
		respond.Error(w, r, err)
		return
	}

	pair, err := api.auth.Login(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, pair)
}

func (api *Api) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		respond.Message(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	refreshed, err := api.auth.Refresh(claims)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, refreshed)
}
