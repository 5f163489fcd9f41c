package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a domain error carrying the HTTP status it maps to.
type Error struct {
	Code    int
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validation returns a 400 error holding the failed field messages.
func Validation(fields map[string]string) *Error {
	return &Error{Code: http.StatusBadRequest, Message: "Validation failed", Fields: fields}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

func Internal(err error) *Error {
	return Wrap(http.StatusInternalServerError, "Internal server error", err)
}

// exposed lists the codes whose message is safe to return to clients.
var exposed = map[int]bool{
	http.StatusBadRequest:           true,
	http.StatusUnauthorized:         true,
	http.StatusForbidden:            true,
	http.StatusNotFound:             true,
	http.StatusConflict:             true,
	http.StatusUnsupportedMediaType: true,
	http.StatusTooManyRequests:      true,
}

// Code returns the status carried by err, or 500 when err is not an *Error.
func Code(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// Public reduces err to what a client may see. Anything outside the exposed
// codes collapses to a generic 500.
func Public(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) && exposed[appErr.Code] {
		return &Error{Code: appErr.Code, Message: appErr.Message, Fields: appErr.Fields}
	}
	return &Error{Code: http.StatusInternalServerError, Message: "Internal server error"}
}
