package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/tasklane/todo-api/internal/respond"
)

const maxBodyBytes = 1 << 20

func hasBody(r *http.Request) bool {
	return r.ContentLength > 0 || (r.ContentLength < 0 && r.Body != nil && r.Body != http.NoBody)
}

// RequireJSON rejects write requests whose body is not declared as JSON.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			next.ServeHTTP(w, r)
			return
		}
		if !hasBody(r) {
			next.ServeHTTP(w, r)
			return
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			respond.Message(w, http.StatusBadRequest, "Content-Type header is required")
			return
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			respond.Message(w, http.StatusUnsupportedMediaType, "Invalid Content-Type. Use 'application/json'.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// TrimInput strips surrounding whitespace from every string in a JSON body.
// Bodies that are not a single valid JSON value pass through untouched for
// the handler to reject.
func TrimInput(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hasBody(r) {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		r.Body.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respond.Message(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			respond.Message(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var doc any
		if err := dec.Decode(&doc); err == nil && atEOF(dec) {
			if trimmed, err := json.Marshal(trimStrings(doc)); err == nil {
				body = trimmed
			}
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}

// atEOF reports whether nothing but whitespace follows the value dec just
// decoded.
func atEOF(dec *json.Decoder) bool {
	_, err := dec.Token()
	return errors.Is(err, io.EOF)
}

func trimStrings(v any) any {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		for k, item := range val {
			val[k] = trimStrings(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = trimStrings(item)
		}
		return val
	default:
		return v
	}
}

// JSONResponse declares every response as JSON.
func JSONResponse(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
