package respond

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/tasklane/todo-api/internal/apperr"
)

// JSON writes v as the response body with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}

// Message writes {"message": msg}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"message": msg})
}

// Error maps err onto a response. Validation failures become
// {"errors": {...}}, exposed codes keep their message, and everything else is
// logged and reported as a bare 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	pub := apperr.Public(err)
	if pub.Code == http.StatusInternalServerError {
		log.Printf("[API] %s %s: %v", r.Method, r.URL.Path, err)
	}

	if len(pub.Fields) > 0 {
		JSON(w, pub.Code, map[string]any{"errors": pub.Fields})
		return
	}
	Message(w, pub.Code, pub.Message)
}
