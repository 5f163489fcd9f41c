package ratelimit

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tasklane/todo-api/internal/respond"
)

type contextKey string

const recordContextKey contextKey = "ratelimit"

// ClientKey identifies the caller by network address. Run it after
// middleware.RealIP so proxies are accounted for.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Limiter allows at most limit requests per client within each window
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window, now: time.Now}
}

// WithClock replaces the limiter's time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Handler counts the request and answers 429 once the client's quota for the
// current window is used up. Every response carries X-RateLimit-* headers.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientKey(r)
		now := l.now()

		rec, allowed, err := l.store.Hit(r.Context(), key, l.limit, l.window, now)
		if err != nil {
			// Counter storage trouble should not take the API down with it
			log.Printf("[RATELIMIT] counter store failed for %s: %v", key, err)
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rec.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(rec.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(rec.ResetTime, 10))

		if !allowed {
			retry := rec.ResetTime - now.Unix()
			if retry < 1 {
				retry = 1
			}
			h.Set("Retry-After", strconv.FormatInt(retry, 10))
			respond.Message(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), recordContextKey, rec)))
	})
}

// RecordFromContext returns the rate-limit record of the current request.
func RecordFromContext(ctx context.Context) (Record, bool) {
	rec, ok := ctx.Value(recordContextKey).(Record)
	return rec, ok
}
