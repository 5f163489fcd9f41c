package ratelimit

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Throttle delays a client's request by a fixed interval when it arrives
// sooner than interval after the previous one. Requests are never rejected.
type Throttle struct {
	store    Store
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewThrottle(store Store, interval time.Duration) *Throttle {
	return &Throttle{store: store, interval: interval, now: time.Now, sleep: sleepContext}
}

// Handler waits only on the current request's goroutine and gives up when
// the client goes away.
func (t *Throttle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientKey(r)

		wait, err := t.store.Touch(r.Context(), key, t.interval, t.now())
		if err != nil {
			log.Printf("[RATELIMIT] throttle store failed for %s: %v", key, err)
			next.ServeHTTP(w, r)
			return
		}

		if wait {
			if err := t.sleep(r.Context(), t.interval); err != nil {
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
