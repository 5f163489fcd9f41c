package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/tasklane/todo-api/internal/storage"
)

// Record is the rate-limit state of one client address. Times are unix
// seconds.
type Record struct {
	Limit     int   `json:"limit"`
	Attempt   int   `json:"attempt"`
	StartTime int64 `json:"start_time"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

// Store keeps per-key counters for the limiter and throttle.
type Store interface {
	// Hit counts one request for key and reports whether it is allowed.
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Record, bool, error)
	// Touch reports whether key was last seen less than interval ago. The
	// timestamp is only moved forward when the answer is false.
	Touch(ctx context.Context, key string, interval time.Duration, now time.Time) (bool, error)
}

func hit(rec Record, exists bool, limit int, window time.Duration, now time.Time) (Record, bool) {
	if !exists || now.Unix() >= rec.ResetTime {
		start := now.Unix()
		return Record{
			Limit:     limit,
			Attempt:   1,
			StartTime: start,
			Remaining: limit - 1,
			ResetTime: start + windowSeconds(window),
		}, true
	}

	if rec.Attempt >= limit {
		rec.Remaining = 0
		return rec, false
	}

	rec.Limit = limit
	rec.Attempt++
	rec.Remaining = limit - rec.Attempt
	return rec, true
}

// windowSeconds rounds window up to whole seconds, the resolution of Record
// times, and never returns less than one.
func windowSeconds(window time.Duration) int64 {
	secs := int64((window + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func tooSoon(last time.Time, exists bool, interval time.Duration, now time.Time) bool {
	return exists && now.Sub(last) < interval
}

// MemoryStore keeps counters in process memory. Every operation holds a
// single mutex, so counts are exact within one instance.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]Record
	lastSeen  map[string]time.Time
	lastSweep time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]Record),
		lastSeen: make(map[string]time.Time),
	}
}

func (m *MemoryStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(now, window)
	rec, exists := m.records[key]
	rec, allowed := hit(rec, exists, limit, window, now)
	m.records[key] = rec
	return rec, allowed, nil
}

func (m *MemoryStore) Touch(ctx context.Context, key string, interval time.Duration, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, exists := m.lastSeen[key]
	if tooSoon(last, exists, interval, now) {
		return true, nil
	}
	m.lastSeen[key] = now
	return false, nil
}

// sweep drops records whose window is over, at most once per window.
func (m *MemoryStore) sweep(now time.Time, window time.Duration) {
	if now.Sub(m.lastSweep) < window {
		return
	}
	m.lastSweep = now
	for key, rec := range m.records {
		if now.Unix() >= rec.ResetTime {
			delete(m.records, key)
		}
	}
	for key, last := range m.lastSeen {
		if now.Sub(last) >= window {
			delete(m.lastSeen, key)
		}
	}
}

// DocumentStore keeps all counters in two JSON documents, one for rate
// limits and one for throttle timestamps, read and rewritten on every
// request. A mutex serialises access inside this process; several processes
// sharing the same documents can still lose updates.
type DocumentStore struct {
	mu        sync.Mutex
	limits    storage.Blob
	throttles storage.Blob
}

func NewDocumentStore(limits, throttles storage.Blob) *DocumentStore {
	return &DocumentStore{limits: limits, throttles: throttles}
}

func (d *DocumentStore) Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Record, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := readDocument[Record](ctx, d.limits)
	if err != nil {
		return Record{}, false, err
	}

	rec, exists := records[key]
	rec, allowed := hit(rec, exists, limit, window, now)
	records[key] = rec

	return rec, allowed, writeDocument(ctx, d.limits, records)
}

func (d *DocumentStore) Touch(ctx context.Context, key string, interval time.Duration, now time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Timestamps are unix microseconds
	stamps, err := readDocument[int64](ctx, d.throttles)
	if err != nil {
		return false, err
	}

	last, exists := stamps[key]
	if tooSoon(time.UnixMicro(last), exists, interval, now) {
		return true, nil
	}

	stamps[key] = now.UnixMicro()
	return false, writeDocument(ctx, d.throttles, stamps)
}

func readDocument[T any](ctx context.Context, blob storage.Blob) (map[string]T, error) {
	data, err := blob.Read(ctx)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && len(data) == 0) {
		return map[string]T{}, nil
	}
	if err != nil {
		return nil, err
	}

	doc := map[string]T{}
	if err := json.Unmarshal(data, &doc); err != nil {
		// A corrupt document only costs the counters it held
		log.Printf("[RATELIMIT] discarding unreadable document: %v", err)
		return map[string]T{}, nil
	}
	return doc, nil
}

func writeDocument(ctx context.Context, blob storage.Blob, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return blob.Write(ctx, data)
}
