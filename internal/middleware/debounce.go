package middleware

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/liloman25879/spring-vote-app/internal/model"
)

// Debouncer suppresses rapid duplicate casts. A repeat of the same
// user+task+score inside the window is rejected before it reaches the
// coordinator, absorbing double clicks without spending extra writes.
type Debouncer struct {
	mu      sync.Mutex
	lastHit map[string]time.Time
	window  time.Duration

	stopOnce sync.Once
	stop     chan struct{}

	// OnReject is called with the debounce key for each rejection.
	// Optional, used for metrics.
	OnReject func(key string)
}

// NewDebouncer creates a debouncer with the given window. A zero or
// negative window disables debouncing.
func NewDebouncer(window time.Duration) *Debouncer {
	d := &Debouncer{
		lastHit: make(map[string]time.Time),
		window:  window,
		stop:    make(chan struct{}),
	}
	if window > 0 {
		go d.cleanup()
	}
	return d
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (d *Debouncer) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Handler returns a Fiber middleware for the cast endpoint. The body is
// inspected without consuming it; malformed bodies pass through so the
// handler owns the error response.
func (d *Debouncer) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		if d.window <= 0 {
			return c.Next()
		}

		var req model.CastRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return c.Next()
		}
		key := castKey(req.UserName, req.TaskID, req.TaskName, req.Score)

		if !d.Allow(key) {
			retryAfter := int(d.window.Seconds()) + 1
			c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			return ErrorResponse(c, fiber.StatusTooManyRequests, "DEBOUNCED",
				"Duplicate vote received, slow down.")
		}
		return c.Next()
	}
}

// Allow records a hit for the key and reports whether it falls outside
// the debounce window of the previous identical hit.
func (d *Debouncer) Allow(key string) bool {
	now := time.Now()

	d.mu.Lock()
	last, seen := d.lastHit[key]
	d.lastHit[key] = now
	d.mu.Unlock()

	if seen && now.Sub(last) < d.window {
		if d.OnReject != nil {
			d.OnReject(key)
		}
		return false
	}
	return true
}

func castKey(userName, taskID, taskName string, score int) string {
	return fmt.Sprintf("%s|%s|%s|%d", userName, taskID, taskName, score)
}

func (d *Debouncer) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.mu.Lock()
			cutoff := time.Now().Add(-d.window)
			for key, last := range d.lastHit {
				if last.Before(cutoff) {
					delete(d.lastHit, key)
				}
			}
			d.mu.Unlock()
		case <-d.stop:
			return
		}
	}
}
