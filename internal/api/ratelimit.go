// Rate limiting for endpoints that consume LLM budget (tick, advance).
// One shared sliding window — the sim has a single principal driver.
package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter allows maxCalls per window across all callers.
type Limiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	calls    int
	resetAt  time.Time
}

// NewLimiter creates a limiter allowing maxCalls per window.
func NewLimiter(maxCalls int, window time.Duration) *Limiter {
	return &Limiter{maxCalls: maxCalls, window: window}
}

// Allow reports whether another call fits in the current window, and how
// many seconds remain until reset when it does not.
func (l *Limiter) Allow() (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.After(l.resetAt) {
		l.calls = 0
		l.resetAt = now.Add(l.window)
	}
	if l.calls >= l.maxCalls {
		return false, int(time.Until(l.resetAt).Seconds()) + 1
	}
	l.calls++
	return true, 0
}

// limited wraps a handler with the limiter, answering 429 when exhausted.
func limited(l *Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, retry := l.Allow()
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
