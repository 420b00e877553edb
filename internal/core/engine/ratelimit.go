package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/namelens/tubelens/internal/core"
)

// ErrRateLimited is returned when a client exceeded its admission budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// Default sliding-window parameters.
const (
	DefaultClientLimit  = 10
	DefaultClientWindow = 60 * time.Second
)

// ClientLimiter admits at most Limit requests per client key in any trailing
// Window. State lives for the process lifetime; keys are never evicted.
type ClientLimiter struct {
	Limit  int
	Window time.Duration
	Clock  func() time.Time

	mu      sync.Mutex
	windows map[string]*core.RateWindow
}

// Decision reports the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// NewClientLimiter creates a limiter, substituting defaults for non-positive values.
func NewClientLimiter(limit int, window time.Duration) *ClientLimiter {
	if limit <= 0 {
		limit = DefaultClientLimit
	}
	if window <= 0 {
		window = DefaultClientWindow
	}
	return &ClientLimiter{
		Limit:   limit,
		Window:  window,
		windows: make(map[string]*core.RateWindow),
	}
}

// Admit records an admission for key, or returns ErrRateLimited without
// recording anything.
func (l *ClientLimiter) Admit(key string) error {
	if decision := l.Check(key); !decision.Allowed {
		return ErrRateLimited
	}
	return nil
}

// Check is Admit with the full decision. The prune, count, append sequence
// runs under one lock so concurrent callers cannot both slip past the limit.
func (l *ClientLimiter) Check(key string) Decision {
	if l == nil {
		return Decision{Allowed: true}
	}

	limit, window := l.params()
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.windows == nil {
		l.windows = make(map[string]*core.RateWindow)
	}
	w, ok := l.windows[key]
	if !ok {
		w = &core.RateWindow{}
		l.windows[key] = w
	}

	count := w.Prune(now.Add(-window))
	if count >= limit {
		retry := window
		if oldest, ok := w.Oldest(); ok {
			retry = oldest.Add(window).Sub(now)
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}
	}

	w.Stamps = append(w.Stamps, now)
	return Decision{Allowed: true, Remaining: limit - len(w.Stamps)}
}

// Len returns the number of tracked client keys.
func (l *ClientLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *ClientLimiter) params() (int, time.Duration) {
	limit, window := l.Limit, l.Window
	if limit <= 0 {
		limit = DefaultClientLimit
	}
	if window <= 0 {
		window = DefaultClientWindow
	}
	return limit, window
}

func (l *ClientLimiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	// Keep the monotonic reading so wall-clock steps cannot move the window.
	return time.Now()
}
