package gateway

import (
	"sync"
	"time"
)

// Default sliding-window limits for the report endpoint.
const (
	DefaultMaxRequests = 100
	DefaultWindow      = 60 * time.Second
)

// SlidingWindow admits at most max requests in any trailing window. Expired
// instants are pruned lazily on each call.
type SlidingWindow struct {
	now    func() time.Time // injectable clock for testing
	times  []time.Time
	window time.Duration
	max    int
	mu     sync.Mutex
}

// NewSlidingWindow creates a limiter admitting limit requests per window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		max:    limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records the request and returns true, or returns false when the
// window is full.
func (l *SlidingWindow) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	if len(l.times) >= l.max {
		return false
	}
	l.times = append(l.times, now)
	return true
}

// Remaining returns how many requests the window would still admit.
func (l *SlidingWindow) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())
	if n := l.max - len(l.times); n > 0 {
		return n
	}
	return 0
}

// Limit returns the maximum number of requests per window.
func (l *SlidingWindow) Limit() int {
	return l.max
}

// prune drops instants strictly older than now - window. Must be called with
// l.mu held.
func (l *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.times) && l.times[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.times = append(l.times[:0], l.times[i:]...)
	}
}
