package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestWindow(limit int, window time.Duration) (*SlidingWindow, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	l := NewSlidingWindow(limit, window)
	l.now = clock.Now
	return l, clock
}

func TestSlidingWindow_RejectsOverLimit(t *testing.T) {
	l, clock := newTestWindow(DefaultMaxRequests, DefaultWindow)

	for i := 0; i < DefaultMaxRequests; i++ {
		assert.True(t, l.Allow(), "request %d should be allowed", i+1)
		clock.Advance(100 * time.Millisecond)
	}
	assert.False(t, l.Allow(), "request 101 inside the window should be rejected")
	assert.Equal(t, 0, l.Remaining())

	clock.Advance(DefaultWindow)
	assert.True(t, l.Allow(), "request after the window should be allowed")
}

func TestSlidingWindow_RejectionsAreNotRecorded(t *testing.T) {
	l, clock := newTestWindow(2, time.Minute)

	assert.True(t, l.Allow())
	clock.Advance(30 * time.Second)
	assert.True(t, l.Allow())
	for i := 0; i < 5; i++ {
		assert.False(t, l.Allow())
	}

	// The first instant expires; only one slot frees up.
	clock.Advance(31 * time.Second)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}

func TestSlidingWindow_BoundaryInstantStays(t *testing.T) {
	l, clock := newTestWindow(1, time.Minute)

	assert.True(t, l.Allow())
	clock.Advance(time.Minute)
	assert.False(t, l.Allow(), "an instant exactly one window old is not yet pruned")
	clock.Advance(time.Nanosecond)
	assert.True(t, l.Allow())
}

func TestSlidingWindow_Remaining(t *testing.T) {
	l, _ := newTestWindow(3, time.Minute)

	assert.Equal(t, 3, l.Remaining())
	l.Allow()
	assert.Equal(t, 2, l.Remaining())
	assert.Equal(t, 3, l.Limit())
}
