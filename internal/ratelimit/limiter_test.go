package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestWindow(limit int, window time.Duration) (*Window, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}
	w := NewWindow(limit, window)
	w.now = clock.now
	return w, clock
}

func TestWindow_AllowsUpToLimit(t *testing.T) {
	w, _ := newTestWindow(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, w.Allow(ctx, "u1"), "event %d should be allowed", i)
	}
	assert.False(t, w.Allow(ctx, "u1"))
	assert.Equal(t, 3, w.Count("u1"))
}

func TestWindow_KeysAreIndependent(t *testing.T) {
	w, _ := newTestWindow(1, time.Minute)
	ctx := context.Background()

	assert.True(t, w.Allow(ctx, "u1"))
	assert.False(t, w.Allow(ctx, "u1"))
	assert.True(t, w.Allow(ctx, "u2"))
}

func TestWindow_Slides(t *testing.T) {
	w, clock := newTestWindow(2, time.Minute)
	ctx := context.Background()

	assert.True(t, w.Allow(ctx, "u1")) // t=0
	clock.advance(30 * time.Second)
	assert.True(t, w.Allow(ctx, "u1")) // t=30s
	assert.False(t, w.Allow(ctx, "u1"))

	// First hit leaves the window at t=60s; second is still inside.
	clock.advance(30 * time.Second)
	assert.True(t, w.Allow(ctx, "u1"))
	assert.False(t, w.Allow(ctx, "u1"))

	clock.advance(time.Minute)
	assert.Equal(t, 0, w.Count("u1"))
}

func TestWindow_RejectedEventsNotCounted(t *testing.T) {
	w, clock := newTestWindow(1, time.Minute)
	ctx := context.Background()

	assert.True(t, w.Allow(ctx, "u1"))
	for i := 0; i < 10; i++ {
		clock.advance(time.Second)
		assert.False(t, w.Allow(ctx, "u1"))
	}

	// Only the single accepted hit must expire.
	clock.advance(50 * time.Second)
	assert.True(t, w.Allow(ctx, "u1"))
}

func TestWindow_SweepsIdleKeys(t *testing.T) {
	w, clock := newTestWindow(5, time.Minute)
	ctx := context.Background()

	w.Allow(ctx, "idle")
	clock.advance(2 * time.Minute)
	w.Allow(ctx, "active")

	w.mu.Lock()
	_, ok := w.hits["idle"]
	w.mu.Unlock()
	assert.False(t, ok, "idle key should be swept")
}
