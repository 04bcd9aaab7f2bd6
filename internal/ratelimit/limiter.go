// Package ratelimit provides sliding-window rate limiters keyed by arbitrary
// strings.
//
// A sliding window counts accepted events in the trailing window ending now,
// rather than in fixed buckets, so bursts at a bucket boundary cannot double
// the effective rate. Rejected events are not recorded.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more event for key is allowed right now.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// Window is an in-memory sliding-window log.
type Window struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

// NewWindow allows at most limit events per key in any trailing window.
func NewWindow(limit int, window time.Duration) *Window {
	return &Window{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Allow implements Limiter.
func (w *Window) Allow(_ context.Context, key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)

	if now.Sub(w.lastSweep) >= w.window {
		w.sweep(cutoff)
		w.lastSweep = now
	}

	hits := prune(w.hits[key], cutoff)
	if len(hits) >= w.limit {
		w.hits[key] = hits
		return false
	}
	w.hits[key] = append(hits, now)
	return true
}

// Count returns the number of accepted events for key in the current window.
func (w *Window) Count(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	hits := prune(w.hits[key], w.now().Add(-w.window))
	w.hits[key] = hits
	return len(hits)
}

// sweep drops keys with no hits inside the window.
func (w *Window) sweep(cutoff time.Time) {
	for key, hits := range w.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(w.hits, key)
		}
	}
}

// prune removes timestamps at or before cutoff. hits is sorted ascending.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}
