package utils

import (
	"sync"
	"time"
)

// SlidingWindow counts events inside a rolling time span. Stale stamps are
// evicted lazily on each call, so memory stays bounded by the event rate of
// a single span.
type SlidingWindow struct {
	mu     sync.Mutex
	span   time.Duration
	stamps []time.Time
}

func NewSlidingWindow(span time.Duration) *SlidingWindow {
	return &SlidingWindow{span: span}
}

// Add records an event at now and returns the in-window count including it.
func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	w.stamps = append(w.stamps, now)
	return len(w.stamps)
}

// Count returns the in-window count without recording anything.
func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	return len(w.stamps)
}

// Reset discards all recorded stamps.
func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stamps = w.stamps[:0]
}

// Stamps are append-ordered, so the first one inside the span marks the
// eviction boundary.
func (w *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.span)
	idx := 0
	for _, stamp := range w.stamps {
		if stamp.After(cutoff) {
			break
		}
		idx++
	}
	if idx > 0 {
		w.stamps = w.stamps[idx:]
	}
}
