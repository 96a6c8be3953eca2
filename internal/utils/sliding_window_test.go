package utils

import (
	"testing"
	"time"
)

func TestSlidingWindowAddAndCount(t *testing.T) {
	window := NewSlidingWindow(2 * time.Second)
	now := time.Now()
	if count := window.Add(now); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
	window.Add(now.Add(500 * time.Millisecond))
	if count := window.Count(now.Add(1 * time.Second)); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if count := window.Count(now.Add(3 * time.Second)); count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestSlidingWindowEvictsOldestFirst(t *testing.T) {
	window := NewSlidingWindow(10 * time.Second)
	now := time.Now()
	for i := 0; i < 5; i++ {
		window.Add(now.Add(time.Duration(i) * time.Second))
	}
	// 11s past the first stamp: only stamps at +2s and later survive.
	if count := window.Count(now.Add(11 * time.Second)); count != 3 {
		t.Fatalf("expected 3 surviving stamps, got %d", count)
	}
}

func TestSlidingWindowReset(t *testing.T) {
	window := NewSlidingWindow(time.Minute)
	now := time.Now()
	window.Add(now)
	window.Add(now)
	window.Reset()
	if count := window.Count(now); count != 0 {
		t.Fatalf("expected empty window after reset, got %d", count)
	}
}
