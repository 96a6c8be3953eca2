package guard

import (
	"testing"
	"time"
)

func TestStrikesDecayLinearly(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	s := newStrikes(1, time.Hour, clock)

	if got := s.add("g1", "u1", 3); got != 3 {
		t.Fatalf("expected score 3, got %v", got)
	}

	clock.Advance(2 * time.Minute)
	if got := s.get("g1", "u1"); got != 1 {
		t.Fatalf("expected score decayed to 1, got %v", got)
	}

	clock.Advance(5 * time.Minute)
	if got := s.get("g1", "u1"); got != 0 {
		t.Fatalf("expected score floored at 0, got %v", got)
	}
}

func TestStrikesExpireWhenIdle(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	s := newStrikes(0.001, 10*time.Minute, clock)

	s.add("g1", "u1", 5)
	clock.Advance(11 * time.Minute)

	if got := s.get("g1", "u1"); got != 0 {
		t.Fatalf("expected idle entry expired, got %v", got)
	}
	if len(s.entries) != 0 {
		t.Fatalf("expected entry removed, got %d entries", len(s.entries))
	}
}

func TestStrikesAccumulateAcrossAdds(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	s := newStrikes(1, time.Hour, clock)

	s.add("g1", "u1", 2)
	clock.Advance(time.Minute)
	if got := s.add("g1", "u1", 2); got != 3 {
		t.Fatalf("expected decay applied before add, got %v", got)
	}
}

func TestStrikesResetAndIsolation(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	s := newStrikes(1, time.Hour, clock)

	s.add("g1", "u1", 4)
	s.add("g1", "u2", 1)
	s.reset("g1", "u1")

	if got := s.get("g1", "u1"); got != 0 {
		t.Fatalf("expected reset score, got %v", got)
	}
	if got := s.get("g1", "u2"); got != 1 {
		t.Fatalf("expected other member untouched, got %v", got)
	}
}
