package guard

import (
	"sync"
	"time"
)

type strikeEntry struct {
	score     float64
	updatedAt time.Time
}

// strikes is a per-member misbehavior score. Scores shed decayPerMinute
// linearly between touches, and entries idle past the TTL are dropped on
// the next read, so good behavior clears the slate without a sweeper.
type strikes struct {
	mu      sync.Mutex
	decay   float64
	ttl     time.Duration
	clock   Clock
	entries map[string]*strikeEntry
}

func newStrikes(decayPerMinute float64, ttl time.Duration, clock Clock) *strikes {
	return &strikes{
		decay:   decayPerMinute,
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]*strikeEntry),
	}
}

func (s *strikes) add(guildID, userID string, delta float64) float64 {
	key := guildID + ":" + userID
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[key]
	if e == nil {
		e = &strikeEntry{updatedAt: now}
		s.entries[key] = e
	}
	e.score = s.decayed(e.score, e.updatedAt, now) + delta
	if e.score < 0 {
		e.score = 0
	}
	e.updatedAt = now
	return e.score
}

func (s *strikes) get(guildID, userID string) float64 {
	key := guildID + ":" + userID
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[key]
	if e == nil {
		return 0
	}
	if s.ttl > 0 && now.Sub(e.updatedAt) > s.ttl {
		delete(s.entries, key)
		return 0
	}
	return s.decayed(e.score, e.updatedAt, now)
}

func (s *strikes) reset(guildID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, guildID+":"+userID)
}

func (s *strikes) decayed(score float64, last, now time.Time) float64 {
	minutes := now.Sub(last).Minutes()
	if minutes <= 0 {
		return score
	}
	score -= minutes * s.decay
	if score < 0 {
		return 0
	}
	return score
}
