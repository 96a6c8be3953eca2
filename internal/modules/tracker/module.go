// Package tracker keeps the in-memory ledger of recent guild joins and fans
// join/ban events out to registered submodules. Ledger entries live until the
// retention window expires them; nothing here is persisted.
package tracker

import (
	"context"
	"sync"
	"time"

	"gatewarden/internal/guild"
	"gatewarden/internal/logging"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Submodule is a pluggable observer registered with the tracker. Observers
// implement JoinSubmodule, BanSubmodule, or both.
type Submodule interface {
	Name() string
}

type JoinSubmodule interface {
	Submodule
	HandleJoin(ctx context.Context, m guild.Member) error
}

type BanSubmodule interface {
	Submodule
	HandleBan(ctx context.Context, b guild.Ban) error
}

// Entry is one tracked join. JoinedAt is when the member joined the guild;
// AddedAt is when the entry was recorded and drives window eviction, so
// backfilled joins age out on their own schedule.
type Entry struct {
	GuildID          string
	UserID           string
	Tag              string
	JoinedAt         time.Time
	AddedAt          time.Time
	AccountCreatedAt time.Time
	Purged           bool
	MessageBlocked   bool
}

type Config struct {
	Retention       time.Duration
	CleanupInterval time.Duration
	BanningTTL      time.Duration
}

type Tracker struct {
	mu      sync.Mutex
	entries []*Entry
	byID    map[string]*Entry
	banning map[string]time.Time
	subs    []Submodule

	cfg   Config
	log   *logging.Logger
	clock Clock

	stop chan struct{}
	once sync.Once
}

func New(cfg Config, log *logging.Logger) *Tracker {
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.BanningTTL <= 0 {
		cfg.BanningTTL = 5 * time.Minute
	}

	t := &Tracker{
		byID:    make(map[string]*Entry),
		banning: make(map[string]time.Time),
		cfg:     cfg,
		log:     log,
		clock:   systemClock{},
		stop:    make(chan struct{}),
	}
	go t.cleanupLoop()
	return t
}

func (t *Tracker) WithClock(c Clock) *Tracker {
	t.clock = c
	return t
}

func (t *Tracker) cleanupLoop() {
	ticker := time.NewTicker(t.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Trim(t.clock.Now())
		case <-t.stop:
			return
		}
	}
}

// Destroy stops the cleanup goroutine; safe to call more than once.
func (t *Tracker) Destroy() {
	t.once.Do(func() { close(t.stop) })
}

// OnJoin records the join and notifies submodules. Events without a user id
// are dropped with a warning; a duplicate id keeps the original entry. Both
// cases still never propagate an error, the gateway dispatch path must not
// stall on bad input.
func (t *Tracker) OnJoin(ctx context.Context, m guild.Member) {
	if m.UserID == "" {
		t.log.Warn("tracker.join_missing_id", zap.String("guild_id", m.GuildID))
		return
	}

	now := t.clock.Now()
	joinedAt := m.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = now
	}

	t.mu.Lock()
	if _, exists := t.byID[m.UserID]; exists {
		t.mu.Unlock()
		t.log.Warn("tracker.duplicate_join",
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.UserID))
	} else {
		entry := &Entry{
			GuildID:          m.GuildID,
			UserID:           m.UserID,
			Tag:              m.Tag,
			JoinedAt:         joinedAt,
			AddedAt:          now,
			AccountCreatedAt: m.AccountCreatedAt,
		}
		t.entries = append(t.entries, entry)
		t.byID[m.UserID] = entry
		t.mu.Unlock()
	}

	for _, sub := range t.submodules() {
		t.dispatchJoin(ctx, sub, m)
	}
}

// OnBan notifies ban-capable submodules; the ledger is not touched.
func (t *Tracker) OnBan(ctx context.Context, b guild.Ban) {
	for _, sub := range t.submodules() {
		t.dispatchBan(ctx, sub, b)
	}
}

func (t *Tracker) AddSubmodule(sub Submodule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, sub)
}

// AddPseudoEntry inserts a ledger entry without submodule fan-out, for
// members observed outside the join event stream. Duplicates are rejected.
func (t *Tracker) AddPseudoEntry(m guild.Member) {
	if m.UserID == "" {
		t.log.Warn("tracker.pseudo_missing_id", zap.String("guild_id", m.GuildID))
		return
	}

	now := t.clock.Now()
	joinedAt := m.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = now
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byID[m.UserID]; exists {
		t.log.Error("tracker.pseudo_duplicate",
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.UserID))
		return
	}
	entry := &Entry{
		GuildID:          m.GuildID,
		UserID:           m.UserID,
		Tag:              m.Tag,
		JoinedAt:         joinedAt,
		AddedAt:          now,
		AccountCreatedAt: m.AccountCreatedAt,
	}
	t.entries = append(t.entries, entry)
	t.byID[m.UserID] = entry
}

// Get returns a copy of the entry for id, or nil when absent or expired.
func (t *Tracker) Get(id string) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.byID[id]
	if !ok {
		return nil
	}
	copied := *entry
	return &copied
}

func (t *Tracker) MarkPurged(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.byID[id]; ok {
		entry.Purged = true
	}
}

func (t *Tracker) SetMessageBlock(id string, blocked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.byID[id]; ok {
		entry.MessageBlocked = blocked
	}
}

// MarkCurrentlyBanning flags id as having a ban in flight, de-duplicating
// the ban event that follows.
func (t *Tracker) MarkCurrentlyBanning(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.banning[id] = t.clock.Now()
}

// IsCurrentlyBanning reports whether a ban for id is in flight; stale
// markers are removed on read.
func (t *Tracker) IsCurrentlyBanning(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	markedAt, ok := t.banning[id]
	if !ok {
		return false
	}
	if t.clock.Now().Sub(markedAt) > t.cfg.BanningTTL {
		delete(t.banning, id)
		return false
	}
	return true
}

// Trim evicts ledger entries recorded before now minus the retention window
// and expires stale banning markers. Entries are append-ordered by AddedAt,
// so a single scan from the front finds the eviction boundary.
func (t *Tracker) Trim(now time.Time) {
	cutoff := now.Add(-t.cfg.Retention)

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := 0
	for _, entry := range t.entries {
		if !entry.AddedAt.Before(cutoff) {
			break
		}
		idx++
	}
	if idx > 0 {
		for _, entry := range t.entries[:idx] {
			delete(t.byID, entry.UserID)
		}
		t.entries = t.entries[idx:]
	}

	for id, markedAt := range t.banning {
		if now.Sub(markedAt) > t.cfg.BanningTTL {
			delete(t.banning, id)
		}
	}
}

// Recent returns copies of entries recorded within since, newest first.
func (t *Tracker) Recent(now time.Time, since time.Duration) []Entry {
	cutoff := now.Add(-since)

	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Entry
	for i := len(t.entries) - 1; i >= 0; i-- {
		entry := t.entries[i]
		if entry.AddedAt.Before(cutoff) {
			break
		}
		out = append(out, *entry)
	}
	return out
}

func (t *Tracker) submodules() []Submodule {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Submodule(nil), t.subs...)
}

// Submodule failures are isolated: a panic or error in one observer is
// logged and the rest still run.
func (t *Tracker) dispatchJoin(ctx context.Context, sub Submodule, m guild.Member) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("tracker.submodule_panic",
				zap.String("submodule", sub.Name()),
				zap.String("guild_id", m.GuildID),
				zap.Any("panic", r))
		}
	}()

	js, ok := sub.(JoinSubmodule)
	if !ok {
		return
	}
	if err := js.HandleJoin(ctx, m); err != nil {
		t.log.Error("tracker.submodule_failed",
			zap.String("submodule", sub.Name()),
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.UserID),
			zap.Error(err))
	}
}

func (t *Tracker) dispatchBan(ctx context.Context, sub Submodule, b guild.Ban) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("tracker.submodule_panic",
				zap.String("submodule", sub.Name()),
				zap.String("guild_id", b.GuildID),
				zap.Any("panic", r))
		}
	}()

	bs, ok := sub.(BanSubmodule)
	if !ok {
		return
	}
	if err := bs.HandleBan(ctx, b); err != nil {
		t.log.Error("tracker.submodule_failed",
			zap.String("submodule", sub.Name()),
			zap.String("guild_id", b.GuildID),
			zap.String("user_id", b.UserID),
			zap.Error(err))
	}
}
