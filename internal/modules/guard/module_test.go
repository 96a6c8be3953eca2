package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gatewarden/internal/guild"
	"gatewarden/internal/logging"
	"gatewarden/internal/modules/cases"
	"gatewarden/internal/modules/tracker"
	"gatewarden/internal/storage"

	"github.com/bwmarrin/discordgo"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeDeleter struct {
	mu      sync.Mutex
	err     error
	deleted []string
}

func (d *fakeDeleter) ChannelMessageDelete(_, messageID string, _ ...discordgo.RequestOption) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.deleted = append(d.deleted, messageID)
	return nil
}

func (d *fakeDeleter) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.deleted)
}

type fixture struct {
	guard   *Guard
	clock   *fakeClock
	deleter *fakeDeleter
	store   *storage.Store
	track   *tracker.Tracker
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	track := tracker.New(tracker.Config{Retention: time.Hour, CleanupInterval: time.Hour, BanningTTL: time.Minute}, logging.NewNop())
	t.Cleanup(track.Destroy)

	rec := cases.NewRecorder(store, logging.NewNop())
	g := New(cfg, store, track, rec, logging.NewNop()).WithClock(clock)
	return &fixture{
		guard:   g,
		clock:   clock,
		deleter: &fakeDeleter{},
		store:   store,
		track:   track,
	}
}

func message(id, userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        id,
		ChannelID: "c1",
		GuildID:   "g1",
		Content:   content,
		Author:    &discordgo.User{ID: userID},
	}}
}

func TestFloodDeletesAboveBurst(t *testing.T) {
	f := newFixture(t, Config{Enabled: true, FloodPerMinute: 1, FloodBurst: 2, EscalateAt: 50})
	ctx := context.Background()

	f.guard.HandleMessage(ctx, f.deleter, message("1", "u1", "hi"))
	f.guard.HandleMessage(ctx, f.deleter, message("2", "u1", "hi again"))
	if got := f.deleter.count(); got != 0 {
		t.Fatalf("expected burst to pass, got %d deletions", got)
	}

	f.guard.HandleMessage(ctx, f.deleter, message("3", "u1", "hi once more"))
	if got := f.deleter.count(); got != 1 {
		t.Fatalf("expected third message deleted, got %d deletions", got)
	}
	if got := f.guard.Strikes("g1", "u1"); got != 1 {
		t.Fatalf("expected one strike, got %v", got)
	}
}

func TestBlockedDomainDeletedIncludingSubdomains(t *testing.T) {
	f := newFixture(t, Config{Enabled: true, FloodPerMinute: 60, FloodBurst: 10, EscalateAt: 50})
	ctx := context.Background()

	if err := f.store.AddGuardDomain(ctx, "g1", "evil.com", "block"); err != nil {
		t.Fatalf("AddGuardDomain: %v", err)
	}

	f.guard.HandleMessage(ctx, f.deleter, message("1", "u1", "look https://evil.com/free"))
	if got := f.deleter.count(); got != 1 {
		t.Fatalf("expected blocked domain deleted, got %d deletions", got)
	}

	f.guard.HandleMessage(ctx, f.deleter, message("2", "u2", "see https://cdn.evil.com/drop"))
	if got := f.deleter.count(); got != 2 {
		t.Fatalf("expected subdomain deleted, got %d deletions", got)
	}

	recorded, err := f.store.RecentCases(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("RecentCases: %v", err)
	}
	if len(recorded) != 2 || recorded[0].Action != cases.ActionGuardDelete {
		t.Fatalf("expected guard_delete cases, got %+v", recorded)
	}
}

func TestAllowedDomainPasses(t *testing.T) {
	f := newFixture(t, Config{Enabled: true, FloodPerMinute: 60, FloodBurst: 10, EscalateAt: 50})
	ctx := context.Background()

	if err := f.store.AddGuardDomain(ctx, "g1", "good.com", "allow"); err != nil {
		t.Fatalf("AddGuardDomain: %v", err)
	}

	f.guard.HandleMessage(ctx, f.deleter, message("1", "u1", "docs at https://good.com/help"))
	if got := f.deleter.count(); got != 0 {
		t.Fatalf("expected allowed domain to pass, got %d deletions", got)
	}
}

func TestPolicyCacheInvalidation(t *testing.T) {
	f := newFixture(t, Config{Enabled: true, FloodPerMinute: 60, FloodBurst: 10, EscalateAt: 50, ListCacheTTL: time.Hour})
	ctx := context.Background()

	f.guard.HandleMessage(ctx, f.deleter, message("1", "u1", "https://soon-bad.com/x"))
	if got := f.deleter.count(); got != 0 {
		t.Fatalf("expected unlisted domain to pass, got %d deletions", got)
	}

	if err := f.store.AddGuardDomain(ctx, "g1", "soon-bad.com", "block"); err != nil {
		t.Fatalf("AddGuardDomain: %v", err)
	}

	// Cache still serves the old policy until invalidated.
	f.guard.HandleMessage(ctx, f.deleter, message("2", "u1", "https://soon-bad.com/x"))
	if got := f.deleter.count(); got != 0 {
		t.Fatalf("expected cached policy to pass the message, got %d deletions", got)
	}

	f.guard.InvalidatePolicy("g1")
	f.guard.HandleMessage(ctx, f.deleter, message("3", "u1", "https://soon-bad.com/x"))
	if got := f.deleter.count(); got != 1 {
		t.Fatalf("expected refreshed policy to delete, got %d deletions", got)
	}
}

func TestPerGuildDisableOverridesDefault(t *testing.T) {
	f := newFixture(t, Config{Enabled: true, FloodPerMinute: 60, FloodBurst: 10, EscalateAt: 50})
	ctx := context.Background()

	if err := f.store.AddGuardDomain(ctx, "g1", "evil.com", "block"); err != nil {
		t.Fatalf("AddGuardDomain: %v", err)
	}
	if err := f.store.UpsertGuildSettings(ctx, storage.GuildSettings{GuildID: "g1"}); err != nil {
		t.Fatalf("UpsertGuildSettings: %v", err)
	}

	f.guard.HandleMessage(ctx, f.deleter, message("1", "u1", "https://evil.com/x"))
	if got := f.deleter.count(); got != 0 {
		t.Fatalf("expected per-guild disable to win, got %d deletions", got)
	}

	if err := f.store.UpsertGuildSettings(ctx, storage.GuildSettings{GuildID: "g1", GuardEnabled: true}); err != nil {
		t.Fatalf("UpsertGuildSettings: %v", err)
	}
	f.guard.InvalidatePolicy("g1")

	f.guard.HandleMessage(ctx, f.deleter, message("2", "u1", "https://evil.com/x"))
	if got := f.deleter.count(); got != 1 {
		t.Fatalf("expected re-enabled guard to delete, got %d deletions", got)
	}
}

func TestInviteFromRecentJoinDeleted(t *testing.T) {
	f := newFixture(t, Config{Enabled: true, FloodPerMinute: 60, FloodBurst: 10, EscalateAt: 50})
	ctx := context.Background()

	f.track.OnJoin(ctx, trackedMember("u1"))

	f.guard.HandleMessage(ctx, f.deleter, message("1", "u1", "join us discord.gg/raidparty"))
	if got := f.deleter.count(); got != 1 {
		t.Fatalf("expected invite from recent join deleted, got %d deletions", got)
	}

	f.guard.HandleMessage(ctx, f.deleter, message("2", "u2", "old friends discord.gg/reunion"))
	if got := f.deleter.count(); got != 1 {
		t.Fatalf("expected invite from untracked member kept, got %d deletions", got)
	}
}

func TestEscalationBlocksMember(t *testing.T) {
	f := newFixture(t, Config{Enabled: true, FloodPerMinute: 1, FloodBurst: 1, EscalateAt: 2})
	ctx := context.Background()

	f.track.OnJoin(ctx, trackedMember("u1"))

	f.guard.HandleMessage(ctx, f.deleter, message("1", "u1", "a"))
	f.guard.HandleMessage(ctx, f.deleter, message("2", "u1", "b"))
	f.guard.HandleMessage(ctx, f.deleter, message("3", "u1", "c"))

	entry := f.track.Get("u1")
	if entry == nil || !entry.MessageBlocked {
		t.Fatalf("expected member escalated into message block, got %+v", entry)
	}
	if got := f.guard.Strikes("g1", "u1"); got != 0 {
		t.Fatalf("expected strikes reset after escalation, got %v", got)
	}

	f.guard.HandleMessage(ctx, f.deleter, message("4", "u1", "totally fine message"))
	if got := f.deleter.count(); got != 3 {
		t.Fatalf("expected blocked member deleted on sight, got %d deletions", got)
	}

	recorded, err := f.store.UserCases(ctx, "g1", "u1", 10)
	if err != nil {
		t.Fatalf("UserCases: %v", err)
	}
	if len(recorded) != 1 || recorded[0].Action != cases.ActionGuardEscalate {
		t.Fatalf("expected one escalation case, got %+v", recorded)
	}
}

func TestDeleteFailureLoggedNotFatal(t *testing.T) {
	f := newFixture(t, Config{Enabled: true, FloodPerMinute: 1, FloodBurst: 1, EscalateAt: 50})
	f.deleter.err = errors.New("missing permission")
	ctx := context.Background()

	f.guard.HandleMessage(ctx, f.deleter, message("1", "u1", "a"))
	f.guard.HandleMessage(ctx, f.deleter, message("2", "u1", "b"))

	if entry := f.track.Get("u1"); entry != nil && entry.Purged {
		t.Fatal("expected no purge mark when deletion fails")
	}
}

func TestDisabledGuardIgnoresMessages(t *testing.T) {
	f := newFixture(t, Config{Enabled: false, FloodPerMinute: 1, FloodBurst: 1})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.guard.HandleMessage(ctx, f.deleter, message("1", "u1", "spam spam"))
	}
	if got := f.deleter.count(); got != 0 {
		t.Fatalf("expected disabled guard to stay idle, got %d deletions", got)
	}
}

func TestAuditModeRecordsWithoutActing(t *testing.T) {
	f := newFixture(t, Config{Enabled: true, AuditOnly: true, FloodPerMinute: 60, FloodBurst: 10, EscalateAt: 2})
	ctx := context.Background()

	if err := f.store.AddGuardDomain(ctx, "g1", "evil.com", "block"); err != nil {
		t.Fatalf("AddGuardDomain: %v", err)
	}
	f.track.OnJoin(ctx, trackedMember("u1"))

	f.guard.HandleMessage(ctx, f.deleter, message("1", "u1", "https://evil.com/free"))
	if got := f.deleter.count(); got != 0 {
		t.Fatalf("expected audit mode to leave the message, got %d deletions", got)
	}

	recorded, err := f.store.RecentCases(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("RecentCases: %v", err)
	}
	if len(recorded) != 2 {
		t.Fatalf("expected delete and escalate verdicts recorded, got %+v", recorded)
	}
	if entry := f.track.Get("u1"); entry == nil || entry.MessageBlocked {
		t.Fatalf("expected no message block in audit mode, got %+v", entry)
	}
}

func trackedMember(userID string) guild.Member {
	return guild.Member{GuildID: "g1", UserID: userID, Tag: "user#" + userID, JoinedAt: time.Now()}
}
