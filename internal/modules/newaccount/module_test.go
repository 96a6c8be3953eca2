package newaccount

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gatewarden/internal/guild"
	"gatewarden/internal/logging"
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

type fakePerms map[guild.Permission]bool

func (p fakePerms) Has(perm guild.Permission) bool { return p[perm] }

func allPerms() fakePerms {
	return fakePerms{guild.PermView: true, guild.PermSend: true, guild.PermEmbedLinks: true}
}

type fakeChannel struct {
	mu       sync.Mutex
	id       string
	text     bool
	perms    guild.PermissionSet
	permErr  error
	sendErr  error
	attempts int
	sent     []guild.Message
}

func (c *fakeChannel) ID() string        { return c.id }
func (c *fakeChannel) Name() string      { return "mod-log" }
func (c *fakeChannel) IsTextBased() bool { return c.text }

func (c *fakeChannel) PermissionsForSelf() (guild.PermissionSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perms, c.permErr
}

func (c *fakeChannel) Send(_ context.Context, msg guild.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) SetRateLimitPerUser(context.Context, int, string) error { return nil }

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeChannel) attemptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *fakeChannel) lastSent() guild.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[len(c.sent)-1]
}

func (c *fakeChannel) setPerms(p guild.PermissionSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.perms = p
}

func (c *fakeChannel) setSendErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

type fakeResolver struct {
	mu  sync.Mutex
	ch  guild.Channel
	err error
}

func (r *fakeResolver) ModLogChannel(context.Context, string) (guild.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch, r.err
}

func (r *fakeResolver) TextChannels(context.Context, string) ([]guild.Channel, error) {
	return nil, nil
}

func (r *fakeResolver) setChannel(ch guild.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ch = ch
}

func testConfig() Config {
	return Config{
		Enabled:   true,
		Threshold: 30 * time.Minute,
		Debounce:  2 * time.Minute,
		Color:     0xEF4444,
	}
}

func newTestWatcher(t *testing.T, cfg Config, resolver *fakeResolver) (*Watcher, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	w := New(cfg, resolver, logging.NewNop()).WithClock(clock)
	t.Cleanup(w.Destroy)
	return w, clock
}

func joinAged(clock *fakeClock, userID string, age time.Duration) guild.Member {
	now := clock.Now()
	return guild.Member{
		GuildID:          "g1",
		UserID:           userID,
		Tag:              "user#" + userID,
		JoinedAt:         now,
		AccountCreatedAt: now.Add(-age),
	}
}

func TestAlertOnFreshAccount(t *testing.T) {
	ch := &fakeChannel{id: "c1", text: true, perms: allPerms()}
	w, clock := newTestWatcher(t, testConfig(), &fakeResolver{ch: ch})

	if err := w.HandleJoin(context.Background(), joinAged(clock, "1", 100*time.Millisecond)); err != nil {
		t.Fatalf("HandleJoin: %v", err)
	}
	w.Flush()

	if got := ch.sentCount(); got != 1 {
		t.Fatalf("expected 1 alert, got %d", got)
	}
	msg := ch.lastSent()
	if msg.Embed == nil {
		t.Fatal("expected an embed payload")
	}
	if msg.Embed.Color != 0xEF4444 {
		t.Fatalf("expected color 0xEF4444, got %#x", msg.Embed.Color)
	}
	if len(msg.Embed.Fields) != 2 {
		t.Fatalf("expected 2 embed fields, got %d", len(msg.Embed.Fields))
	}
	if msg.Embed.Fields[1].Value != "0s" {
		t.Fatalf("expected age field 0s, got %q", msg.Embed.Fields[1].Value)
	}
}

func TestDebounceSuppressesRepeatAlert(t *testing.T) {
	ch := &fakeChannel{id: "c1", text: true, perms: allPerms()}
	w, clock := newTestWatcher(t, testConfig(), &fakeResolver{ch: ch})
	ctx := context.Background()

	w.HandleJoin(ctx, joinAged(clock, "1", time.Second))
	clock.Advance(time.Second)
	w.HandleJoin(ctx, joinAged(clock, "1", time.Second))
	w.Flush()

	if got := ch.sentCount(); got != 1 {
		t.Fatalf("expected second join within debounce to be suppressed, got %d alerts", got)
	}

	clock.Advance(3 * time.Minute)
	w.HandleJoin(ctx, joinAged(clock, "1", time.Second))
	w.Flush()

	if got := ch.sentCount(); got != 2 {
		t.Fatalf("expected fresh alert after debounce expiry, got %d alerts", got)
	}
}

func TestDistinctMembersAlertIndependently(t *testing.T) {
	ch := &fakeChannel{id: "c1", text: true, perms: allPerms()}
	w, clock := newTestWatcher(t, testConfig(), &fakeResolver{ch: ch})
	ctx := context.Background()

	w.HandleJoin(ctx, joinAged(clock, "1", time.Second))
	w.HandleJoin(ctx, joinAged(clock, "2", time.Second))
	w.Flush()

	if got := ch.sentCount(); got != 2 {
		t.Fatalf("expected one alert per member, got %d", got)
	}
}

func TestAgeAtThresholdStillAlerts(t *testing.T) {
	ch := &fakeChannel{id: "c1", text: true, perms: allPerms()}
	w, clock := newTestWatcher(t, testConfig(), &fakeResolver{ch: ch})
	ctx := context.Background()

	w.HandleJoin(ctx, joinAged(clock, "1", 30*time.Minute))
	w.HandleJoin(ctx, joinAged(clock, "2", 30*time.Minute+time.Millisecond))
	w.Flush()

	if got := ch.sentCount(); got != 1 {
		t.Fatalf("expected only the at-threshold account to alert, got %d", got)
	}
}

func TestOldAccountIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold = 1800 * time.Second
	ch := &fakeChannel{id: "c1", text: true, perms: allPerms()}
	w, clock := newTestWatcher(t, cfg, &fakeResolver{ch: ch})
	ctx := context.Background()

	w.HandleJoin(ctx, joinAged(clock, "1", 1900*time.Second))
	w.Flush()
	if got := ch.sentCount(); got != 0 {
		t.Fatalf("expected no alert for aged account, got %d", got)
	}

	w.HandleJoin(ctx, joinAged(clock, "2", 100*time.Millisecond))
	w.Flush()
	if got := ch.sentCount(); got != 1 {
		t.Fatalf("expected fresh account to alert, got %d", got)
	}

	clock.Advance(time.Second)
	w.HandleJoin(ctx, joinAged(clock, "2", time.Second))
	w.Flush()
	if got := ch.sentCount(); got != 1 {
		t.Fatalf("expected repeat join to stay debounced, got %d", got)
	}
}

func TestSendFailureRollsBackDebounce(t *testing.T) {
	ch := &fakeChannel{id: "c1", text: true, perms: allPerms(), sendErr: errors.New("boom")}
	w, clock := newTestWatcher(t, testConfig(), &fakeResolver{ch: ch})
	ctx := context.Background()

	w.HandleJoin(ctx, joinAged(clock, "1", time.Second))
	w.Flush()
	if got := ch.attemptCount(); got != 1 {
		t.Fatalf("expected 1 send attempt, got %d", got)
	}
	if got := ch.sentCount(); got != 0 {
		t.Fatalf("expected delivery to fail, got %d sends", got)
	}

	ch.setSendErr(nil)
	clock.Advance(time.Second)
	w.HandleJoin(ctx, joinAged(clock, "1", time.Second))
	w.Flush()

	if got := ch.sentCount(); got != 1 {
		t.Fatalf("expected retry after rollback to deliver, got %d sends", got)
	}
	if got := ch.attemptCount(); got != 2 {
		t.Fatalf("expected 2 send attempts, got %d", got)
	}
}

func TestMissingPermissionsBlockSend(t *testing.T) {
	ch := &fakeChannel{id: "c1", text: true, perms: fakePerms{guild.PermView: true}}
	w, clock := newTestWatcher(t, testConfig(), &fakeResolver{ch: ch})
	ctx := context.Background()

	w.HandleJoin(ctx, joinAged(clock, "1", time.Second))
	w.Flush()
	if got := ch.attemptCount(); got != 0 {
		t.Fatalf("expected no send without permissions, got %d attempts", got)
	}

	ch.setPerms(allPerms())
	clock.Advance(time.Second)
	w.HandleJoin(ctx, joinAged(clock, "1", time.Second))
	w.Flush()

	if got := ch.sentCount(); got != 1 {
		t.Fatalf("expected alert once permissions granted, got %d", got)
	}
}

func TestNoChannelConfiguredRollsBack(t *testing.T) {
	resolver := &fakeResolver{}
	w, clock := newTestWatcher(t, testConfig(), resolver)
	ctx := context.Background()

	w.HandleJoin(ctx, joinAged(clock, "1", time.Second))
	w.Flush()

	ch := &fakeChannel{id: "c1", text: true, perms: allPerms()}
	resolver.setChannel(ch)
	clock.Advance(time.Second)
	w.HandleJoin(ctx, joinAged(clock, "1", time.Second))
	w.Flush()

	if got := ch.sentCount(); got != 1 {
		t.Fatalf("expected alert once channel configured, got %d", got)
	}
}

func TestSkipsBotsAndUnknownCreation(t *testing.T) {
	ch := &fakeChannel{id: "c1", text: true, perms: allPerms()}
	w, clock := newTestWatcher(t, testConfig(), &fakeResolver{ch: ch})
	ctx := context.Background()

	bot := joinAged(clock, "1", time.Second)
	bot.Bot = true
	w.HandleJoin(ctx, bot)

	unknown := joinAged(clock, "2", time.Second)
	unknown.AccountCreatedAt = time.Time{}
	w.HandleJoin(ctx, unknown)
	w.Flush()

	if got := ch.sentCount(); got != 0 {
		t.Fatalf("expected bots and unknown creation times to be skipped, got %d alerts", got)
	}
}

func TestNegativeAgeClampedToZero(t *testing.T) {
	ch := &fakeChannel{id: "c1", text: true, perms: allPerms()}
	w, clock := newTestWatcher(t, testConfig(), &fakeResolver{ch: ch})

	m := joinAged(clock, "1", 0)
	m.AccountCreatedAt = clock.Now().Add(time.Hour)
	w.HandleJoin(context.Background(), m)
	w.Flush()

	if got := ch.sentCount(); got != 1 {
		t.Fatalf("expected clock-skewed account to alert, got %d", got)
	}
}

func TestDisabledWatcherDoesNothing(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	ch := &fakeChannel{id: "c1", text: true, perms: allPerms()}
	w, clock := newTestWatcher(t, cfg, &fakeResolver{ch: ch})

	w.HandleJoin(context.Background(), joinAged(clock, "1", time.Second))
	w.Flush()

	if got := ch.sentCount(); got != 0 {
		t.Fatalf("expected disabled watcher to stay silent, got %d alerts", got)
	}
}
