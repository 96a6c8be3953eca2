package banwatch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"gatewarden/internal/guild"
	"gatewarden/internal/logging"
	"gatewarden/internal/modules/cases"
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

type fakeChannel struct {
	mu   sync.Mutex
	id   string
	sent []guild.Message
}

func (c *fakeChannel) ID() string                                              { return c.id }
func (c *fakeChannel) Name() string                                            { return "mod-log" }
func (c *fakeChannel) IsTextBased() bool                                       { return true }
func (c *fakeChannel) PermissionsForSelf() (guild.PermissionSet, error)        { return nil, nil }
func (c *fakeChannel) SetRateLimitPerUser(context.Context, int, string) error  { return nil }

func (c *fakeChannel) Send(_ context.Context, msg guild.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) messages() []guild.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]guild.Message(nil), c.sent...)
}

type fakeResolver struct {
	modlog guild.Channel
}

func (r *fakeResolver) ModLogChannel(context.Context, string) (guild.Channel, error) {
	return r.modlog, nil
}

func (r *fakeResolver) TextChannels(context.Context, string) ([]guild.Channel, error) {
	return nil, nil
}

func newTestWatcher(t *testing.T, cfg Config) (*Watcher, *fakeClock, *fakeChannel) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	modlog := &fakeChannel{id: "log"}
	rec := cases.NewRecorder(nil, logging.NewNop())
	w := New(cfg, &fakeResolver{modlog: modlog}, rec, logging.NewNop()).WithClock(clock)
	return w, clock, modlog
}

func ban(userID string) guild.Ban {
	return guild.Ban{GuildID: "g1", UserID: userID, Tag: "user#" + userID}
}

func TestWarnsOnceAtThreshold(t *testing.T) {
	w, clock, modlog := newTestWatcher(t, Config{Enabled: true, Threshold: 3, Window: time.Minute})
	ctx := context.Background()

	w.HandleBan(ctx, ban("1"))
	clock.Advance(time.Second)
	w.HandleBan(ctx, ban("2"))
	clock.Advance(time.Second)
	w.HandleBan(ctx, ban("3"))
	w.Flush()

	msgs := modlog.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one warning, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Content, "3/60s") {
		t.Fatalf("expected observed rate in warning, got %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[0].Content, "user#3") {
		t.Fatalf("expected most recent ban named, got %q", msgs[0].Content)
	}

	clock.Advance(time.Second)
	w.HandleBan(ctx, ban("4"))
	w.Flush()
	if got := len(modlog.messages()); got != 1 {
		t.Fatalf("expected sustained wave to stay on one warning, got %d", got)
	}
}

func TestNewWaveWarnsAgain(t *testing.T) {
	w, clock, modlog := newTestWatcher(t, Config{Enabled: true, Threshold: 2, Window: time.Minute})
	ctx := context.Background()

	w.HandleBan(ctx, ban("1"))
	w.HandleBan(ctx, ban("2"))
	w.Flush()
	if got := len(modlog.messages()); got != 1 {
		t.Fatalf("expected first wave warning, got %d", got)
	}

	clock.Advance(2 * time.Minute)

	w.HandleBan(ctx, ban("3"))
	w.HandleBan(ctx, ban("4"))
	w.Flush()
	if got := len(modlog.messages()); got != 2 {
		t.Fatalf("expected a second wave warning, got %d", got)
	}
}

func TestBelowThresholdStaysQuiet(t *testing.T) {
	w, clock, modlog := newTestWatcher(t, Config{Enabled: true, Threshold: 5, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		w.HandleBan(ctx, ban("1"))
		clock.Advance(time.Second)
	}
	w.Flush()

	if got := len(modlog.messages()); got != 0 {
		t.Fatalf("expected no warning below threshold, got %d", got)
	}
}

func TestGuildsCountedIndependently(t *testing.T) {
	w, _, modlog := newTestWatcher(t, Config{Enabled: true, Threshold: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		w.HandleBan(ctx, guild.Ban{GuildID: "g1", UserID: "1"})
		w.HandleBan(ctx, guild.Ban{GuildID: "g2", UserID: "2"})
	}
	w.Flush()

	if got := len(modlog.messages()); got != 0 {
		t.Fatalf("expected per-guild counting, got %d warnings", got)
	}
}

func TestDisabledWatcherIgnoresBans(t *testing.T) {
	w, _, modlog := newTestWatcher(t, Config{Enabled: false, Threshold: 1, Window: time.Minute})
	ctx := context.Background()

	w.HandleBan(ctx, ban("1"))
	w.Flush()

	if got := len(modlog.messages()); got != 0 {
		t.Fatalf("expected disabled watcher to stay silent, got %d", got)
	}
}
