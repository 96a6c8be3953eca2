// Package newaccount flags members whose accounts were created shortly
// before joining. Throwaway raid accounts are usually minutes old, so a
// fresh creation time at join is worth a mod-log alert.
package newaccount

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gatewarden/internal/guild"
	"gatewarden/internal/logging"
	"gatewarden/internal/metrics"
	"gatewarden/internal/modules/tracker"

	"go.uber.org/zap"
)

var _ tracker.JoinSubmodule = (*Watcher)(nil)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Config struct {
	Enabled   bool
	Threshold time.Duration
	Debounce  time.Duration
	Color     int
}

type Watcher struct {
	mu        sync.Mutex
	lastAlert map[string]time.Time

	cfg      Config
	resolver guild.Resolver
	log      *logging.Logger
	clock    Clock

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

func New(cfg Config, resolver guild.Resolver, log *logging.Logger) *Watcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 30 * time.Minute
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Minute
	}

	w := &Watcher{
		lastAlert: make(map[string]time.Time),
		cfg:       cfg,
		resolver:  resolver,
		log:       log,
		clock:     systemClock{},
		stop:      make(chan struct{}),
	}
	go w.cleanupLoop()
	return w
}

func (w *Watcher) WithClock(c Clock) *Watcher {
	w.clock = c
	return w
}

func (w *Watcher) Name() string { return "newaccount" }

// HandleJoin decides synchronously whether the join qualifies and reserves
// the debounce slot before any I/O, so overlapping joins for the same
// member cannot double-alert. The alert itself is sent from a detached
// goroutine and never blocks the dispatch path.
func (w *Watcher) HandleJoin(_ context.Context, m guild.Member) error {
	if !w.cfg.Enabled || m.GuildID == "" || m.UserID == "" || m.Bot {
		return nil
	}
	if m.AccountCreatedAt.IsZero() {
		return nil
	}

	now := w.clock.Now()
	age := now.Sub(m.AccountCreatedAt)
	if age < 0 {
		w.log.Warn("newaccount.negative_age",
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.UserID),
			zap.Duration("age", age))
		age = 0
	}
	if age > w.cfg.Threshold {
		return nil
	}

	key := m.GuildID + ":" + m.UserID
	w.mu.Lock()
	if last, ok := w.lastAlert[key]; ok && now.Sub(last) < w.cfg.Debounce {
		w.mu.Unlock()
		w.log.Debug("newaccount.debounced",
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.UserID))
		return nil
	}
	w.lastAlert[key] = now
	w.mu.Unlock()

	w.wg.Add(1)
	go w.alert(m, age, now)
	return nil
}

// Flush waits for in-flight alert sends; used by shutdown and tests.
func (w *Watcher) Flush() {
	w.wg.Wait()
}

// Destroy stops the debounce cleanup goroutine; safe to call more than once.
func (w *Watcher) Destroy() {
	w.once.Do(func() { close(w.stop) })
}

func (w *Watcher) alert(m guild.Member, age time.Duration, reservedAt time.Time) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("newaccount.alert_panic",
				zap.String("guild_id", m.GuildID),
				zap.String("user_id", m.UserID),
				zap.Any("panic", r))
		}
	}()

	// Alerts in flight are not cancellable; the debounce reservation is
	// the only flood control on this path.
	ctx := context.Background()

	ch, err := w.resolver.ModLogChannel(ctx, m.GuildID)
	if err != nil {
		w.log.Warn("newaccount.resolve_failed",
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.UserID),
			zap.Error(err))
		w.rollback(m, reservedAt)
		return
	}
	if ch == nil {
		w.log.Warn("newaccount.no_channel",
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.UserID))
		w.rollback(m, reservedAt)
		return
	}
	if !ch.IsTextBased() {
		w.log.Warn("newaccount.channel_not_text",
			zap.String("guild_id", m.GuildID),
			zap.String("channel_id", ch.ID()))
		w.rollback(m, reservedAt)
		return
	}

	perms, err := ch.PermissionsForSelf()
	if err != nil || perms == nil {
		w.log.Warn("newaccount.permissions_unavailable",
			zap.String("guild_id", m.GuildID),
			zap.String("channel_id", ch.ID()),
			zap.Error(err))
		w.rollback(m, reservedAt)
		return
	}
	usable := true
	if !perms.Has(guild.PermView) {
		w.log.Warn("newaccount.missing_view", zap.String("channel_id", ch.ID()))
		usable = false
	}
	if !perms.Has(guild.PermSend) {
		w.log.Warn("newaccount.missing_send", zap.String("channel_id", ch.ID()))
		usable = false
	}
	if !perms.Has(guild.PermEmbedLinks) {
		w.log.Warn("newaccount.missing_embed_links", zap.String("channel_id", ch.ID()))
		usable = false
	}
	if !usable {
		w.rollback(m, reservedAt)
		return
	}

	if err := ch.Send(ctx, w.buildAlert(m, age)); err != nil {
		w.log.Error("newaccount.send_failed",
			zap.String("guild_id", m.GuildID),
			zap.String("user_id", m.UserID),
			zap.String("channel_id", ch.ID()),
			zap.Error(err))
		w.rollback(m, reservedAt)
		return
	}

	metrics.FreshAccountAlerts.Inc()
	w.log.Debug("newaccount.alerted",
		zap.String("guild_id", m.GuildID),
		zap.String("user_id", m.UserID),
		zap.Duration("account_age", age))
}

// rollback clears the debounce reservation after a failed delivery so the
// next qualifying join gets a fresh attempt. Only this alert's own
// reservation is cleared.
func (w *Watcher) rollback(m guild.Member, reservedAt time.Time) {
	key := m.GuildID + ":" + m.UserID
	w.mu.Lock()
	defer w.mu.Unlock()
	if at, ok := w.lastAlert[key]; ok && at.Equal(reservedAt) {
		delete(w.lastAlert, key)
	}
}

func (w *Watcher) buildAlert(m guild.Member, age time.Duration) guild.Message {
	created := m.AccountCreatedAt.Unix()
	return guild.Message{Embed: &guild.Embed{
		Title:       "Brand-new account joined",
		Description: fmt.Sprintf("<@%s> (%s) joined with an account created <t:%d:R>.", m.UserID, m.Tag, created),
		Color:       w.cfg.Color,
		Fields: []guild.EmbedField{
			{Name: "Account created", Value: fmt.Sprintf("<t:%d:F>", created), Inline: true},
			{Name: "Age at join", Value: formatAge(age), Inline: true},
		},
		Timestamp: w.clock.Now(),
	}}
}

func formatAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(age.Minutes()), int(age.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(age.Hours()), int(age.Minutes())%60)
	}
}

func (w *Watcher) cleanupLoop() {
	interval := w.cfg.Debounce
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.prune(w.clock.Now())
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) prune(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, at := range w.lastAlert {
		if now.Sub(at) > w.cfg.Debounce {
			delete(w.lastAlert, key)
		}
	}
}
