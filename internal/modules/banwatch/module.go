// Package banwatch warns moderators when bans land faster than a human
// would issue them, which usually means a compromised mod account or an
// unattended bot sweep.
package banwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gatewarden/internal/guild"
	"gatewarden/internal/logging"
	"gatewarden/internal/metrics"
	"gatewarden/internal/modules/cases"
	"gatewarden/internal/modules/tracker"
	"gatewarden/internal/utils"

	"go.uber.org/zap"
)

var _ tracker.BanSubmodule = (*Watcher)(nil)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Config struct {
	Enabled   bool
	Threshold int           // bans inside the window before a warning
	Window    time.Duration // span the ban counter looks back over
}

type Watcher struct {
	mu       sync.Mutex
	windows  map[string]*utils.SlidingWindow
	lastWarn map[string]time.Time

	cfg      Config
	resolver guild.Resolver
	cases    *cases.Recorder
	log      *logging.Logger
	clock    Clock

	wg sync.WaitGroup
}

func New(cfg Config, resolver guild.Resolver, rec *cases.Recorder, log *logging.Logger) *Watcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Watcher{
		windows:  make(map[string]*utils.SlidingWindow),
		lastWarn: make(map[string]time.Time),
		cfg:      cfg,
		resolver: resolver,
		cases:    rec,
		log:      log,
		clock:    systemClock{},
	}
}

func (w *Watcher) WithClock(c Clock) *Watcher {
	w.clock = c
	return w
}

func (w *Watcher) Name() string { return "banwatch" }

// HandleBan counts the ban and warns once per wave. The warning is
// suppressed while a previous one for the same guild is younger than the
// window, so a sustained wave produces a single announcement.
func (w *Watcher) HandleBan(_ context.Context, b guild.Ban) error {
	if !w.cfg.Enabled || b.GuildID == "" {
		return nil
	}
	now := w.clock.Now()

	w.mu.Lock()
	win := w.windowLocked(b.GuildID)
	count := win.Add(now)
	if count < w.cfg.Threshold {
		w.mu.Unlock()
		return nil
	}
	if last, ok := w.lastWarn[b.GuildID]; ok && now.Sub(last) < w.cfg.Window {
		w.mu.Unlock()
		w.log.Debug("banwatch.suppressed",
			zap.String("guild_id", b.GuildID),
			zap.Int("bans", count))
		return nil
	}
	w.lastWarn[b.GuildID] = now
	w.mu.Unlock()

	w.log.Warn("banwatch.wave",
		zap.String("guild_id", b.GuildID),
		zap.Int("bans", count),
		zap.Int("threshold", w.cfg.Threshold))
	metrics.BanWaveWarnings.Inc()

	w.wg.Add(1)
	go w.warn(b, count)
	return nil
}

// Flush waits for in-flight warnings; used by shutdown and tests.
func (w *Watcher) Flush() {
	w.wg.Wait()
}

func (w *Watcher) warn(b guild.Ban, count int) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("banwatch.warn_panic",
				zap.String("guild_id", b.GuildID),
				zap.Any("panic", r))
		}
	}()

	ctx := context.Background()
	windowSecs := int(w.cfg.Window / time.Second)
	reason := fmt.Sprintf("ban rate %d/%ds reached threshold %d", count, windowSecs, w.cfg.Threshold)

	ch, err := w.resolver.ModLogChannel(ctx, b.GuildID)
	if err != nil {
		w.log.Warn("banwatch.resolve_failed",
			zap.String("guild_id", b.GuildID),
			zap.Error(err))
	} else if ch == nil {
		w.log.Debug("banwatch.no_channel", zap.String("guild_id", b.GuildID))
	} else {
		text := fmt.Sprintf("Ban wave detected: %s. Most recent: %s (<@%s>).", reason, b.Tag, b.UserID)
		if err := ch.Send(ctx, guild.Message{Content: text}); err != nil {
			w.log.Warn("banwatch.announce_failed",
				zap.String("guild_id", b.GuildID),
				zap.String("channel_id", ch.ID()),
				zap.Error(err))
		}
	}

	w.cases.Record(ctx, cases.Case{
		GuildID:  b.GuildID,
		UserID:   b.UserID,
		Action:   cases.ActionBanWave,
		Reason:   reason,
		Severity: cases.SeverityWarn,
	})
}

func (w *Watcher) windowLocked(guildID string) *utils.SlidingWindow {
	win := w.windows[guildID]
	if win == nil {
		win = utils.NewSlidingWindow(w.cfg.Window)
		w.windows[guildID] = win
	}
	return win
}
