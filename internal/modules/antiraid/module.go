// Package antiraid watches per-guild join velocity and locks the guild down
// when an armed threshold is crossed.
package antiraid

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

var _ tracker.JoinSubmodule = (*Service)(nil)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

type Config struct {
	DefaultThreshold int           // joins per minute before lockdown
	Window           time.Duration // span the join counter looks back over
	Slowmode         int           // seconds of slow-mode applied during lockdown
	AutoLift         time.Duration // 0 disables the scheduled lift
}

// Status is a read-only snapshot of one guild's raid state.
type Status struct {
	Armed       bool
	Threshold   int
	RecentJoins int
	Lockdown    bool
	Since       time.Time
}

type guildState struct {
	armed     bool
	threshold int
	window    *utils.SlidingWindow
	lockdown  bool
	since     time.Time
	liftTimer Timer
}

// Service tracks join timestamps per guild and, while armed, transitions to
// lockdown when the in-window count reaches the threshold. Channel sweeps
// and announcements run off the dispatch path; the decision itself is taken
// under the state lock so a burst cannot double-trigger.
type Service struct {
	mu     sync.Mutex
	states map[string]*guildState

	cfg      Config
	resolver guild.Resolver
	cases    *cases.Recorder
	log      *logging.Logger
	clock    Clock

	wg sync.WaitGroup
}

func New(cfg Config, resolver guild.Resolver, rec *cases.Recorder, log *logging.Logger) *Service {
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Slowmode <= 0 {
		cfg.Slowmode = 30
	}

	return &Service{
		states:   make(map[string]*guildState),
		cfg:      cfg,
		resolver: resolver,
		cases:    rec,
		log:      log,
		clock:    realClock{},
	}
}

func (s *Service) WithClock(c Clock) *Service {
	s.clock = c
	return s
}

func (s *Service) Name() string { return "antiraid" }

func (s *Service) HandleJoin(_ context.Context, m guild.Member) error {
	s.RecordJoin(m.GuildID)
	return nil
}

// RecordJoin counts the join and triggers lockdown when the guild is armed,
// not already locked down, and the post-eviction count reaches the
// threshold. Re-triggering while locked down is suppressed.
func (s *Service) RecordJoin(guildID string) {
	if guildID == "" {
		return
	}
	now := s.clock.Now()

	s.mu.Lock()
	st := s.stateLocked(guildID)
	count := st.window.Add(now)
	if !st.armed || st.lockdown || count < st.threshold {
		s.mu.Unlock()
		return
	}

	st.lockdown = true
	st.since = now
	threshold := st.threshold
	windowSecs := int(s.cfg.Window / time.Second)
	reason := fmt.Sprintf("join rate %d/%ds exceeded threshold %d/min", count, windowSecs, threshold)
	if st.liftTimer != nil {
		st.liftTimer.Stop()
		st.liftTimer = nil
	}
	if s.cfg.AutoLift > 0 {
		st.liftTimer = s.clock.AfterFunc(s.cfg.AutoLift, func() { s.autoLift(guildID) })
	}
	s.mu.Unlock()

	s.log.Warn("antiraid.lockdown",
		zap.String("guild_id", guildID),
		zap.Int("joins", count),
		zap.Int("threshold", threshold))
	metrics.RaidLockdowns.Inc()
	metrics.LockdownsActive.Inc()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("antiraid.lockdown_panic",
					zap.String("guild_id", guildID),
					zap.Any("panic", r))
			}
		}()
		s.lockdown(context.Background(), guildID, reason)
	}()
}

// Arm enables raid detection for the guild. Join counting runs regardless,
// so arming mid-burst can trigger on the very next join.
func (s *Service) Arm(guildID string) {
	s.mu.Lock()
	st := s.stateLocked(guildID)
	st.armed = true
	s.mu.Unlock()
	s.log.Info("antiraid.armed", zap.String("guild_id", guildID))
}

// Disarm disables detection and clears the lockdown flag. Channel slow-mode
// is left as-is; LiftLockdown is the symmetric undo.
func (s *Service) Disarm(guildID string) {
	s.mu.Lock()
	st := s.stateLocked(guildID)
	st.armed = false
	wasLocked := st.lockdown
	st.lockdown = false
	if st.liftTimer != nil {
		st.liftTimer.Stop()
		st.liftTimer = nil
	}
	s.mu.Unlock()

	if wasLocked {
		metrics.LockdownsActive.Dec()
	}
	s.log.Info("antiraid.disarmed", zap.String("guild_id", guildID))
}

func (s *Service) SetThreshold(guildID string, perMinute int) {
	if perMinute < 1 {
		perMinute = 1
	}
	s.mu.Lock()
	st := s.stateLocked(guildID)
	st.threshold = perMinute
	s.mu.Unlock()
	s.log.Info("antiraid.threshold",
		zap.String("guild_id", guildID),
		zap.Int("per_minute", perMinute))
}

func (s *Service) Status(guildID string) Status {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(guildID)
	return Status{
		Armed:       st.armed,
		Threshold:   st.threshold,
		RecentJoins: st.window.Count(now),
		Lockdown:    st.lockdown,
		Since:       st.since,
	}
}

// StartLockdown engages a lockdown immediately, bypassing join-rate
// detection. No-op when the guild is already locked down. Runs the sweep
// synchronously; command handlers want completion before they respond.
func (s *Service) StartLockdown(ctx context.Context, guildID, reason string) {
	if guildID == "" {
		return
	}
	s.mu.Lock()
	st := s.stateLocked(guildID)
	if st.lockdown {
		s.mu.Unlock()
		return
	}
	st.lockdown = true
	st.since = s.clock.Now()
	if st.liftTimer != nil {
		st.liftTimer.Stop()
		st.liftTimer = nil
	}
	if s.cfg.AutoLift > 0 {
		st.liftTimer = s.clock.AfterFunc(s.cfg.AutoLift, func() { s.autoLift(guildID) })
	}
	s.mu.Unlock()

	if reason == "" {
		reason = "manual lockdown"
	}
	s.log.Warn("antiraid.manual_lockdown",
		zap.String("guild_id", guildID),
		zap.String("reason", reason))
	metrics.RaidLockdowns.Inc()
	metrics.LockdownsActive.Inc()
	s.lockdown(ctx, guildID, reason)
}

// LiftLockdown clears the lockdown flag, resets slow-mode on every text
// channel, and announces the lift. The sweep runs even if no lockdown was
// active so a manual lift can clean up stray slow-mode.
func (s *Service) LiftLockdown(ctx context.Context, guildID, note string) {
	s.mu.Lock()
	st := s.stateLocked(guildID)
	wasLocked := st.lockdown
	st.lockdown = false
	if st.liftTimer != nil {
		st.liftTimer.Stop()
		st.liftTimer = nil
	}
	s.mu.Unlock()

	if note == "" {
		note = "manual lift"
	}
	s.sweepSlowmode(ctx, guildID, 0, "raid lockdown lifted")
	s.announce(ctx, guildID, "Raid lockdown lifted: "+note)

	if wasLocked {
		metrics.RaidLifts.Inc()
		metrics.LockdownsActive.Dec()
		s.cases.Record(ctx, cases.Case{
			GuildID:  guildID,
			Action:   cases.ActionRaidLift,
			Reason:   note,
			Severity: cases.SeverityInfo,
		})
	}
	s.log.Info("antiraid.lift",
		zap.String("guild_id", guildID),
		zap.String("note", note),
		zap.Bool("was_locked", wasLocked))
}

// Flush waits for in-flight lockdown sweeps; used by shutdown and tests.
func (s *Service) Flush() {
	s.wg.Wait()
}

func (s *Service) autoLift(guildID string) {
	s.LiftLockdown(context.Background(), guildID, fmt.Sprintf("auto-lift after %s", s.cfg.AutoLift))
}

func (s *Service) lockdown(ctx context.Context, guildID, reason string) {
	s.sweepSlowmode(ctx, guildID, s.cfg.Slowmode, "raid lockdown: "+reason)
	s.announce(ctx, guildID, "Raid lockdown engaged: "+reason)
	s.cases.Record(ctx, cases.Case{
		GuildID:  guildID,
		Action:   cases.ActionRaidLockdown,
		Reason:   reason,
		Severity: cases.SeverityCrit,
	})
}

// sweepSlowmode applies the slow-mode seconds to every text channel,
// independently per channel. A single channel's failure must not block the
// rest, so errors are logged and swallowed.
func (s *Service) sweepSlowmode(ctx context.Context, guildID string, seconds int, reason string) {
	channels, err := s.resolver.TextChannels(ctx, guildID)
	if err != nil {
		s.log.Warn("antiraid.channels_failed",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return
	}
	for _, ch := range channels {
		if ch == nil || !ch.IsTextBased() {
			continue
		}
		if err := ch.SetRateLimitPerUser(ctx, seconds, reason); err != nil {
			s.log.Warn("antiraid.channel_failed",
				zap.String("guild_id", guildID),
				zap.String("channel_id", ch.ID()),
				zap.Int("seconds", seconds),
				zap.Error(err))
		}
	}
}

func (s *Service) announce(ctx context.Context, guildID, text string) {
	ch, err := s.resolver.ModLogChannel(ctx, guildID)
	if err != nil {
		s.log.Warn("antiraid.resolve_failed",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return
	}
	if ch == nil {
		s.log.Debug("antiraid.no_channel", zap.String("guild_id", guildID))
		return
	}
	if err := ch.Send(ctx, guild.Message{Content: text}); err != nil {
		s.log.Warn("antiraid.announce_failed",
			zap.String("guild_id", guildID),
			zap.String("channel_id", ch.ID()),
			zap.Error(err))
	}
}

func (s *Service) stateLocked(guildID string) *guildState {
	st := s.states[guildID]
	if st == nil {
		st = &guildState{
			threshold: s.cfg.DefaultThreshold,
			window:    utils.NewSlidingWindow(s.cfg.Window),
		}
		s.states[guildID] = st
	}
	return st
}
