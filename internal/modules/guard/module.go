// Package guard moderates the message layer around fresh joins: per-user
// flood control, invite and domain filtering, and a decaying strike score
// that escalates repeat offenders into a message block.
package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gatewarden/internal/logging"
	"gatewarden/internal/metrics"
	"gatewarden/internal/modules/cases"
	"gatewarden/internal/modules/tracker"
	"gatewarden/internal/ratelimit"
	"gatewarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Deleter is the one session capability guard exercises.
// *discordgo.Session satisfies it.
type Deleter interface {
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

type Config struct {
	Enabled        bool          // default for guilds without an explicit setting
	AuditOnly      bool          // detect, score, and record without deleting or blocking
	FloodPerMinute int           // sustained per-user message budget
	FloodBurst     int           // messages allowed above the sustained rate
	StrikeDecay    float64       // strikes shed per minute
	StrikeTTL      time.Duration // idle time before a strike entry is dropped
	EscalateAt     float64       // strike score that triggers escalation
	ListCacheTTL   time.Duration // how long per-guild policy is served from cache
}

type cachedPolicy struct {
	allow     map[string]struct{}
	block     map[string]struct{}
	enabled   bool
	fetchedAt time.Time
}

type Guard struct {
	cfg     Config
	store   *storage.Store
	track   *tracker.Tracker
	cases   *cases.Recorder
	log     *logging.Logger
	clock   Clock
	flood   *ratelimit.Keyed[string]
	strikes *strikes

	mu       sync.Mutex
	policies map[string]*cachedPolicy
}

func New(cfg Config, store *storage.Store, track *tracker.Tracker, rec *cases.Recorder, log *logging.Logger) *Guard {
	if cfg.FloodPerMinute <= 0 {
		cfg.FloodPerMinute = 20
	}
	if cfg.FloodBurst <= 0 {
		cfg.FloodBurst = 6
	}
	if cfg.StrikeDecay <= 0 {
		cfg.StrikeDecay = 1
	}
	if cfg.StrikeTTL <= 0 {
		cfg.StrikeTTL = 30 * time.Minute
	}
	if cfg.EscalateAt <= 0 {
		cfg.EscalateAt = 5
	}
	if cfg.ListCacheTTL <= 0 {
		cfg.ListCacheTTL = time.Minute
	}

	clock := systemClock{}
	return &Guard{
		cfg:     cfg,
		store:   store,
		track:   track,
		cases:   rec,
		log:     log,
		clock:   clock,
		flood:   ratelimit.NewKeyed[string](ratelimit.PerMinute(cfg.FloodPerMinute), cfg.FloodBurst),
		strikes: newStrikes(cfg.StrikeDecay, cfg.StrikeTTL, clock),
	}
}

func (g *Guard) WithClock(c Clock) *Guard {
	g.clock = c
	g.strikes.clock = c
	return g
}

// HandleMessage inspects one guild message. Deletion failures are logged
// and swallowed; the gateway handler never sees an error from here.
func (g *Guard) HandleMessage(ctx context.Context, session Deleter, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}
	guildID, userID := msg.GuildID, msg.Author.ID

	allow, block, enabled := g.policy(ctx, guildID)
	if !enabled {
		return
	}

	// Members already escalated get no further hearing.
	if entry := g.track.Get(userID); entry != nil && entry.MessageBlocked {
		g.deleteMessage(session, msg, "message block")
		return
	}

	if !g.flood.Allow(guildID + ":" + userID) {
		score := g.strikes.add(guildID, userID, 1)
		g.log.Info("guard.flood",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Float64("strikes", score))
		g.deleteMessage(session, msg, "message flood")
		g.maybeEscalate(ctx, guildID, userID, score, "message flood")
		return
	}

	if hit, detail := g.checkLinks(userID, msg.Content, allow, block); hit {
		score := g.strikes.add(guildID, userID, 2)
		g.log.Warn("guard.link",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.String("detail", detail),
			zap.Float64("strikes", score))
		g.deleteMessage(session, msg, detail)
		g.cases.Record(ctx, cases.Case{
			GuildID:  guildID,
			UserID:   userID,
			Action:   cases.ActionGuardDelete,
			Reason:   detail,
			Severity: cases.SeverityInfo,
		})
		g.maybeEscalate(ctx, guildID, userID, score, detail)
	}
}

// Strikes exposes the current decayed score, for status commands.
func (g *Guard) Strikes(guildID, userID string) float64 {
	return g.strikes.get(guildID, userID)
}

// InvalidatePolicy drops the cached per-guild policy (enable flag and
// domain lists) after a mutation so the next message sees the update
// immediately.
func (g *Guard) InvalidatePolicy(guildID string) {
	g.mu.Lock()
	delete(g.policies, guildID)
	g.mu.Unlock()
}

func (g *Guard) checkLinks(userID, content string, allow, block map[string]struct{}) (bool, string) {
	urls := extractURLs(content)
	invite := hasInvite(content)
	if len(urls) == 0 && !invite {
		return false, ""
	}

	for _, raw := range urls {
		normalized, domain, err := normalizeURL(raw)
		if err != nil {
			continue
		}
		allowed, blocked := domainVerdict(domain, allow, block)
		if allowed {
			continue
		}
		if blocked {
			return true, "blocked domain: " + normalized
		}
	}

	if invite {
		// Invite spam matters most from members still inside the join
		// retention window; long-standing members advertise too, and that
		// is a human moderation call.
		if entry := g.track.Get(userID); entry != nil {
			return true, "invite link from recent join"
		}
	}
	return false, ""
}

func (g *Guard) deleteMessage(session Deleter, msg *discordgo.MessageCreate, why string) {
	if g.cfg.AuditOnly {
		g.log.Info("guard.audit_skip",
			zap.String("guild_id", msg.GuildID),
			zap.String("message_id", msg.ID),
			zap.String("why", why))
		return
	}
	if err := session.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
		g.log.Warn("guard.delete_failed",
			zap.String("guild_id", msg.GuildID),
			zap.String("channel_id", msg.ChannelID),
			zap.String("message_id", msg.ID),
			zap.String("why", why),
			zap.Error(err))
		return
	}
	metrics.GuardDeletions.Inc()
	g.track.MarkPurged(msg.Author.ID)
}

func (g *Guard) maybeEscalate(ctx context.Context, guildID, userID string, score float64, why string) {
	if score < g.cfg.EscalateAt {
		return
	}
	g.strikes.reset(guildID, userID)
	if !g.cfg.AuditOnly {
		g.track.SetMessageBlock(userID, true)
	}
	g.log.Warn("guard.escalated",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.Float64("strikes", score),
		zap.String("why", why))
	g.cases.Record(ctx, cases.Case{
		GuildID:  guildID,
		UserID:   userID,
		Action:   cases.ActionGuardEscalate,
		Reason:   fmt.Sprintf("strike score %.0f: %s", score, why),
		Severity: cases.SeverityWarn,
	})
}

// policy serves the guild's enable flag and domain sets, cached briefly so
// a message burst does not hammer the database. A stale cache beats an
// empty one when the store errors.
func (g *Guard) policy(ctx context.Context, guildID string) (allow, block map[string]struct{}, enabled bool) {
	now := g.clock.Now()

	g.mu.Lock()
	if g.policies == nil {
		g.policies = make(map[string]*cachedPolicy)
	}
	cached := g.policies[guildID]
	g.mu.Unlock()

	if cached != nil && now.Sub(cached.fetchedAt) < g.cfg.ListCacheTTL {
		return cached.allow, cached.block, cached.enabled
	}

	settings, settingsErr := g.store.GetGuildSettings(ctx, guildID, storage.GuildSettings{GuardEnabled: g.cfg.Enabled})
	allowSet, blockSet, domainsErr := g.store.GuardDomains(ctx, guildID)
	if settingsErr != nil || domainsErr != nil {
		g.log.Warn("guard.policy_failed",
			zap.String("guild_id", guildID),
			zap.NamedError("settings_err", settingsErr),
			zap.NamedError("domains_err", domainsErr))
		if cached != nil {
			return cached.allow, cached.block, cached.enabled
		}
		return nil, nil, g.cfg.Enabled
	}

	g.mu.Lock()
	g.policies[guildID] = &cachedPolicy{
		allow:     allowSet,
		block:     blockSet,
		enabled:   settings.GuardEnabled,
		fetchedAt: now,
	}
	g.mu.Unlock()
	return allowSet, blockSet, settings.GuardEnabled
}
