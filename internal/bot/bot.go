// Package bot binds the moderation pipeline to the Discord gateway. It owns
// the session, translates gateway events into domain events for the join
// ledger and its submodules, registers the slash-command surface, and
// carries alerts back out to guild channels.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gatewarden/internal/config"
	"gatewarden/internal/guild"
	"gatewarden/internal/logging"
	"gatewarden/internal/modules/antiraid"
	"gatewarden/internal/modules/banwatch"
	"gatewarden/internal/modules/cases"
	"gatewarden/internal/modules/guard"
	"gatewarden/internal/modules/newaccount"
	"gatewarden/internal/modules/tracker"
	"gatewarden/internal/ratelimit"
	"gatewarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg     config.Config
	logger  *logging.Logger
	store   *storage.Store
	session *discordgo.Session

	resolver *sessionResolver
	recorder *cases.Recorder
	tracker  *tracker.Tracker
	watcher  *newaccount.Watcher
	raid     *antiraid.Service
	banwatch *banwatch.Watcher
	guard    *guard.Guard

	// announce throttles mod-log case notifications per guild.
	announce *ratelimit.Keyed[string]
}

func New(cfg config.Config, logger *logging.Logger, store *storage.Store) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent

	resolver := &sessionResolver{session: session, store: store}
	recorder := cases.NewRecorder(store, logger)

	track := tracker.New(tracker.Config{
		Retention:       time.Duration(cfg.Tracker.RetentionMinutes) * time.Minute,
		CleanupInterval: time.Duration(cfg.Tracker.CleanupMinutes) * time.Minute,
		BanningTTL:      time.Duration(cfg.Tracker.BanningTTLMinutes) * time.Minute,
	}, logger)

	watcher := newaccount.New(newaccount.Config{
		Enabled:   cfg.FreshAccounts.Enabled,
		Threshold: time.Duration(cfg.FreshAccounts.ThresholdMinutes) * time.Minute,
		Debounce:  time.Duration(cfg.FreshAccounts.DebounceMinutes) * time.Minute,
		Color:     cfg.FreshAccounts.EmbedColor,
	}, resolver, logger)

	raid := antiraid.New(antiraid.Config{
		DefaultThreshold: cfg.AntiRaid.JoinsPerMinute,
		Window:           time.Duration(cfg.AntiRaid.WindowSeconds) * time.Second,
		Slowmode:         cfg.AntiRaid.SlowmodeSeconds,
		AutoLift:         time.Duration(cfg.AntiRaid.AutoLiftMinutes) * time.Minute,
	}, resolver, recorder, logger)

	bans := banwatch.New(banwatch.Config{
		Enabled:   cfg.BanWatch.Enabled,
		Threshold: cfg.BanWatch.BansPerMinute,
		Window:    time.Duration(cfg.BanWatch.WindowSeconds) * time.Second,
	}, resolver, recorder, logger)

	guardMod := guard.New(guard.Config{
		Enabled:        cfg.Guard.Enabled,
		AuditOnly:      cfg.Mode == "audit",
		FloodPerMinute: cfg.Guard.FloodPerMinute,
		FloodBurst:     cfg.Guard.FloodBurst,
		StrikeDecay:    cfg.Guard.StrikeDecayPerMinute,
		StrikeTTL:      time.Duration(cfg.Guard.StrikeTTLMinutes) * time.Minute,
		EscalateAt:     cfg.Guard.EscalateStrikes,
	}, store, track, recorder, logger)

	track.AddSubmodule(watcher)
	track.AddSubmodule(raid)
	track.AddSubmodule(bans)

	b := &Bot{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		session:  session,
		resolver: resolver,
		recorder: recorder,
		tracker:  track,
		watcher:  watcher,
		raid:     raid,
		banwatch: bans,
		guard:    guardMod,
		announce: ratelimit.NewKeyed[string](ratelimit.PerMinute(cfg.Announce.PerMinute), cfg.Announce.Burst),
	}
	recorder.SetNotifier(b.notifyCase)
	return b, nil
}

// Start opens the gateway, registers the slash commands, and re-arms raid
// detection from persisted settings.
func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildBanAdd)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	if err := b.registerCommands(); err != nil {
		b.logger.Error("bot.register_commands", zap.Error(err))
	}

	if channelID := b.cfg.Logging.MirrorChannelID; channelID != "" {
		b.logger.SetMirror(func(line string) error {
			return b.mirrorLine(channelID, line)
		})
	}

	b.restoreArmedGuilds(ctx)
	return nil
}

// Close disconnects from the gateway, drains in-flight alert tasks, and
// stops the maintenance loops.
func (b *Bot) Close() {
	if err := b.session.Close(); err != nil {
		b.logger.Warn("bot.session_close", zap.Error(err))
	}
	b.watcher.Flush()
	b.raid.Flush()
	b.banwatch.Flush()
	b.watcher.Destroy()
	b.tracker.Destroy()
}

// restoreArmedGuilds re-arms the raid detector from persisted settings so a
// restart does not silently drop protection.
func (b *Bot) restoreArmedGuilds(ctx context.Context) {
	armed, err := b.store.ListArmedGuilds(ctx)
	if err != nil {
		b.logger.Error("bot.restore_armed", zap.Error(err))
		return
	}
	for _, settings := range armed {
		b.raid.Arm(settings.GuildID)
		if settings.RaidThreshold > 0 {
			b.raid.SetThreshold(settings.GuildID, settings.RaidThreshold)
		}
	}
	if len(armed) > 0 {
		b.logger.Info("bot.rearmed", zap.Int("guilds", len(armed)))
	}
}

// guildSettings loads persisted settings, falling back to configured
// defaults when the row is missing or the store errors.
func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	defaults := storage.GuildSettings{
		GuildID:       guildID,
		RaidThreshold: b.cfg.AntiRaid.JoinsPerMinute,
		GuardEnabled:  b.cfg.Guard.Enabled,
	}
	settings, err := b.store.GetGuildSettings(ctx, guildID, defaults)
	if err != nil {
		b.logger.Warn("bot.settings_load",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return defaults
	}
	return settings
}

// notifyCase forwards warn and crit cases to the guild's mod-log channel,
// throttled per guild so a burst of cases cannot flood it.
func (b *Bot) notifyCase(ctx context.Context, row storage.Case) {
	if row.GuildID == "" {
		return
	}
	if !b.announce.Allow(row.GuildID) {
		b.logger.Debug("bot.notify_throttled",
			zap.String("guild_id", row.GuildID),
			zap.Int64("case_id", row.ID))
		return
	}
	channel, err := b.resolver.ModLogChannel(ctx, row.GuildID)
	if err != nil || channel == nil {
		return
	}
	if err := channel.Send(ctx, guild.Message{Embed: caseEmbed(row)}); err != nil {
		b.logger.Warn("bot.notify_failed",
			zap.String("guild_id", row.GuildID),
			zap.Int64("case_id", row.ID),
			zap.Error(err))
	}
}

func caseEmbed(row storage.Case) *guild.Embed {
	embed := &guild.Embed{
		Title:       fmt.Sprintf("Case #%d: %s", row.ID, strings.ReplaceAll(row.Action, "_", " ")),
		Description: row.Reason,
		Color:       severityColor(row.Severity),
		Timestamp:   row.CreatedAt,
	}
	if row.UserID != "" {
		embed.Fields = append(embed.Fields, guild.EmbedField{Name: "User", Value: "<@" + row.UserID + ">", Inline: true})
	}
	if row.ActorID != "" {
		embed.Fields = append(embed.Fields, guild.EmbedField{Name: "Moderator", Value: "<@" + row.ActorID + ">", Inline: true})
	}
	embed.Fields = append(embed.Fields, guild.EmbedField{Name: "Severity", Value: row.Severity, Inline: true})
	return embed
}

func severityColor(severity string) int {
	switch severity {
	case cases.SeverityCrit:
		return 0xE74C3C
	case cases.SeverityWarn:
		return 0xE67E22
	default:
		return 0x95A5A6
	}
}

// mirrorLine forwards one formatted log line to the mirror channel, clipped
// to fit inside the message size limit.
func (b *Bot) mirrorLine(channelID, line string) error {
	const maxLen = 1900
	if len(line) > maxLen {
		line = line[:maxLen]
	}
	_, err := b.session.ChannelMessageSend(channelID, "```"+line+"```")
	return err
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}
