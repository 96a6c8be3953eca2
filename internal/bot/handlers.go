package bot

import (
	"context"

	"gatewarden/internal/guild"
	"gatewarden/internal/metrics"
	"gatewarden/internal/modules/cases"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onReady(_ *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("bot.ready",
		zap.String("user", event.User.String()),
		zap.Int("guilds", len(event.Guilds)))
}

// onGuildMemberAdd feeds the join pipeline. The account creation time is
// derived from the user id snowflake; a zero value marks it unknown.
func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.User == nil {
		return
	}

	created, err := discordgo.SnowflakeTimestamp(event.User.ID)
	if err != nil {
		b.logger.Warn("bot.snowflake_parse",
			zap.String("user_id", event.User.ID),
			zap.Error(err))
	}

	member := guild.Member{
		GuildID:          event.GuildID,
		UserID:           event.User.ID,
		Tag:              event.User.String(),
		JoinedAt:         event.JoinedAt,
		AccountCreatedAt: created,
		Bot:              event.User.Bot,
	}

	metrics.JoinsTracked.Inc()
	b.tracker.OnJoin(context.Background(), member)
}

// onGuildBanAdd records bans not issued through the bot as external-ban
// cases, then fans the event out to the ban submodules. Bans the bot issued
// itself are recognized by the currently-banning mark and not re-recorded.
func (b *Bot) onGuildBanAdd(_ *discordgo.Session, event *discordgo.GuildBanAdd) {
	if event.User == nil || event.GuildID == "" {
		return
	}
	ctx := context.Background()

	if !b.tracker.IsCurrentlyBanning(event.User.ID) {
		b.recorder.Record(ctx, cases.Case{
			GuildID:  event.GuildID,
			UserID:   event.User.ID,
			Action:   cases.ActionExternalBan,
			Reason:   "ban observed on the gateway",
			Severity: cases.SeverityInfo,
		})
	}

	b.tracker.OnBan(ctx, guild.Ban{
		GuildID: event.GuildID,
		UserID:  event.User.ID,
		Tag:     event.User.String(),
	})
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author != nil && session.State != nil && session.State.User != nil &&
		msg.Author.ID == session.State.User.ID {
		return
	}
	b.guard.HandleMessage(context.Background(), session, msg)
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "antiraid":
		b.handleAntiraid(ctx, session, interaction, data.Options)
	case "lockdown":
		b.handleLockdown(ctx, session, interaction, data.Options)
	case "ban":
		b.handleBan(ctx, session, interaction, data.Options)
	case "joins":
		b.handleJoins(session, interaction, data.Options)
	case "cases":
		b.handleCases(ctx, session, interaction, data.Options)
	case "guard":
		b.handleGuard(ctx, session, interaction, data.Options)
	case "logtail":
		b.handleLogtail(session, interaction, data.Options)
	case "modlog":
		b.handleModlog(ctx, session, interaction, data.Options)
	}
}
