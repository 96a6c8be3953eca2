package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gatewarden/internal/modules/cases"
	"gatewarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageServer)
	banMembers := int64(discordgo.PermissionBanMembers)
	manageMessages := int64(discordgo.PermissionManageMessages)
	noDM := false

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "antiraid",
			Description:              "Arm, disarm, or tune join-rate raid detection",
			DefaultMemberPermissions: &manageGuild,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "What to do",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "arm", Value: "arm"},
						{Name: "disarm", Value: "disarm"},
						{Name: "threshold", Value: "threshold"},
						{Name: "status", Value: "status"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "per_minute",
					Description: "Joins per minute that trigger lockdown (with threshold)",
				},
			},
		},
		{
			Name:                     "lockdown",
			Description:              "Engage or lift a raid lockdown",
			DefaultMemberPermissions: &manageGuild,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "What to do",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "start", Value: "start"},
						{Name: "lift", Value: "lift"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Reason or lift note for the mod log",
				},
			},
		},
		{
			Name:                     "ban",
			Description:              "Ban a member and record a case",
			DefaultMemberPermissions: &banMembers,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to ban",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Reason for the ban",
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "purge_days",
					Description: "Days of messages to delete (0-7)",
				},
			},
		},
		{
			Name:                     "joins",
			Description:              "List recent joins from the tracking ledger",
			DefaultMemberPermissions: &manageMessages,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "How far back to look",
				},
			},
		},
		{
			Name:                     "cases",
			Description:              "Browse recorded moderation cases",
			DefaultMemberPermissions: &manageMessages,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "view",
					Description: "What to show",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "recent", Value: "recent"},
						{Name: "stats", Value: "stats"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Only cases for this member (with recent)",
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "limit",
					Description: "How many cases to show (1-25)",
				},
			},
		},
		{
			Name:                     "guard",
			Description:              "Configure the message guard for fresh joiners",
			DefaultMemberPermissions: &manageGuild,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "What to do",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "enable", Value: "enable"},
						{Name: "disable", Value: "disable"},
						{Name: "allow", Value: "allow"},
						{Name: "block", Value: "block"},
						{Name: "remove", Value: "remove"},
						{Name: "lists", Value: "lists"},
						{Name: "strikes", Value: "strikes"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "domain",
					Description: "Domain for allow, block, or remove",
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member for strikes",
				},
			},
		},
		{
			Name:                     "logtail",
			Description:              "Show the most recent log lines",
			DefaultMemberPermissions: &manageGuild,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "lines",
					Description: "How many lines (1-50)",
				},
			},
		},
		{
			Name:                     "modlog",
			Description:              "Configure the mod-log channel",
			DefaultMemberPermissions: &manageGuild,
			DMPermission:             &noDM,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "What to do",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "set", Value: "set"},
						{Name: "clear", Value: "clear"},
						{Name: "show", Value: "show"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to receive alerts and cases (with set)",
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
						discordgo.ChannelTypeGuildNews,
					},
				},
			},
		},
	}
}

// registerCommands reconciles the registered global commands with the
// desired set: edit in place, create the missing, delete the stale.
func (b *Bot) registerCommands() error {
	if b.session.State == nil || b.session.State.User == nil {
		return fmt.Errorf("session state has no application user")
	}
	appID := b.session.State.User.ID
	desired := commandDefinitions()

	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	byName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		byName[cmd.Name] = cmd
	}

	for _, cmd := range desired {
		if current, ok := byName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return fmt.Errorf("update command %s: %w", cmd.Name, err)
			}
			delete(byName, cmd.Name)
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return fmt.Errorf("create command %s: %w", cmd.Name, err)
		}
	}

	for _, stale := range byName {
		if err := b.session.ApplicationCommandDelete(appID, "", stale.ID); err != nil {
			b.logger.Warn("bot.command_delete",
				zap.String("command", stale.Name),
				zap.Error(err))
		}
	}

	b.logger.Info("bot.commands_registered", zap.Int("count", len(desired)))
	return nil
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// saveSettings persists the settings row, reporting failure to the invoker.
// Returns false when the caller should stop.
func (b *Bot) saveSettings(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, settings storage.GuildSettings) bool {
	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.logger.Error("bot.settings_save",
			zap.String("guild_id", settings.GuildID),
			zap.Error(err))
		b.respond(session, interaction, "Failed to persist settings.", true)
		return false
	}
	return true
}

func (b *Bot) handleAntiraid(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	guildID := interaction.GuildID
	if guildID == "" {
		b.respond(session, interaction, "This command only works in a server.", true)
		return
	}
	opts := optionMap(options)
	action := ""
	if opt, ok := opts["action"]; ok {
		action = opt.StringValue()
	}
	settings := b.guildSettings(ctx, guildID)

	switch action {
	case "arm":
		settings.RaidArmed = true
		if !b.saveSettings(ctx, session, interaction, settings) {
			return
		}
		b.raid.Arm(guildID)
		if settings.RaidThreshold > 0 {
			b.raid.SetThreshold(guildID, settings.RaidThreshold)
		}
		status := b.raid.Status(guildID)
		b.respond(session, interaction, fmt.Sprintf("Raid detection armed at %d joins/min.", status.Threshold), true)

	case "disarm":
		settings.RaidArmed = false
		if !b.saveSettings(ctx, session, interaction, settings) {
			return
		}
		b.raid.Disarm(guildID)
		b.respond(session, interaction, "Raid detection disarmed.", true)

	case "threshold":
		perMinute := 0
		if opt, ok := opts["per_minute"]; ok {
			perMinute = int(opt.IntValue())
		}
		if perMinute < 1 {
			b.respond(session, interaction, "Provide per_minute of at least 1.", true)
			return
		}
		settings.RaidThreshold = perMinute
		if !b.saveSettings(ctx, session, interaction, settings) {
			return
		}
		b.raid.SetThreshold(guildID, perMinute)
		b.respond(session, interaction, fmt.Sprintf("Raid threshold set to %d joins/min.", perMinute), true)

	case "status":
		status := b.raid.Status(guildID)
		armed := "disarmed"
		if status.Armed {
			armed = "armed"
		}
		lockdown := "inactive"
		if status.Lockdown {
			lockdown = fmt.Sprintf("active since <t:%d:R>", status.Since.Unix())
		}
		embed := &discordgo.MessageEmbed{
			Title: "Anti-raid status",
			Color: severityColor(cases.SeverityInfo),
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Detection", Value: armed, Inline: true},
				{Name: "Threshold", Value: fmt.Sprintf("%d joins/min", status.Threshold), Inline: true},
				{Name: "Joins in window", Value: fmt.Sprintf("%d", status.RecentJoins), Inline: true},
				{Name: "Lockdown", Value: lockdown, Inline: true},
			},
		}
		b.respondEmbed(session, interaction, embed, true)

	default:
		b.respond(session, interaction, "Unknown action.", true)
	}
}

func (b *Bot) handleLockdown(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	guildID := interaction.GuildID
	if guildID == "" {
		b.respond(session, interaction, "This command only works in a server.", true)
		return
	}
	opts := optionMap(options)
	action := ""
	if opt, ok := opts["action"]; ok {
		action = opt.StringValue()
	}
	reason := ""
	if opt, ok := opts["reason"]; ok {
		reason = opt.StringValue()
	}

	switch action {
	case "start":
		if b.raid.Status(guildID).Lockdown {
			b.respond(session, interaction, "A lockdown is already active.", true)
			return
		}
		b.raid.StartLockdown(ctx, guildID, reason)
		b.respond(session, interaction, "Lockdown engaged: slow-mode applied to all text channels.", true)

	case "lift":
		b.raid.LiftLockdown(ctx, guildID, reason)
		b.respond(session, interaction, "Lockdown lifted: slow-mode cleared.", true)

	default:
		b.respond(session, interaction, "Unknown action.", true)
	}
}

func (b *Bot) handleBan(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	guildID := interaction.GuildID
	if guildID == "" {
		b.respond(session, interaction, "This command only works in a server.", true)
		return
	}
	opts := optionMap(options)

	var target *discordgo.User
	if opt, ok := opts["user"]; ok {
		target = opt.UserValue(session)
	}
	if target == nil {
		b.respond(session, interaction, "Provide a user to ban.", true)
		return
	}
	reason := "no reason given"
	if opt, ok := opts["reason"]; ok && opt.StringValue() != "" {
		reason = opt.StringValue()
	}
	purgeDays := 0
	if opt, ok := opts["purge_days"]; ok {
		purgeDays = int(opt.IntValue())
	}
	if purgeDays < 0 {
		purgeDays = 0
	}
	if purgeDays > 7 {
		purgeDays = 7
	}

	// Mark before the API call so the resulting GuildBanAdd event is
	// attributed to us instead of being recorded as an external ban.
	b.tracker.MarkCurrentlyBanning(target.ID)

	if err := session.GuildBanCreateWithReason(guildID, target.ID, reason, purgeDays); err != nil {
		b.logger.Error("bot.ban_failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", target.ID),
			zap.Error(err))
		b.respond(session, interaction, "Ban failed: "+err.Error(), true)
		return
	}

	actorID := ""
	if interaction.Member != nil && interaction.Member.User != nil {
		actorID = interaction.Member.User.ID
	}
	caseID, err := b.recorder.Record(ctx, cases.Case{
		GuildID:  guildID,
		UserID:   target.ID,
		ActorID:  actorID,
		Action:   cases.ActionBan,
		Reason:   reason,
		Severity: cases.SeverityCrit,
	})
	if err != nil {
		b.respond(session, interaction, fmt.Sprintf("Banned %s, but recording the case failed.", target.String()), true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Banned %s (case #%d).", target.String(), caseID), true)
}

func (b *Bot) handleJoins(session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	guildID := interaction.GuildID
	if guildID == "" {
		b.respond(session, interaction, "This command only works in a server.", true)
		return
	}
	minutes := b.cfg.Tracker.RetentionMinutes
	if opt, ok := optionMap(options)["minutes"]; ok {
		minutes = int(opt.IntValue())
	}
	if minutes < 1 {
		minutes = 1
	}

	entries := b.tracker.Recent(time.Now(), time.Duration(minutes)*time.Minute)
	var lines []string
	for _, entry := range entries {
		if entry.GuildID != guildID {
			continue
		}
		line := fmt.Sprintf("%s joined <t:%d:R>", entry.Tag, entry.JoinedAt.Unix())
		if !entry.AccountCreatedAt.IsZero() {
			line += fmt.Sprintf(", account from <t:%d:R>", entry.AccountCreatedAt.Unix())
		}
		var marks []string
		if entry.Purged {
			marks = append(marks, "purged")
		}
		if entry.MessageBlocked {
			marks = append(marks, "blocked")
		}
		if len(marks) > 0 {
			line += " [" + strings.Join(marks, ", ") + "]"
		}
		lines = append(lines, line)
		if len(lines) == 15 {
			break
		}
	}

	if len(lines) == 0 {
		b.respond(session, interaction, fmt.Sprintf("No joins tracked in the last %d minutes.", minutes), true)
		return
	}
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Joins in the last %d minutes", minutes),
		Description: strings.Join(lines, "\n"),
		Color:       severityColor(cases.SeverityInfo),
	}
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleCases(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	guildID := interaction.GuildID
	if guildID == "" {
		b.respond(session, interaction, "This command only works in a server.", true)
		return
	}
	opts := optionMap(options)
	view := ""
	if opt, ok := opts["view"]; ok {
		view = opt.StringValue()
	}
	limit := 10
	if opt, ok := opts["limit"]; ok {
		limit = int(opt.IntValue())
	}

	switch view {
	case "recent":
		var rows []storage.Case
		var err error
		if opt, ok := opts["user"]; ok {
			if target := opt.UserValue(session); target != nil {
				rows, err = b.recorder.ForUser(ctx, guildID, target.ID, limit)
			}
		} else {
			rows, err = b.recorder.Recent(ctx, guildID, limit)
		}
		if err != nil {
			b.logger.Error("bot.cases_load", zap.String("guild_id", guildID), zap.Error(err))
			b.respond(session, interaction, "Failed to load cases.", true)
			return
		}
		if len(rows) == 0 {
			b.respond(session, interaction, "No cases recorded.", true)
			return
		}
		var lines []string
		for _, row := range rows {
			line := fmt.Sprintf("#%d %s", row.ID, strings.ReplaceAll(row.Action, "_", " "))
			if row.UserID != "" {
				line += fmt.Sprintf(" <@%s>", row.UserID)
			}
			if row.Reason != "" {
				line += ": " + row.Reason
			}
			line += fmt.Sprintf(" (<t:%d:R>)", row.CreatedAt.Unix())
			lines = append(lines, line)
		}
		embed := &discordgo.MessageEmbed{
			Title:       "Recent cases",
			Description: strings.Join(lines, "\n"),
			Color:       severityColor(cases.SeverityInfo),
		}
		b.respondEmbed(session, interaction, embed, true)

	case "stats":
		counts, err := b.recorder.Stats(ctx, guildID, 7*24*time.Hour)
		if err != nil {
			b.logger.Error("bot.cases_stats", zap.String("guild_id", guildID), zap.Error(err))
			b.respond(session, interaction, "Failed to load case stats.", true)
			return
		}
		if len(counts) == 0 {
			b.respond(session, interaction, "No cases recorded in the last 7 days.", true)
			return
		}
		var lines []string
		for _, count := range counts {
			lines = append(lines, fmt.Sprintf("%s: %d", strings.ReplaceAll(count.Action, "_", " "), count.Count))
		}
		embed := &discordgo.MessageEmbed{
			Title:       "Cases by action, last 7 days",
			Description: strings.Join(lines, "\n"),
			Color:       severityColor(cases.SeverityInfo),
		}
		b.respondEmbed(session, interaction, embed, true)

	default:
		b.respond(session, interaction, "Unknown view.", true)
	}
}

func (b *Bot) handleGuard(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	guildID := interaction.GuildID
	if guildID == "" {
		b.respond(session, interaction, "This command only works in a server.", true)
		return
	}
	opts := optionMap(options)
	action := ""
	if opt, ok := opts["action"]; ok {
		action = opt.StringValue()
	}
	domain := ""
	if opt, ok := opts["domain"]; ok {
		domain = strings.ToLower(strings.TrimSpace(opt.StringValue()))
	}

	switch action {
	case "enable", "disable":
		settings := b.guildSettings(ctx, guildID)
		settings.GuardEnabled = action == "enable"
		if !b.saveSettings(ctx, session, interaction, settings) {
			return
		}
		b.guard.InvalidatePolicy(guildID)
		if settings.GuardEnabled {
			b.respond(session, interaction, "Message guard enabled.", true)
		} else {
			b.respond(session, interaction, "Message guard disabled.", true)
		}

	case "allow", "block":
		if domain == "" {
			b.respond(session, interaction, "Provide a domain.", true)
			return
		}
		if err := b.store.AddGuardDomain(ctx, guildID, domain, action); err != nil {
			b.logger.Error("bot.guard_domain", zap.String("guild_id", guildID), zap.Error(err))
			b.respond(session, interaction, "Failed to update the domain list.", true)
			return
		}
		b.guard.InvalidatePolicy(guildID)
		b.respond(session, interaction, fmt.Sprintf("Added %s to the %s list.", domain, action), true)

	case "remove":
		if domain == "" {
			b.respond(session, interaction, "Provide a domain.", true)
			return
		}
		if err := b.store.RemoveGuardDomain(ctx, guildID, domain); err != nil {
			b.logger.Error("bot.guard_domain", zap.String("guild_id", guildID), zap.Error(err))
			b.respond(session, interaction, "Failed to update the domain list.", true)
			return
		}
		b.guard.InvalidatePolicy(guildID)
		b.respond(session, interaction, fmt.Sprintf("Removed %s from the domain lists.", domain), true)

	case "lists":
		allow, block, err := b.store.GuardDomains(ctx, guildID)
		if err != nil {
			b.logger.Error("bot.guard_lists", zap.String("guild_id", guildID), zap.Error(err))
			b.respond(session, interaction, "Failed to load the domain lists.", true)
			return
		}
		embed := &discordgo.MessageEmbed{
			Title: "Guard domain lists",
			Color: severityColor(cases.SeverityInfo),
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Allowed", Value: domainList(allow)},
				{Name: "Blocked", Value: domainList(block)},
			},
		}
		b.respondEmbed(session, interaction, embed, true)

	case "strikes":
		var target *discordgo.User
		if opt, ok := opts["user"]; ok {
			target = opt.UserValue(session)
		}
		if target == nil {
			b.respond(session, interaction, "Provide a user.", true)
			return
		}
		score := b.guard.Strikes(guildID, target.ID)
		b.respond(session, interaction, fmt.Sprintf("%s has %.1f strikes.", target.String(), score), true)

	default:
		b.respond(session, interaction, "Unknown action.", true)
	}
}

func domainList(domains map[string]struct{}) string {
	if len(domains) == 0 {
		return "(empty)"
	}
	out := make([]string, 0, len(domains))
	for domain := range domains {
		out = append(out, domain)
	}
	sort.Strings(out)
	if len(out) > 20 {
		out = append(out[:20], fmt.Sprintf("and %d more", len(out)-20))
	}
	return strings.Join(out, "\n")
}

func (b *Bot) handleLogtail(session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	lines := 20
	if opt, ok := optionMap(options)["lines"]; ok {
		lines = int(opt.IntValue())
	}
	if lines < 1 {
		lines = 1
	}
	if lines > 50 {
		lines = 50
	}

	tail := b.logger.Tail(lines)
	if len(tail) == 0 {
		b.respond(session, interaction, "The log buffer is empty.", true)
		return
	}
	// Drop oldest lines until the reply fits in a message.
	content := "```\n" + strings.Join(tail, "\n") + "\n```"
	for len(content) > 1990 && len(tail) > 1 {
		tail = tail[1:]
		content = "```\n" + strings.Join(tail, "\n") + "\n```"
	}
	b.respond(session, interaction, content, true)
}

func (b *Bot) handleModlog(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	guildID := interaction.GuildID
	if guildID == "" {
		b.respond(session, interaction, "This command only works in a server.", true)
		return
	}
	opts := optionMap(options)
	action := ""
	if opt, ok := opts["action"]; ok {
		action = opt.StringValue()
	}
	settings := b.guildSettings(ctx, guildID)

	switch action {
	case "set":
		var channel *discordgo.Channel
		if opt, ok := opts["channel"]; ok {
			channel = opt.ChannelValue(session)
		}
		if channel == nil {
			b.respond(session, interaction, "Provide a text channel.", true)
			return
		}
		settings.ModLogChannelID = channel.ID
		if !b.saveSettings(ctx, session, interaction, settings) {
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Mod-log channel set to <#%s>.", channel.ID), true)

	case "clear":
		settings.ModLogChannelID = ""
		if !b.saveSettings(ctx, session, interaction, settings) {
			return
		}
		b.respond(session, interaction, "Mod-log channel cleared.", true)

	case "show":
		if settings.ModLogChannelID == "" {
			b.respond(session, interaction, "No mod-log channel configured.", true)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Mod-log channel is <#%s>.", settings.ModLogChannelID), true)

	default:
		b.respond(session, interaction, "Unknown action.", true)
	}
}
