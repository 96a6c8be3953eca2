package bot

import (
	"context"
	"errors"
	"time"

	"gatewarden/internal/guild"
	"gatewarden/internal/storage"

	"github.com/bwmarrin/discordgo"
)

// sessionResolver adapts the live session and stored guild settings to the
// channel lookups the pipeline modules need.
type sessionResolver struct {
	session *discordgo.Session
	store   *storage.Store
}

var _ guild.Resolver = (*sessionResolver)(nil)

func (r *sessionResolver) ModLogChannel(ctx context.Context, guildID string) (guild.Channel, error) {
	settings, err := r.store.GetGuildSettings(ctx, guildID, storage.GuildSettings{})
	if err != nil {
		return nil, err
	}
	if settings.ModLogChannelID == "" {
		return nil, nil
	}
	channel, err := r.channel(settings.ModLogChannelID)
	if err != nil {
		return nil, err
	}
	return &sessionChannel{session: r.session, channel: channel}, nil
}

func (r *sessionResolver) TextChannels(_ context.Context, guildID string) ([]guild.Channel, error) {
	channels, err := r.guildChannels(guildID)
	if err != nil {
		return nil, err
	}
	out := make([]guild.Channel, 0, len(channels))
	for _, channel := range channels {
		if channel == nil || !isTextChannel(channel) {
			continue
		}
		out = append(out, &sessionChannel{session: r.session, channel: channel})
	}
	return out, nil
}

// channel prefers the gateway state cache and falls back to the REST API.
func (r *sessionResolver) channel(id string) (*discordgo.Channel, error) {
	if r.session.State != nil {
		if channel, err := r.session.State.Channel(id); err == nil && channel != nil {
			return channel, nil
		}
	}
	return r.session.Channel(id)
}

func (r *sessionResolver) guildChannels(guildID string) ([]*discordgo.Channel, error) {
	if r.session.State != nil {
		if cached, err := r.session.State.Guild(guildID); err == nil && len(cached.Channels) > 0 {
			return cached.Channels, nil
		}
	}
	return r.session.GuildChannels(guildID)
}

func isTextChannel(channel *discordgo.Channel) bool {
	return channel.Type == discordgo.ChannelTypeGuildText || channel.Type == discordgo.ChannelTypeGuildNews
}

// sessionChannel implements guild.Channel over one discordgo channel.
type sessionChannel struct {
	session *discordgo.Session
	channel *discordgo.Channel
}

var _ guild.Channel = (*sessionChannel)(nil)

func (c *sessionChannel) ID() string   { return c.channel.ID }
func (c *sessionChannel) Name() string { return c.channel.Name }

func (c *sessionChannel) IsTextBased() bool { return isTextChannel(c.channel) }

func (c *sessionChannel) PermissionsForSelf() (guild.PermissionSet, error) {
	if c.session.State == nil || c.session.State.User == nil {
		return nil, errors.New("session state not ready")
	}
	perms, err := c.session.UserChannelPermissions(c.session.State.User.ID, c.channel.ID)
	if err != nil {
		return nil, err
	}
	return channelPerms(perms), nil
}

func (c *sessionChannel) Send(_ context.Context, msg guild.Message) error {
	payload := &discordgo.MessageSend{Content: msg.Content}
	if msg.Embed != nil {
		payload.Embeds = []*discordgo.MessageEmbed{discordEmbed(msg.Embed)}
	}
	_, err := c.session.ChannelMessageSendComplex(c.channel.ID, payload)
	return err
}

func (c *sessionChannel) SetRateLimitPerUser(_ context.Context, seconds int, reason string) error {
	_, err := c.session.ChannelEditComplex(c.channel.ID, &discordgo.ChannelEdit{
		RateLimitPerUser: &seconds,
	}, discordgo.WithAuditLogReason(reason))
	return err
}

// channelPerms maps a permission bitmask onto the narrow set the alert
// paths check. Administrator implies everything.
type channelPerms int64

func (p channelPerms) Has(perm guild.Permission) bool {
	bits := int64(p)
	if bits&discordgo.PermissionAdministrator != 0 {
		return true
	}
	switch perm {
	case guild.PermView:
		return bits&discordgo.PermissionViewChannel != 0
	case guild.PermSend:
		return bits&discordgo.PermissionSendMessages != 0
	case guild.PermEmbedLinks:
		return bits&discordgo.PermissionEmbedLinks != 0
	case guild.PermManageMessages:
		return bits&discordgo.PermissionManageMessages != 0
	}
	return false
}

func discordEmbed(e *guild.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.Format(time.RFC3339)
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return out
}
