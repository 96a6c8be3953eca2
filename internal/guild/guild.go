// Package guild defines the domain events and collaborator capabilities the
// moderation pipeline consumes. Concrete Discord bindings live in internal/bot;
// everything here is fakeable in tests.
package guild

import (
	"context"
	"time"
)

// Member describes a member-join event delivered by the gateway.
// JoinedAt may be zero for malformed events; AccountCreatedAt is zero when
// the creation time cannot be derived.
type Member struct {
	GuildID          string
	UserID           string
	Tag              string
	JoinedAt         time.Time
	AccountCreatedAt time.Time
	Bot              bool
}

// Ban describes a member-ban event.
type Ban struct {
	GuildID string
	UserID  string
	Tag     string
}

// Permission enumerates the channel permissions the alerting paths check.
type Permission int

const (
	PermView Permission = iota
	PermSend
	PermEmbedLinks
	PermManageMessages
)

// PermissionSet reports whether the bot holds a permission in a channel.
type PermissionSet interface {
	Has(p Permission) bool
}

// EmbedField is one field of an alert embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is the rich part of an alert payload.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Timestamp   time.Time
}

// Message is an outgoing alert or announcement.
type Message struct {
	Content string
	Embed   *Embed
}

// Channel is a send-capable destination for alerts and announcements.
type Channel interface {
	ID() string
	Name() string
	IsTextBased() bool
	PermissionsForSelf() (PermissionSet, error)
	Send(ctx context.Context, msg Message) error
	SetRateLimitPerUser(ctx context.Context, seconds int, reason string) error
}

// Resolver locates channels for a guild. ModLogChannel returns (nil, nil)
// when no destination is configured for the guild.
type Resolver interface {
	ModLogChannel(ctx context.Context, guildID string) (Channel, error)
	TextChannels(ctx context.Context, guildID string) ([]Channel, error)
}
