// Package modlog posts moderation action notices to a designated channel.
// Posting is strictly best-effort: the primary action has already completed
// by the time the sink runs, so every failure here is swallowed and only
// logged to the operator console.
package modlog

import (
	"context"
	"time"

	"kozeki/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	ActionMute   = "mute"
	ActionUnmute = "unmute"
	ActionBan    = "ban"
	ActionUnban  = "unban"
	ActionInfo   = "info"
)

// API is the slice of the Discord client the sink needs.
type API interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Settings provides the per-guild mod-log channel override.
type Settings interface {
	GetGuildSettings(ctx context.Context, guildID string) (storage.GuildSettings, error)
}

// Entry describes one action to report. Duration is the raw token shown to
// the user ("10m") and is only set for mutes.
type Entry struct {
	Action   string
	GuildID  string
	Actor    *discordgo.User
	TargetID string
	Reason   string
	Duration string
}

type Sink struct {
	api            API
	logger         *zap.Logger
	settings       Settings
	defaultChannel string
}

func New(api API, logger *zap.Logger, settings Settings, defaultChannel string) *Sink {
	return &Sink{api: api, logger: logger, settings: settings, defaultChannel: defaultChannel}
}

// Post sends the mod-log embed for entry. It never returns an error and never
// blocks a retry loop; a failed post is gone.
func (s *Sink) Post(ctx context.Context, entry Entry) {
	channelID := s.channelFor(ctx, entry.GuildID)
	if channelID == "" {
		s.logger.Debug("mod log channel not configured", zap.String("guild_id", entry.GuildID))
		return
	}

	channel, err := s.api.Channel(channelID)
	if err != nil || channel == nil {
		s.logger.Warn("mod log channel lookup failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	// The configured ID may point at a channel in another guild; never post
	// there.
	if channel.GuildID != entry.GuildID {
		s.logger.Warn("mod log channel belongs to another guild",
			zap.String("channel_id", channelID),
			zap.String("guild_id", entry.GuildID))
		return
	}

	if _, err := s.api.ChannelMessageSendEmbed(channelID, s.buildEmbed(entry)); err != nil {
		s.logger.Warn("mod log post failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (s *Sink) channelFor(ctx context.Context, guildID string) string {
	if s.settings != nil {
		settings, err := s.settings.GetGuildSettings(ctx, guildID)
		if err == nil && settings.ModLogChannel != "" {
			return settings.ModLogChannel
		}
		if err != nil {
			s.logger.Warn("guild settings lookup failed", zap.Error(err))
		}
	}
	return s.defaultChannel
}

func (s *Sink) buildEmbed(entry Entry) *discordgo.MessageEmbed {
	moderator := "unknown"
	if entry.Actor != nil {
		moderator = "<@" + entry.Actor.ID + ">"
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Moderator", Value: moderator, Inline: true},
		{Name: "User", Value: "<@" + entry.TargetID + ">", Inline: true},
		{Name: "Reason", Value: entry.Reason, Inline: false},
	}
	if entry.Duration != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Duration", Value: entry.Duration, Inline: true})
	}

	return &discordgo.MessageEmbed{
		Title:     actionTitle(entry.Action),
		Color:     actionColor(entry.Action),
		Fields:    fields,
		Footer:    &discordgo.MessageEmbedFooter{Text: "User ID: " + entry.TargetID},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func actionColor(action string) int {
	switch action {
	case ActionMute:
		return 0xE67E22
	case ActionUnmute, ActionUnban:
		return 0x2ECC71
	case ActionBan:
		return 0xE74C3C
	case ActionInfo:
		return 0x3498DB
	default:
		return 0xE91E63
	}
}

func actionTitle(action string) string {
	switch action {
	case ActionMute:
		return "🔇 Member muted"
	case ActionUnmute:
		return "🔊 Member unmuted"
	case ActionBan:
		return "🔨 Member banned"
	case ActionUnban:
		return "🎊 User unbanned"
	case ActionInfo:
		return "🔎 User info requested"
	default:
		return "Moderation action"
	}
}
