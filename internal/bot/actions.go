package bot

import (
	"context"

	"kozeki/internal/command"
	"kozeki/internal/moderation"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) request(msg *discordgo.MessageCreate, inv command.Invocation) moderation.Request {
	return moderation.Request{
		GuildID:       msg.GuildID,
		ChannelID:     msg.ChannelID,
		Actor:         msg.Author,
		TargetID:      inv.TargetID,
		Duration:      command.ParseDuration(inv.Duration),
		DurationLabel: inv.Duration,
		Reason:        inv.Reason,
	}
}

func (b *Bot) handleMute(ctx context.Context, guild *discordgo.Guild, msg *discordgo.MessageCreate, inv command.Invocation) {
	if inv.TargetID == "" {
		return
	}
	bot, err := b.botMember(guild)
	if err != nil {
		b.logger.Warn("bot member lookup failed", zap.String("guild_id", guild.ID), zap.Error(err))
		return
	}
	target, err := b.api.GuildMember(guild.ID, inv.TargetID)
	if err != nil || target == nil {
		// Mentioned user is not a resolvable member; treat like no target.
		return
	}
	b.exec.Mute(ctx, guild, bot, target, b.request(msg, inv))
}

func (b *Bot) handleUnmute(ctx context.Context, guild *discordgo.Guild, msg *discordgo.MessageCreate, inv command.Invocation) {
	if inv.TargetID == "" {
		return
	}
	bot, err := b.botMember(guild)
	if err != nil {
		b.logger.Warn("bot member lookup failed", zap.String("guild_id", guild.ID), zap.Error(err))
		return
	}
	if target, err := b.api.GuildMember(guild.ID, inv.TargetID); err != nil || target == nil {
		// Mentioned user is not a resolvable member; treat like no target.
		return
	}
	b.exec.Unmute(ctx, guild, bot, b.request(msg, inv))
}

func (b *Bot) handleBan(ctx context.Context, guild *discordgo.Guild, msg *discordgo.MessageCreate, inv command.Invocation) {
	if inv.TargetID == "" {
		return
	}
	bot, err := b.botMember(guild)
	if err != nil {
		b.logger.Warn("bot member lookup failed", zap.String("guild_id", guild.ID), zap.Error(err))
		return
	}
	if target, err := b.api.GuildMember(guild.ID, inv.TargetID); err != nil || target == nil {
		// Mentioned user is not a resolvable member; treat like no target.
		return
	}
	b.exec.Ban(ctx, guild, bot, b.request(msg, inv))
}

func (b *Bot) handleUnban(ctx context.Context, guild *discordgo.Guild, msg *discordgo.MessageCreate, inv command.Invocation) {
	if inv.TargetID == "" {
		return
	}
	bot, err := b.botMember(guild)
	if err != nil {
		b.logger.Warn("bot member lookup failed", zap.String("guild_id", guild.ID), zap.Error(err))
		return
	}
	b.exec.Unban(ctx, guild, bot, b.request(msg, inv))
}

func (b *Bot) handleInfo(ctx context.Context, guild *discordgo.Guild, msg *discordgo.MessageCreate, inv command.Invocation) {
	if inv.TargetID == "" {
		return
	}
	bot, err := b.botMember(guild)
	if err != nil {
		b.logger.Warn("bot member lookup failed", zap.String("guild_id", guild.ID), zap.Error(err))
		return
	}
	target, err := b.api.GuildMember(guild.ID, inv.TargetID)
	if err != nil || target == nil {
		return
	}
	b.exec.Info(ctx, guild, bot, target, b.request(msg, inv))
}
