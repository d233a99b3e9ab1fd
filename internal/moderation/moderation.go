// Package moderation executes moderation actions against the Discord API and
// reports the outcome to the invoking channel and the mod-log sink.
package moderation

import (
	"context"
	"fmt"
	"time"

	"kozeki/internal/modlog"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// API is the slice of *discordgo.Session the executor touches. Handlers are
// written against this interface so they can be exercised with a recording
// fake instead of a live gateway connection.
type API interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildBanDelete(guildID, userID string, options ...discordgo.RequestOption) error
	GuildAuditLog(guildID, userID, beforeID string, actionType, limit int, options ...discordgo.RequestOption) (*discordgo.GuildAuditLog, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Reporter receives one mod-log entry per completed action. Its outcome never
// affects the action itself.
type Reporter interface {
	Post(ctx context.Context, entry modlog.Entry)
}

// Outcome is the terminal state of one action invocation.
type Outcome int

const (
	OutcomeNoTarget Outcome = iota
	OutcomeSucceeded
	OutcomeDeniedCapability
	OutcomeDeniedHierarchy
	OutcomeAPIFailure
)

// Request carries the per-invocation inputs shared by all actions. Duration
// and DurationLabel are only set for mutes.
type Request struct {
	GuildID       string
	ChannelID     string
	Actor         *discordgo.User
	TargetID      string
	Duration      time.Duration
	DurationLabel string
	Reason        string
}

type Executor struct {
	api      API
	logger   *zap.Logger
	reporter Reporter
}

func NewExecutor(api API, logger *zap.Logger, reporter Reporter) *Executor {
	return &Executor{api: api, logger: logger, reporter: reporter}
}

// Mute applies a timeout of req.Duration. It requires the Moderate Members
// capability and role-hierarchy precedence over the target; no API call is
// attempted when either check fails.
func (e *Executor) Mute(ctx context.Context, guild *discordgo.Guild, bot, target *discordgo.Member, req Request) Outcome {
	if req.TargetID == "" || target == nil {
		return OutcomeNoTarget
	}
	if !HasPermission(MemberPermissions(guild, bot), discordgo.PermissionModerateMembers) {
		e.reply(req.ChannelID, "I don't have permission to timeout members.")
		return OutcomeDeniedCapability
	}
	if !CanModerate(guild, bot, target) {
		e.reply(req.ChannelID, "I cannot moderate this user because they have a role equal to or higher than mine.")
		return OutcomeDeniedHierarchy
	}

	until := time.Now().Add(req.Duration)
	if err := e.api.GuildMemberTimeout(req.GuildID, req.TargetID, &until); err != nil {
		e.logger.Error("mute failed", zap.String("guild_id", req.GuildID), zap.String("user_id", req.TargetID), zap.Error(err))
		e.reply(req.ChannelID, "Failed to mute user. Make sure I have the correct permissions.")
		return OutcomeAPIFailure
	}

	e.reply(req.ChannelID, fmt.Sprintf("Done! Muted <@%s> for %s. Reason: %s", req.TargetID, req.DurationLabel, req.Reason))
	e.report(ctx, modlog.Entry{
		Action:   modlog.ActionMute,
		GuildID:  req.GuildID,
		Actor:    req.Actor,
		TargetID: req.TargetID,
		Reason:   req.Reason,
		Duration: req.DurationLabel,
	})
	return OutcomeSucceeded
}

// Unmute clears the target's timeout. There is no hierarchy check: lifting a
// restriction is always allowed when the capability exists, and clearing an
// absent timeout is a no-op on Discord's side.
func (e *Executor) Unmute(ctx context.Context, guild *discordgo.Guild, bot *discordgo.Member, req Request) Outcome {
	if req.TargetID == "" {
		return OutcomeNoTarget
	}
	if !HasPermission(MemberPermissions(guild, bot), discordgo.PermissionModerateMembers) {
		e.reply(req.ChannelID, "I don't have permission to remove timeouts.")
		return OutcomeDeniedCapability
	}

	if err := e.api.GuildMemberTimeout(req.GuildID, req.TargetID, nil); err != nil {
		e.logger.Error("unmute failed", zap.String("guild_id", req.GuildID), zap.String("user_id", req.TargetID), zap.Error(err))
		e.reply(req.ChannelID, "Failed to unmute user. Make sure I have the correct permissions.")
		return OutcomeAPIFailure
	}

	e.reply(req.ChannelID, fmt.Sprintf("🔓 Done! Unmuted <@%s>", req.TargetID))
	e.report(ctx, modlog.Entry{
		Action:   modlog.ActionUnmute,
		GuildID:  req.GuildID,
		Actor:    req.Actor,
		TargetID: req.TargetID,
		Reason:   "Timeout removed",
	})
	return OutcomeSucceeded
}

// Ban bans the target with the parsed reason. No hierarchy check happens
// here; Discord rejects a ban the bot cannot perform and that surfaces as an
// API failure.
func (e *Executor) Ban(ctx context.Context, guild *discordgo.Guild, bot *discordgo.Member, req Request) Outcome {
	if req.TargetID == "" {
		return OutcomeNoTarget
	}
	if !HasPermission(MemberPermissions(guild, bot), discordgo.PermissionBanMembers) {
		e.reply(req.ChannelID, "I don't have permission to ban members.")
		return OutcomeDeniedCapability
	}

	if err := e.api.GuildBanCreateWithReason(req.GuildID, req.TargetID, req.Reason, 0); err != nil {
		e.logger.Error("ban failed", zap.String("guild_id", req.GuildID), zap.String("user_id", req.TargetID), zap.Error(err))
		e.reply(req.ChannelID, "Failed to ban user. Make sure I have the correct permissions.")
		return OutcomeAPIFailure
	}

	e.reply(req.ChannelID, fmt.Sprintf("🔨 Done! Banned <@%s>. Reason: %s", req.TargetID, req.Reason))
	e.report(ctx, modlog.Entry{
		Action:   modlog.ActionBan,
		GuildID:  req.GuildID,
		Actor:    req.Actor,
		TargetID: req.TargetID,
		Reason:   req.Reason,
	})
	return OutcomeSucceeded
}

// Unban lifts a ban by bare user ID; a banned user has no member object left
// in the guild.
func (e *Executor) Unban(ctx context.Context, guild *discordgo.Guild, bot *discordgo.Member, req Request) Outcome {
	if req.TargetID == "" {
		return OutcomeNoTarget
	}
	if !HasPermission(MemberPermissions(guild, bot), discordgo.PermissionBanMembers) {
		e.reply(req.ChannelID, "I don't have permission to unban members.")
		return OutcomeDeniedCapability
	}

	if err := e.api.GuildBanDelete(req.GuildID, req.TargetID); err != nil {
		e.logger.Error("unban failed", zap.String("guild_id", req.GuildID), zap.String("user_id", req.TargetID), zap.Error(err))
		e.reply(req.ChannelID, "Failed to unban user. The user may not be banned or I don't have the correct permissions.")
		return OutcomeAPIFailure
	}

	e.reply(req.ChannelID, fmt.Sprintf("🎊 Done! Unbanned <@%s>", req.TargetID))
	e.report(ctx, modlog.Entry{
		Action:   modlog.ActionUnban,
		GuildID:  req.GuildID,
		Actor:    req.Actor,
		TargetID: req.TargetID,
		Reason:   "User unbanned",
	})
	return OutcomeSucceeded
}

// Info posts a loading placeholder, fetches the target's moderation history
// from the guild audit log, and edits the placeholder into the summary.
func (e *Executor) Info(ctx context.Context, guild *discordgo.Guild, bot, target *discordgo.Member, req Request) Outcome {
	if req.TargetID == "" || target == nil {
		return OutcomeNoTarget
	}
	if !HasPermission(MemberPermissions(guild, bot), discordgo.PermissionViewAuditLogs) {
		e.reply(req.ChannelID, "I don't have permission to view the audit log.")
		return OutcomeDeniedCapability
	}

	placeholder, err := e.api.ChannelMessageSend(req.ChannelID, "Fetching moderation history...")
	if err != nil || placeholder == nil {
		e.logger.Error("info placeholder failed", zap.String("guild_id", req.GuildID), zap.Error(err))
		return OutcomeAPIFailure
	}

	history, err := e.FetchHistory(req.GuildID, req.TargetID)
	if err != nil {
		e.logger.Error("audit log fetch failed", zap.String("guild_id", req.GuildID), zap.String("user_id", req.TargetID), zap.Error(err))
		_, _ = e.api.ChannelMessageEdit(req.ChannelID, placeholder.ID, "Failed to fetch the audit log. Make sure I have the correct permissions.")
		return OutcomeAPIFailure
	}

	summary := RenderSummary(target, history, time.Now())
	if _, err := e.api.ChannelMessageEdit(req.ChannelID, placeholder.ID, summary); err != nil {
		e.logger.Error("info summary edit failed", zap.String("guild_id", req.GuildID), zap.Error(err))
		return OutcomeAPIFailure
	}

	e.report(ctx, modlog.Entry{
		Action:   modlog.ActionInfo,
		GuildID:  req.GuildID,
		Actor:    req.Actor,
		TargetID: req.TargetID,
		Reason:   "User info requested",
	})
	return OutcomeSucceeded
}

func (e *Executor) reply(channelID, content string) {
	if _, err := e.api.ChannelMessageSend(channelID, content); err != nil {
		e.logger.Warn("reply failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (e *Executor) report(ctx context.Context, entry modlog.Entry) {
	if e.reporter != nil {
		e.reporter.Post(ctx, entry)
	}
}
