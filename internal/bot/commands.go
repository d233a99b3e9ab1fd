package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kozeki/internal/moderation"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const helpText = "Commands:\n" +
	"`km @user [duration] [reason]` timeout a member (default 10m)\n" +
	"`kum @user` remove a timeout\n" +
	"`kb @user [reason]` ban a member\n" +
	"`kub @user-or-id` unban a user\n" +
	"`ki @user` show moderation history\n" +
	"`/modlog [channel]` view or set the mod-log channel"

// commandAPI is the slice of *discordgo.Session the slash-command surface
// touches, split out so interaction handling can be exercised with a
// recording fake.
type commandAPI interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandEdit(appID, guildID, cmdID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

func desiredCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "info",
			Description: "Show bot version, uptime, and commands",
		},
		{
			Name:        "modlog",
			Description: "View or set the moderation log channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to post moderation actions to",
					Required:    false,
				},
			},
		},
	}
}

// registerCommands reconciles the global application commands against the
// desired set: existing ones are edited in place, missing ones created, and
// leftovers from earlier versions deleted.
func (b *Bot) registerCommands() error {
	existing, err := b.commands.ApplicationCommands(b.selfID, "")
	if err != nil {
		// Creating blindly on a transient listing error would duplicate
		// registrations.
		return err
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range desiredCommands() {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.commands.ApplicationCommandEdit(b.selfID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.commands.ApplicationCommandCreate(b.selfID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.commands.ApplicationCommandDelete(b.selfID, "", cmd.ID)
	}

	return nil
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "info":
		b.respond(interaction, b.infoText(), false)
	case "modlog":
		b.handleModLogCommand(ctx, session, interaction, data.Options)
	}
}

func (b *Bot) infoText() string {
	return fmt.Sprintf("Kozeki v%s\nUptime: %s\n\n%s", Version, formatUptime(time.Since(b.startedAt)), helpText)
}

func formatUptime(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	days := totalSeconds / 86400
	hours := totalSeconds % 86400 / 3600
	minutes := totalSeconds % 3600 / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

func (b *Bot) handleModLogCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" {
		b.respond(interaction, "This command only works inside a server.", true)
		return
	}
	if interaction.Member == nil || !moderation.HasPermission(interaction.Member.Permissions, discordgo.PermissionModerateMembers) {
		b.respond(interaction, "You don't have permission to manage the mod log.", true)
		return
	}

	settings, err := b.store.GetGuildSettings(ctx, interaction.GuildID)
	if err != nil {
		b.logger.Warn("guild settings lookup failed", zap.Error(err))
		b.respond(interaction, "Failed to load settings.", true)
		return
	}

	if len(options) == 0 {
		channelID := settings.ModLogChannel
		if channelID == "" {
			channelID = b.cfg.ModLogChannel
		}
		if channelID == "" {
			b.respond(interaction, "No mod-log channel is configured.", true)
			return
		}
		b.respond(interaction, "Mod-log channel: <#"+channelID+">", true)
		return
	}

	channel := options[0].ChannelValue(session)
	if channel == nil {
		b.respond(interaction, "Failed to resolve that channel.", true)
		return
	}
	settings.ModLogChannel = channel.ID
	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.logger.Warn("mod log channel update failed", zap.Error(err))
		b.respond(interaction, "Failed to save settings.", true)
		return
	}
	b.respond(interaction, "Mod-log channel set to <#"+channel.ID+">", true)
}

// respond answers an interaction, falling back to a follow-up message when
// the interaction was already acknowledged (a race discordgo surfaces as
// error code 40060).
func (b *Bot) respond(interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := b.commands.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err == nil {
		return
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeInteractionHasAlreadyBeenAcknowledged {
		if _, err := b.commands.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{Content: content, Flags: flags}); err != nil {
			b.logger.Warn("interaction follow-up failed", zap.Error(err))
		}
		return
	}
	b.logger.Warn("interaction respond failed", zap.Error(err))
}
