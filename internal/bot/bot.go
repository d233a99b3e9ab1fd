// Package bot wires the Discord session to the command parser, the
// moderation executor, and the mod-log sink.
package bot

import (
	"context"
	"time"

	"kozeki/internal/command"
	"kozeki/internal/config"
	"kozeki/internal/moderation"
	"kozeki/internal/modlog"
	"kozeki/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const Version = "1.3.0"

type handlerFunc func(ctx context.Context, guild *discordgo.Guild, msg *discordgo.MessageCreate, inv command.Invocation)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	session   *discordgo.Session
	api       moderation.API
	commands  commandAPI
	exec      *moderation.Executor
	selfID    string
	startedAt time.Time

	// Dispatch table keyed by parsed command kind. A kind with no entry,
	// including KindNone, is silently ignored.
	handlers map[command.Kind]handlerFunc
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent

	sink := modlog.New(session, logger, store, cfg.ModLogChannel)
	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		session:   session,
		api:       session,
		commands:  session,
		exec:      moderation.NewExecutor(session, logger, sink),
		startedAt: time.Now(),
	}
	b.initHandlers()

	return b, nil
}

func (b *Bot) initHandlers() {
	b.handlers = map[command.Kind]handlerFunc{
		command.KindMute:   b.handleMute,
		command.KindUnmute: b.handleUnmute,
		command.KindBan:    b.handleBan,
		command.KindUnban:  b.handleUnban,
		command.KindInfo:   b.handleInfo,
	}
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	if b.session.State != nil && b.session.State.User != nil {
		b.selfID = b.session.State.User.ID
	}

	return b.registerCommands()
}

func (b *Bot) Close() {
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}
	b.handleMessage(context.Background(), msg)
}

// handleMessage gates the caller, parses the message, and dispatches. The
// gate runs before command recognition: a caller without moderation bits is
// ignored entirely, chatter and commands alike.
func (b *Bot) handleMessage(ctx context.Context, msg *discordgo.MessageCreate) {
	guild, err := b.guild(msg.GuildID)
	if err != nil || guild == nil {
		b.logger.Warn("guild lookup failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
		return
	}

	caller := b.callerMember(guild.ID, msg)
	if !moderation.IsModerator(guild, caller) {
		return
	}

	mentionIDs := make([]string, 0, len(msg.Mentions))
	for _, user := range msg.Mentions {
		if user != nil {
			mentionIDs = append(mentionIDs, user.ID)
		}
	}

	inv := command.Parse(msg.Content, mentionIDs)
	handler, ok := b.handlers[inv.Kind]
	if !ok {
		return
	}
	handler(ctx, guild, msg, inv)
}

func (b *Bot) guild(guildID string) (*discordgo.Guild, error) {
	if b.session != nil && b.session.State != nil {
		if guild, err := b.session.State.Guild(guildID); err == nil && guild != nil && len(guild.Roles) > 0 {
			return guild, nil
		}
	}
	return b.api.Guild(guildID)
}

// callerMember prefers the member attached to the message event; gateway
// payloads omit its User field, so it is stitched back from the author.
func (b *Bot) callerMember(guildID string, msg *discordgo.MessageCreate) *discordgo.Member {
	if msg.Member != nil {
		if msg.Member.User != nil {
			return msg.Member
		}
		member := *msg.Member
		member.User = msg.Author
		return &member
	}
	member, err := b.api.GuildMember(guildID, msg.Author.ID)
	if err != nil {
		return nil
	}
	return member
}

func (b *Bot) botMember(guild *discordgo.Guild) (*discordgo.Member, error) {
	if b.session != nil && b.session.State != nil {
		if member, err := b.session.State.Member(guild.ID, b.selfID); err == nil && member != nil {
			return member, nil
		}
	}
	return b.api.GuildMember(guild.ID, b.selfID)
}
