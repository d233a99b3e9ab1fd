package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kozeki/internal/config"
	"kozeki/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeCommandAPI struct {
	respondErr  error
	followupErr error
	responses   []string
	followups   []string

	listed  []*discordgo.ApplicationCommand
	listErr error
	created []string
	edited  []string
	deleted []string
}

func (f *fakeCommandAPI) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	if f.respondErr != nil {
		return f.respondErr
	}
	f.responses = append(f.responses, resp.Data.Content)
	return nil
}

func (f *fakeCommandAPI) FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.followupErr != nil {
		return nil, f.followupErr
	}
	f.followups = append(f.followups, data.Content)
	return &discordgo.Message{ID: "f1"}, nil
}

func (f *fakeCommandAPI) ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listed, nil
}

func (f *fakeCommandAPI) ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	f.created = append(f.created, cmd.Name)
	return cmd, nil
}

func (f *fakeCommandAPI) ApplicationCommandEdit(appID, guildID, cmdID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	f.edited = append(f.edited, cmd.Name)
	return cmd, nil
}

func (f *fakeCommandAPI) ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error {
	f.deleted = append(f.deleted, cmdID)
	return nil
}

func newCommandTestBot(t *testing.T, commands commandAPI) *Bot {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(store.Close)

	return &Bot{
		cfg:       config.Config{ModLogChannel: "env-default"},
		logger:    zap.NewNop(),
		store:     store,
		commands:  commands,
		selfID:    "bot1",
		startedAt: time.Now(),
	}
}

func modlogInteraction(perms int64) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "mod9"}, Permissions: perms},
	}}
}

func alreadyAcknowledged() error {
	return &discordgo.RESTError{Message: &discordgo.APIErrorMessage{
		Code:    discordgo.ErrCodeInteractionHasAlreadyBeenAcknowledged,
		Message: "Interaction has already been acknowledged.",
	}}
}

func TestRespondFallsBackToFollowup(t *testing.T) {
	api := &fakeCommandAPI{respondErr: alreadyAcknowledged()}
	b := newCommandTestBot(t, api)

	b.respond(modlogInteraction(0), "late reply", true)

	if len(api.followups) != 1 || api.followups[0] != "late reply" {
		t.Fatalf("followups = %v, want the original content", api.followups)
	}
}

func TestRespondOtherErrorsSkipFollowup(t *testing.T) {
	api := &fakeCommandAPI{respondErr: errors.New("gateway hiccup")}
	b := newCommandTestBot(t, api)

	b.respond(modlogInteraction(0), "late reply", true)

	if len(api.followups) != 0 {
		t.Fatalf("followups = %v, want none for a non-acknowledged error", api.followups)
	}
}

func TestRegisterCommandsListErrorPropagates(t *testing.T) {
	api := &fakeCommandAPI{listErr: errors.New("listing failed")}
	b := newCommandTestBot(t, api)

	if err := b.registerCommands(); err == nil {
		t.Fatal("expected the listing error to propagate")
	}
	if len(api.created) != 0 {
		t.Fatalf("created = %v, want no blind creations on a listing error", api.created)
	}
}

func TestRegisterCommandsReconciles(t *testing.T) {
	api := &fakeCommandAPI{listed: []*discordgo.ApplicationCommand{
		{ID: "1", Name: "info"},
		{ID: "2", Name: "stale"},
	}}
	b := newCommandTestBot(t, api)

	if err := b.registerCommands(); err != nil {
		t.Fatalf("registerCommands: %v", err)
	}
	if len(api.edited) != 1 || api.edited[0] != "info" {
		t.Fatalf("edited = %v, want info edited in place", api.edited)
	}
	if len(api.created) != 1 || api.created[0] != "modlog" {
		t.Fatalf("created = %v, want modlog created", api.created)
	}
	if len(api.deleted) != 1 || api.deleted[0] != "2" {
		t.Fatalf("deleted = %v, want the stale command removed", api.deleted)
	}
}

func TestModLogCommandRequiresPermission(t *testing.T) {
	api := &fakeCommandAPI{}
	b := newCommandTestBot(t, api)

	b.handleModLogCommand(context.Background(), nil, modlogInteraction(discordgo.PermissionKickMembers), nil)

	if len(api.responses) != 1 || !strings.Contains(api.responses[0], "permission") {
		t.Fatalf("responses = %v, want a permission refusal", api.responses)
	}
}

func TestModLogCommandSetAndView(t *testing.T) {
	api := &fakeCommandAPI{}
	b := newCommandTestBot(t, api)
	ctx := context.Background()
	inter := modlogInteraction(discordgo.PermissionModerateMembers)

	option := &discordgo.ApplicationCommandInteractionDataOption{
		Type:  discordgo.ApplicationCommandOptionChannel,
		Name:  "channel",
		Value: "c9",
	}
	b.handleModLogCommand(ctx, nil, inter, []*discordgo.ApplicationCommandInteractionDataOption{option})

	settings, err := b.store.GetGuildSettings(ctx, "g1")
	if err != nil || settings.ModLogChannel != "c9" {
		t.Fatalf("stored override = %q (err %v), want c9", settings.ModLogChannel, err)
	}

	b.handleModLogCommand(ctx, nil, inter, nil)

	if len(api.responses) != 2 || !strings.Contains(api.responses[1], "<#c9>") {
		t.Fatalf("responses = %v, want the override echoed back", api.responses)
	}
}
