package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"kozeki/internal/moderation"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeAPI struct {
	guild   *discordgo.Guild
	members map[string]*discordgo.Member

	timeouts int
	bans     []string
	unbans   []string
	sent     []string
	edits    []string
}

func (f *fakeAPI) Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
	if f.guild == nil {
		return nil, errors.New("unknown guild")
	}
	return f.guild, nil
}

func (f *fakeAPI) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	member, ok := f.members[userID]
	if !ok {
		return nil, errors.New("unknown member")
	}
	return member, nil
}

func (f *fakeAPI) GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error {
	f.timeouts++
	return nil
}

func (f *fakeAPI) GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error {
	f.bans = append(f.bans, userID+"|"+reason)
	return nil
}

func (f *fakeAPI) GuildBanDelete(guildID, userID string, options ...discordgo.RequestOption) error {
	f.unbans = append(f.unbans, userID)
	return nil
}

func (f *fakeAPI) GuildAuditLog(guildID, userID, beforeID string, actionType, limit int, options ...discordgo.RequestOption) (*discordgo.GuildAuditLog, error) {
	return &discordgo.GuildAuditLog{}, nil
}

func (f *fakeAPI) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, content)
	return &discordgo.Message{ID: fmt.Sprintf("m%d", len(f.sent))}, nil
}

func (f *fakeAPI) ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits = append(f.edits, content)
	return &discordgo.Message{ID: messageID}, nil
}

func newTestBot(api *fakeAPI) *Bot {
	b := &Bot{
		logger:    zap.NewNop(),
		api:       api,
		exec:      moderation.NewExecutor(api, zap.NewNop(), nil),
		selfID:    "bot1",
		startedAt: time.Now(),
	}
	b.initHandlers()
	return b
}

func testFixture() *fakeAPI {
	guild := &discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner1",
		Roles: []*discordgo.Role{
			{ID: "g1", Position: 0},
			{ID: "kick", Position: 2, Permissions: discordgo.PermissionKickMembers},
			{ID: "mod", Position: 5, Permissions: discordgo.PermissionModerateMembers | discordgo.PermissionBanMembers | discordgo.PermissionViewAuditLogs},
		},
	}
	return &fakeAPI{
		guild: guild,
		members: map[string]*discordgo.Member{
			"bot1": {User: &discordgo.User{ID: "bot1"}, Roles: []string{"mod"}},
			"789":  {User: &discordgo.User{ID: "789"}, Roles: nil, JoinedAt: time.Now().Add(-72 * time.Hour)},
		},
	}
}

func message(content, authorID string, authorRoles []string, mentionIDs ...string) *discordgo.MessageCreate {
	mentions := make([]*discordgo.User, 0, len(mentionIDs))
	for _, id := range mentionIDs {
		mentions = append(mentions, &discordgo.User{ID: id})
	}
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "msg1",
		GuildID:   "g1",
		ChannelID: "c1",
		Content:   content,
		Author:    &discordgo.User{ID: authorID},
		Member:    &discordgo.Member{Roles: authorRoles},
		Mentions:  mentions,
	}}
}

func TestAuthorizedBanEndToEnd(t *testing.T) {
	api := testFixture()
	b := newTestBot(api)

	b.handleMessage(context.Background(), message("kb <@789> repeated spam", "mod9", []string{"mod"}, "789"))

	if len(api.bans) != 1 || api.bans[0] != "789|repeated spam" {
		t.Fatalf("bans = %v", api.bans)
	}
	if len(api.sent) != 1 || !strings.Contains(api.sent[0], "<@789>") || !strings.Contains(api.sent[0], "repeated spam") {
		t.Fatalf("replies = %v", api.sent)
	}
}

func TestUnauthorizedCallerIsIgnored(t *testing.T) {
	api := testFixture()
	b := newTestBot(api)

	// Kick Members alone does not pass the gate; nothing happens at all.
	b.handleMessage(context.Background(), message("kb <@789>", "rando", []string{"kick"}, "789"))

	if len(api.bans) != 0 || len(api.sent) != 0 || api.timeouts != 0 {
		t.Fatalf("expected zero API calls and replies, got bans=%v sent=%v timeouts=%d", api.bans, api.sent, api.timeouts)
	}
}

func TestUnrecognizedKeywordIsIgnored(t *testing.T) {
	api := testFixture()
	b := newTestBot(api)

	b.handleMessage(context.Background(), message("hello <@789> how are you", "mod9", []string{"mod"}, "789"))

	if len(api.sent) != 0 || len(api.bans) != 0 || api.timeouts != 0 {
		t.Fatalf("ordinary chatter must not trigger anything")
	}
}

func TestMuteDispatchAppliesTimeout(t *testing.T) {
	api := testFixture()
	b := newTestBot(api)

	b.handleMessage(context.Background(), message("km <@789> 30m acting up", "mod9", []string{"mod"}, "789"))

	if api.timeouts != 1 {
		t.Fatalf("timeouts = %d, want 1", api.timeouts)
	}
	if len(api.sent) != 1 || !strings.Contains(api.sent[0], "30m") {
		t.Fatalf("replies = %v", api.sent)
	}
}

func TestBanOfUnresolvableMemberIsSilent(t *testing.T) {
	api := testFixture()
	b := newTestBot(api)

	// 999 is mentioned but is not a member of the guild.
	b.handleMessage(context.Background(), message("kb <@999> spam", "mod9", []string{"mod"}, "999"))

	if len(api.bans) != 0 || len(api.sent) != 0 {
		t.Fatalf("expected silence, got bans=%v sent=%v", api.bans, api.sent)
	}
}

func TestUnmuteOfUnresolvableMemberIsSilent(t *testing.T) {
	api := testFixture()
	b := newTestBot(api)

	b.handleMessage(context.Background(), message("kum <@999>", "mod9", []string{"mod"}, "999"))

	if api.timeouts != 0 || len(api.sent) != 0 {
		t.Fatalf("expected silence, got timeouts=%d sent=%v", api.timeouts, api.sent)
	}
}

func TestMissingTargetIsSilent(t *testing.T) {
	api := testFixture()
	b := newTestBot(api)

	b.handleMessage(context.Background(), message("km", "mod9", []string{"mod"}))
	b.handleMessage(context.Background(), message("kub", "mod9", []string{"mod"}))

	if len(api.sent) != 0 || api.timeouts != 0 || len(api.unbans) != 0 {
		t.Fatalf("expected silence for unresolved targets")
	}
}

func TestUnbanAcceptsRawID(t *testing.T) {
	api := testFixture()
	b := newTestBot(api)

	b.handleMessage(context.Background(), message("kub 456", "mod9", []string{"mod"}))

	if len(api.unbans) != 1 || api.unbans[0] != "456" {
		t.Fatalf("unbans = %v", api.unbans)
	}
}

func TestFormatUptime(t *testing.T) {
	d := 2*24*time.Hour + 3*time.Hour + 4*time.Minute + 5*time.Second
	if got := formatUptime(d); got != "2d 3h 4m 5s" {
		t.Fatalf("formatUptime = %q", got)
	}
	if got := formatUptime(30 * time.Second); got != "0d 0h 0m 30s" {
		t.Fatalf("formatUptime = %q", got)
	}
}
