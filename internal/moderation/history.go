package moderation

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	auditPageSize = 100

	// Accounts younger than this are flagged in the summary.
	suspiciousAccountAge = 30 * 24 * time.Hour
)

// HistoryEntry is one moderation event pulled from the guild audit log.
type HistoryEntry struct {
	ActorID string
	When    time.Time
	Detail  string
}

// History is a target's moderation record as Discord remembers it. Each list
// holds at most one audit-log page, newest first; long histories are
// truncated rather than paginated.
type History struct {
	Bans     []HistoryEntry
	Unbans   []HistoryEntry
	Timeouts []HistoryEntry
}

// FetchHistory queries the audit log once per event type and filters each
// page down to entries about the target. Member-update entries only count
// when they changed the timeout expiry, since the same audit event type
// covers nickname edits and the like.
func (e *Executor) FetchHistory(guildID, targetID string) (History, error) {
	var history History

	bans, err := e.fetchEntries(guildID, targetID, discordgo.AuditLogActionMemberBanAdd, nil)
	if err != nil {
		return History{}, err
	}
	history.Bans = bans

	unbans, err := e.fetchEntries(guildID, targetID, discordgo.AuditLogActionMemberBanRemove, nil)
	if err != nil {
		return History{}, err
	}
	history.Unbans = unbans

	timeouts, err := e.fetchEntries(guildID, targetID, discordgo.AuditLogActionMemberUpdate, hasTimeoutChange)
	if err != nil {
		return History{}, err
	}
	history.Timeouts = timeouts

	return history, nil
}

func (e *Executor) fetchEntries(guildID, targetID string, action discordgo.AuditLogAction, keep func(*discordgo.AuditLogEntry) bool) ([]HistoryEntry, error) {
	page, err := e.api.GuildAuditLog(guildID, "", "", int(action), auditPageSize)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}

	var entries []HistoryEntry
	for _, entry := range page.AuditLogEntries {
		if entry == nil || entry.TargetID != targetID {
			continue
		}
		if keep != nil && !keep(entry) {
			continue
		}
		when, err := discordgo.SnowflakeTimestamp(entry.ID)
		if err != nil {
			when = time.Time{}
		}
		entries = append(entries, HistoryEntry{
			ActorID: entry.UserID,
			When:    when,
			Detail:  entryDetail(entry),
		})
	}
	return entries, nil
}

func hasTimeoutChange(entry *discordgo.AuditLogEntry) bool {
	for _, change := range entry.Changes {
		if change != nil && change.Key != nil && *change.Key == discordgo.AuditLogChangeKeyCommunicationDisabledUntil {
			return true
		}
	}
	return false
}

func entryDetail(entry *discordgo.AuditLogEntry) string {
	for _, change := range entry.Changes {
		if change == nil || change.Key == nil || *change.Key != discordgo.AuditLogChangeKeyCommunicationDisabledUntil {
			continue
		}
		if change.NewValue == nil {
			return "timeout cleared"
		}
		return "timeout applied"
	}
	if entry.Reason != "" {
		return entry.Reason
	}
	return "no reason recorded"
}

// RenderSummary formats the info reply: identity, account and join age, a
// young-account flag, and the three history lists.
func RenderSummary(target *discordgo.Member, history History, now time.Time) string {
	var b strings.Builder

	name := target.User.Username
	created, err := discordgo.SnowflakeTimestamp(target.User.ID)
	if err != nil {
		created = now
	}
	accountAge := now.Sub(created)

	fmt.Fprintf(&b, "**User info for %s** (<@%s>)\n", name, target.User.ID)
	fmt.Fprintf(&b, "Account created: %d days ago\n", ageDays(accountAge))
	fmt.Fprintf(&b, "Joined this server: %d days ago\n", ageDays(now.Sub(target.JoinedAt)))
	if accountAge < suspiciousAccountAge {
		b.WriteString("⚠️ Suspicious: account is less than 30 days old\n")
	}

	writeSection(&b, "Bans", history.Bans)
	writeSection(&b, "Unbans", history.Unbans)
	writeSection(&b, "Timeouts", history.Timeouts)

	return b.String()
}

func writeSection(b *strings.Builder, title string, entries []HistoryEntry) {
	fmt.Fprintf(b, "\n**%s**\n", title)
	if len(entries) == 0 {
		b.WriteString("none\n")
		return
	}
	for _, entry := range entries {
		fmt.Fprintf(b, "<t:%d:R> by <@%s>: %s\n", entry.When.Unix(), entry.ActorID, entry.Detail)
	}
}

func ageDays(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
