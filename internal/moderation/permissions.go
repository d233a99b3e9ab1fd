package moderation

import "github.com/bwmarrin/discordgo"

// MemberPermissions aggregates the permission bits of the member's roles,
// including the guild's @everyone role. Message events do not carry resolved
// permissions, so they are recomputed here from the role list.
func MemberPermissions(guild *discordgo.Guild, member *discordgo.Member) int64 {
	if guild == nil || member == nil {
		return 0
	}
	perms := int64(0)
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
		if role.ID == guild.ID {
			perms |= role.Permissions
		}
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	return perms
}

// HasPermission reports whether perms grants bit, treating Administrator as
// granting everything.
func HasPermission(perms int64, bit int64) bool {
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&bit != 0
}

// IsModerator is the caller gate: guild owner, Moderate Members, or
// Administrator. Everyone else is ignored outright, before any command
// recognition happens.
func IsModerator(guild *discordgo.Guild, member *discordgo.Member) bool {
	if guild == nil || member == nil {
		return false
	}
	if member.User != nil && guild.OwnerID == member.User.ID {
		return true
	}
	perms := MemberPermissions(guild, member)
	return perms&(discordgo.PermissionModerateMembers|discordgo.PermissionAdministrator) != 0
}

// HighestRolePosition returns the ordinal position of the member's highest
// role. A member with no roles sits at the @everyone position, zero.
func HighestRolePosition(guild *discordgo.Guild, member *discordgo.Member) int {
	if guild == nil || member == nil {
		return 0
	}
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
	}
	highest := 0
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil && role.Position > highest {
			highest = role.Position
		}
	}
	return highest
}

// CanModerate reports whether the bot outranks the target: its highest role
// must sit strictly above the target's. Ties lose, matching Discord's own
// hierarchy rule.
func CanModerate(guild *discordgo.Guild, bot, target *discordgo.Member) bool {
	return HighestRolePosition(guild, bot) > HighestRolePosition(guild, target)
}
