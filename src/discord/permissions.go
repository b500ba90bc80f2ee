package discord

import "github.com/bwmarrin/discordgo"

// HasRole checks whether a member holds roleID. Empty roleID always returns true.
func HasRole(member *discordgo.Member, roleID string) bool {
	if roleID == "" {
		return true
	}
	if member == nil {
		return false
	}
	for _, role := range member.Roles {
		if role == roleID {
			return true
		}
	}
	return false
}

// HighestRolePosition is the position of the member's top role; members with
// only @everyone sit at 0.
func HighestRolePosition(guild *discordgo.Guild, member *discordgo.Member) int {
	if guild == nil || member == nil {
		return 0
	}
	highest := 0
	for _, role := range guild.Roles {
		if role.Position > highest && HasRole(member, role.ID) {
			highest = role.Position
		}
	}
	return highest
}

// MemberPermissions folds @everyone and every role the member holds into one
// permission set. Owners and administrators get everything.
func MemberPermissions(guild *discordgo.Guild, member *discordgo.Member) int64 {
	if guild == nil || member == nil || member.User == nil {
		return 0
	}
	if guild.OwnerID == member.User.ID {
		return discordgo.PermissionAll
	}
	var perms int64
	for _, role := range guild.Roles {
		if role.ID == guild.ID || HasRole(member, role.ID) {
			perms |= role.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}

// Outranks reports whether actor may moderate target by role hierarchy.
func Outranks(guild *discordgo.Guild, actor, target *discordgo.Member) bool {
	if guild == nil || actor == nil || target == nil || actor.User == nil || target.User == nil {
		return false
	}
	if target.User.ID == guild.OwnerID {
		return false
	}
	if actor.User.ID == guild.OwnerID {
		return true
	}
	return HighestRolePosition(guild, actor) > HighestRolePosition(guild, target)
}

// CanKick requires the bot to hold kick permission and outrank the target,
// and the invoker to outrank the target.
func CanKick(guild *discordgo.Guild, bot, invoker, target *discordgo.Member) bool {
	if MemberPermissions(guild, bot)&discordgo.PermissionKickMembers == 0 {
		return false
	}
	return Outranks(guild, bot, target) && Outranks(guild, invoker, target)
}
