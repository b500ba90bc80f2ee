package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func testGuild() *discordgo.Guild {
	return &discordgo.Guild{
		ID:      "g",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g", Position: 0, Permissions: discordgo.PermissionSendMessages},
			{ID: "member", Position: 1},
			{ID: "mod", Position: 5, Permissions: discordgo.PermissionKickMembers},
			{ID: "bot", Position: 8, Permissions: discordgo.PermissionKickMembers},
			{ID: "admin", Position: 10, Permissions: discordgo.PermissionAdministrator},
		},
	}
}

func member(id string, roles ...string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: id}, Roles: roles}
}

func TestHasRole(t *testing.T) {
	m := member("1", "mod")
	assert.True(t, HasRole(m, ""))
	assert.True(t, HasRole(m, "mod"))
	assert.False(t, HasRole(m, "admin"))
	assert.False(t, HasRole(nil, "mod"))
}

func TestHighestRolePosition(t *testing.T) {
	g := testGuild()
	assert.Equal(t, 0, HighestRolePosition(g, member("1")))
	assert.Equal(t, 5, HighestRolePosition(g, member("1", "member", "mod")))
}

func TestMemberPermissions(t *testing.T) {
	g := testGuild()
	assert.Equal(t, int64(discordgo.PermissionSendMessages), MemberPermissions(g, member("1")))
	assert.NotZero(t, MemberPermissions(g, member("1", "mod"))&discordgo.PermissionKickMembers)
	assert.Equal(t, int64(discordgo.PermissionAll), MemberPermissions(g, member("1", "admin")))
	assert.Equal(t, int64(discordgo.PermissionAll), MemberPermissions(g, member("owner")))
}

func TestCanKick(t *testing.T) {
	g := testGuild()
	bot := member("bot", "bot")
	mod := member("mod", "mod")
	plain := member("plain", "member")

	assert.True(t, CanKick(g, bot, mod, plain))
	assert.False(t, CanKick(g, bot, plain, mod), "invoker must outrank the target")
	assert.False(t, CanKick(g, bot, mod, member("other", "mod")), "equal rank is not enough")
	assert.False(t, CanKick(g, bot, member("owner"), member("admin", "admin")), "bot must outrank the target")
	assert.True(t, CanKick(g, bot, member("owner"), mod))
	assert.False(t, CanKick(g, bot, mod, member("owner")), "nobody kicks the owner")
	assert.False(t, CanKick(g, member("weak", "member"), mod, plain), "bot needs kick permission")
}
