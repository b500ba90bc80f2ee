package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/safetyjim/src/router"
)

// UserTag renders a user the way moderators see it in logs and replies.
func UserTag(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

func author(u *discordgo.User) router.Author {
	if u == nil {
		return router.Author{}
	}
	return router.Author{ID: u.ID, Tag: UserTag(u), Bot: u.Bot}
}

// GuildInfo summarizes a guild, counting bots among the members the state knows.
func GuildInfo(g *discordgo.Guild) router.GuildInfo {
	info := router.GuildInfo{ID: g.ID, Name: g.Name, MemberCount: g.MemberCount}
	for _, m := range g.Members {
		if m.User != nil && m.User.Bot {
			info.BotCount++
		}
	}
	if info.MemberCount == 0 {
		info.MemberCount = len(g.Members)
	}
	return info
}

func messageEvent(m *discordgo.Message, guildName string) router.Event {
	ev := router.Event{
		Kind:         router.EventMessageCreate,
		GuildID:      m.GuildID,
		GuildName:    guildName,
		ChannelID:    m.ChannelID,
		ChannelKind:  router.ChannelGuildText,
		MessageID:    m.ID,
		Author:       author(m.Author),
		Content:      m.Content,
		CleanContent: m.ContentWithMentionsReplaced(),
	}
	if m.GuildID == "" {
		ev.ChannelKind = router.ChannelPrivate
	}
	for _, u := range m.Mentions {
		ev.Mentions = append(ev.Mentions, u.ID)
	}
	return ev
}

func deleteEvent(m *discordgo.MessageDelete, guildName string) router.Event {
	ev := router.Event{
		Kind:        router.EventMessageDelete,
		GuildID:     m.GuildID,
		GuildName:   guildName,
		ChannelID:   m.ChannelID,
		ChannelKind: router.ChannelGuildText,
		MessageID:   m.ID,
	}
	if m.GuildID == "" {
		ev.ChannelKind = router.ChannelPrivate
	}
	if m.BeforeDelete != nil {
		ev.Author = author(m.BeforeDelete.Author)
		ev.Content = m.BeforeDelete.Content
	}
	return ev
}

func reactionEvent(kind router.EventKind, r *discordgo.MessageReaction, member *discordgo.Member, guildName string) router.Event {
	ev := router.Event{
		Kind:        kind,
		GuildID:     r.GuildID,
		GuildName:   guildName,
		ChannelID:   r.ChannelID,
		ChannelKind: router.ChannelGuildText,
		MessageID:   r.MessageID,
		Author:      router.Author{ID: r.UserID},
		Emoji:       r.Emoji.APIName(),
	}
	if r.GuildID == "" {
		ev.ChannelKind = router.ChannelPrivate
	}
	if member != nil && member.User != nil {
		ev.Author = author(member.User)
	}
	return ev
}

func memberEvent(kind router.EventKind, guildID string, u *discordgo.User, guildName string) router.Event {
	return router.Event{
		Kind:      kind,
		GuildID:   guildID,
		GuildName: guildName,
		Author:    author(u),
	}
}
