package discord

import (
	"context"
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/stake-plus/safetyjim/src/logging"
	"github.com/stake-plus/safetyjim/src/router"
)

func (g *Gateway) BotUserID() string {
	if g.session.State == nil || g.session.State.User == nil {
		return ""
	}
	return g.session.State.User.ID
}

// SendMessage splits content over as many messages as needed.
func (g *Gateway) SendMessage(ctx context.Context, channelID, content string) error {
	for _, chunk := range SplitMessage(content) {
		if _, err := g.session.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return g.sendError("send message", channelID, err)
		}
	}
	return nil
}

func (g *Gateway) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	if _, err := g.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return g.sendError("send embed", channelID, err)
	}
	return nil
}

func (g *Gateway) React(ctx context.Context, channelID, messageID, emoji string) error {
	if err := g.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return g.sendError("react", channelID, err)
	}
	return nil
}

func (g *Gateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := g.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return g.sendError("delete message", channelID, err)
	}
	return nil
}

func (g *Gateway) LeaveGuild(ctx context.Context, guildID string) error {
	if err := g.session.GuildLeave(guildID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("leave guild %s: %w", guildID, err)
	}
	return nil
}

// Guilds lists the guilds in this shard's state cache.
func (g *Gateway) Guilds() []router.GuildInfo {
	state := g.session.State
	state.RLock()
	defer state.RUnlock()
	out := make([]router.GuildInfo, 0, len(state.Guilds))
	for _, guild := range state.Guilds {
		out = append(out, GuildInfo(guild))
	}
	return out
}

func (g *Gateway) DefaultChannel(guildID string) string {
	guild, err := g.session.State.Guild(guildID)
	if err != nil {
		return ""
	}
	botID := g.BotUserID()
	return DefaultChannel(guild.Channels, func(channelID string) bool {
		perms, err := g.session.State.UserChannelPermissions(botID, channelID)
		return err == nil && perms&discordgo.PermissionSendMessages != 0
	})
}

// DefaultChannel picks the top-most text channel canSend allows.
func DefaultChannel(channels []*discordgo.Channel, canSend func(channelID string) bool) string {
	text := make([]*discordgo.Channel, 0, len(channels))
	for _, c := range channels {
		if c.Type == discordgo.ChannelTypeGuildText {
			text = append(text, c)
		}
	}
	sort.SliceStable(text, func(i, j int) bool { return text[i].Position < text[j].Position })
	for _, c := range text {
		if canSend(c.ID) {
			return c.ID
		}
	}
	return ""
}

func (g *Gateway) HasTextChannel(channelID string) bool {
	if channelID == "" {
		return false
	}
	channel, err := g.session.State.Channel(channelID)
	return err == nil && channel.Type == discordgo.ChannelTypeGuildText
}

func (g *Gateway) SetStatus(text string) error {
	return g.session.UpdateGameStatus(0, text)
}

// Member returns a guild member, from the state cache when possible.
func (g *Gateway) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if member, err := g.session.State.Member(guildID, userID); err == nil {
		return member, nil
	}
	member, err := g.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch member %s of guild %s: %w", userID, guildID, err)
	}
	return member, nil
}

// CanKick reports whether the bot and the invoker both outrank the target.
func (g *Gateway) CanKick(ctx context.Context, guildID, invokerID, targetID string) bool {
	guild, err := g.session.State.Guild(guildID)
	if err != nil {
		return false
	}
	bot, err := g.Member(ctx, guildID, g.BotUserID())
	if err != nil {
		return false
	}
	invoker, err := g.Member(ctx, guildID, invokerID)
	if err != nil {
		return false
	}
	target, err := g.Member(ctx, guildID, targetID)
	if err != nil {
		return false
	}
	return CanKick(guild, bot, invoker, target)
}

func (g *Gateway) Kick(ctx context.Context, guildID, userID, reason string) error {
	if err := g.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("kick %s from guild %s: %w", userID, guildID, err)
	}
	return nil
}

// SendDirect opens a DM channel with the user and sends content there.
func (g *Gateway) SendDirect(ctx context.Context, userID, content string) error {
	channel, err := g.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm with %s: %w", userID, err)
	}
	return g.SendMessage(ctx, channel.ID, content)
}

func (g *Gateway) sendError(op, channelID string, err error) error {
	if logging.IsRateLimit(err) {
		g.log.Warn("discord rate limit", zap.String("op", op), zap.String("channel", channelID))
	}
	return fmt.Errorf("%s to %s: %w", op, channelID, err)
}
