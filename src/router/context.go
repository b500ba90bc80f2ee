package router

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	EmojiSuccess = "✅"
	EmojiFail    = "❌"

	embedColor = 0x4286f4
	botName    = "Safety Jim"
)

// Context is handed to commands and processors. It is built per event and
// carries a snapshot of the guild's router state.
type Context struct {
	context.Context

	GuildID  string
	Prefix   string
	Matchers *Matchers
	Event    *Event

	Commands *Commands
	Session  Session
	Store    Store
	Log      *zap.Logger

	tasks *Tasks
}

// Reply sends text to the channel the event came from.
func (c *Context) Reply(content string) error {
	return c.Session.SendMessage(c, c.Event.ChannelID, content)
}

func (c *Context) ReplyEmbed(embed *discordgo.MessageEmbed) error {
	return c.Session.SendEmbed(c, c.Event.ChannelID, embed)
}

func (c *Context) SuccessReact() error {
	return c.react(EmojiSuccess)
}

func (c *Context) FailReact() error {
	return c.react(EmojiFail)
}

func (c *Context) react(emoji string) error {
	if c.Event.MessageID == "" {
		return nil
	}
	return c.Session.React(c, c.Event.ChannelID, c.Event.MessageID, emoji)
}

// Setting reads one configuration value for the guild.
func (c *Context) Setting(key string) (string, error) {
	return c.Store.GetConfigurationValue(c, c.GuildID, key)
}

// Go runs fn on the guild's task lane so slow sends stay off the shard worker.
// Without a lane, as in hand-built contexts, fn runs inline.
func (c *Context) Go(name string, fn func(*Context) error) {
	if c.tasks == nil {
		if err := guard(func() error { return fn(c) }); err != nil && c.Log != nil {
			c.Log.Warn("detached task failed", zap.String("task", name), zap.String("guild", c.GuildID), zap.Error(err))
		}
		return
	}
	c.tasks.Go(c.GuildID, name, func(ctx context.Context) error {
		return fn(c.detach(ctx))
	})
}

// detach returns a copy bound to ctx, for work that outlives the dispatch call.
func (c *Context) detach(ctx context.Context) *Context {
	cp := *c
	cp.Context = ctx
	return &cp
}

// BotEmbed builds the standard author-branded embed.
func BotEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: botName + " - " + title},
		Description: description,
		Color:       embedColor,
	}
}
