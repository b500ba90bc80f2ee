package router

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Session is the slice of the gateway client the router talks back through.
type Session interface {
	BotUserID() string
	SendMessage(ctx context.Context, channelID, content string) error
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	LeaveGuild(ctx context.Context, guildID string) error
	// Guilds lists the communities this shard currently belongs to.
	Guilds() []GuildInfo
	// DefaultChannel returns the first text channel the bot can write to.
	DefaultChannel(guildID string) string
	HasTextChannel(channelID string) bool
	SetStatus(text string) error
}

// CommandInvocation is the audit record written before every command runs.
type CommandInvocation struct {
	ID        string
	Command   string
	Arguments string
	Time      time.Time
	Username  string
	UserID    string
	GuildName string
	GuildID   string
}

// Join is a holding-room record for a member who joined a guild.
type Join struct {
	UserID    string
	GuildID   string
	JoinTime  time.Time
	AllowTime time.Time
	Allowed   bool
}

// Store is the persistence collaborator.
type Store interface {
	GetGuildConfiguration(ctx context.Context, guildID string) (map[string]string, error)
	CreateDefaultGuildConfiguration(ctx context.Context, guildID, defaultChannelID string) error
	DestroyGuildConfiguration(ctx context.Context, guildID string) error
	GetConfigurationValue(ctx context.Context, guildID, key string) (string, error)
	GetAllValuesForKey(ctx context.Context, key string) (map[string]string, error)
	RecordCommandInvocation(ctx context.Context, entry CommandInvocation) error
	CreateJoin(ctx context.Context, join Join) error
	DeleteJoins(ctx context.Context, guildID, userID string) error
}

// Metrics receives counters and timings.
type Metrics interface {
	Increment(name string)
	Histogram(name string, d time.Duration)
}

// Command is one registered command. Run reports whether usage help should be shown.
type Command interface {
	Usage() []string
	Run(rctx *Context, ev *Event, args string) (showUsage bool, err error)
}

// Processor inspects every qualifying message before command matching. Returning
// true means it took action and the message needs no further handling.
type Processor interface {
	Name() string
	OnMessage(rctx *Context, ev *Event) (handled bool, err error)
}

// DeleteProcessor is implemented by processors that track deleted messages.
type DeleteProcessor interface {
	OnMessageDelete(rctx *Context, ev *Event) error
}

// ReactionProcessor is implemented by processors that act on reactions.
type ReactionProcessor interface {
	OnReaction(rctx *Context, ev *Event, added bool) error
}

type nopMetrics struct{}

func (nopMetrics) Increment(string)                 {}
func (nopMetrics) Histogram(string, time.Duration) {}
