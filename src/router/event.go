package router

import "time"

// EventKind identifies what the gateway reported.
type EventKind int

const (
	EventMessageCreate EventKind = iota
	EventMessageDelete
	EventReactionAdd
	EventReactionRemove
	EventGuildJoin
	EventGuildLeave
	EventMemberJoin
	EventMemberLeave
	EventReady
	EventDisconnect
	// EventConfigReload asks the shard to re-read a guild's prefix.
	EventConfigReload
)

func (k EventKind) String() string {
	switch k {
	case EventMessageCreate:
		return "message_create"
	case EventMessageDelete:
		return "message_delete"
	case EventReactionAdd:
		return "reaction_add"
	case EventReactionRemove:
		return "reaction_remove"
	case EventGuildJoin:
		return "guild_join"
	case EventGuildLeave:
		return "guild_leave"
	case EventMemberJoin:
		return "member_join"
	case EventMemberLeave:
		return "member_leave"
	case EventReady:
		return "ready"
	case EventDisconnect:
		return "disconnect"
	case EventConfigReload:
		return "config_reload"
	default:
		return "unknown"
	}
}

// ChannelKind distinguishes community channels from private ones.
type ChannelKind int

const (
	ChannelGuildText ChannelKind = iota
	ChannelPrivate
)

// Author is the identity behind a message, reaction or membership change.
type Author struct {
	ID  string
	Tag string
	Bot bool
}

// GuildInfo describes a community as seen by the gateway.
type GuildInfo struct {
	ID          string
	Name        string
	MemberCount int
	BotCount    int
}

// Event is the transport-neutral form of everything the gateway emits.
type Event struct {
	Kind        EventKind
	GuildID     string
	GuildName   string
	ChannelID   string
	ChannelKind ChannelKind
	MessageID   string
	Author      Author

	// Content is the raw text; CleanContent has mentions resolved to names.
	Content      string
	CleanContent string
	Mentions     []string

	// Emoji is set for reaction events.
	Emoji string
	// Guild is set for guild join events.
	Guild *GuildInfo
	// Detail carries free-form context such as a disconnect reason.
	Detail string

	ReceivedAt time.Time
}

// MentionsUser reports whether userID is mentioned by the event.
func (e *Event) MentionsUser(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range e.Mentions {
		if id == userID {
			return true
		}
	}
	return false
}

// Private reports whether the event came from a non-community channel.
func (e *Event) Private() bool {
	return e.ChannelKind == ChannelPrivate || e.GuildID == ""
}
