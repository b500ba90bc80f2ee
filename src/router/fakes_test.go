package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	testBotID         = "999"
	testDefaultPrefix = "-mod"
)

type sentMessage struct {
	ChannelID string
	Content   string
	Embed     *discordgo.MessageEmbed
}

type reaction struct {
	ChannelID string
	MessageID string
	Emoji     string
}

// fakeSession records everything the router sends back to the gateway.
type fakeSession struct {
	mu        sync.Mutex
	guilds    []GuildInfo
	channels  map[string]bool
	defaults  map[string]string
	messages  []sentMessage
	reactions []reaction
	deleted   []string
	left      []string
	leaveErr  map[string]error
	status    string
	sendErr   error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		channels: make(map[string]bool),
		defaults: make(map[string]string),
		leaveErr: make(map[string]error),
	}
}

func (f *fakeSession) BotUserID() string { return testBotID }

func (f *fakeSession) SendMessage(_ context.Context, channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, sentMessage{ChannelID: channelID, Content: content})
	return nil
}

func (f *fakeSession) SendEmbed(_ context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, sentMessage{ChannelID: channelID, Embed: embed})
	return nil
}

func (f *fakeSession) React(_ context.Context, channelID, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reaction{ChannelID: channelID, MessageID: messageID, Emoji: emoji})
	return nil
}

func (f *fakeSession) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeSession) LeaveGuild(_ context.Context, guildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.leaveErr[guildID]; err != nil {
		return err
	}
	f.left = append(f.left, guildID)
	return nil
}

func (f *fakeSession) Guilds() []GuildInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GuildInfo(nil), f.guilds...)
}

func (f *fakeSession) DefaultChannel(guildID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defaults[guildID]
}

func (f *fakeSession) HasTextChannel(channelID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[channelID]
}

func (f *fakeSession) SetStatus(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = text
	return nil
}

func (f *fakeSession) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.messages...)
}

func (f *fakeSession) reacted() []reaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reaction(nil), f.reactions...)
}

func (f *fakeSession) leftGuilds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.left...)
}

// fakeStore keeps guild settings in memory.
type fakeStore struct {
	mu          sync.Mutex
	settings    map[string]map[string]string
	invocations []CommandInvocation
	joins       []Join
	readErr     map[string]error
	recordErr   error
	destroyed   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings: make(map[string]map[string]string),
		readErr:  make(map[string]error),
	}
}

func defaultSettings(channelID string) map[string]string {
	return map[string]string{
		KeyModLogActive:          "false",
		KeyModLogChannelID:       channelID,
		KeyHoldingRoomRoleID:     "",
		KeyHoldingRoomActive:     "false",
		KeyHoldingRoomMinutes:    "3",
		KeyPrefix:                testDefaultPrefix,
		KeySilentCommands:        "false",
		KeyNoSpacePrefix:         "false",
		KeyStatistics:            "false",
		KeyWelcomeMessageActive:  "false",
		KeyWelcomeMessage:        "Welcome to $guild $user!",
		KeyWelcomeMessageChannel: channelID,
		KeyInviteLinkRemover:     "false",
	}
}

func (f *fakeStore) put(guildID string, settings map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[guildID] = settings
}

func (f *fakeStore) GetGuildConfiguration(_ context.Context, guildID string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr[guildID]; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(f.settings[guildID]))
	for k, v := range f.settings[guildID] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) CreateDefaultGuildConfiguration(_ context.Context, guildID, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := f.settings[guildID]
	defaults := defaultSettings(channelID)
	for k, v := range existing {
		defaults[k] = v
	}
	f.settings[guildID] = defaults
	return nil
}

func (f *fakeStore) DestroyGuildConfiguration(_ context.Context, guildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.settings, guildID)
	f.destroyed = append(f.destroyed, guildID)
	return nil
}

func (f *fakeStore) GetConfigurationValue(_ context.Context, guildID, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr[guildID]; err != nil {
		return "", err
	}
	v, ok := f.settings[guildID][key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (f *fakeStore) GetAllValuesForKey(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for guildID, settings := range f.settings {
		if v, ok := settings[key]; ok {
			out[guildID] = v
		}
	}
	return out, nil
}

func (f *fakeStore) RecordCommandInvocation(_ context.Context, entry CommandInvocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.invocations = append(f.invocations, entry)
	return nil
}

func (f *fakeStore) CreateJoin(_ context.Context, join Join) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, join)
	return nil
}

func (f *fakeStore) DeleteJoins(_ context.Context, guildID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.joins[:0]
	for _, j := range f.joins {
		if j.GuildID == guildID && j.UserID == userID {
			continue
		}
		kept = append(kept, j)
	}
	f.joins = kept
	return nil
}

func (f *fakeStore) recorded() []CommandInvocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CommandInvocation(nil), f.invocations...)
}

func (f *fakeStore) joinRecords() []Join {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Join(nil), f.joins...)
}

type fakeMetrics struct {
	mu      sync.Mutex
	counts  map[string]int
	timings map[string][]time.Duration
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{counts: make(map[string]int), timings: make(map[string][]time.Duration)}
}

func (m *fakeMetrics) Increment(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
}

func (m *fakeMetrics) Histogram(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timings[name] = append(m.timings[name], d)
}

func (m *fakeMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

// funcCommand adapts a function to the Command interface.
type funcCommand struct {
	usage []string
	run   func(rctx *Context, ev *Event, args string) (bool, error)
}

func (c funcCommand) Usage() []string { return c.usage }

func (c funcCommand) Run(rctx *Context, ev *Event, args string) (bool, error) {
	return c.run(rctx, ev, args)
}

// funcProcessor adapts a function to the Processor interface.
type funcProcessor struct {
	name string
	fn   func(rctx *Context, ev *Event) (bool, error)
}

func (p funcProcessor) Name() string { return p.name }

func (p funcProcessor) OnMessage(rctx *Context, ev *Event) (bool, error) {
	return p.fn(rctx, ev)
}

func message(guildID, content string) Event {
	return Event{
		Kind:         EventMessageCreate,
		GuildID:      guildID,
		GuildName:    "guild-" + guildID,
		ChannelID:    "chan-" + guildID,
		ChannelKind:  ChannelGuildText,
		MessageID:    "msg-" + content,
		Author:       Author{ID: "42", Tag: "user#0042"},
		Content:      content,
		CleanContent: content,
	}
}
