package commands

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/mock"

	"github.com/stake-plus/safetyjim/src/data"
	"github.com/stake-plus/safetyjim/src/router"
)

type sessionMock struct{ mock.Mock }

func (m *sessionMock) BotUserID() string { return "999" }

func (m *sessionMock) SendMessage(ctx context.Context, channelID, content string) error {
	return m.Called(ctx, channelID, content).Error(0)
}

func (m *sessionMock) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	return m.Called(ctx, channelID, embed).Error(0)
}

func (m *sessionMock) React(ctx context.Context, channelID, messageID, emoji string) error {
	return m.Called(ctx, channelID, messageID, emoji).Error(0)
}

func (m *sessionMock) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return m.Called(ctx, channelID, messageID).Error(0)
}

func (m *sessionMock) LeaveGuild(ctx context.Context, guildID string) error {
	return m.Called(ctx, guildID).Error(0)
}

func (m *sessionMock) Guilds() []router.GuildInfo { return nil }

func (m *sessionMock) DefaultChannel(string) string { return "" }

func (m *sessionMock) HasTextChannel(channelID string) bool {
	return m.Called(channelID).Bool(0)
}

func (m *sessionMock) SetStatus(string) error { return nil }

type moderatorMock struct{ mock.Mock }

func (m *moderatorMock) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	args := m.Called(ctx, guildID, userID)
	member, _ := args.Get(0).(*discordgo.Member)
	return member, args.Error(1)
}

func (m *moderatorMock) CanKick(ctx context.Context, guildID, invokerID, targetID string) bool {
	return m.Called(ctx, guildID, invokerID, targetID).Bool(0)
}

func (m *moderatorMock) Kick(ctx context.Context, guildID, userID, reason string) error {
	return m.Called(ctx, guildID, userID, reason).Error(0)
}

func (m *moderatorMock) SendDirect(ctx context.Context, userID, content string) error {
	return m.Called(ctx, userID, content).Error(0)
}

type kickRecorderMock struct{ mock.Mock }

func (m *kickRecorderMock) CreateKick(ctx context.Context, kick data.Kick) error {
	return m.Called(ctx, kick).Error(0)
}

// settingsStore serves a fixed configuration; other Store methods are unused here.
type settingsStore struct {
	router.Store
	settings map[string]string
}

func (s settingsStore) GetGuildConfiguration(context.Context, string) (map[string]string, error) {
	return s.settings, nil
}
