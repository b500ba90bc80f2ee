package data

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stake-plus/safetyjim/src/router"
)

// ErrNotFound is returned when a guild has no value for a key.
var ErrNotFound = errors.New("data: not found")

const (
	defaultHoldingRoomMinutes = "3"
	defaultWelcomeMessage     = "Welcome to $guild $user!"
)

// GuildStore is the MySQL-backed router.Store.
type GuildStore struct {
	db            *gorm.DB
	defaultPrefix string
}

func NewGuildStore(db *gorm.DB, defaultPrefix string) *GuildStore {
	return &GuildStore{db: db, defaultPrefix: defaultPrefix}
}

// Migrate creates or updates every table the store uses.
func (s *GuildStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(Models()...)
}

// DefaultSettings is the configuration a freshly joined guild starts with.
func DefaultSettings(prefix, defaultChannelID string) map[string]string {
	return map[string]string{
		router.KeyModLogActive:          "false",
		router.KeyModLogChannelID:       defaultChannelID,
		router.KeyHoldingRoomRoleID:     "",
		router.KeyHoldingRoomActive:     "false",
		router.KeyHoldingRoomMinutes:    defaultHoldingRoomMinutes,
		router.KeyPrefix:                prefix,
		router.KeySilentCommands:        "false",
		router.KeyNoSpacePrefix:         "false",
		router.KeyStatistics:            "false",
		router.KeyWelcomeMessageActive:  "false",
		router.KeyWelcomeMessage:        defaultWelcomeMessage,
		router.KeyWelcomeMessageChannel: defaultChannelID,
		router.KeyInviteLinkRemover:     "false",
	}
}

func (s *GuildStore) GetGuildConfiguration(ctx context.Context, guildID string) (map[string]string, error) {
	var rows []GuildSetting
	if err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load settings for guild %s: %w", guildID, err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Name] = row.Value
	}
	return out, nil
}

// CreateDefaultGuildConfiguration inserts every missing key with its default
// value. Keys that already exist keep their value.
func (s *GuildStore) CreateDefaultGuildConfiguration(ctx context.Context, guildID, defaultChannelID string) error {
	defaults := DefaultSettings(s.defaultPrefix, defaultChannelID)
	rows := make([]GuildSetting, 0, len(router.ConfigurationKeys))
	for _, key := range router.ConfigurationKeys {
		rows = append(rows, GuildSetting{GuildID: guildID, Name: key, Value: defaults[key]})
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("create default settings for guild %s: %w", guildID, err)
	}
	return nil
}

func (s *GuildStore) DestroyGuildConfiguration(ctx context.Context, guildID string) error {
	err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).Delete(&GuildSetting{}).Error
	if err != nil {
		return fmt.Errorf("delete settings for guild %s: %w", guildID, err)
	}
	return nil
}

func (s *GuildStore) GetConfigurationValue(ctx context.Context, guildID, key string) (string, error) {
	var row GuildSetting
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND name = ?", guildID, key).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("setting %s for guild %s: %w", key, guildID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("setting %s for guild %s: %w", key, guildID, err)
	}
	return row.Value, nil
}

// UpdateConfigurationValue changes one key; the key must already exist.
func (s *GuildStore) UpdateConfigurationValue(ctx context.Context, guildID, key, value string) error {
	res := s.db.WithContext(ctx).
		Model(&GuildSetting{}).
		Where("guild_id = ? AND name = ?", guildID, key).
		Update("value", value)
	if res.Error != nil {
		return fmt.Errorf("update setting %s for guild %s: %w", key, guildID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update setting %s for guild %s: %w", key, guildID, ErrNotFound)
	}
	return nil
}

// GetAllValuesForKey maps guild id to the value of key across every guild.
func (s *GuildStore) GetAllValuesForKey(ctx context.Context, key string) (map[string]string, error) {
	var rows []GuildSetting
	if err := s.db.WithContext(ctx).Where("name = ?", key).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load %s for all guilds: %w", key, err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.GuildID] = row.Value
	}
	return out, nil
}

func (s *GuildStore) RecordCommandInvocation(ctx context.Context, entry router.CommandInvocation) error {
	row := CommandLog{
		ID:        entry.ID,
		Command:   entry.Command,
		Arguments: entry.Arguments,
		Time:      entry.Time,
		Username:  entry.Username,
		UserID:    entry.UserID,
		GuildName: entry.GuildName,
		GuildID:   entry.GuildID,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record command %s: %w", entry.Command, err)
	}
	return nil
}

func (s *GuildStore) CreateJoin(ctx context.Context, join router.Join) error {
	row := Join{
		UserID:    join.UserID,
		GuildID:   join.GuildID,
		JoinTime:  join.JoinTime.Unix(),
		AllowTime: join.AllowTime.Unix(),
		Allowed:   join.Allowed,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record join of %s in guild %s: %w", join.UserID, join.GuildID, err)
	}
	return nil
}

func (s *GuildStore) DeleteJoins(ctx context.Context, guildID, userID string) error {
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Delete(&Join{}).Error
	if err != nil {
		return fmt.Errorf("delete joins of %s in guild %s: %w", userID, guildID, err)
	}
	return nil
}

// CreateKick stores a kick issued by a moderator.
func (s *GuildStore) CreateKick(ctx context.Context, kick Kick) error {
	if err := s.db.WithContext(ctx).Create(&kick).Error; err != nil {
		return fmt.Errorf("record kick of %s in guild %s: %w", kick.UserID, kick.GuildID, err)
	}
	return nil
}

// Prefixes returns every persisted guild prefix, for preloading shard registries.
func (s *GuildStore) Prefixes(ctx context.Context) (map[string]string, error) {
	return s.GetAllValuesForKey(ctx, router.KeyPrefix)
}

var _ router.Store = (*GuildStore)(nil)
