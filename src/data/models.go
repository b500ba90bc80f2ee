package data

import "time"

// GuildSetting is one configuration key of one guild.
type GuildSetting struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	GuildID string `gorm:"size:32;not null;uniqueIndex:idx_guild_setting"`
	Name    string `gorm:"size:32;not null;uniqueIndex:idx_guild_setting;index"`
	Value   string `gorm:"type:text;not null"`
}

// CommandLog is the audit trail of command invocations.
type CommandLog struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Command   string    `gorm:"size:64;not null;index"`
	Arguments string    `gorm:"type:text"`
	Time      time.Time `gorm:"not null;index"`
	Username  string    `gorm:"size:128"`
	UserID    string    `gorm:"size:32;index"`
	GuildName string    `gorm:"size:128"`
	GuildID   string    `gorm:"size:32;index"`
}

// Join tracks members waiting in a guild's holding room.
type Join struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"size:32;not null;index"`
	GuildID   string `gorm:"size:32;not null;index"`
	JoinTime  int64  `gorm:"not null"`
	AllowTime int64  `gorm:"not null"`
	Allowed   bool   `gorm:"not null"`
}

// Kick records a kick issued through the kick command.
type Kick struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	UserID      string `gorm:"size:32;not null;index"`
	UserName    string `gorm:"size:128"`
	ModeratorID string `gorm:"size:32;not null"`
	ModName     string `gorm:"size:128"`
	GuildID     string `gorm:"size:32;not null;index"`
	KickTime    int64  `gorm:"not null"`
	Reason      string `gorm:"type:text"`
}

// Models lists every table the bot owns, for AutoMigrate.
func Models() []interface{} {
	return []interface{}{&GuildSetting{}, &CommandLog{}, &Join{}, &Kick{}}
}
