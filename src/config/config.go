package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stake-plus/safetyjim/src/data"
)

const (
	DefaultPrefix           = "-mod"
	DefaultVersion          = "dev"
	DefaultShardCount       = 1
	DefaultBotFarmThreshold = 20
	DefaultQueueSize        = 256
	DefaultGuildLoadTimeout = "30s"
	DefaultStatusAddr       = ":8089"
	DefaultLogLevel         = "info"

	envPrefix = "SAFETYJIM_"
)

// DefaultAllowList holds the bot-list guilds that are never treated as bot farms.
var DefaultAllowList = []string{
	"110373943822540800",
	"264445053596991498",
	"297462937646530562",
}

type Config struct {
	Discord DiscordConfig `koanf:"discord"`
	Bot     BotConfig     `koanf:"bot"`
	MySQL   MySQLConfig   `koanf:"mysql"`
	Redis   RedisConfig   `koanf:"redis"`
	Status  StatusConfig  `koanf:"status"`
	Log     LogConfig     `koanf:"log"`
}

type DiscordConfig struct {
	Token      string `koanf:"token"`
	ShardCount int    `koanf:"shard_count"`
	// Shards lists the shard ids this process runs; empty means all of them.
	Shards           []int  `koanf:"shards"`
	GuildLoadTimeout string `koanf:"guild_load_timeout"`
}

type BotConfig struct {
	DefaultPrefix    string   `koanf:"default_prefix"`
	Version          string   `koanf:"version"`
	BotFarmThreshold int      `koanf:"bot_farm_threshold"`
	AllowList        []string `koanf:"allow_list"`
	QueueSize        int      `koanf:"queue_size"`
}

type MySQLConfig struct {
	DSN string `koanf:"dsn"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type StatusConfig struct {
	Addr      string `koanf:"addr"`
	JWTSecret string `koanf:"jwt_secret"`
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"token":          "discord.token",
	"shard-count":    "discord.shard_count",
	"shards":         "discord.shards",
	"prefix":         "bot.default_prefix",
	"mysql-dsn":      "mysql.dsn",
	"redis-url":      "redis.url",
	"status-addr":    "status.addr",
	"log-level":      "log.level",
	"log-dev":        "log.development",
	"bot-farm-limit": "bot.bot_farm_threshold",
}

// BindFlags registers the flags Load understands on cmd.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to a YAML config file")
	flags.String("token", "", "Discord bot token")
	flags.Int("shard-count", DefaultShardCount, "Total number of shards")
	flags.IntSlice("shards", nil, "Shard ids to run in this process (default all)")
	flags.String("prefix", DefaultPrefix, "Default command prefix")
	flags.String("mysql-dsn", "", "MySQL DSN")
	flags.String("redis-url", "", "Redis URL for metrics (disabled when empty)")
	flags.String("status-addr", DefaultStatusAddr, "Status API listen address (disabled when empty)")
	flags.String("log-level", DefaultLogLevel, "Log level")
	flags.Bool("log-dev", false, "Human-readable development logging")
	flags.Int("bot-farm-limit", DefaultBotFarmThreshold, "Leave guilds with more bots than this")
}

// Load layers defaults, the optional YAML file, SAFETYJIM_* environment
// variables and finally explicitly set flags.
func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"discord.shard_count":        DefaultShardCount,
		"discord.guild_load_timeout": DefaultGuildLoadTimeout,
		"bot.default_prefix":         DefaultPrefix,
		"bot.version":                DefaultVersion,
		"bot.bot_farm_threshold":     DefaultBotFarmThreshold,
		"bot.allow_list":             append([]string(nil), DefaultAllowList...),
		"bot.queue_size":             DefaultQueueSize,
		"status.addr":                DefaultStatusAddr,
		"log.level":                  DefaultLogLevel,
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	var flags *pflag.FlagSet
	if cmd != nil {
		flags = cmd.Flags()
	}

	configPath := ""
	if flags != nil {
		if flag := flags.Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// unprefixed fallbacks shared with the rest of our deployments
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv("DISCORD_TOKEN")
	}
	if cfg.MySQL.DSN == "" {
		if dsn, err := data.MySQLDSNFromEnv(); err == nil {
			cfg.MySQL.DSN = dsn
		}
	}

	return &cfg, nil
}

// envKey turns SAFETYJIM_DISCORD_SHARD_COUNT into discord.shard_count. List
// values are comma separated; empty variables are ignored.
func envKey(name, value string) (string, interface{}) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	key := strings.Replace(strings.ToLower(strings.TrimPrefix(name, envPrefix)), "_", ".", 1)
	switch key {
	case "discord.shards", "bot.allow_list":
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return key, items
	}
	return key, value
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Discord.Token) == "" {
		errs = append(errs, errors.New("discord token is required (--token, SAFETYJIM_DISCORD_TOKEN or DISCORD_TOKEN)"))
	}
	if c.Discord.ShardCount < 1 {
		errs = append(errs, fmt.Errorf("shard count must be positive, got %d", c.Discord.ShardCount))
	}
	for _, id := range c.Discord.Shards {
		if id < 0 || id >= c.Discord.ShardCount {
			errs = append(errs, fmt.Errorf("shard %d is outside 0..%d", id, c.Discord.ShardCount-1))
		}
	}
	if strings.TrimSpace(c.Bot.DefaultPrefix) == "" {
		errs = append(errs, errors.New("default prefix must not be empty"))
	}
	if strings.TrimSpace(c.MySQL.DSN) == "" {
		errs = append(errs, errors.New("mysql dsn is required (--mysql-dsn, SAFETYJIM_MYSQL_DSN, MYSQL_DSN or MYSQL_HOST/USER/DATABASE)"))
	}
	if _, err := c.GuildLoadTimeout(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ShardIDs returns the shards this process runs.
func (c *Config) ShardIDs() []int {
	if len(c.Discord.Shards) > 0 {
		return c.Discord.Shards
	}
	ids := make([]int, c.Discord.ShardCount)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func (c *Config) GuildLoadTimeout() (time.Duration, error) {
	return DurationOrDefault(c.Discord.GuildLoadTimeout, DefaultGuildLoadTimeout)
}

// DurationOrDefault parses a duration string and falls back to defaultValue when empty.
func DurationOrDefault(value string, defaultValue string) (time.Duration, error) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		candidate = strings.TrimSpace(defaultValue)
	}
	if candidate == "" {
		return 0, fmt.Errorf("duration value is empty")
	}

	d, err := time.ParseDuration(candidate)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", candidate, err)
	}
	return d, nil
}
