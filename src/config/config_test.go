package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DISCORD_TOKEN", "MYSQL_DSN", "SAFETYJIM_DISCORD_TOKEN", "SAFETYJIM_MYSQL_DSN"} {
		t.Setenv(key, "")
	}
}

func newCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "safetyjim"}
	BindFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPrefix, cfg.Bot.DefaultPrefix)
	assert.Equal(t, DefaultShardCount, cfg.Discord.ShardCount)
	assert.Equal(t, DefaultBotFarmThreshold, cfg.Bot.BotFarmThreshold)
	assert.Equal(t, DefaultQueueSize, cfg.Bot.QueueSize)
	assert.Equal(t, DefaultStatusAddr, cfg.Status.Addr)
	assert.Equal(t, DefaultAllowList, cfg.Bot.AllowList)
	assert.Equal(t, []int{0}, cfg.ShardIDs())

	timeout, err := cfg.GuildLoadTimeout()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestLoadLayers(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "safetyjim.yaml")
	yaml := `
discord:
  token: from-file
  shard_count: 4
bot:
  default_prefix: "!"
  allow_list: ["1", "2"]
mysql:
  dsn: file-dsn
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("SAFETYJIM_MYSQL_DSN", "env-dsn")
	t.Setenv("SAFETYJIM_DISCORD_SHARDS", "1, 3")
	t.Setenv("SAFETYJIM_STATUS_JWT_SECRET", "s3cret")

	cmd := newCommand(t, "--config", path, "--prefix", "??")
	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Discord.Token)
	assert.Equal(t, 4, cfg.Discord.ShardCount)
	assert.Equal(t, []int{1, 3}, cfg.ShardIDs())
	assert.Equal(t, "env-dsn", cfg.MySQL.DSN, "env beats file")
	assert.Equal(t, "??", cfg.Bot.DefaultPrefix, "explicit flags beat everything")
	assert.Equal(t, []string{"1", "2"}, cfg.Bot.AllowList)
	assert.Equal(t, "debug", cfg.Log.Level, "unset flags keep lower layers")
	assert.Equal(t, "s3cret", cfg.Status.JWTSecret)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFallbackEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "legacy-token")
	t.Setenv("MYSQL_DSN", "legacy-dsn")

	cfg, err := Load(newCommand(t))
	require.NoError(t, err)

	assert.Equal(t, "legacy-token", cfg.Discord.Token)
	assert.Equal(t, "legacy-dsn", cfg.MySQL.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(newCommand(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Discord: DiscordConfig{ShardCount: 2, Shards: []int{2}, GuildLoadTimeout: "soon"},
		Bot:     BotConfig{DefaultPrefix: " "},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"discord token", "shard 2", "default prefix", "mysql dsn", "soon"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("", "5s")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	_, err = DurationOrDefault("", "")
	assert.Error(t, err)
}
