package discord

import "strconv"

// ShardForGuild returns the shard a guild's events are delivered on, using
// Discord's snowflake formula.
func ShardForGuild(guildID string, shardCount int) int {
	if shardCount <= 1 {
		return 0
	}
	id, err := strconv.ParseUint(guildID, 10, 64)
	if err != nil {
		return 0
	}
	return int((id >> 22) % uint64(shardCount))
}

// PrefixesForShard keeps the prefixes of guilds that belong to shardID.
func PrefixesForShard(prefixes map[string]string, shardID, shardCount int) map[string]string {
	out := make(map[string]string)
	for guildID, prefix := range prefixes {
		if ShardForGuild(guildID, shardCount) == shardID {
			out[guildID] = prefix
		}
	}
	return out
}
