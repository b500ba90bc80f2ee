package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/stake-plus/safetyjim/src/data"
	"github.com/stake-plus/safetyjim/src/discord"
	"github.com/stake-plus/safetyjim/src/router"
)

const modLogColor = 0xFF9900

// Moderator is the part of the gateway the kick command needs.
type Moderator interface {
	Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
	CanKick(ctx context.Context, guildID, invokerID, targetID string) bool
	Kick(ctx context.Context, guildID, userID, reason string) error
	SendDirect(ctx context.Context, userID, content string) error
}

// KickRecorder persists kicks.
type KickRecorder interface {
	CreateKick(ctx context.Context, kick data.Kick) error
}

type Kick struct {
	mod   Moderator
	kicks KickRecorder
	now   func() time.Time
}

func NewKick(mod Moderator, kicks KickRecorder) *Kick {
	return &Kick{mod: mod, kicks: kicks, now: time.Now}
}

func (k *Kick) Usage() []string {
	return []string{"kick @user [reason] - Kicks the user with the specified reason"}
}

func (k *Kick) Run(rctx *router.Context, ev *router.Event, args string) (bool, error) {
	if len(ev.Mentions) == 0 {
		return false, rctx.Reply("You need to mention the user to kick.")
	}
	targetID := ev.Mentions[0]

	target, err := k.mod.Member(rctx, rctx.GuildID, targetID)
	if err != nil || !k.mod.CanKick(rctx, rctx.GuildID, ev.Author.ID, targetID) {
		return false, rctx.Reply("The specified member is not kickable.")
	}
	targetTag := discord.UserTag(target.User)

	// the first argument is the mention itself
	_, reason, _ := strings.Cut(strings.TrimSpace(args), " ")
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "No reason specified"
	}

	log := rctx.Log.With(zap.String("target", targetTag), zap.String("guild", rctx.GuildID))
	log.Info("kicked user", zap.String("guild_name", ev.GuildName), zap.String("moderator", ev.Author.Tag))

	notice := fmt.Sprintf("**Time out!** You have been kicked from %s.\n\n**Kicked by:** %s\n\n**Reason:** %s",
		ev.GuildName, ev.Author.Tag, reason)
	if err := k.mod.SendDirect(rctx, targetID, notice); err != nil {
		log.Warn("could not notify kicked user", zap.Error(err))
	}
	if err := k.mod.Kick(rctx, rctx.GuildID, targetID, reason); err != nil {
		return false, err
	}

	now := k.now()
	record := data.Kick{
		UserID:      targetID,
		UserName:    targetTag,
		ModeratorID: ev.Author.ID,
		ModName:     ev.Author.Tag,
		GuildID:     rctx.GuildID,
		KickTime:    now.Unix(),
		Reason:      reason,
	}
	if err := k.kicks.CreateKick(rctx, record); err != nil {
		log.Warn("could not record kick", zap.Error(err))
	}

	if err := k.modLog(rctx, targetTag, ev.Author.Tag, reason, now); err != nil {
		return false, err
	}
	return false, rctx.SuccessReact()
}

func (k *Kick) modLog(rctx *router.Context, target, moderator, reason string, at time.Time) error {
	settings, err := rctx.Store.GetGuildConfiguration(rctx, rctx.GuildID)
	if err != nil {
		return err
	}
	if settings[router.KeyModLogActive] != "true" {
		return nil
	}

	channelID := settings[router.KeyModLogChannelID]
	if !rctx.Session.HasTextChannel(channelID) {
		prefix := settings[router.KeyPrefix]
		if prefix == "" {
			prefix = rctx.Prefix
		}
		return rctx.Reply(fmt.Sprintf("Invalid channel in guild configuration, set a proper one via `%s settings` command.", prefix))
	}

	embed := &discordgo.MessageEmbed{
		Color: modLogColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Action:", Value: "Kick"},
			{Name: "User:", Value: target},
			{Name: "Reason:", Value: reason},
			{Name: "Responsible Moderator:", Value: moderator},
		},
		Timestamp: at.UTC().Format(time.RFC3339),
	}
	return rctx.Session.SendEmbed(rctx, channelID, embed)
}
