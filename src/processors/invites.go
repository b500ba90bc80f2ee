package processors

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/stake-plus/safetyjim/src/router"
)

var inviteLink = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:discord\.gg|discord(?:app)?\.com/invite)/[a-z0-9-]+`)

// InviteLinks deletes messages carrying Discord invites in guilds that turned
// on the invitelinkremover setting.
type InviteLinks struct{}

func (InviteLinks) Name() string { return "invites" }

func (InviteLinks) OnMessage(rctx *router.Context, ev *router.Event) (bool, error) {
	if !ContainsInvite(ev.Content) {
		return false, nil
	}
	enabled, err := rctx.Setting(router.KeyInviteLinkRemover)
	if err != nil {
		return false, err
	}
	if enabled != "true" {
		return false, nil
	}

	authorID := ev.Author.ID
	rctx.Go("invite-remove", func(c *router.Context) error {
		if err := c.Session.DeleteMessage(c, ev.ChannelID, ev.MessageID); err != nil {
			return fmt.Errorf("delete invite message: %w", err)
		}
		c.Log.Info("removed invite link", zap.String("guild", c.GuildID), zap.String("user", authorID))
		return c.Reply(fmt.Sprintf("<@%s> I'm sorry, you can't send invite links here.", authorID))
	})
	return true, nil
}

// ContainsInvite reports whether content carries a Discord invite link.
func ContainsInvite(content string) bool {
	return inviteLink.MatchString(content)
}
