package commands

import "github.com/stake-plus/safetyjim/src/router"

// Help lists every registered command with the guild's prefix.
type Help struct{}

func (Help) Usage() []string {
	return []string{"help - lists all the available commands and their usage"}
}

func (Help) Run(rctx *router.Context, _ *router.Event, _ string) (bool, error) {
	embed := router.BotEmbed("List of commands", rctx.Commands.UsageStrings(rctx.Prefix))
	if err := rctx.ReplyEmbed(embed); err != nil {
		return false, err
	}
	return false, rctx.SuccessReact()
}
