package commands

import (
	"fmt"

	"github.com/stake-plus/safetyjim/src/router"
)

// Register adds the built-in commands to set.
func Register(set *router.Commands, mod Moderator, kicks KickRecorder) error {
	for name, cmd := range map[string]router.Command{
		"help": Help{},
		"kick": NewKick(mod, kicks),
	} {
		if err := set.Register(name, cmd); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}
