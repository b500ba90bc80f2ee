package router

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownCommand = errors.New("router: unknown command")

// Commands is the name to command mapping, filled once at startup.
type Commands struct {
	byName map[string]Command
}

func NewCommands() *Commands {
	return &Commands{byName: make(map[string]Command)}
}

// Register adds cmd under name. Names are case-insensitive.
func (c *Commands) Register(name string, cmd Command) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("router: command name is required")
	}
	if cmd == nil {
		return fmt.Errorf("router: command %q is nil", name)
	}
	if _, exists := c.byName[name]; exists {
		return fmt.Errorf("router: command %q already registered", name)
	}
	c.byName[name] = cmd
	return nil
}

func (c *Commands) Get(name string) (Command, bool) {
	cmd, ok := c.byName[strings.ToLower(name)]
	return cmd, ok
}

// Names returns the registered names sorted alphabetically.
func (c *Commands) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UsageString renders "syntax - description" entries with the guild prefix.
func UsageString(prefix string, usage []string) string {
	lines := make([]string, 0, len(usage))
	for _, entry := range usage {
		syntax, desc, found := strings.Cut(entry, " - ")
		syntax = strings.TrimSpace(syntax)
		if !found {
			lines = append(lines, fmt.Sprintf("`%s %s`", prefix, syntax))
			continue
		}
		lines = append(lines, fmt.Sprintf("`%s %s` - %s", prefix, syntax, strings.TrimSpace(desc)))
	}
	return strings.Join(lines, "\n")
}

// UsageStrings renders every command's usage, one command per block.
func (c *Commands) UsageStrings(prefix string) string {
	names := c.Names()
	blocks := make([]string, 0, len(names))
	for _, name := range names {
		blocks = append(blocks, UsageString(prefix, c.byName[name].Usage()))
	}
	return strings.Join(blocks, "\n")
}
