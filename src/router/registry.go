package router

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Matchers holds the compiled patterns derived from one guild prefix. A value is
// never mutated after construction; re-registering a guild swaps the pointer.
type Matchers struct {
	Prefix string
	// Command captures the command token (1) and the remaining argument text (2).
	Command *regexp.Regexp
	// PrefixTest matches anything that merely starts with the prefix.
	PrefixTest *regexp.Regexp
}

// CompileMatchers escapes prefix and builds both matchers for it.
func CompileMatchers(prefix string) (*Matchers, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, fmt.Errorf("router: empty prefix")
	}
	quoted := regexp.QuoteMeta(prefix)

	cmd, err := regexp.Compile(`(?is)^` + quoted + `\s*(\S+)\s*(.*)$`)
	if err != nil {
		return nil, fmt.Errorf("router: compile command matcher: %w", err)
	}
	test, err := regexp.Compile(`(?is)^` + quoted)
	if err != nil {
		return nil, fmt.Errorf("router: compile prefix matcher: %w", err)
	}

	return &Matchers{Prefix: prefix, Command: cmd, PrefixTest: test}, nil
}

// MatchCommand returns the lower-cased command token and trimmed arguments.
func (m *Matchers) MatchCommand(content string) (name, args string, ok bool) {
	groups := m.Command.FindStringSubmatch(content)
	if groups == nil {
		return "", "", false
	}
	return strings.ToLower(groups[1]), strings.TrimSpace(groups[2]), true
}

// LooksLikeCommand reports whether content starts with the prefix.
func (m *Matchers) LooksLikeCommand(content string) bool {
	return m.PrefixTest.MatchString(content)
}

// Registry maps guild ids to their current matchers. It is owned by a single
// shard worker and is not safe for concurrent use.
type Registry struct {
	guilds map[string]*Matchers
}

func NewRegistry() *Registry {
	return &Registry{guilds: make(map[string]*Matchers)}
}

// Register compiles prefix for guildID, replacing any previous entry.
func (r *Registry) Register(guildID, prefix string) error {
	m, err := CompileMatchers(prefix)
	if err != nil {
		return fmt.Errorf("register guild %s: %w", guildID, err)
	}
	r.guilds[guildID] = m
	return nil
}

func (r *Registry) Unregister(guildID string) {
	delete(r.guilds, guildID)
}

func (r *Registry) Lookup(guildID string) (*Matchers, bool) {
	m, ok := r.guilds[guildID]
	return m, ok
}

// Prefix returns the registered prefix, or "" when the guild is unknown.
func (r *Registry) Prefix(guildID string) string {
	if m, ok := r.guilds[guildID]; ok {
		return m.Prefix
	}
	return ""
}

func (r *Registry) Len() int {
	return len(r.guilds)
}

// GuildIDs returns the registered guild ids in sorted order.
func (r *Registry) GuildIDs() []string {
	ids := make([]string, 0, len(r.guilds))
	for id := range r.guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
