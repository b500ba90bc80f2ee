package router

// Buffer holds events for guilds whose configuration has not loaded yet, in
// arrival order. Like Registry it belongs to the shard worker.
type Buffer struct {
	events []Event
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Push(ev Event) {
	b.events = append(b.events, ev)
}

// Drain removes and returns every buffered event.
func (b *Buffer) Drain() []Event {
	out := b.events
	b.events = nil
	return out
}

// Take removes and returns the events of one guild, leaving the others queued.
func (b *Buffer) Take(guildID string) []Event {
	var taken []Event
	kept := b.events[:0]
	for _, ev := range b.events {
		if ev.GuildID == guildID {
			taken = append(taken, ev)
			continue
		}
		kept = append(kept, ev)
	}
	b.events = kept
	return taken
}

// Discard drops a guild's events and reports how many were removed.
func (b *Buffer) Discard(guildID string) int {
	return len(b.Take(guildID))
}

func (b *Buffer) Len() int {
	return len(b.events)
}

// Guilds lists the guilds that have buffered events, in first-arrival order.
func (b *Buffer) Guilds() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, ev := range b.events {
		if _, ok := seen[ev.GuildID]; ok {
			continue
		}
		seen[ev.GuildID] = struct{}{}
		ids = append(ids, ev.GuildID)
	}
	return ids
}
