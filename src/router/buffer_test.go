package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func contents(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Content)
	}
	return out
}

func TestBuffer_DrainPreservesArrivalOrder(t *testing.T) {
	b := NewBuffer()
	b.Push(message("1", "a"))
	b.Push(message("2", "b"))
	b.Push(message("1", "c"))

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []string{"1", "2"}, b.Guilds())

	drained := b.Drain()
	assert.Equal(t, []string{"a", "b", "c"}, contents(drained))
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Drain(), "events are handed out exactly once")
}

func TestBuffer_TakeLeavesOtherGuilds(t *testing.T) {
	b := NewBuffer()
	b.Push(message("1", "a"))
	b.Push(message("2", "b"))
	b.Push(message("1", "c"))
	b.Push(message("3", "d"))

	taken := b.Take("1")
	assert.Equal(t, []string{"a", "c"}, contents(taken))
	assert.Equal(t, []string{"b", "d"}, contents(b.Drain()))
}

func TestBuffer_Discard(t *testing.T) {
	b := NewBuffer()
	b.Push(message("1", "a"))
	b.Push(message("2", "b"))

	assert.Equal(t, 1, b.Discard("1"))
	assert.Equal(t, 0, b.Discard("1"))
	assert.Equal(t, []string{"b"}, contents(b.Drain()))
}
