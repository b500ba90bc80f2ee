package discord

import (
	"strings"
)

const (
	MaxDiscordMessageLen = 2000
	SafeChunkLen         = 1900
)

// SplitMessage chunks content so every part fits in one Discord message.
// Breaks prefer line boundaries, then word boundaries.
func SplitMessage(content string) []string {
	if len(content) <= MaxDiscordMessageLen {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if len(line) > SafeChunkLen {
			flush()
			chunks = append(chunks, splitByWords(line)...)
			continue
		}
		if current.Len()+len(line)+1 > SafeChunkLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	flush()
	return chunks
}

func splitByWords(text string) []string {
	var chunks []string
	var chunk strings.Builder
	for _, word := range strings.Fields(text) {
		for len(word) > SafeChunkLen {
			if chunk.Len() > 0 {
				chunks = append(chunks, chunk.String())
				chunk.Reset()
			}
			cut := safeCut(word, SafeChunkLen)
			chunks = append(chunks, word[:cut])
			word = word[cut:]
		}
		if chunk.Len() > 0 && chunk.Len()+len(word)+1 > SafeChunkLen {
			chunks = append(chunks, chunk.String())
			chunk.Reset()
		}
		if chunk.Len() > 0 {
			chunk.WriteByte(' ')
		}
		chunk.WriteString(word)
	}
	if chunk.Len() > 0 {
		chunks = append(chunks, chunk.String())
	}
	return chunks
}

// safeCut backs n off so it never splits a UTF-8 sequence. Input that is not
// valid UTF-8 near the cut is split at n.
func safeCut(s string, n int) int {
	cut := n
	for cut > 0 && cut < len(s) && s[cut]&0xC0 == 0x80 {
		cut--
	}
	if cut == 0 {
		return n
	}
	return cut
}
