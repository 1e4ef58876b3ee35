package telegram

import (
	"strings"
)

// sentenceEnds are the break points tried when a chunk holds no newline.
var sentenceEnds = []string{"。", "！", "？", ". "}

// SplitMessage cuts text into chunks of at most maxLen runes. A chunk ends at
// its last newline, or else at its last sentence end, when that keeps at
// least half of the chunk.
func SplitMessage(text string, maxLen int) []string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(runes) > maxLen {
		cut := breakPoint(runes[:maxLen])
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func breakPoint(chunk []rune) int {
	s := string(chunk)
	half := len(chunk) / 2
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		if n := len([]rune(s[:i])) + 1; n > half {
			return n
		}
	}
	best := 0
	for _, end := range sentenceEnds {
		if i := strings.LastIndex(s, end); i >= 0 {
			if n := len([]rune(s[:i+len(end)])); n > best {
				best = n
			}
		}
	}
	if best > half {
		return best
	}
	return len(chunk)
}

// FixMarkdown closes code spans left open, which Telegram rejects in
// Markdown mode.
func FixMarkdown(text string) string {
	if strings.Count(text, "```")%2 != 0 {
		text += "\n```"
	}

	var b strings.Builder
	inBlock, inSpan := false, false
	for i := 0; i < len(text); i++ {
		if strings.HasPrefix(text[i:], "```") {
			if inSpan {
				b.WriteByte('`')
				inSpan = false
			}
			inBlock = !inBlock
			b.WriteString("```")
			i += 2
			continue
		}
		if !inBlock && text[i] == '`' {
			inSpan = !inSpan
		}
		b.WriteByte(text[i])
	}
	if inSpan {
		b.WriteByte('`')
	}
	return b.String()
}
