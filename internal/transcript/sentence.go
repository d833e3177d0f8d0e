package transcript

import (
	"strings"
	"unicode"
)

// terminalPunctuation is the conservative sentence-boundary rule: a
// terminal mark followed by whitespace or end of string. Covers Latin,
// full-width CJK, and common multilingual terminators.
var terminalPunctuation = map[rune]bool{
	'.': true, '?': true, '!': true,
	'。': true, '？': true, '！': true,
}

// EndsSentence reports whether text ends on a sentence boundary per the
// terminal-punctuation rule: the last rune is terminal punctuation, or
// terminal punctuation followed only by trailing whitespace.
func EndsSentence(text string) bool {
	trimmed := strings.TrimRight(text, " \t\n\r")
	if trimmed == "" {
		return false
	}
	runes := []rune(trimmed)
	last := runes[len(runes)-1]
	return terminalPunctuation[last]
}

// SplitSentences splits committed text into complete sentences plus a
// trailing remainder that is not yet sentence-terminal. The remainder is
// always the last element and may be empty.
func SplitSentences(text string) (sentences []string, remainder string) {
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if i < start || !terminalPunctuation[r] {
			continue
		}
		// extend through any immediately following terminal punctuation
		// ("...", "?!") before treating this as the boundary.
		end := i + 1
		for end < len(runes) && terminalPunctuation[runes[end]] {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			continue
		}
		sentences = append(sentences, strings.TrimSpace(string(runes[start:end])))
		start = end
	}
	remainder = strings.TrimSpace(string(runes[start:]))
	return sentences, remainder
}
