package markdown

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is Telegram's limit for a message body, in characters.
const MaxMessageLength = 4096

// Fits reports whether the rendered form of text stays within limit runes.
func Fits(text string, mode TableMode, limit int) bool {
	return utf8.RuneCountInString(Render(text, mode)) <= limit
}

// SplitAt cuts raw text into a head whose rendered form fits within limit
// runes and the remaining tail. It prefers the last line break that fits
// with visible text before it, and otherwise the longest rune prefix that
// fits. The head is never empty when text is non-empty, so callers always
// make progress.
func SplitAt(text string, mode TableMode, limit int) (head, tail string) {
	if Fits(text, mode, limit) {
		return text, ""
	}

	best := -1
	for i := strings.LastIndexByte(text, '\n'); i > 0; i = strings.LastIndexByte(text[:i], '\n') {
		if strings.TrimSpace(text[:i]) == "" {
			break
		}
		if Fits(text[:i], mode, limit) {
			best = i
			break
		}
	}
	if best > 0 {
		return text[:best], strings.TrimPrefix(text[best:], "\n")
	}

	// Binary search over rune boundaries.
	offsets := make([]int, 0, len(text))
	for i := range text {
		offsets = append(offsets, i)
	}
	lo, hi := 1, len(offsets)-1
	cut := offsets[1%len(offsets)]
	if len(offsets) == 1 {
		cut = len(text)
	}
	for lo <= hi {
		mid := (lo + hi) / 2
		if Fits(text[:offsets[mid]], mode, limit) {
			cut = offsets[mid]
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return text[:cut], text[cut:]
}
