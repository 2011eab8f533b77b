// Package markdown prepares agent output for Telegram's MarkdownV2 dialect.
//
// MarkdownV2 rejects any reserved character that is not escaped, so text is
// passed through Escape right before it leaves the process. Code fences,
// inline code and link targets keep their literal contents.
package markdown

import "strings"

// specialChars is the MarkdownV2 reserved set.
const specialChars = "_*[]()~`>#+-=|{}.!"

const fence = "```"

// IsSpecial reports whether c must be escaped outside code and link targets.
func IsSpecial(c byte) bool {
	return strings.IndexByte(specialChars, c) >= 0
}

// Escape escapes text for MarkdownV2 in a single left-to-right pass.
//
// At every position the constructs are tried in order: a multiline code
// fence, an inline code span, a link, and finally a bare reserved
// character. Whatever matches first consumes its input, so escaped output
// is never scanned again.
func Escape(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/8)

	for i := 0; i < len(text); {
		if n := writeFence(&b, text, i); n > 0 {
			i += n
			continue
		}
		if n := inlineCodeLen(text, i); n > 0 {
			b.WriteString(text[i : i+n])
			i += n
			continue
		}
		if n := writeLink(&b, text, i); n > 0 {
			i += n
			continue
		}
		c := text[i]
		if IsSpecial(c) {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// writeFence handles a fence that opens at the start of a line and closes
// with "\n```". The opening line (including any language tag) and the
// closing marker are copied verbatim; backticks in the body are escaped.
// It returns the number of input bytes consumed, or 0 when no fence starts
// at i.
func writeFence(b *strings.Builder, text string, i int) int {
	if i > 0 && text[i-1] != '\n' {
		return 0
	}
	if !strings.HasPrefix(text[i:], fence) {
		return 0
	}

	lineEnd := len(text)
	if nl := strings.IndexByte(text[i+len(fence):], '\n'); nl >= 0 {
		lineEnd = i + len(fence) + nl
	}
	rel := strings.Index(text[lineEnd:], "\n"+fence)
	if rel < 0 {
		return 0
	}
	closing := lineEnd + rel
	end := closing + 1 + len(fence)

	if closing == lineEnd {
		b.WriteString(text[i:end])
		return end - i
	}

	b.WriteString(text[i : lineEnd+1])
	b.WriteString(strings.ReplaceAll(text[lineEnd+1:closing], "`", "\\`"))
	b.WriteString("\n" + fence)
	return end - i
}

// inlineCodeLen returns the length of a `span` starting at i. The span may
// not cross a newline.
func inlineCodeLen(text string, i int) int {
	if text[i] != '`' {
		return 0
	}
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '`':
			return j - i + 1
		case '\n':
			return 0
		}
	}
	return 0
}

// writeLink handles [label](target) on a single line. The label is escaped,
// the target is copied as is. With an empty label or target it is not a
// link, and its brackets are escaped like any other text.
func writeLink(b *strings.Builder, text string, i int) int {
	if text[i] != '[' {
		return 0
	}
	mid := -1
	for j := i + 1; j+1 < len(text); j++ {
		if text[j] == '\n' {
			return 0
		}
		if text[j] == ']' && text[j+1] == '(' {
			mid = j
			break
		}
	}
	if mid < 0 {
		return 0
	}
	closeParen := -1
	for j := mid + 2; j < len(text); j++ {
		if text[j] == '\n' {
			return 0
		}
		if text[j] == ')' {
			closeParen = j
			break
		}
	}
	if closeParen < 0 {
		return 0
	}

	label := text[i+1 : mid]
	target := text[mid+2 : closeParen]
	if label == "" || target == "" {
		return 0
	}
	end := closeParen + 1

	b.WriteByte('[')
	for k := 0; k < len(label); k++ {
		if IsSpecial(label[k]) {
			b.WriteByte('\\')
		}
		b.WriteByte(label[k])
	}
	b.WriteString("](")
	b.WriteString(target)
	b.WriteByte(')')
	return end - i
}
