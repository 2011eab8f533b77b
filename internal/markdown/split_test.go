package markdown

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitAt(t *testing.T) {
	t.Run("fits", func(t *testing.T) {
		head, tail := SplitAt("short", TableModeOff, 10)
		if head != "short" || tail != "" {
			t.Errorf("SplitAt() = %q, %q", head, tail)
		}
	})

	t.Run("prefers line break", func(t *testing.T) {
		head, tail := SplitAt("first line\nsecond line", TableModeOff, 15)
		if head != "first line" || tail != "second line" {
			t.Errorf("SplitAt() = %q, %q", head, tail)
		}
	})

	t.Run("skips blank leading line", func(t *testing.T) {
		text := "   \n" + strings.Repeat("a", 30)
		head, tail := SplitAt(text, TableModeOff, 20)
		if head != "   \n"+strings.Repeat("a", 16) || tail != strings.Repeat("a", 14) {
			t.Errorf("SplitAt() = %q, %q", head, tail)
		}
	})

	t.Run("counts escapes", func(t *testing.T) {
		// Each '.' renders as two characters.
		head, tail := SplitAt(strings.Repeat(".", 10), TableModeOff, 6)
		if head != "..." || tail != "......." {
			t.Errorf("SplitAt() = %q, %q", head, tail)
		}
	})

	t.Run("respects rune boundaries", func(t *testing.T) {
		head, tail := SplitAt(strings.Repeat("é", 20), TableModeOff, 7)
		if !utf8.ValidString(head) || !utf8.ValidString(tail) {
			t.Fatalf("split produced invalid utf-8")
		}
		if utf8.RuneCountInString(head) != 7 || head+tail != strings.Repeat("é", 20) {
			t.Errorf("SplitAt() = %q, %q", head, tail)
		}
	})
}
