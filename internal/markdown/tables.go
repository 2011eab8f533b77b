package markdown

import (
	"regexp"
	"strings"
)

// TableMode controls how pipe tables are rewritten before escaping.
// MarkdownV2 has no table syntax, so an unconverted table arrives as a wall
// of escaped pipes.
type TableMode string

const (
	TableModeOff     TableMode = "off"
	TableModeBullets TableMode = "bullets"
	TableModeCode    TableMode = "code"
)

// ParseTableMode returns the mode named by s, or def when s is empty or
// unknown.
func ParseTableMode(s string, def TableMode) TableMode {
	switch m := TableMode(strings.ToLower(strings.TrimSpace(s))); m {
	case TableModeOff, TableModeBullets, TableModeCode:
		return m
	default:
		return def
	}
}

// Valid reports whether m is a known mode. The empty mode counts as off.
func (m TableMode) Valid() bool {
	switch m {
	case "", TableModeOff, TableModeBullets, TableModeCode:
		return true
	}
	return false
}

var (
	rowPattern       = regexp.MustCompile(`^\s*\|(.+)\|\s*$`)
	separatorPattern = regexp.MustCompile(`^\s*\|[\s\-:|]+\|\s*$`)
)

type table struct {
	header []string
	rows   [][]string
	lines  []string
}

// ConvertTables rewrites every pipe table in text according to mode.
// A table needs a header row, a separator row and at least one data row.
// Tables inside code fences are left alone.
func ConvertTables(text string, mode TableMode) string {
	if mode == TableModeOff || mode == "" || !strings.Contains(text, "|") {
		return text
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inFence := false

	for i := 0; i < len(lines); {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), fence) {
			inFence = !inFence
		}
		if inFence {
			out = append(out, lines[i])
			i++
			continue
		}
		t, n := readTable(lines[i:])
		if t == nil {
			out = append(out, lines[i])
			i++
			continue
		}
		switch mode {
		case TableModeBullets:
			out = append(out, t.bullets()...)
		case TableModeCode:
			out = append(out, fence)
			out = append(out, t.lines...)
			out = append(out, fence)
		default:
			out = append(out, t.lines...)
		}
		i += n
	}
	return strings.Join(out, "\n")
}

// HasTables reports whether text contains at least one convertible table.
func HasTables(text string) bool {
	lines := strings.Split(text, "\n")
	for i := range lines {
		if t, _ := readTable(lines[i:]); t != nil {
			return true
		}
	}
	return false
}

func readTable(lines []string) (*table, int) {
	if len(lines) < 3 || !rowPattern.MatchString(lines[0]) || !separatorPattern.MatchString(lines[1]) {
		return nil, 0
	}
	t := &table{header: splitRow(lines[0])}
	n := 2
	for n < len(lines) && rowPattern.MatchString(lines[n]) {
		row := splitRow(lines[n])
		for len(row) < len(t.header) {
			row = append(row, "")
		}
		t.rows = append(t.rows, row)
		n++
	}
	if len(t.rows) == 0 {
		return nil, 0
	}
	t.lines = lines[:n]
	return t, n
}

func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
	cells := strings.Split(line, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func (t *table) bullets() []string {
	var out []string
	for _, row := range t.rows {
		var parts []string
		for i, cell := range row {
			if cell == "" {
				continue
			}
			if i < len(t.header) && t.header[i] != "" {
				cell = t.header[i] + ": " + cell
			}
			parts = append(parts, cell)
		}
		if len(parts) > 0 {
			out = append(out, "• "+strings.Join(parts, ", "))
		}
	}
	return out
}

// Render converts tables and escapes the result for MarkdownV2.
func Render(text string, mode TableMode) string {
	return Escape(ConvertTables(text, mode))
}
