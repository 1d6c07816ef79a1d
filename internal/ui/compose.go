package ui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// placeOverlay draws box over base with its top-left corner at row, col.
// Rows of the box outside base are dropped.
func placeOverlay(base, box string, row, col int) string {
	if box == "" {
		return base
	}
	col = max(col, 0)
	lines := strings.Split(base, "\n")
	for i, b := range strings.Split(box, "\n") {
		y := row + i
		if y < 0 || y >= len(lines) {
			continue
		}
		line := lines[y]
		if w := ansi.StringWidth(line); w < col {
			line += strings.Repeat(" ", col-w)
		}
		left := ansi.Truncate(line, col, "")
		right := ansi.TruncateLeft(line, col+ansi.StringWidth(b), "")
		lines[y] = left + b + right
	}
	return strings.Join(lines, "\n")
}
