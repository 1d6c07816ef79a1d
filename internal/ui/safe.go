package ui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// SafeText makes remote text printable on a terminal: escape sequences are
// stripped, tabs become spaces and any other control character except a
// newline is dropped.
func SafeText(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case r < 0x20, r == 0x7f, r >= 0x80 && r <= 0x9f:
			return -1
		}
		return r
	}, s)
}
