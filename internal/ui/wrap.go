package ui

import (
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

// wordWrap wraps text to fit within the given width. Words longer than a
// line are broken.
func wordWrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wrap.String(wordwrap.String(s, width), width)
}
