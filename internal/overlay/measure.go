package overlay

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Measurer reports the size an overlay will occupy once drawn.
type Measurer interface {
	Measure(popup *html.Node) Size
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func(popup *html.Node) Size

// Measure implements Measurer.
func (f MeasureFunc) Measure(popup *html.Node) Size { return f(popup) }

// EstimateMeasurer approximates a browser layout: a fixed-width box whose
// height grows with the wrapped text of its block elements.
type EstimateMeasurer struct {
	Width      int
	LineHeight int
	CharWidth  int
	Padding    int
}

// DefaultMeasurer matches content.css: a 380px box with 20px lines.
var DefaultMeasurer = EstimateMeasurer{Width: 380, LineHeight: 20, CharWidth: 7, Padding: 32}

var blockElements = map[atom.Atom]bool{
	atom.Div:        true,
	atom.P:          true,
	atom.H3:         true,
	atom.Li:         true,
	atom.Button:     true,
	atom.Blockquote: true,
}

// Measure implements Measurer.
func (m EstimateMeasurer) Measure(popup *html.Node) Size {
	if popup == nil {
		return Size{}
	}
	perLine := (m.Width - m.Padding) / max(m.CharWidth, 1)
	if perLine < 1 {
		perLine = 1
	}

	lines := 0
	walk(popup, func(n *html.Node) {
		if n.Type != html.ElementNode || !blockElements[n.DataAtom] {
			return
		}
		text := strings.TrimSpace(ownText(n))
		if text == "" {
			return
		}
		chars := utf8.RuneCountInString(text)
		lines += (chars + perLine - 1) / perLine
	})
	return Size{W: m.Width, H: lines*m.LineHeight + m.Padding}
}

// ownText is the text directly inside n and its inline children, skipping
// nested blocks that are measured on their own.
func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case c.Type == html.ElementNode && !blockElements[c.DataAtom]:
			b.WriteString(ownText(c))
		}
	}
	return b.String()
}
