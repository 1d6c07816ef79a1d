package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/shhac/verifai/internal/overlay"
)

// PopupWidth is the overlay width in cells, borders included.
const PopupWidth = 48

// popupInner is the text width inside border and padding.
const popupInner = PopupWidth - 4

// renderedPopup is an overlay drawn for the terminal. targets[i] is the id
// of the element a click on row i hits.
type renderedPopup struct {
	view    string
	targets []string
}

func (p renderedPopup) width() int  { return lipgloss.Width(p.view) }
func (p renderedPopup) height() int { return lipgloss.Height(p.view) }

// target returns the element under a row of the popup, counted from the
// top border.
func (p renderedPopup) target(row int) string {
	// row 0 is the top border
	if row-1 >= 0 && row-1 < len(p.targets) && p.targets[row-1] != "" {
		return p.targets[row-1]
	}
	return overlay.PopupID
}

type popupRenderer struct {
	spinner string
	focus   string
	lines   []string
	targets []string
}

// renderPopup draws the overlay element. spinner is the current spinner
// frame; focus is the id of the toggle under the keyboard cursor.
func renderPopup(popup *html.Node, spinner, focus string) renderedPopup {
	if popup == nil {
		return renderedPopup{}
	}
	r := &popupRenderer{spinner: spinner, focus: focus}
	r.block(popup, 0)
	style := popupBoxStyle(overlay.Attr(popup, "data-state")).Width(PopupWidth - 2)
	return renderedPopup{
		view:    style.Render(strings.Join(r.lines, "\n")),
		targets: r.targets,
	}
}

// measurePopup sizes the overlay in overlay pixels. The spinner frame and
// focus highlight never change the size.
func measurePopup(popup *html.Node) overlay.Size {
	p := renderPopup(popup, "•", "")
	return overlay.Size{W: p.width() * CellWidth, H: p.height() * CellHeight}
}

// Measurer sizes overlays for the terminal page.
var Measurer overlay.Measurer = overlay.MeasureFunc(measurePopup)

func (r *popupRenderer) add(line, target string) {
	r.lines = append(r.lines, line)
	r.targets = append(r.targets, target)
}

func (r *popupRenderer) text(indent int, style lipgloss.Style, s, target string) {
	pad := strings.Repeat(" ", indent)
	for _, l := range strings.Split(wordWrap(strings.TrimSpace(SafeText(s)), popupInner-indent), "\n") {
		r.add(pad+style.Render(l), target)
	}
}

func (r *popupRenderer) block(n *html.Node, indent int) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch {
		case overlay.HasClass(c, "verifai-header"):
			r.header()
		case overlay.HasClass(c, "verifai-spinner"):
			r.add(strings.Repeat(" ", indent)+r.spinner, "")
		case overlay.HasClass(c, "verifai-status-detected"):
			r.text(indent, statusDetectedStyle, " "+overlay.TextContent(c)+" ", "")
		case overlay.HasClass(c, "verifai-status"):
			r.text(indent, statusCleanStyle, " "+overlay.TextContent(c)+" ", "")
		case overlay.HasClass(c, "verifai-error-title"):
			r.text(indent, errorTitleStyle, overlay.TextContent(c), "")
		case overlay.HasClass(c, "verifai-hint"):
			r.text(indent, hintStyle, overlay.TextContent(c), "")
		case c.DataAtom == atom.Blockquote:
			r.text(indent, previewStyle, overlay.TextContent(c), "")
		case c.DataAtom == atom.Section:
			r.add("", "")
			r.block(c, indent)
		case c.DataAtom == atom.H3:
			r.text(indent, sectionHeadingStyle, overlay.TextContent(c), "")
		case c.DataAtom == atom.Button:
			r.toggle(c, indent)
		case c.DataAtom == atom.Ul:
			r.block(c, indent)
		case c.DataAtom == atom.Li:
			r.item(c, indent)
		case c.DataAtom == atom.P:
			r.text(indent, lipgloss.NewStyle(), overlay.TextContent(c), "")
		default:
			r.block(c, indent)
		}
	}
}

func (r *popupRenderer) header() {
	title := popupTitleStyle.Render(overlay.Title)
	closeBtn := popupCloseStyle.Render("[x]")
	gap := max(popupInner-lipgloss.Width(title)-lipgloss.Width(closeBtn), 1)
	r.add(title+strings.Repeat(" ", gap)+closeBtn, overlay.CloseID)
}

func (r *popupRenderer) toggle(n *html.Node, indent int) {
	id := overlay.Attr(n, "id")
	style := toggleStyle
	if id != "" && id == r.focus {
		style = toggleFocusedStyle
	}
	r.text(indent, style, overlay.TextContent(n), id)
}

// item draws a list entry: a bullet for plain text, or the entry's toggle
// followed by its indented detail.
func (r *popupRenderer) item(n *html.Node, indent int) {
	hasElements := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		hasElements = true
		switch c.DataAtom {
		case atom.Button:
			r.toggle(c, indent)
		case atom.P:
			r.text(indent+2, detailStyle, overlay.TextContent(c), "")
		default:
			r.text(indent, lipgloss.NewStyle(), "• "+overlay.TextContent(c), "")
		}
	}
	if !hasElements {
		lines := strings.Split(wordWrap(strings.TrimSpace(SafeText(overlay.TextContent(n))), popupInner-indent-2), "\n")
		for i, l := range lines {
			prefix := "  "
			if i == 0 {
				prefix = "• "
			}
			r.add(strings.Repeat(" ", indent)+prefix+l, "")
		}
	}
}
