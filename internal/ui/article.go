package ui

import (
	"strings"
	"sync"

	"github.com/shhac/verifai/internal/overlay"
)

// The overlay engine positions in pixels. A terminal cell counts as an
// 8x16 pixel box so the engine's gaps and margins keep their proportions.
const (
	CellWidth  = 8
	CellHeight = 16
)

const (
	articleMargin   = 2
	maxArticleWidth = 88
	minArticleWidth = 10
)

type articleLine struct {
	text  string
	para  int // -1 for title and spacing lines
	title bool
}

// articleLayout is the wrapped, scrollable article. The page goroutine
// reads selection rectangles from it while positioning the overlay, so
// all access is locked.
type articleLayout struct {
	title      string
	paragraphs []string

	mu     sync.Mutex
	width  int
	height int
	offset int
	lines  []articleLine
	starts []int
	ends   []int
}

func newArticleLayout(title string, paragraphs []string) *articleLayout {
	l := &articleLayout{title: title, paragraphs: paragraphs, width: maxArticleWidth}
	l.build()
	return l
}

// resize rewraps the article for a terminal of the given size; height is
// the number of rows available to the article.
func (l *articleLayout) resize(termWidth, height int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.width = min(max(termWidth-2*articleMargin, minArticleWidth), maxArticleWidth)
	l.height = max(height, 1)
	l.build()
	l.offset = l.clampOffset(l.offset)
}

func (l *articleLayout) build() {
	l.lines = l.lines[:0]
	l.starts = make([]int, len(l.paragraphs))
	l.ends = make([]int, len(l.paragraphs))

	for _, s := range strings.Split(wordWrap(l.title, l.width), "\n") {
		l.lines = append(l.lines, articleLine{text: s, para: -1, title: true})
	}
	l.lines = append(l.lines, articleLine{para: -1})
	for i, p := range l.paragraphs {
		l.starts[i] = len(l.lines)
		for _, s := range strings.Split(wordWrap(strings.TrimSpace(p), l.width), "\n") {
			l.lines = append(l.lines, articleLine{text: s, para: i})
		}
		l.ends[i] = len(l.lines)
		if i < len(l.paragraphs)-1 {
			l.lines = append(l.lines, articleLine{para: -1})
		}
	}
}

func (l *articleLayout) clampOffset(off int) int {
	return min(max(off, 0), max(len(l.lines)-l.height, 0))
}

// scroll moves the view by delta lines and reports whether it moved.
func (l *articleLayout) scroll(delta int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	off := l.clampOffset(l.offset + delta)
	moved := off != l.offset
	l.offset = off
	return moved
}

// reveal scrolls just enough to show paragraph i and reports whether the
// view moved.
func (l *articleLayout) reveal(i int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.starts) {
		return false
	}
	off := l.offset
	switch {
	case l.starts[i] < off:
		off = l.starts[i]
	case l.ends[i] > off+l.height:
		off = min(l.ends[i]-l.height, l.starts[i])
	}
	off = l.clampOffset(off)
	moved := off != l.offset
	l.offset = off
	return moved
}

// paragraphAt returns the paragraph drawn on a view row.
func (l *articleLayout) paragraphAt(row int) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.offset + row
	if row < 0 || idx >= len(l.lines) || l.lines[idx].para < 0 {
		return 0, false
	}
	return l.lines[idx].para, true
}

// viewport is the article area in overlay pixels.
func (l *articleLayout) viewport(termWidth int) overlay.Size {
	l.mu.Lock()
	defer l.mu.Unlock()
	return overlay.Size{W: termWidth * CellWidth, H: l.height * CellHeight}
}

// rangeOf returns the live range of paragraph i.
func (l *articleLayout) rangeOf(i int) overlay.RangeSource {
	return paragraphRange{layout: l, index: i}
}

// view draws the visible rows. focus marks the paragraph under the cursor,
// selected the paragraph that was last analyzed (-1 for none).
func (l *articleLayout) view(focus, selected int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	rows := make([]string, l.height)
	for r := range rows {
		idx := l.offset + r
		if idx >= len(l.lines) {
			continue
		}
		line := l.lines[idx]
		gutter := strings.Repeat(" ", articleMargin)
		if line.para >= 0 && line.para == focus {
			gutter = articleFocusStyle.Render("▌") + strings.Repeat(" ", articleMargin-1)
		}
		text := line.text
		switch {
		case line.title:
			text = articleTitleStyle.Render(text)
		case line.para >= 0 && line.para == selected:
			text = articleSelectedStyle.Render(text)
		}
		rows[r] = gutter + text
	}
	return strings.Join(rows, "\n")
}

// paragraphRange reports where a paragraph is drawn, in overlay pixels
// relative to the article area. A paragraph scrolled out of view still
// has a rectangle, like a browser range above the fold.
type paragraphRange struct {
	layout *articleLayout
	index  int
}

func (r paragraphRange) Rect() (overlay.Rect, bool) {
	l := r.layout
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.index < 0 || r.index >= len(l.starts) {
		return overlay.Rect{}, false
	}
	return overlay.Rect{
		Left:   articleMargin * CellWidth,
		Top:    (l.starts[r.index] - l.offset) * CellHeight,
		Right:  (articleMargin + l.width) * CellWidth,
		Bottom: (l.ends[r.index] - l.offset) * CellHeight,
	}, true
}
