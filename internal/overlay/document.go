// Package overlay is the page side of verifai: the document a tab shows, the
// analysis overlay drawn into it, and the page context event loop that
// drives the overlay from router messages and user events.
package overlay

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Event types a document dispatches.
const (
	EventMouseDown = "mousedown"
	EventClick     = "click"
	EventKeyDown   = "keydown"
	EventScroll    = "scroll"
	EventResize    = "resize"
)

// KeyEscape is the Key of an escape keydown.
const KeyEscape = "Escape"

// Event is a user interaction with the document. TargetID is the id
// attribute of the element under the pointer; empty means the page itself.
type Event struct {
	Type     string
	Key      string
	TargetID string
}

// Listener receives dispatched events.
type Listener func(Event)

// ListenerID identifies a registration for RemoveEventListener.
type ListenerID int

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// Selection is the user's current text selection: the trimmed text plus
// the range it was made in, used only for positioning.
type Selection struct {
	Text  string
	Range RangeSource
}

// Live reports whether the selection's range still resolves to a rect.
func (s Selection) Live() (Rect, bool) {
	if s.Range == nil {
		return Rect{}, false
	}
	return s.Range.Rect()
}

// Document is the page a tab shows. It outlives page contexts: the tab owns
// it, a page context attaches to it, and navigation replaces it. All
// methods are safe for concurrent use.
type Document struct {
	mu sync.Mutex

	root *html.Node
	head *html.Node
	body *html.Node

	viewport  Size
	selection Selection
	hasSel    bool

	listeners map[string][]listenerEntry
	nextID    ListenerID
}

// DefaultViewport is used until the front-end reports its real size.
var DefaultViewport = Size{W: 1280, H: 800}

// NewDocument builds a document with a title and one paragraph per entry.
// Paragraph i gets the id "p<i>".
func NewDocument(title string, paragraphs []string) *Document {
	root := &html.Node{Type: html.DocumentNode}
	htmlEl := element(atom.Html)
	head := element(atom.Head)
	body := element(atom.Body)
	root.AppendChild(htmlEl)
	htmlEl.AppendChild(head)
	htmlEl.AppendChild(body)

	if title != "" {
		t := element(atom.Title)
		t.AppendChild(textNode(title))
		head.AppendChild(t)
	}
	for i, p := range paragraphs {
		para := element(atom.P, attr("id", ParagraphID(i)))
		para.AppendChild(textNode(p))
		body.AppendChild(para)
	}

	return &Document{
		root:      root,
		head:      head,
		body:      body,
		viewport:  DefaultViewport,
		listeners: make(map[string][]listenerEntry),
	}
}

// ParagraphID is the element id of paragraph i in a NewDocument.
func ParagraphID(i int) string { return fmt.Sprintf("p%d", i) }

// Viewport returns the visible area's size.
func (d *Document) Viewport() Size {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.viewport
}

// SetViewport records a new visible area size. Callers dispatch
// EventResize afterwards so the overlay can follow.
func (d *Document) SetViewport(s Size) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewport = s
}

// Select makes text the current selection. Blank text clears it.
func (d *Document) Select(text string, r RangeSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	text = strings.TrimSpace(text)
	if text == "" {
		d.selection, d.hasSel = Selection{}, false
		return
	}
	d.selection, d.hasSel = Selection{Text: text, Range: r}, true
}

// ClearSelection drops the current selection.
func (d *Document) ClearSelection() {
	d.Select("", nil)
}

// Selection returns the current selection, if any.
func (d *Document) Selection() (Selection, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection, d.hasSel
}

// AddStylesheet appends a <style> element to the head. A sheet with the
// same name is only added once.
func (d *Document) AddStylesheet(name, css string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if findElement(d.head, func(n *html.Node) bool {
		return n.DataAtom == atom.Style && getAttr(n, "data-name") == name
	}) != nil {
		return
	}
	style := element(atom.Style, attr("data-name", name))
	style.AppendChild(textNode(css))
	d.head.AppendChild(style)
}

// HasStylesheet reports whether a stylesheet was added under name.
func (d *Document) HasStylesheet(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return findElement(d.head, func(n *html.Node) bool {
		return n.DataAtom == atom.Style && getAttr(n, "data-name") == name
	}) != nil
}

// AppendToBody adds n as the last child of <body>.
func (d *Document) AppendToBody(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.body.AppendChild(n)
}

// Remove detaches n from the document. Nodes that are not attached are
// ignored.
func (d *Document) Remove(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Replace swaps old for n in place. When old is detached n is appended to
// the body.
func (d *Document) Replace(old, n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old == nil || old.Parent == nil {
		d.body.AppendChild(n)
		return
	}
	old.Parent.InsertBefore(n, old)
	old.Parent.RemoveChild(old)
}

// Update runs fn while holding the document lock, for in-place edits of
// attached nodes.
func (d *Document) Update(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// GetElementByID finds an element by its id attribute.
func (d *Document) GetElementByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return findElement(d.root, func(n *html.Node) bool { return getAttr(n, "id") == id })
}

// CountByID counts elements carrying id. More than one means a stale
// element was left behind.
func (d *Document) CountByID(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 0
	walk(d.root, func(n *html.Node) {
		if n.Type == html.ElementNode && getAttr(n, "id") == id {
			count++
		}
	})
	return count
}

// TextOf returns the text content of the element with the given id.
func (d *Document) TextOf(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := findElement(d.root, func(n *html.Node) bool { return getAttr(n, "id") == id })
	if n == nil {
		return ""
	}
	return textContent(n)
}

// Contains reports whether the element with id lies inside container.
func (d *Document) Contains(container *html.Node, id string) bool {
	if container == nil || id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return findElement(container, func(n *html.Node) bool { return getAttr(n, "id") == id }) != nil
}

// AddEventListener registers fn for events of type typ.
func (d *Document) AddEventListener(typ string, fn Listener) ListenerID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.listeners[typ] = append(d.listeners[typ], listenerEntry{id: d.nextID, fn: fn})
	return d.nextID
}

// RemoveEventListener unregisters a listener. Unknown ids are ignored.
func (d *Document) RemoveEventListener(id ListenerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for typ, entries := range d.listeners {
		for i, e := range entries {
			if e.id == id {
				d.listeners[typ] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount reports how many listeners are registered for typ.
func (d *Document) ListenerCount(typ string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[typ])
}

// Dispatch delivers ev to the listeners registered for its type, in
// registration order. Listeners run without the document lock held.
func (d *Document) Dispatch(ev Event) {
	d.mu.Lock()
	entries := append([]listenerEntry(nil), d.listeners[ev.Type]...)
	d.mu.Unlock()

	for _, e := range entries {
		e.fn(ev)
	}
}

// Render writes the document as HTML. Text is escaped by html.Render.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}
