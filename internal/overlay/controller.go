package overlay

import (
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/net/html"

	"github.com/shhac/verifai/internal/protocol"
)

// DismissReason says how the user closed the overlay.
type DismissReason string

const (
	DismissOutsideClick DismissReason = "outside-click"
	DismissEscape       DismissReason = "escape"
	DismissCloseButton  DismissReason = "close-button"
)

// Controller owns the overlay of one document. It is not safe for
// concurrent use: the page context calls it from its event loop only.
type Controller struct {
	doc      *Document
	measurer Measurer
	logger   *slog.Logger

	kind      Kind
	selection Selection
	result    *protocol.AnalysisResult
	errMsg    string
	expanded  Expansion

	popup *html.Node
	pos   Position
	size  Size

	listeners []ListenerID
	seq       uint64

	onDismiss func(DismissReason)

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMeasurer sets how overlay sizes are computed.
func WithMeasurer(m Measurer) ControllerOption {
	return func(c *Controller) { c.measurer = m }
}

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// OnDismiss is called after the user closes the overlay themselves.
func OnDismiss(fn func(DismissReason)) ControllerOption {
	return func(c *Controller) { c.onDismiss = fn }
}

// NewController creates a closed controller for doc.
func NewController(doc *Document, opts ...ControllerOption) *Controller {
	c := &Controller{
		doc:      doc,
		measurer: DefaultMeasurer,
		logger:   slog.New(slog.DiscardHandler),
		expanded: Expansion{},
		subs:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind returns the current state.
func (c *Controller) Kind() Kind { return c.kind }

// ShowLoading replaces any overlay with a fresh one in the loading state.
func (c *Controller) ShowLoading(sel Selection) {
	c.teardown()
	c.kind = Loading
	c.selection = sel
	c.result = nil
	c.errMsg = ""
	c.create(renderLoading(sel.Text))
	c.logger.Debug("overlay loading", "selected_text", sel.Text)
	c.notify()
}

// ShowResults renders result. With no overlay on screen a new one is
// created, positioned from the document's current selection if any.
func (c *Controller) ShowResults(result protocol.AnalysisResult, selectedText string) {
	r := copyResult(&result)
	if c.kind == Closed {
		c.selection = c.currentSelection(selectedText)
		c.kind = Results
		c.result = r
		c.create(renderResults(*r, c.expanded))
	} else {
		c.kind = Results
		c.result = r
		c.errMsg = ""
		// Text and range always describe the same selection. A result for
		// other text keeps the current position unless that text is still
		// the live selection.
		if selectedText != "" && selectedText != c.selection.Text {
			c.selection = c.currentSelection(selectedText)
		}
		c.expanded = Expansion{}
		c.replace(renderResults(*r, c.expanded))
	}
	c.logger.Debug("overlay results", "manipulation", result.Manipulation, "techniques", len(result.Techniques))
	c.notify()
}

// ShowError renders msg, creating the overlay if none is on screen.
func (c *Controller) ShowError(msg string) {
	if c.kind == Closed {
		c.selection = c.currentSelection("")
		c.kind = Error
		c.errMsg = msg
		c.create(renderError(msg))
	} else {
		c.kind = Error
		c.result = nil
		c.errMsg = msg
		c.replace(renderError(msg))
	}
	c.logger.Debug("overlay error", "error", msg)
	c.notify()
}

// Close removes the overlay. Closing a closed overlay does nothing.
func (c *Controller) Close() {
	if c.kind == Closed && c.popup == nil {
		return
	}
	c.teardown()
	c.notify()
}

// Toggle flips one expandable section and re-renders. It reports false
// when the current view has no such section.
func (c *Controller) Toggle(s Section) bool {
	if c.kind != Results || c.result == nil || !canToggle(*c.result, s) {
		return false
	}
	c.expanded.Toggle(s)
	c.replace(renderResults(*c.result, c.expanded))
	c.notify()
	return true
}

// Reposition re-derives the overlay position from the live selection.
func (c *Controller) Reposition() {
	if c.popup == nil {
		return
	}
	old := c.pos
	c.layout(true)
	if c.pos != old {
		c.notify()
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Kind:     c.kind,
		Error:    c.errMsg,
		Result:   copyResult(c.result),
		Expanded: c.expanded.clone(),
		Viewport: c.doc.Viewport(),
		Seq:      c.seq,
	}
	if c.kind == Closed {
		return s
	}
	s.SelectedText = c.selection.Text
	s.Position = c.pos
	s.Size = c.size
	if c.result != nil {
		s.Sections = Toggleable(*c.result)
	}
	c.doc.Update(func() { s.Popup = cloneTree(c.popup) })
	return s
}

// Subscribe calls fn with a snapshot after every change, on the page
// goroutine. The returned function unsubscribes.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller) notify() {
	c.seq++
	c.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()
	if len(subs) == 0 {
		return
	}
	snap := c.Snapshot()
	for _, fn := range subs {
		fn(snap)
	}
}

// create attaches a new overlay and its dismissal listeners. Section
// state belongs to the instance, so it starts collapsed.
func (c *Controller) create(popup *html.Node) {
	c.expanded = Expansion{}
	c.popup = popup
	c.doc.AppendToBody(popup)
	c.layout(false)
	c.attach()
}

func (c *Controller) replace(popup *html.Node) {
	c.doc.Replace(c.popup, popup)
	c.popup = popup
	c.layout(true)
}

// teardown removes the overlay node, forgets the range and detaches the
// listeners. It is idempotent.
func (c *Controller) teardown() {
	if c.popup != nil {
		c.doc.Remove(c.popup)
		c.popup = nil
	}
	// A previous page context may have left its overlay behind.
	for stale := c.doc.GetElementByID(PopupID); stale != nil; stale = c.doc.GetElementByID(PopupID) {
		c.doc.Remove(stale)
	}
	c.detach()
	c.kind = Closed
	c.selection = Selection{}
	c.result = nil
	c.errMsg = ""
	c.expanded = Expansion{}
	c.pos = Position{}
	c.size = Size{}
}

// layout measures the overlay and places it. When the range is gone an
// existing overlay keeps its spot (clamped to the new size); a new one
// falls back to the top-right corner.
func (c *Controller) layout(keep bool) {
	c.size = c.measurer.Measure(c.popup)
	vp := c.doc.Viewport()
	switch rect, live := c.selection.Live(); {
	case live:
		c.pos = Place(rect, c.size, vp)
	case keep:
		c.pos = Position{
			Top:  clamp(c.pos.Top, 0, vp.H-c.size.H),
			Left: clamp(c.pos.Left, 0, vp.W-c.size.W),
		}
	default:
		c.pos = Fallback(c.size, vp)
	}
	style := "top: " + strconv.Itoa(c.pos.Top) + "px; left: " + strconv.Itoa(c.pos.Left) + "px;"
	c.doc.Update(func() { setAttr(c.popup, "style", style) })
}

func (c *Controller) attach() {
	if len(c.listeners) > 0 {
		return
	}
	c.listeners = []ListenerID{
		c.doc.AddEventListener(EventMouseDown, c.onMouseDown),
		c.doc.AddEventListener(EventClick, c.onClick),
		c.doc.AddEventListener(EventKeyDown, c.onKeyDown),
		c.doc.AddEventListener(EventScroll, c.onViewportChange),
		c.doc.AddEventListener(EventResize, c.onViewportChange),
	}
}

func (c *Controller) detach() {
	for _, id := range c.listeners {
		c.doc.RemoveEventListener(id)
	}
	c.listeners = nil
}

func (c *Controller) onMouseDown(ev Event) {
	if c.popup == nil || c.doc.Contains(c.popup, ev.TargetID) {
		return
	}
	c.dismiss(DismissOutsideClick)
}

func (c *Controller) onClick(ev Event) {
	if c.popup == nil || !c.doc.Contains(c.popup, ev.TargetID) {
		return
	}
	if ev.TargetID == CloseID {
		c.dismiss(DismissCloseButton)
		return
	}
	if s, ok := SectionFromToggleID(ev.TargetID); ok {
		c.Toggle(s)
	}
}

func (c *Controller) onKeyDown(ev Event) {
	if ev.Key == KeyEscape {
		c.dismiss(DismissEscape)
	}
}

func (c *Controller) onViewportChange(Event) {
	c.Reposition()
}

func (c *Controller) dismiss(reason DismissReason) {
	c.logger.Debug("overlay dismissed", "reason", string(reason))
	c.Close()
	if c.onDismiss != nil {
		c.onDismiss(reason)
	}
}

// currentSelection pairs text with the document's live range. The range
// is only reused when it belongs to the same text.
func (c *Controller) currentSelection(text string) Selection {
	sel, ok := c.doc.Selection()
	if !ok {
		return Selection{Text: text}
	}
	if text != "" && sel.Text != text {
		return Selection{Text: text}
	}
	return sel
}
