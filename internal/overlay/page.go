package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shhac/verifai/internal/browser"
	"github.com/shhac/verifai/internal/messaging"
	"github.com/shhac/verifai/internal/protocol"
)

// ErrPageClosed is returned by Page.Do after the page context unloaded.
var ErrPageClosed = errors.New("page context closed")

// DefaultNoticeTimeout bounds the dismissal notice a page sends to the
// background context.
const DefaultNoticeTimeout = time.Second

type pageConfig struct {
	logger        *slog.Logger
	measurer      Measurer
	observer      func(browser.TabID, Snapshot)
	noticeTimeout time.Duration
}

// PageOption configures a page context.
type PageOption func(*pageConfig)

// WithPageLogger sets the page context's logger.
func WithPageLogger(l *slog.Logger) PageOption {
	return func(c *pageConfig) { c.logger = l }
}

// WithPageMeasurer sets how the page measures its overlay.
func WithPageMeasurer(m Measurer) PageOption {
	return func(c *pageConfig) { c.measurer = m }
}

// WithObserver receives a snapshot after every overlay change.
func WithObserver(fn func(browser.TabID, Snapshot)) PageOption {
	return func(c *pageConfig) { c.observer = fn }
}

// WithNoticeTimeout bounds the closePopup notice sent to the background
// context when the user dismisses the overlay. Zero disables the notice.
func WithNoticeTimeout(d time.Duration) PageOption {
	return func(c *pageConfig) { c.noticeTimeout = d }
}

// Page is the page context of one tab: a single goroutine that owns the
// overlay controller and handles router messages and document events in
// arrival order.
type Page struct {
	tab      browser.TabInfo
	endpoint messaging.Endpoint
	router   *messaging.Router
	doc      *Document
	ctrl     *Controller
	mux      *messaging.Mux
	logger   *slog.Logger

	inbox   <-chan messaging.Envelope
	tasks   chan func()
	pending []func()

	noticeTimeout time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// StartPage registers the tab's endpoint and starts its event loop.
func StartPage(router *messaging.Router, tab browser.TabInfo, doc *Document, opts ...PageOption) (*Page, error) {
	cfg := pageConfig{
		logger:        slog.New(slog.DiscardHandler),
		measurer:      DefaultMeasurer,
		noticeTimeout: DefaultNoticeTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	endpoint := messaging.TabEndpoint(int(tab.ID))
	inbox, err := router.Register(endpoint, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to start page context: %w", err)
	}

	logger := cfg.logger.With("tab", int(tab.ID))
	p := &Page{
		tab:           tab,
		endpoint:      endpoint,
		router:        router,
		doc:           doc,
		logger:        logger,
		inbox:         inbox,
		tasks:         make(chan func(), 16),
		noticeTimeout: cfg.noticeTimeout,
		done:          make(chan struct{}),
	}
	p.ctrl = NewController(doc,
		WithMeasurer(cfg.measurer),
		WithLogger(logger),
		OnDismiss(p.sendDismissNotice),
	)
	if cfg.observer != nil {
		p.ctrl.Subscribe(func(s Snapshot) { cfg.observer(tab.ID, s) })
	}

	for _, s := range tab.Styles {
		doc.AddStylesheet(s.Name, s.CSS)
	}

	p.mux = messaging.NewMux(logger)
	p.mux.Handle(protocol.ActionPing, p.handlePing)
	p.mux.Handle(protocol.ActionShowLoading, p.handleShowLoading)
	p.mux.Handle(protocol.ActionShowResults, p.handleShowResults)
	p.mux.Handle(protocol.ActionShowError, p.handleShowError)
	p.mux.Handle(protocol.ActionClosePopup, p.handleClosePopup)

	go p.run()
	logger.Debug("page context started", "url", tab.URL)
	return p, nil
}

// Alive implements browser.Page.
func (p *Page) Alive() bool { return !p.closed.Load() }

// InsertStylesheet implements browser.Page.
func (p *Page) InsertStylesheet(s browser.Stylesheet) {
	p.doc.AddStylesheet(s.Name, s.CSS)
}

// Close implements browser.Page. The overlay is torn down once the event
// loop has drained; Done is closed after that.
func (p *Page) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.router.Unregister(p.endpoint)
	})
}

// Done is closed when the event loop has exited.
func (p *Page) Done() <-chan struct{} { return p.done }

// Document returns the document the page is attached to.
func (p *Page) Document() *Document { return p.doc }

// DispatchEvent queues a document event on the page's loop.
func (p *Page) DispatchEvent(ev Event) {
	p.post(func() { p.doc.Dispatch(ev) })
}

// Do runs fn on the page's loop and waits for it.
func (p *Page) Do(ctx context.Context, fn func(*Controller)) error {
	finished := make(chan struct{})
	if !p.post(func() {
		defer close(finished)
		fn(p.ctrl)
	}) {
		return ErrPageClosed
	}
	select {
	case <-finished:
		return nil
	case <-p.done:
		return ErrPageClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the overlay state as seen from the page's loop.
func (p *Page) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := p.Do(ctx, func(c *Controller) { s = c.Snapshot() })
	return s, err
}

func (p *Page) post(fn func()) bool {
	if p.closed.Load() {
		return false
	}
	select {
	case p.tasks <- fn:
		return true
	case <-p.done:
		return false
	}
}

// later queues fn to run after the current message, once layout settled.
func (p *Page) later(fn func()) {
	p.pending = append(p.pending, fn)
}

func (p *Page) run() {
	defer close(p.done)
	defer func() {
		p.ctrl.Close()
		p.logger.Debug("page context unloaded")
	}()

	for {
		select {
		case env, ok := <-p.inbox:
			if !ok {
				return
			}
			p.mux.Serve(env)
		case fn := <-p.tasks:
			fn()
		}
		for len(p.pending) > 0 {
			fn := p.pending[0]
			p.pending = p.pending[1:]
			fn()
		}
	}
}

func (p *Page) handlePing(_ messaging.Endpoint, _ protocol.Message, respond messaging.Responder) bool {
	respond(protocol.ReadyReply())
	return false
}

func (p *Page) handleShowLoading(_ messaging.Endpoint, msg protocol.Message, respond messaging.Responder) bool {
	p.ctrl.ShowLoading(p.ctrl.currentSelection(msg.SelectedText))
	p.later(func() { respond(protocol.Ack()) })
	return true
}

func (p *Page) handleShowResults(_ messaging.Endpoint, msg protocol.Message, respond messaging.Responder) bool {
	var result protocol.AnalysisResult
	if msg.Data != nil {
		result = *msg.Data
	}
	p.ctrl.ShowResults(result, msg.SelectedText)
	p.later(func() { respond(protocol.Ack()) })
	return true
}

func (p *Page) handleShowError(_ messaging.Endpoint, msg protocol.Message, respond messaging.Responder) bool {
	p.ctrl.ShowError(msg.Error)
	p.later(func() { respond(protocol.Ack()) })
	return true
}

func (p *Page) handleClosePopup(_ messaging.Endpoint, _ protocol.Message, respond messaging.Responder) bool {
	p.ctrl.Close()
	respond(protocol.Ack())
	return false
}

// sendDismissNotice tells the background context the user closed the
// overlay. Delivery is best effort.
func (p *Page) sendDismissNotice(reason DismissReason) {
	if p.noticeTimeout <= 0 {
		return
	}
	go func() {
		_, err := p.router.Send(context.Background(), p.endpoint, messaging.BackgroundEndpoint, protocol.ClosePopup(), p.noticeTimeout)
		if err != nil {
			p.logger.Debug("dismiss notice not delivered", "reason", string(reason), "error", err)
		}
	}()
}

// NewPageFactory returns the page script the host runs on injection. docs
// supplies the document of the tab being scripted.
func NewPageFactory(router *messaging.Router, docs func(browser.TabInfo) *Document, opts ...PageOption) browser.PageFactory {
	return func(tab browser.TabInfo) (browser.Page, error) {
		doc := docs(tab)
		if doc == nil {
			return nil, fmt.Errorf("no document for tab %d: %w", tab.ID, browser.ErrNoTab)
		}
		return StartPage(router, tab, doc, opts...)
	}
}
