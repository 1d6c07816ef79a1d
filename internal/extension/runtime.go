// Package extension wires the background context, the browser host and the
// page contexts together. It is what the CLI and the terminal page drive.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shhac/verifai/internal/background"
	"github.com/shhac/verifai/internal/browser"
	"github.com/shhac/verifai/internal/messaging"
	"github.com/shhac/verifai/internal/overlay"
)

// ErrNoSelection is returned when the analyze command is issued without
// selected text.
var ErrNoSelection = errors.New("select some text first")

// Options configures a Runtime.
type Options struct {
	Analyzer background.Analyzer
	Timeouts background.Timeouts
	Logger   *slog.Logger
	// Measurer sizes overlays; nil uses the browser estimate.
	Measurer overlay.Measurer
	// Observer receives every overlay change of every tab, on that tab's
	// page goroutine.
	Observer func(browser.TabID, overlay.Snapshot)
	// ScriptLoadDelay simulates the time an injected script needs before
	// its listener exists.
	ScriptLoadDelay time.Duration
}

// Runtime is one running extension with its browser.
type Runtime struct {
	Router     *messaging.Router
	Host       *browser.Host
	Injector   *background.Injector
	Dispatcher *background.Dispatcher

	listener *background.Listener
	logger   *slog.Logger

	mu   sync.Mutex
	docs map[browser.TabID]*overlay.Document
}

// New builds a runtime. Tabs start without a page context; the first
// analyze command injects it.
func New(opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Timeouts == (background.Timeouts{}) {
		opts.Timeouts = background.DefaultTimeouts()
	}

	r := &Runtime{
		Router: messaging.NewRouter(logger),
		Host:   browser.NewHost(logger),
		logger: logger,
		docs:   make(map[browser.TabID]*overlay.Document),
	}
	r.Host.ScriptLoadDelay = opts.ScriptLoadDelay

	pageOpts := []overlay.PageOption{overlay.WithPageLogger(logger.With("context", "page"))}
	if opts.Measurer != nil {
		pageOpts = append(pageOpts, overlay.WithPageMeasurer(opts.Measurer))
	}
	if opts.Observer != nil {
		pageOpts = append(pageOpts, overlay.WithObserver(opts.Observer))
	}
	r.Host.RegisterScript(overlay.ScriptFile, overlay.NewPageFactory(r.Router, r.documentFor, pageOpts...))
	r.Host.RegisterStylesheet(overlay.StylesheetFile, overlay.Stylesheet())

	bgLogger := logger.With("context", "background")
	r.Injector = background.NewInjector(r.Router, r.Host, opts.Timeouts, bgLogger)
	r.Dispatcher = background.NewDispatcher(r.Injector, opts.Analyzer, bgLogger)
	r.listener = background.NewListener(r.Router, bgLogger, nil)
	return r
}

// Run serves the background endpoint until ctx is done, then waits for
// in-flight invocations and unloads every tab.
func (r *Runtime) Run(ctx context.Context) error {
	err := r.listener.Serve(ctx)
	r.Dispatcher.Wait()
	r.Host.Shutdown()
	return err
}

// OpenTab opens a tab showing doc.
func (r *Runtime) OpenTab(url string, doc *overlay.Document) browser.TabID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.Host.OpenTab(url)
	r.docs[id] = doc
	return id
}

// Navigate replaces the tab's document. Its page context is unloaded.
func (r *Runtime) Navigate(id browser.TabID, url string, doc *overlay.Document) error {
	r.mu.Lock()
	if _, ok := r.docs[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("navigate tab %d: %w", id, browser.ErrNoTab)
	}
	r.docs[id] = doc
	r.mu.Unlock()
	return r.Host.Navigate(id, url)
}

// CloseTab unloads and forgets the tab.
func (r *Runtime) CloseTab(id browser.TabID) error {
	r.mu.Lock()
	delete(r.docs, id)
	r.mu.Unlock()
	return r.Host.CloseTab(id)
}

// Document returns the document a tab shows.
func (r *Runtime) Document(id browser.TabID) (*overlay.Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	return doc, ok
}

func (r *Runtime) documentFor(tab browser.TabInfo) *overlay.Document {
	doc, _ := r.Document(tab.ID)
	return doc
}

// Analyze issues the analyze command for the tab's current selection. The
// command is only available with a selection.
func (r *Runtime) Analyze(id browser.TabID) error {
	doc, ok := r.Document(id)
	if !ok {
		return fmt.Errorf("analyze tab %d: %w", id, browser.ErrNoTab)
	}
	sel, ok := doc.Selection()
	if !ok {
		return ErrNoSelection
	}
	if !r.Dispatcher.Invoke(background.Command{TabID: id, SelectedText: sel.Text}) {
		return ErrNoSelection
	}
	return nil
}

// AnalyzeSync runs the command and waits for its workflow to finish.
func (r *Runtime) AnalyzeSync(ctx context.Context, id browser.TabID) error {
	doc, ok := r.Document(id)
	if !ok {
		return fmt.Errorf("analyze tab %d: %w", id, browser.ErrNoTab)
	}
	sel, ok := doc.Selection()
	if !ok {
		return ErrNoSelection
	}
	return r.Dispatcher.Run(ctx, background.Command{TabID: id, SelectedText: sel.Text})
}

// Page returns the tab's running page context.
func (r *Runtime) Page(id browser.TabID) (*overlay.Page, bool) {
	p, ok := r.Host.Page(id)
	if !ok {
		return nil, false
	}
	page, ok := p.(*overlay.Page)
	return page, ok && page.Alive()
}

// DispatchEvent forwards a user event to the tab's page context. Without a
// page context there is no overlay to react, so the event is dropped.
func (r *Runtime) DispatchEvent(id browser.TabID, ev overlay.Event) {
	if page, ok := r.Page(id); ok {
		page.DispatchEvent(ev)
	}
}

// Snapshot returns the tab's overlay state. A tab without a page context
// has no overlay.
func (r *Runtime) Snapshot(ctx context.Context, id browser.TabID) (overlay.Snapshot, error) {
	page, ok := r.Page(id)
	if !ok {
		return overlay.Snapshot{Kind: overlay.Closed}, nil
	}
	return page.Snapshot(ctx)
}

// ClosePopup dismisses the tab's overlay from the background side.
func (r *Runtime) ClosePopup(ctx context.Context, id browser.TabID) error {
	return r.Dispatcher.ClosePopup(ctx, id)
}
