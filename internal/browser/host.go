// Package browser is the tab and scripting host the background context drives.
// It opens tabs, runs the page script in them (which starts a page context)
// and inserts stylesheets, refusing pages that extensions may not touch.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// TabID identifies a tab for the lifetime of the host.
type TabID int

var (
	// ErrNoTab is returned for operations on tabs that do not exist.
	ErrNoTab = errors.New("no tab with given id")

	// ErrRestrictedURL is returned when a page cannot be scripted.
	ErrRestrictedURL = errors.New("cannot access contents of the page")

	// ErrUnknownAsset is returned when a script or stylesheet was never
	// registered with the host.
	ErrUnknownAsset = errors.New("unknown asset")
)

// Stylesheet is a named CSS asset inserted into a page.
type Stylesheet struct {
	Name string
	CSS  string
}

// TabInfo describes the tab a page context is started in.
type TabInfo struct {
	ID     TabID
	URL    string
	Styles []Stylesheet
}

// Page is a running page context.
type Page interface {
	// Alive reports whether the page still answers messages.
	Alive() bool
	// InsertStylesheet adds a stylesheet to the page's document.
	InsertStylesheet(s Stylesheet)
	// Close unloads the page context.
	Close()
}

// PageFactory runs a page script inside a tab.
type PageFactory func(tab TabInfo) (Page, error)

// Scripting is what the background context needs from the host to make a
// tab ready.
type Scripting interface {
	ExecuteScript(ctx context.Context, tabID TabID, file string) error
	InsertCSS(ctx context.Context, tabID TabID, file string) error
}

type tab struct {
	id     TabID
	url    string
	page   Page
	styles []Stylesheet
	// generation changes on every navigation so delayed script loads for
	// an old document are discarded.
	generation int
	// starting is set while a delayed script load is pending.
	starting bool
}

// Host keeps the set of open tabs and the assets that can be injected.
type Host struct {
	mu      sync.Mutex
	nextID  TabID
	tabs    map[TabID]*tab
	scripts map[string]PageFactory
	styles  map[string]string

	// ScriptLoadDelay postpones the start of an injected page context, the
	// way a real page needs a moment before its message listener exists.
	ScriptLoadDelay time.Duration

	logger *slog.Logger
}

// NewHost creates a host with no tabs.
func NewHost(logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Host{
		nextID:  1,
		tabs:    make(map[TabID]*tab),
		scripts: make(map[string]PageFactory),
		styles:  make(map[string]string),
		logger:  logger.With("component", "host"),
	}
}

// RegisterScript makes file injectable; running it calls factory.
func (h *Host) RegisterScript(file string, factory PageFactory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scripts[file] = factory
}

// RegisterStylesheet makes file insertable as css.
func (h *Host) RegisterStylesheet(file, css string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.styles[file] = css
}

// OpenTab opens a tab at rawURL. No page script runs until injected.
func (h *Host) OpenTab(rawURL string) TabID {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.tabs[id] = &tab{id: id, url: rawURL}
	h.logger.Debug("tab opened", "tab", int(id), "url", rawURL)
	return id
}

// Tab returns the current description of a tab.
func (h *Host) Tab(id TabID) (TabInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.tabs[id]
	if !ok {
		return TabInfo{}, false
	}
	return t.info(), true
}

// Tabs lists open tab ids in ascending order.
func (h *Host) Tabs() []TabID {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]TabID, 0, len(h.tabs))
	for id := range h.tabs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Page returns the page context running in a tab, if any.
func (h *Host) Page(id TabID) (Page, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.tabs[id]
	if !ok || t.page == nil {
		return nil, false
	}
	return t.page, true
}

// Navigate loads a new document in the tab, unloading its page context.
func (h *Host) Navigate(id TabID, rawURL string) error {
	h.mu.Lock()
	t, ok := h.tabs[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("navigate tab %d: %w", id, ErrNoTab)
	}
	page := t.page
	t.page = nil
	t.styles = nil
	t.url = rawURL
	t.generation++
	t.starting = false
	h.mu.Unlock()

	if page != nil {
		page.Close()
	}
	h.logger.Debug("tab navigated", "tab", int(id), "url", rawURL)
	return nil
}

// Reload unloads the page context and keeps the URL.
func (h *Host) Reload(id TabID) error {
	info, ok := h.Tab(id)
	if !ok {
		return fmt.Errorf("reload tab %d: %w", id, ErrNoTab)
	}
	return h.Navigate(id, info.URL)
}

// CloseTab unloads and forgets the tab.
func (h *Host) CloseTab(id TabID) error {
	h.mu.Lock()
	t, ok := h.tabs[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("close tab %d: %w", id, ErrNoTab)
	}
	delete(h.tabs, id)
	h.mu.Unlock()

	if t.page != nil {
		t.page.Close()
	}
	return nil
}

// Shutdown unloads every page context.
func (h *Host) Shutdown() {
	for _, id := range h.Tabs() {
		_ = h.CloseTab(id)
	}
}

// ExecuteScript runs a registered page script in the tab. A live page
// context already in the tab is left alone; a dead one is replaced.
func (h *Host) ExecuteScript(ctx context.Context, id TabID, file string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	t, ok := h.tabs[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("execute %s in tab %d: %w", file, id, ErrNoTab)
	}
	if err := checkScriptable(t.url); err != nil {
		h.mu.Unlock()
		return fmt.Errorf("execute %s in tab %d: %w", file, id, err)
	}
	factory, ok := h.scripts[file]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("execute %s: %w", file, ErrUnknownAsset)
	}
	if (t.page != nil && t.page.Alive()) || t.starting {
		h.mu.Unlock()
		return nil
	}
	stale := t.page
	t.page = nil
	generation := t.generation
	delay := h.ScriptLoadDelay
	t.starting = delay > 0
	h.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	if delay <= 0 {
		return h.startPage(id, generation, factory)
	}
	time.AfterFunc(delay, func() {
		if err := h.startPage(id, generation, factory); err != nil {
			h.logger.Warn("delayed page start failed", "tab", int(id), "error", err)
		}
	})
	return nil
}

func (h *Host) startPage(id TabID, generation int, factory PageFactory) error {
	h.mu.Lock()
	t, ok := h.tabs[id]
	if !ok || t.generation != generation {
		h.mu.Unlock()
		return fmt.Errorf("start page in tab %d: %w", id, ErrNoTab)
	}
	info := t.info()
	h.mu.Unlock()

	page, err := factory(info)
	if err != nil {
		h.mu.Lock()
		if t, ok := h.tabs[id]; ok && t.generation == generation {
			t.starting = false
		}
		h.mu.Unlock()
		return fmt.Errorf("start page in tab %d: %w", id, err)
	}

	h.mu.Lock()
	t, ok = h.tabs[id]
	if !ok || t.generation != generation {
		h.mu.Unlock()
		page.Close()
		return fmt.Errorf("start page in tab %d: %w", id, ErrNoTab)
	}
	t.page = page
	t.starting = false
	h.mu.Unlock()

	h.logger.Debug("page context started", "tab", int(id))
	return nil
}

// InsertCSS inserts a registered stylesheet into the tab. It is remembered
// for the current document, so a page context started later still gets it.
func (h *Host) InsertCSS(ctx context.Context, id TabID, file string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	t, ok := h.tabs[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("insert %s in tab %d: %w", file, id, ErrNoTab)
	}
	if err := checkScriptable(t.url); err != nil {
		h.mu.Unlock()
		return fmt.Errorf("insert %s in tab %d: %w", file, id, err)
	}
	css, ok := h.styles[file]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("insert %s: %w", file, ErrUnknownAsset)
	}
	sheet := Stylesheet{Name: file, CSS: css}
	for _, s := range t.styles {
		if s.Name == file {
			h.mu.Unlock()
			return nil
		}
	}
	t.styles = append(t.styles, sheet)
	page := t.page
	h.mu.Unlock()

	if page != nil {
		page.InsertStylesheet(sheet)
	}
	return nil
}

func (t *tab) info() TabInfo {
	styles := make([]Stylesheet, len(t.styles))
	copy(styles, t.styles)
	return TabInfo{ID: t.id, URL: t.url, Styles: styles}
}

var restrictedSchemes = map[string]bool{
	"chrome":           true,
	"chrome-extension": true,
	"chrome-search":    true,
	"edge":             true,
	"about":            true,
	"view-source":      true,
	"devtools":         true,
	"moz-extension":    true,
}

// checkScriptable mirrors the browser rule that extensions cannot script
// browser-internal pages or the extension store.
func checkScriptable(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRestrictedURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if restrictedSchemes[scheme] {
		return fmt.Errorf("%w: %s URL", ErrRestrictedURL, scheme)
	}
	if u.Host == "chromewebstore.google.com" ||
		(u.Host == "chrome.google.com" && strings.HasPrefix(u.Path, "/webstore")) {
		return fmt.Errorf("%w: extension gallery", ErrRestrictedURL)
	}
	return nil
}

// IsScriptable reports whether pages at rawURL accept injected scripts.
func IsScriptable(rawURL string) bool {
	return checkScriptable(rawURL) == nil
}
