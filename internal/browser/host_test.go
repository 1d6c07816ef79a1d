package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePage struct {
	mu     sync.Mutex
	tab    TabInfo
	alive  bool
	sheets []Stylesheet
}

func (p *fakePage) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *fakePage) InsertStylesheet(s Stylesheet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sheets = append(p.sheets, s)
}

func (p *fakePage) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
}

func (p *fakePage) styles() []Stylesheet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Stylesheet(nil), p.sheets...)
}

type pageRecorder struct {
	mu    sync.Mutex
	pages []*fakePage
}

func (r *pageRecorder) factory(tab TabInfo) (Page, error) {
	p := &fakePage{tab: tab, alive: true, sheets: tab.Styles}
	r.mu.Lock()
	r.pages = append(r.pages, p)
	r.mu.Unlock()
	return p, nil
}

func (r *pageRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

func newTestHost(rec *pageRecorder) *Host {
	h := NewHost(nil)
	h.RegisterScript("content.js", rec.factory)
	h.RegisterStylesheet("content.css", ".verifai-popup{}")
	return h
}

func TestExecuteScriptStartsPage(t *testing.T) {
	rec := &pageRecorder{}
	h := newTestHost(rec)
	id := h.OpenTab("https://example.com/article")

	_, ok := h.Page(id)
	assert.False(t, ok, "no page context before injection")

	require.NoError(t, h.ExecuteScript(context.Background(), id, "content.js"))
	page, ok := h.Page(id)
	require.True(t, ok)
	assert.True(t, page.Alive())

	// A live page is left alone.
	require.NoError(t, h.ExecuteScript(context.Background(), id, "content.js"))
	assert.Equal(t, 1, rec.count())
}

func TestExecuteScriptRestrictedURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"chrome settings", "chrome://settings"},
		{"about blank", "about:blank"},
		{"extension page", "chrome-extension://abc/popup.html"},
		{"web store", "https://chromewebstore.google.com/detail/x"},
		{"legacy web store", "https://chrome.google.com/webstore/category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &pageRecorder{}
			h := newTestHost(rec)
			id := h.OpenTab(tt.url)

			err := h.ExecuteScript(context.Background(), id, "content.js")
			if !errors.Is(err, ErrRestrictedURL) {
				t.Errorf("ExecuteScript(%q) error = %v, want ErrRestrictedURL", tt.url, err)
			}
			if err := h.InsertCSS(context.Background(), id, "content.css"); !errors.Is(err, ErrRestrictedURL) {
				t.Errorf("InsertCSS(%q) error = %v, want ErrRestrictedURL", tt.url, err)
			}
			if rec.count() != 0 {
				t.Errorf("page started on restricted URL %q", tt.url)
			}
		})
	}
}

func TestIsScriptable(t *testing.T) {
	assert.True(t, IsScriptable("https://news.example.org/story"))
	assert.True(t, IsScriptable("file:///tmp/page.html"))
	assert.False(t, IsScriptable("about:blank"))
	assert.False(t, IsScriptable("CHROME://flags"))
}

func TestExecuteScriptErrors(t *testing.T) {
	rec := &pageRecorder{}
	h := newTestHost(rec)

	err := h.ExecuteScript(context.Background(), 99, "content.js")
	assert.ErrorIs(t, err, ErrNoTab)

	id := h.OpenTab("https://example.com")
	err = h.ExecuteScript(context.Background(), id, "missing.js")
	assert.ErrorIs(t, err, ErrUnknownAsset)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = h.ExecuteScript(ctx, id, "content.js")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNavigateUnloadsPage(t *testing.T) {
	rec := &pageRecorder{}
	h := newTestHost(rec)
	id := h.OpenTab("https://example.com/a")
	require.NoError(t, h.ExecuteScript(context.Background(), id, "content.js"))
	page, _ := h.Page(id)

	require.NoError(t, h.Navigate(id, "https://example.com/b"))
	assert.False(t, page.Alive())
	_, ok := h.Page(id)
	assert.False(t, ok)

	info, _ := h.Tab(id)
	assert.Equal(t, "https://example.com/b", info.URL)
	assert.Empty(t, info.Styles, "styles belong to the old document")

	assert.ErrorIs(t, h.Navigate(42, "https://x"), ErrNoTab)
}

func TestExecuteScriptReplacesDeadPage(t *testing.T) {
	rec := &pageRecorder{}
	h := newTestHost(rec)
	id := h.OpenTab("https://example.com")
	require.NoError(t, h.ExecuteScript(context.Background(), id, "content.js"))

	first, _ := h.Page(id)
	first.Close()

	require.NoError(t, h.ExecuteScript(context.Background(), id, "content.js"))
	second, _ := h.Page(id)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, rec.count())
}

func TestScriptLoadDelay(t *testing.T) {
	rec := &pageRecorder{}
	h := newTestHost(rec)
	h.ScriptLoadDelay = 20 * time.Millisecond
	id := h.OpenTab("https://example.com")

	require.NoError(t, h.ExecuteScript(context.Background(), id, "content.js"))
	_, ok := h.Page(id)
	assert.False(t, ok, "page starts only after the load delay")

	assert.Eventually(t, func() bool {
		_, ok := h.Page(id)
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestScriptLoadDelayDiscardedOnNavigate(t *testing.T) {
	rec := &pageRecorder{}
	h := newTestHost(rec)
	h.ScriptLoadDelay = 20 * time.Millisecond
	id := h.OpenTab("https://example.com")

	require.NoError(t, h.ExecuteScript(context.Background(), id, "content.js"))
	require.NoError(t, h.Navigate(id, "https://example.com/next"))

	time.Sleep(60 * time.Millisecond)
	_, ok := h.Page(id)
	assert.False(t, ok, "a script load for the previous document must not start")
	assert.Equal(t, 0, rec.count())
}

func TestInsertCSS(t *testing.T) {
	rec := &pageRecorder{}
	h := newTestHost(rec)
	id := h.OpenTab("https://example.com")

	// Inserted before the page starts: remembered for it.
	require.NoError(t, h.InsertCSS(context.Background(), id, "content.css"))
	require.NoError(t, h.ExecuteScript(context.Background(), id, "content.js"))
	assert.Len(t, rec.pages[0].styles(), 1)

	// Inserting twice does not duplicate.
	require.NoError(t, h.InsertCSS(context.Background(), id, "content.css"))
	assert.Len(t, rec.pages[0].styles(), 1)

	assert.ErrorIs(t, h.InsertCSS(context.Background(), id, "other.css"), ErrUnknownAsset)
}

func TestInsertCSSIntoRunningPage(t *testing.T) {
	rec := &pageRecorder{}
	h := newTestHost(rec)
	id := h.OpenTab("https://example.com")
	require.NoError(t, h.ExecuteScript(context.Background(), id, "content.js"))

	require.NoError(t, h.InsertCSS(context.Background(), id, "content.css"))
	sheets := rec.pages[0].styles()
	require.Len(t, sheets, 1)
	assert.Equal(t, "content.css", sheets[0].Name)
}

func TestCloseTabAndShutdown(t *testing.T) {
	rec := &pageRecorder{}
	h := newTestHost(rec)
	a := h.OpenTab("https://a.example")
	b := h.OpenTab("https://b.example")
	assert.Equal(t, []TabID{a, b}, h.Tabs())

	require.NoError(t, h.ExecuteScript(context.Background(), a, "content.js"))
	require.NoError(t, h.CloseTab(a))
	assert.False(t, rec.pages[0].Alive())
	assert.ErrorIs(t, h.CloseTab(a), ErrNoTab)

	require.NoError(t, h.ExecuteScript(context.Background(), b, "content.js"))
	h.Shutdown()
	assert.Empty(t, h.Tabs())
	assert.False(t, rec.pages[1].Alive())
}

func TestReloadKeepsURL(t *testing.T) {
	rec := &pageRecorder{}
	h := newTestHost(rec)
	id := h.OpenTab("https://example.com/x")
	require.NoError(t, h.ExecuteScript(context.Background(), id, "content.js"))

	require.NoError(t, h.Reload(id))
	info, ok := h.Tab(id)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/x", info.URL)
	assert.False(t, rec.pages[0].Alive())
}

func TestScriptLoadPendingNotRepeated(t *testing.T) {
	rec := &pageRecorder{}
	h := newTestHost(rec)
	h.ScriptLoadDelay = 20 * time.Millisecond
	id := h.OpenTab("https://example.com")

	require.NoError(t, h.ExecuteScript(context.Background(), id, "content.js"))
	require.NoError(t, h.ExecuteScript(context.Background(), id, "content.js"))

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "a pending load is not scheduled twice")
}

func TestFactoryFailure(t *testing.T) {
	h := NewHost(nil)
	calls := 0
	h.RegisterScript("content.js", func(TabInfo) (Page, error) {
		calls++
		return nil, errors.New("boom")
	})
	id := h.OpenTab("https://example.com")

	err := h.ExecuteScript(context.Background(), id, "content.js")
	assert.Error(t, err)
	err = h.ExecuteScript(context.Background(), id, "content.js")
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}
