// Package ui is the terminal page: it shows an article, lets the user pick
// a paragraph as the selection, issues the analyze command and draws the
// overlay from the page context's snapshots.
package ui

import (
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shhac/verifai/internal/browser"
	"github.com/shhac/verifai/internal/overlay"
)

const flashDuration = 3 * time.Second

// Config is what the terminal page shows and drives.
type Config struct {
	Engine     Engine
	Feed       *SnapshotFeed
	Document   *overlay.Document
	URL        string
	Title      string
	Paragraphs []string
}

// App is the root Bubbletea model of the terminal page.
type App struct {
	engine Engine
	feed   *SnapshotFeed
	tab    browser.TabID
	doc    *overlay.Document

	article    *articleLayout
	paragraphs []string
	focus      int
	selected   int

	snap        overlay.Snapshot
	popup       renderedPopup
	toggleFocus int

	spinner   spinner.Model
	statusBar StatusBarModel
	help      help.Model
	keys      KeyMap
	showHelp  bool

	width       int
	height      int
	initialized bool
}

// NewApp creates the terminal page for cfg.Feed's tab.
func NewApp(cfg Config) App {
	h := help.New()
	sb := NewStatusBarModel(cfg.URL)
	sb.SetHints(h.ShortHelpView(Keys.ShortHelp()))
	return App{
		engine:     cfg.Engine,
		feed:       cfg.Feed,
		tab:        cfg.Feed.Tab(),
		doc:        cfg.Document,
		article:    newArticleLayout(cfg.Title, cfg.Paragraphs),
		paragraphs: cfg.Paragraphs,
		selected:   -1,
		snap:       overlay.Snapshot{Kind: overlay.Closed},
		spinner:    newLoadingSpinner(),
		statusBar:  sb,
		help:       h,
		keys:       Keys,
	}
}

func (m App) Init() tea.Cmd {
	return tea.Batch(m.feed.next(), m.spinner.Tick)
}

func (m App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)

	case snapshotMsg:
		m.applySnapshot(msg.Snapshot)
		return m, m.feed.next()

	case analyzeStartedMsg:
		if msg.Err != nil {
			return m, m.statusBar.SetTemporaryMessage(formatUserError(msg.Err.Error()), flashDuration)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StatusBarClearMsg:
		m.statusBar.ClearIfSeqMatch(msg.Seq)
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m App) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.article.resize(m.width, m.articleHeight())
	m.statusBar.SetWidth(m.width)
	m.help.Width = m.width
	m.doc.SetViewport(m.article.viewport(m.width))
	if m.initialized {
		m.engine.DispatchEvent(m.tab, overlay.Event{Type: overlay.EventResize})
	}
	m.initialized = true
	return m, nil
}

func (m App) articleHeight() int {
	return max(m.height-1, 1)
}

func (m *App) applySnapshot(s overlay.Snapshot) {
	sectionsChanged := !slices.Equal(m.snap.Sections, s.Sections)
	m.snap = s
	m.statusBar.SetState(s.Kind)
	if sectionsChanged || !s.Open() {
		m.toggleFocus = 0
	}
	m.renderOverlay()
}

func (m *App) renderOverlay() {
	if !m.snap.Open() {
		m.popup = renderedPopup{}
		return
	}
	m.popup = renderPopup(m.snap.Popup, m.spinner.View(), m.focusedToggle())
}

func (m App) focusedToggle() string {
	if len(m.snap.Sections) == 0 {
		return ""
	}
	return overlay.ToggleID(m.snap.Sections[m.toggleFocus%len(m.snap.Sections)])
}

func (m App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Escape) {
			m.showHelp = false
		}
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Up):
		m.moveFocus(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveFocus(1)
	case key.Matches(msg, m.keys.PageUp):
		m.scroll(-m.articleHeight() / 2)
	case key.Matches(msg, m.keys.PageDown):
		m.scroll(m.articleHeight() / 2)
	case key.Matches(msg, m.keys.Analyze):
		return m, m.analyze()
	case key.Matches(msg, m.keys.Escape):
		m.engine.DispatchEvent(m.tab, overlay.Event{Type: overlay.EventKeyDown, Key: overlay.KeyEscape})
	case key.Matches(msg, m.keys.Close):
		if m.snap.Open() {
			m.click(overlay.CloseID)
		}
	case key.Matches(msg, m.keys.NextToggle):
		m.cycleToggle(1)
	case key.Matches(msg, m.keys.PrevToggle):
		m.cycleToggle(-1)
	case key.Matches(msg, m.keys.Toggle):
		if id := m.focusedToggle(); id != "" && m.snap.Open() {
			m.click(id)
		}
	}
	return m, nil
}

// analyze selects the focused paragraph and issues the command. Paragraphs
// without text offer no command.
func (m *App) analyze() tea.Cmd {
	if m.focus >= len(m.paragraphs) {
		return nil
	}
	m.doc.Select(m.paragraphs[m.focus], m.article.rangeOf(m.focus))
	if _, ok := m.doc.Selection(); !ok {
		return m.statusBar.SetTemporaryMessage("Nothing to analyze in this paragraph", flashDuration)
	}
	m.selected = m.focus
	engine, tab := m.engine, m.tab
	return func() tea.Msg {
		return analyzeStartedMsg{Err: engine.Analyze(tab)}
	}
}

func (m *App) moveFocus(delta int) {
	if len(m.paragraphs) == 0 {
		return
	}
	m.focus = min(max(m.focus+delta, 0), len(m.paragraphs)-1)
	if m.article.reveal(m.focus) {
		m.engine.DispatchEvent(m.tab, overlay.Event{Type: overlay.EventScroll})
	}
}

func (m *App) scroll(delta int) {
	if m.article.scroll(delta) {
		m.engine.DispatchEvent(m.tab, overlay.Event{Type: overlay.EventScroll})
	}
}

func (m *App) cycleToggle(delta int) {
	n := len(m.snap.Sections)
	if n == 0 {
		return
	}
	m.toggleFocus = ((m.toggleFocus+delta)%n + n) % n
	m.renderOverlay()
}

// click sends the mousedown/click pair a pointer press produces.
func (m *App) click(target string) {
	m.engine.DispatchEvent(m.tab, overlay.Event{Type: overlay.EventMouseDown, TargetID: target})
	m.engine.DispatchEvent(m.tab, overlay.Event{Type: overlay.EventClick, TargetID: target})
}

func (m App) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonWheelUp:
		m.scroll(-3)
		return m, nil
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonWheelDown:
		m.scroll(3)
		return m, nil
	case msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft:
		return m, nil
	}

	if row, ok := m.popupRow(msg.Y, msg.X); ok {
		m.click(m.popup.target(row))
		return m, nil
	}

	target := ""
	if p, ok := m.article.paragraphAt(msg.Y); ok {
		target = overlay.ParagraphID(p)
		m.focus = p
	}
	m.click(target)
	return m, nil
}

// popupRow returns the popup row under a terminal cell, if the cell lies
// on the popup.
func (m App) popupRow(y, x int) (int, bool) {
	if !m.snap.Open() || m.popup.view == "" {
		return 0, false
	}
	top, left := m.popupOrigin()
	row, col := y-top, x-left
	if row < 0 || col < 0 || row >= m.popup.height() || col >= m.popup.width() {
		return 0, false
	}
	return row, true
}

func (m App) popupOrigin() (top, left int) {
	return m.snap.Position.Top / CellHeight, m.snap.Position.Left / CellWidth
}

func (m App) View() string {
	if !m.initialized {
		return ""
	}
	if m.showHelp {
		box := renderHelpBox(m.help.FullHelpView(m.keys.FullHelp()))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	body := m.article.view(m.focus, m.selected)
	if m.snap.Open() {
		// The spinner frame changes between snapshots.
		popup := m.popup
		if m.snap.Kind == overlay.Loading {
			popup = renderPopup(m.snap.Popup, m.spinner.View(), m.focusedToggle())
		}
		top, left := m.popupOrigin()
		body = placeOverlay(body, popup.view, top, left)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusBar.View())
}
