package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/shhac/verifai/internal/browser"
	"github.com/shhac/verifai/internal/overlay"
	"github.com/shhac/verifai/internal/protocol"
)

type fakeEngine struct {
	mu       sync.Mutex
	analyzed []browser.TabID
	events   []overlay.Event
	err      error
}

func (e *fakeEngine) Analyze(tab browser.TabID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.analyzed = append(e.analyzed, tab)
	return e.err
}

func (e *fakeEngine) DispatchEvent(_ browser.TabID, ev overlay.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *fakeEngine) takeEvents() []overlay.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.events
	e.events = nil
	return out
}

var testParagraphs = []string{
	"Everyone already knows this plan is the only sensible choice.",
	"",
	"If the council delays, our streets will become dangerous overnight.",
}

func newTestApp(t *testing.T) (App, *fakeEngine, *overlay.Document) {
	t.Helper()
	engine := &fakeEngine{}
	doc := overlay.NewDocument("Test", testParagraphs)
	feed := NewSnapshotFeed()
	feed.Follow(3)
	app := NewApp(Config{
		Engine:     engine,
		Feed:       feed,
		Document:   doc,
		URL:        "https://news.example.com",
		Title:      "Test",
		Paragraphs: testParagraphs,
	})
	model, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return model.(App), engine, doc
}

func update(t *testing.T, m App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	model, cmd := m.Update(msg)
	return model.(App), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func resultsSnapshot(t *testing.T) overlay.Snapshot {
	t.Helper()
	doc := overlay.NewDocument("Test", testParagraphs)
	doc.SetViewport(overlay.Size{W: 800, H: 464})
	c := overlay.NewController(doc, overlay.WithMeasurer(Measurer))
	doc.Select(testParagraphs[0], overlay.FixedRange{Left: 16, Top: 32, Right: 700, Bottom: 48})
	c.ShowResults(protocol.AnalysisResult{
		Manipulation: true,
		Techniques:   []string{"bandwagon_effect"},
		Disinfo:      []string{"A claim."},
	}, testParagraphs[0])
	return c.Snapshot()
}

func TestAppSetsViewportOnResize(t *testing.T) {
	m, engine, doc := newTestApp(t)
	if got, want := doc.Viewport(), (overlay.Size{W: 100 * CellWidth, H: 29 * CellHeight}); got != want {
		t.Errorf("viewport = %+v, want %+v", got, want)
	}
	if evs := engine.takeEvents(); len(evs) != 0 {
		t.Errorf("first size message dispatched %v", evs)
	}

	_, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})
	evs := engine.takeEvents()
	if len(evs) != 1 || evs[0].Type != overlay.EventResize {
		t.Errorf("events = %v, want one resize", evs)
	}
}

func TestAppAnalyzeFocusedParagraph(t *testing.T) {
	m, engine, doc := newTestApp(t)

	m, _ = update(t, m, runes("j"))
	m, _ = update(t, m, runes("j"))
	m, cmd := update(t, m, runes("a"))
	if cmd == nil {
		t.Fatal("analyze returned no command")
	}
	msg := cmd()
	if started, ok := msg.(analyzeStartedMsg); !ok || started.Err != nil {
		t.Fatalf("got %#v, want analyzeStartedMsg without error", msg)
	}
	if len(engine.analyzed) != 1 || engine.analyzed[0] != 3 {
		t.Errorf("analyzed = %v, want tab 3", engine.analyzed)
	}

	sel, ok := doc.Selection()
	if !ok || sel.Text != testParagraphs[2] {
		t.Fatalf("selection = %+v, %v", sel, ok)
	}
	if _, live := sel.Live(); !live {
		t.Error("selection range should be live")
	}
	if m.selected != 2 {
		t.Errorf("selected = %d, want 2", m.selected)
	}
}

func TestAppAnalyzeEmptyParagraph(t *testing.T) {
	m, engine, _ := newTestApp(t)
	m, _ = update(t, m, runes("j"))
	m, cmd := update(t, m, runes("a"))
	if cmd == nil {
		t.Fatal("expected a status message command")
	}
	if len(engine.analyzed) != 0 {
		t.Error("empty paragraph must not be analyzed")
	}
	if !strings.Contains(m.statusBar.Message(), "Nothing to analyze") {
		t.Errorf("status = %q", m.statusBar.Message())
	}
}

func TestAppAnalyzeErrorFlashes(t *testing.T) {
	m, _, _ := newTestApp(t)
	m, cmd := update(t, m, analyzeStartedMsg{Err: errors.New("select some text first")})
	if cmd == nil {
		t.Fatal("expected a clear command")
	}
	if !strings.Contains(m.statusBar.Message(), "Nothing selected") {
		t.Errorf("status = %q", m.statusBar.Message())
	}
	m, _ = update(t, m, StatusBarClearMsg{Seq: 1})
	if m.statusBar.Message() != "" {
		t.Error("message not cleared")
	}
}

func TestAppEscapeDispatchesKeydown(t *testing.T) {
	m, engine, _ := newTestApp(t)
	_, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	evs := engine.takeEvents()
	if len(evs) != 1 || evs[0].Type != overlay.EventKeyDown || evs[0].Key != overlay.KeyEscape {
		t.Errorf("events = %v", evs)
	}
}

func TestAppSnapshotAndToggles(t *testing.T) {
	m, engine, _ := newTestApp(t)
	snap := resultsSnapshot(t)

	m, cmd := update(t, m, snapshotMsg{Snapshot: snap})
	if cmd == nil {
		t.Error("feed should be polled again")
	}
	if m.popup.view == "" {
		t.Fatal("popup not rendered")
	}
	if !strings.Contains(ansi.Strip(m.View()), overlay.StatusDetected) {
		t.Error("view does not show the overlay")
	}

	// Sections: technique-0, disinfo.
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	_, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	evs := engine.takeEvents()
	if len(evs) != 2 || evs[0].Type != overlay.EventMouseDown || evs[1].Type != overlay.EventClick {
		t.Fatalf("events = %v, want mousedown+click", evs)
	}
	if want := overlay.ToggleID(overlay.SectionDisinfo); evs[1].TargetID != want {
		t.Errorf("clicked %q, want %q", evs[1].TargetID, want)
	}

	_, _ = update(t, m, runes("x"))
	evs = engine.takeEvents()
	if len(evs) != 2 || evs[1].TargetID != overlay.CloseID {
		t.Errorf("close key events = %v", evs)
	}
}

func TestAppMouse(t *testing.T) {
	m, engine, _ := newTestApp(t)
	m, _ = update(t, m, snapshotMsg{Snapshot: resultsSnapshot(t)})
	top, left := m.popupOrigin()

	// Header row of the popup hits the close button.
	_, _ = update(t, m, tea.MouseMsg{X: left + 2, Y: top + 1, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	evs := engine.takeEvents()
	if len(evs) != 2 || evs[0].TargetID != overlay.CloseID {
		t.Errorf("popup click events = %v", evs)
	}

	// Outside the popup, on the first paragraph row.
	m, _ = update(t, m, tea.MouseMsg{X: 90, Y: 2, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	evs = engine.takeEvents()
	if len(evs) != 2 || evs[0].Type != overlay.EventMouseDown || evs[0].TargetID != overlay.ParagraphID(0) {
		t.Errorf("outside click events = %v", evs)
	}
	if m.focus != 0 {
		t.Errorf("focus = %d", m.focus)
	}
}

func TestAppHelpOverlay(t *testing.T) {
	m, _, _ := newTestApp(t)
	m, _ = update(t, m, runes("?"))
	if !strings.Contains(ansi.Strip(m.View()), "analyze paragraph") {
		t.Error("help not shown")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.showHelp {
		t.Error("esc should close help")
	}
	_, cmd := update(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q does not quit")
	}
}

func TestSnapshotFeed(t *testing.T) {
	f := NewSnapshotFeed()
	f.Follow(1)
	f.Observe(2, overlay.Snapshot{Kind: overlay.Error, Seq: 9})
	f.Observe(1, overlay.Snapshot{Kind: overlay.Loading, Seq: 1})
	f.Observe(1, overlay.Snapshot{Kind: overlay.Results, Seq: 2})

	msg := f.next()().(snapshotMsg)
	if msg.Snapshot.Seq != 2 || msg.Snapshot.Kind != overlay.Results {
		t.Errorf("got %+v, want the newest snapshot of tab 1", msg.Snapshot)
	}
}
