package overlay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shhac/verifai/internal/browser"
	"github.com/shhac/verifai/internal/messaging"
	"github.com/shhac/verifai/internal/protocol"
)

type snapshotLog struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (l *snapshotLog) observe(_ browser.TabID, s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snaps = append(l.snaps, s)
}

func (l *snapshotLog) kinds() []Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Kind, len(l.snaps))
	for i, s := range l.snaps {
		out[i] = s.Kind
	}
	return out
}

func startTestPage(t *testing.T, opts ...PageOption) (*Page, *messaging.Router, *Document) {
	t.Helper()
	router := messaging.NewRouter(nil)
	doc := NewDocument("Test", []string{"Some paragraph."})
	tab := browser.TabInfo{
		ID:     1,
		URL:    "https://example.com",
		Styles: []browser.Stylesheet{{Name: StylesheetFile, CSS: Stylesheet()}},
	}
	page, err := StartPage(router, tab, doc, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		page.Close()
		<-page.Done()
	})
	return page, router, doc
}

func send(t *testing.T, router *messaging.Router, msg protocol.Message) (protocol.Reply, error) {
	t.Helper()
	return router.Send(context.Background(), messaging.BackgroundEndpoint, messaging.TabEndpoint(1), msg, time.Second)
}

func TestPagePing(t *testing.T) {
	_, router, doc := startTestPage(t)

	reply, err := send(t, router, protocol.Ping())
	require.NoError(t, err)
	assert.True(t, reply.Ready)
	assert.True(t, doc.HasStylesheet(StylesheetFile))
}

func TestPageWorkflowMessages(t *testing.T) {
	log := &snapshotLog{}
	page, router, doc := startTestPage(t, WithObserver(log.observe))
	doc.Select("Some paragraph.", FixedRange{Left: 10, Top: 10, Right: 100, Bottom: 30})

	reply, err := send(t, router, protocol.ShowLoading("Some paragraph."))
	require.NoError(t, err)
	assert.True(t, reply.Success)

	snap, err := page.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Loading, snap.Kind)
	assert.Equal(t, Position{Top: 40, Left: 10}, snap.Position)

	result := protocol.AnalysisResult{Manipulation: true, Techniques: []string{"bandwagon_effect"}}
	_, err = send(t, router, protocol.ShowResults(result, "Some paragraph."))
	require.NoError(t, err)

	snap, err = page.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Results, snap.Kind)
	assert.True(t, snap.Result.Manipulation)
	assert.Contains(t, TextContent(snap.Popup), "Bandwagon effect")

	assert.Equal(t, []Kind{Loading, Results}, log.kinds())
}

func TestPageShowError(t *testing.T) {
	page, router, _ := startTestPage(t)

	_, err := send(t, router, protocol.ShowError("API error: 500 Internal Server Error"))
	require.NoError(t, err)

	snap, err := page.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Error, snap.Kind)
	assert.Equal(t, "API error: 500 Internal Server Error", snap.Error)
}

func TestPageClosePopupIdempotent(t *testing.T) {
	page, router, doc := startTestPage(t)

	for i := 0; i < 2; i++ {
		reply, err := send(t, router, protocol.ClosePopup())
		require.NoError(t, err)
		assert.True(t, reply.Success)
	}

	_, err := send(t, router, protocol.ShowError("x"))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := send(t, router, protocol.ClosePopup())
		require.NoError(t, err)
	}

	snap, err := page.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Closed, snap.Kind)
	assert.Equal(t, 0, doc.CountByID(PopupID))
}

func TestPageUnknownAction(t *testing.T) {
	_, router, _ := startTestPage(t)

	reply, err := send(t, router, protocol.Message{Action: "highlight"})
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Equal(t, "unknown action: highlight", reply.Error)
}

func TestPageEventsDismiss(t *testing.T) {
	router := messaging.NewRouter(nil)
	inbox, err := router.Register(messaging.BackgroundEndpoint, 1)
	require.NoError(t, err)

	doc := NewDocument("", []string{"p"})
	page, err := StartPage(router, browser.TabInfo{ID: 1, URL: "https://example.com"}, doc)
	require.NoError(t, err)
	defer func() {
		page.Close()
		<-page.Done()
	}()

	_, err = router.Send(context.Background(), messaging.BackgroundEndpoint, messaging.TabEndpoint(1), protocol.ShowError("x"), time.Second)
	require.NoError(t, err)

	page.DispatchEvent(Event{Type: EventKeyDown, Key: KeyEscape})

	select {
	case env := <-inbox:
		assert.Equal(t, protocol.ActionClosePopup, env.Action)
		assert.Equal(t, messaging.TabEndpoint(1), env.From)
		env.Respond(protocol.Ack())
	case <-time.After(time.Second):
		t.Fatal("background was not told about the dismissal")
	}

	snap, err := page.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Closed, snap.Kind)
}

func TestPageCloseTearsDownOverlay(t *testing.T) {
	log := &snapshotLog{}
	router := messaging.NewRouter(nil)
	doc := NewDocument("", nil)
	page, err := StartPage(router, browser.TabInfo{ID: 1, URL: "https://example.com"}, doc, WithObserver(log.observe))
	require.NoError(t, err)

	_, err = router.Send(context.Background(), messaging.BackgroundEndpoint, messaging.TabEndpoint(1), protocol.ShowLoading("t"), time.Second)
	require.NoError(t, err)

	page.Close()
	<-page.Done()

	assert.False(t, page.Alive())
	assert.Equal(t, 0, doc.CountByID(PopupID))
	assert.Equal(t, []Kind{Loading, Closed}, log.kinds())

	_, err = router.Send(context.Background(), messaging.BackgroundEndpoint, messaging.TabEndpoint(1), protocol.Ping(), time.Second)
	assert.ErrorIs(t, err, messaging.ErrNoReceiver)

	_, err = page.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrPageClosed)
}

func TestPageFactory(t *testing.T) {
	router := messaging.NewRouter(nil)
	doc := NewDocument("", nil)
	factory := NewPageFactory(router, func(tab browser.TabInfo) *Document {
		if tab.ID == 1 {
			return doc
		}
		return nil
	})

	p, err := factory(browser.TabInfo{ID: 1})
	require.NoError(t, err)
	defer p.Close()
	assert.True(t, p.Alive())

	_, err = factory(browser.TabInfo{ID: 2})
	assert.ErrorIs(t, err, browser.ErrNoTab)

	_, err = factory(browser.TabInfo{ID: 1})
	assert.Error(t, err, "endpoint already taken")
}
