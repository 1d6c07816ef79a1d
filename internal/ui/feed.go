package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/shhac/verifai/internal/browser"
	"github.com/shhac/verifai/internal/overlay"
)

// SnapshotFeed hands overlay snapshots from a page goroutine to the
// bubbletea program. Only the newest snapshot is kept, so the page never
// blocks on a slow or exited terminal.
type SnapshotFeed struct {
	mu     sync.Mutex
	tab    browser.TabID
	latest overlay.Snapshot
	signal chan struct{}
}

// NewSnapshotFeed creates a feed. It passes nothing on until it is told
// which tab to follow.
func NewSnapshotFeed() *SnapshotFeed {
	return &SnapshotFeed{signal: make(chan struct{}, 1)}
}

// Follow selects the tab whose snapshots are passed on.
func (f *SnapshotFeed) Follow(tab browser.TabID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tab = tab
}

// Observe matches extension.Options.Observer. Snapshots of other tabs are
// ignored.
func (f *SnapshotFeed) Observe(tab browser.TabID, s overlay.Snapshot) {
	f.mu.Lock()
	if tab != f.tab {
		f.mu.Unlock()
		return
	}
	f.latest = s
	f.mu.Unlock()
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// Tab returns the tab the feed follows.
func (f *SnapshotFeed) Tab() browser.TabID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tab
}

// next waits for the next change.
func (f *SnapshotFeed) next() tea.Cmd {
	return func() tea.Msg {
		<-f.signal
		f.mu.Lock()
		defer f.mu.Unlock()
		return snapshotMsg{Snapshot: f.latest}
	}
}
