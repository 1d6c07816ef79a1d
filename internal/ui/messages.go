package ui

import "github.com/shhac/verifai/internal/overlay"

// snapshotMsg carries the latest overlay state of the page's tab.
type snapshotMsg struct {
	Snapshot overlay.Snapshot
}

// analyzeStartedMsg is sent once the analyze command has been issued.
type analyzeStartedMsg struct {
	Err error
}

// StatusBarClearMsg clears a temporary status bar message if Seq is current.
type StatusBarClearMsg struct {
	Seq int
}
