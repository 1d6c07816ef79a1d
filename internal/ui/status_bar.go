package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shhac/verifai/internal/overlay"
)

// StatusBarModel renders the bottom status bar.
type StatusBarModel struct {
	width int
	hints string
	state overlay.Kind
	url   string

	// Temporary flash message (e.g. "Select some text first")
	statusMessage string
	// Monotonic counter: incremented on each SetTemporaryMessage call.
	// StatusBarClearMsg carries the seq at time of scheduling; if it doesn't
	// match current seq the clear is stale and ignored.
	messageSeq int
}

func NewStatusBarModel(url string) StatusBarModel {
	return StatusBarModel{url: url}
}

func (m *StatusBarModel) SetWidth(width int) {
	m.width = width
}

// SetHints sets the key hints shown when no message is flashing.
func (m *StatusBarModel) SetHints(hints string) {
	m.hints = hints
}

// SetState records the overlay state shown on the right.
func (m *StatusBarModel) SetState(k overlay.Kind) {
	m.state = k
}

// SetTemporaryMessage shows a flash message in the status bar.
// Returns a tea.Cmd that will send a StatusBarClearMsg after the given duration,
// which the caller must include in the returned command batch.
func (m *StatusBarModel) SetTemporaryMessage(msg string, duration time.Duration) tea.Cmd {
	m.messageSeq++
	m.statusMessage = msg
	seq := m.messageSeq
	return tea.Tick(duration, func(_ time.Time) tea.Msg {
		return StatusBarClearMsg{Seq: seq}
	})
}

// ClearIfSeqMatch clears the message only if the given seq matches the current one.
// Returns true if the message was cleared.
func (m *StatusBarModel) ClearIfSeqMatch(seq int) bool {
	if seq == m.messageSeq {
		m.statusMessage = ""
		return true
	}
	return false
}

// Message returns the flashing message, if any.
func (m StatusBarModel) Message() string { return m.statusMessage }

func (m StatusBarModel) View() string {
	left := " " + m.hints
	if m.statusMessage != "" {
		left = " " + m.statusMessage
	}
	right := " " + strings.ToUpper(m.state.String()) + " "
	if m.url != "" {
		right += m.url + " "
	}

	leftRendered := statusBarAccentStyle.Render(left)
	rightRendered := statusBarStyle.Render(right)

	padding := max(m.width-lipgloss.Width(leftRendered)-lipgloss.Width(rightRendered), 0)
	bar := leftRendered +
		statusBarStyle.Render(strings.Repeat(" ", padding)) +
		rightRendered

	return statusBarStyle.Width(m.width).MaxWidth(m.width).Render(bar)
}
