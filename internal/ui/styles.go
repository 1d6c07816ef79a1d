package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// Popup border colors
var (
	popupBorderColor      = lipgloss.Color("62")  // bright purple/blue
	popupErrorBorderColor = lipgloss.Color("196") // red
)

// Popup content
var (
	popupTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	popupCloseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	statusDetectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("255")).
				Background(lipgloss.Color("160")).
				Bold(true)
	statusCleanStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("42")).
				Bold(true)

	sectionHeadingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	toggleStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	toggleFocusedStyle  = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("214")).
				Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)

	errorTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// Article
var (
	articleTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	articleFocusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	articleSelectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("237"))
)

// Status bar
var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252"))
	statusBarAccentStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("236")).
				Foreground(lipgloss.Color("62")).
				Bold(true)
)

func popupBoxStyle(state string) lipgloss.Style {
	border := popupBorderColor
	if state == "error" {
		border = popupErrorBorderColor
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

// newLoadingSpinner creates a consistently styled spinner for loading states.
func newLoadingSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	return s
}

// renderHelpBox frames the full key help for the help overlay.
func renderHelpBox(body string) string {
	title := popupTitleStyle.Render("Keys")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(popupBorderColor).
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body))
}

// formatUserError converts raw error strings into user-friendly messages.
func formatUserError(err string) string {
	lower := strings.ToLower(err)
	switch {
	case strings.Contains(lower, "select some text"):
		return "Nothing selected. Move to a paragraph with text first."
	case strings.Contains(lower, "cannot access contents"):
		return "This page cannot be analyzed."
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return "Request timed out. Check your connection and try again."
	case strings.Contains(lower, "no such host") || strings.Contains(lower, "connection refused"):
		return "Network error. Is the analysis service running?"
	default:
		return err
	}
}
