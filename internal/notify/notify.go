// Package notify shows a desktop notification when a headless analysis
// finishes.
package notify

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/shhac/verifai/internal/protocol"
)

// Runner executes an external command. It is swapped out in tests.
type Runner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// Notifier sends notifications through the platform's notifier.
type Notifier struct {
	GOOS string
	Run  Runner
	// Bell receives the terminal bell on platforms without a notifier.
	Bell io.Writer
}

// New returns a notifier for the running platform.
func New() *Notifier {
	return &Notifier{GOOS: runtime.GOOS, Run: execRunner, Bell: os.Stdout}
}

// Send delivers a notification with title and body. macOS uses osascript,
// Linux notify-send, anything else a terminal bell. Callers usually ignore
// the error.
func (n *Notifier) Send(title, body string) error {
	switch n.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %s with title %s`, escapeAppleScript(body), escapeAppleScript(title))
		return n.Run("osascript", "-e", script)
	case "linux":
		return n.Run("notify-send", "-a", "verifai", title, body)
	default:
		_, err := fmt.Fprint(n.Bell, "\a")
		return err
	}
}

// Send notifies through the platform default.
func Send(title, body string) error {
	return New().Send(title, body)
}

// Summary turns an analysis outcome into a notification title and body.
func Summary(result *protocol.AnalysisResult, err error) (title, body string) {
	if err != nil {
		return "VerifAI: analysis failed", err.Error()
	}
	if result == nil || !result.Manipulation {
		body = "No manipulation detected"
		if result != nil && result.HasDisinfo() {
			body += fmt.Sprintf(", %d unverified claim(s)", len(result.Disinfo))
		}
		return "VerifAI: looks fine", body
	}

	labels := make([]string, 0, len(result.Techniques))
	for _, id := range result.Techniques {
		t, _ := protocol.LookupTechnique(id)
		labels = append(labels, t.Label)
	}
	body = "Manipulation detected"
	if len(labels) > 0 {
		body += ": " + strings.Join(labels, ", ")
	}
	return "VerifAI: manipulation detected", body
}

// escapeAppleScript quotes s for AppleScript, escaping backslashes before
// quotes.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
