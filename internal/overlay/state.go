package overlay

import (
	"golang.org/x/net/html"

	"github.com/shhac/verifai/internal/protocol"
)

// Kind is the overlay's lifecycle state.
type Kind int

const (
	Closed Kind = iota
	Loading
	Results
	Error
)

func (k Kind) String() string {
	switch k {
	case Closed:
		return "closed"
	case Loading:
		return "loading"
	case Results:
		return "results"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the overlay state, safe to hand to
// other goroutines.
type Snapshot struct {
	Kind         Kind
	SelectedText string
	Result       *protocol.AnalysisResult
	Error        string
	Position     Position
	Size         Size
	Viewport     Size
	Expanded     Expansion
	// Sections lists the toggleable sections in display order.
	Sections []Section
	// Popup is a detached copy of the overlay element; nil when Closed.
	Popup *html.Node
	// Seq increases with every change, so observers can drop stale copies.
	Seq uint64
}

// Open reports whether an overlay is on screen.
func (s Snapshot) Open() bool { return s.Kind != Closed }

func copyResult(r *protocol.AnalysisResult) *protocol.AnalysisResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Techniques = append([]string(nil), r.Techniques...)
	c.Disinfo = append([]string(nil), r.Disinfo...)
	return &c
}
