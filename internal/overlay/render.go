package overlay

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/shhac/verifai/internal/protocol"
)

// Element ids and user-visible text of the overlay.
const (
	PopupID = "verifai-popup"
	CloseID = "verifai-close"

	Title            = "VerifAI"
	LoadingText      = "Analyzing selected text..."
	StatusDetected   = "Manipulation detected"
	StatusClean      = "No manipulation detected — content appears not manipulative"
	NoTechniquesText = "No manipulation techniques detected"
	ErrorTitle       = "Analysis failed"
	ErrorHint        = "Check that the analysis service is running and reachable."

	ExplanationPreviewLen = 150
	SelectionPreviewLen   = 100
	Ellipsis              = "..."
)

// renderLoading builds the loading view for the selected text.
func renderLoading(selected string) *html.Node {
	popup, body := newPopup("loading")

	spinner := element(atom.Div, attr("class", "verifai-spinner"), attr("aria-hidden", "true"))
	body.AppendChild(spinner)

	p := element(atom.P, attr("class", "verifai-loading-text"))
	p.AppendChild(textNode(LoadingText))
	body.AppendChild(p)

	if selected != "" {
		q := element(atom.Blockquote, attr("class", "verifai-preview"))
		q.AppendChild(textNode("“" + preview(selected, SelectionPreviewLen) + "”"))
		body.AppendChild(q)
	}
	return popup
}

// renderResults builds the results view. expanded selects which toggles
// are open; it is read, never modified.
func renderResults(result protocol.AnalysisResult, expanded Expansion) *html.Node {
	popup, body := newPopup("results")

	status := element(atom.Div, attr("class", "verifai-status verifai-status-clean"), attr("role", "status"))
	statusText := StatusClean
	if result.Manipulation {
		setAttr(status, "class", "verifai-status verifai-status-detected")
		statusText = StatusDetected
	}
	status.AppendChild(textNode(statusText))
	body.AppendChild(status)

	body.AppendChild(renderTechniques(result.Techniques, expanded))
	if result.HasExplanation() {
		body.AppendChild(renderExplanation(result.Explanation, expanded.Expanded(SectionExplanation)))
	}
	if result.HasDisinfo() {
		body.AppendChild(renderDisinfo(result.Disinfo, expanded.Expanded(SectionDisinfo)))
	}
	return popup
}

// renderError builds the failure view.
func renderError(msg string) *html.Node {
	popup, body := newPopup("error")

	title := element(atom.Div, attr("class", "verifai-error-title"), attr("role", "alert"))
	title.AppendChild(textNode(ErrorTitle))
	body.AppendChild(title)

	if msg != "" {
		p := element(atom.P, attr("class", "verifai-error-message"))
		p.AppendChild(textNode(msg))
		body.AppendChild(p)
	}

	hint := element(atom.P, attr("class", "verifai-hint"))
	hint.AppendChild(textNode(ErrorHint))
	body.AppendChild(hint)
	return popup
}

func newPopup(state string) (popup, body *html.Node) {
	popup = element(atom.Div,
		attr("id", PopupID),
		attr("class", "verifai-popup verifai-"+state),
		attr("data-state", state),
		attr("role", "dialog"),
	)

	header := element(atom.Div, attr("class", "verifai-header"))
	title := element(atom.Span, attr("class", "verifai-title"))
	title.AppendChild(textNode(Title))
	header.AppendChild(title)

	closeBtn := element(atom.Button,
		attr("id", CloseID),
		attr("class", "verifai-close"),
		attr("data-action", "close"),
		attr("aria-label", "Close"),
	)
	closeBtn.AppendChild(textNode("×"))
	header.AppendChild(closeBtn)
	popup.AppendChild(header)

	body = element(atom.Div, attr("class", "verifai-body"))
	popup.AppendChild(body)
	return popup, body
}

func renderTechniques(ids []string, expanded Expansion) *html.Node {
	section := newSection("techniques", "Techniques")

	if len(ids) == 0 {
		p := element(atom.P, attr("class", "verifai-empty"))
		p.AppendChild(textNode(NoTechniquesText))
		section.AppendChild(p)
		return section
	}

	list := element(atom.Ul, attr("class", "verifai-technique-list"))
	for i, id := range ids {
		tech, known := protocol.LookupTechnique(id)
		li := element(atom.Li, attr("class", "verifai-technique"), attr("data-technique", id))

		if !known {
			label := element(atom.Span, attr("class", "verifai-technique-label"))
			label.AppendChild(textNode(tech.Label))
			li.AppendChild(label)
			list.AppendChild(li)
			continue
		}

		sec := TechniqueSection(i)
		open := expanded.Expanded(sec)
		li.AppendChild(toggleButton(sec, open, tech.Label))
		if open {
			desc := element(atom.P, attr("class", "verifai-technique-description"))
			desc.AppendChild(textNode(tech.Description))
			li.AppendChild(desc)
		}
		list.AppendChild(li)
	}
	section.AppendChild(list)
	return section
}

func renderExplanation(text string, open bool) *html.Node {
	text = strings.TrimSpace(text)
	section := newSection("explanation", "Explanation")

	p := element(atom.P, attr("class", "verifai-explanation-text"))
	shown := text
	if !open {
		shown = preview(text, ExplanationPreviewLen)
	}
	p.AppendChild(textNode(shown))
	section.AppendChild(p)

	if explanationTruncated(text) {
		label := "Show more"
		if open {
			label = "Show less"
		}
		section.AppendChild(toggleButton(SectionExplanation, open, label))
	}
	return section
}

func renderDisinfo(claims []string, open bool) *html.Node {
	section := newSection("disinfo", "Debunked claims")
	section.AppendChild(toggleButton(SectionDisinfo, open, claimCount(len(claims))))

	if open {
		list := element(atom.Ul, attr("class", "verifai-disinfo-list"))
		for _, c := range claims {
			li := element(atom.Li, attr("class", "verifai-claim"))
			li.AppendChild(textNode(c))
			list.AppendChild(li)
		}
		section.AppendChild(list)
	}
	return section
}

func newSection(name, heading string) *html.Node {
	section := element(atom.Section, attr("class", "verifai-section verifai-"+name))
	h := element(atom.H3)
	h.AppendChild(textNode(heading))
	section.AppendChild(h)
	return section
}

func toggleButton(s Section, open bool, label string) *html.Node {
	marker := "▸ "
	if open {
		marker = "▾ "
	}
	b := element(atom.Button,
		attr("id", s.toggleID()),
		attr("class", "verifai-toggle"),
		attr("data-section", string(s)),
		attr("aria-expanded", fmt.Sprintf("%t", open)),
	)
	b.AppendChild(textNode(marker + label))
	return b
}

func claimCount(n int) string {
	if n == 1 {
		return "1 debunked claim"
	}
	return fmt.Sprintf("%d debunked claims", n)
}

// preview shortens s to at most limit characters plus an ellipsis.
func preview(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:limit]), " ") + Ellipsis
}

func explanationTruncated(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) > ExplanationPreviewLen
}
