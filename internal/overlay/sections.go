package overlay

import (
	"fmt"
	"strings"

	"github.com/shhac/verifai/internal/protocol"
)

// Section names one expandable part of the results view.
type Section string

const (
	SectionExplanation Section = "explanation"
	SectionDisinfo     Section = "disinfo"
)

// TechniqueSection is the detail toggle of the i-th listed technique.
func TechniqueSection(i int) Section {
	return Section(fmt.Sprintf("technique-%d", i))
}

// IsTechnique reports whether s is a technique detail toggle.
func (s Section) IsTechnique() bool {
	return strings.HasPrefix(string(s), "technique-")
}

// toggleID is the element id of the section's toggle control.
func (s Section) toggleID() string { return "verifai-toggle-" + string(s) }

// ToggleID returns the id of the button that toggles s.
func ToggleID(s Section) string { return s.toggleID() }

// SectionFromToggleID maps a toggle's element id back to its section.
func SectionFromToggleID(id string) (Section, bool) {
	s, ok := strings.CutPrefix(id, "verifai-toggle-")
	if !ok || s == "" {
		return "", false
	}
	return Section(s), true
}

// Expansion holds the open/closed flag of each section of one overlay
// instance. The zero value has everything collapsed.
type Expansion map[Section]bool

// Toggle flips one section and leaves the others alone.
func (e Expansion) Toggle(s Section) {
	e[s] = !e[s]
}

// Expanded reports whether s is open.
func (e Expansion) Expanded(s Section) bool { return e[s] }

func (e Expansion) clone() Expansion {
	out := make(Expansion, len(e))
	for k, v := range e {
		if v {
			out[k] = v
		}
	}
	return out
}

// Toggleable lists, in display order, the sections of result that have a
// toggle: known techniques, an explanation longer than the preview, and a
// non-empty debunk list.
func Toggleable(result protocol.AnalysisResult) []Section {
	var out []Section
	for i, id := range result.Techniques {
		if _, known := protocol.LookupTechnique(id); known {
			out = append(out, TechniqueSection(i))
		}
	}
	if explanationTruncated(result.Explanation) {
		out = append(out, SectionExplanation)
	}
	if result.HasDisinfo() {
		out = append(out, SectionDisinfo)
	}
	return out
}

func canToggle(result protocol.AnalysisResult, s Section) bool {
	for _, t := range Toggleable(result) {
		if t == s {
			return true
		}
	}
	return false
}
