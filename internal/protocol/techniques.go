package protocol

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Technique describes one entry of the service's manipulation vocabulary.
type Technique struct {
	ID          string
	Label       string
	Description string
}

var knownTechniques = map[string]Technique{
	"emotional_manipulation": {
		ID:          "emotional_manipulation",
		Label:       "Emotional manipulation",
		Description: "Uses expressive, strongly emotional or euphoric language to raise morale and sway opinion.",
	},
	"fear_appeals": {
		ID:          "fear_appeals",
		Label:       "Fear appeals",
		Description: "Plays on fears, stereotypes or prejudice, including fear, uncertainty and doubt (FUD) tactics.",
	},
	"bandwagon_effect": {
		ID:          "bandwagon_effect",
		Label:       "Bandwagon effect",
		Description: "Appeals to the masses or to vague positive concepts (\"everyone thinks so\") to encourage agreement.",
	},
	"selective_truth": {
		ID:          "selective_truth",
		Label:       "Selective truth",
		Description: "Relies on logical fallacies such as cherry-picking facts, whataboutism or straw-man arguments.",
	},
	"cliche": {
		ID:          "cliche",
		Label:       "Thought-terminating cliché",
		Description: "Uses formulaic phrases designed to stop critical thinking and end the discussion.",
	},
}

// LookupTechnique returns the vocabulary entry for id. Unknown ids get a
// humanized label and no description.
func LookupTechnique(id string) (Technique, bool) {
	if t, ok := knownTechniques[id]; ok {
		return t, true
	}
	return Technique{ID: id, Label: humanize(id)}, false
}

func humanize(id string) string {
	s := strings.TrimSpace(strings.ReplaceAll(id, "_", " "))
	if s == "" {
		return "Unknown technique"
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
