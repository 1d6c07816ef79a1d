package ui

import (
	"github.com/shhac/verifai/internal/browser"
	"github.com/shhac/verifai/internal/overlay"
)

// Engine is the part of the extension runtime the terminal page drives.
type Engine interface {
	Analyze(tab browser.TabID) error
	DispatchEvent(tab browser.TabID, ev overlay.Event)
}
