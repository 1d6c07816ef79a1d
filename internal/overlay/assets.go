package overlay

import (
	_ "embed"
)

// Asset names the background context injects into a tab.
const (
	ScriptFile     = "content.js"
	StylesheetFile = "content.css"
)

//go:embed assets/content.css
var stylesheet string

// Stylesheet returns the overlay's CSS.
func Stylesheet() string { return stylesheet }
