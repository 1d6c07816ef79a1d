// Package main provides the entry point for the verifai CLI.
//
// verifai checks selected text for manipulation techniques. The page
// command opens an article in the terminal where paragraphs can be
// selected and analyzed; the analyze command runs one analysis headless.
//
// Usage:
//
//	verifai page --demo
//	verifai analyze "Everyone already knows this is true."
//
// See --help for all available options.
package main

func main() {
	Execute()
}
