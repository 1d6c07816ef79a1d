package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func TestPlaceOverlay(t *testing.T) {
	base := strings.Join([]string{
		"0123456789",
		"0123456789",
		"0123456789",
	}, "\n")

	tests := []struct {
		name      string
		box       string
		row, col  int
		wantLines []string
	}{
		{
			name:      "inside",
			box:       "ab\ncd",
			row:       1,
			col:       3,
			wantLines: []string{"0123456789", "012ab56789", "012cd56789"},
		},
		{
			name:      "past the bottom is dropped",
			box:       "ab\ncd",
			row:       2,
			col:       0,
			wantLines: []string{"0123456789", "0123456789", "ab23456789"},
		},
		{
			name:      "past the line end pads",
			box:       "xy",
			row:       0,
			col:       12,
			wantLines: []string{"0123456789  xy", "0123456789", "0123456789"},
		},
		{
			name:      "empty box",
			box:       "",
			row:       0,
			col:       0,
			wantLines: []string{"0123456789", "0123456789", "0123456789"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Split(placeOverlay(base, tt.box, tt.row, tt.col), "\n")
			if len(got) != len(tt.wantLines) {
				t.Fatalf("got %d lines, want %d", len(got), len(tt.wantLines))
			}
			for i := range got {
				if got[i] != tt.wantLines[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.wantLines[i])
				}
			}
		})
	}
}

func TestPlaceOverlayKeepsStyledBase(t *testing.T) {
	base := articleTitleStyle.Render("a styled line of text")
	got := placeOverlay(base, "XX", 0, 2)
	if plain := ansi.Strip(got); plain != "a XXyled line of text" {
		t.Errorf("plain text = %q", plain)
	}
}
