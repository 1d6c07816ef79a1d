// Package logging sets up the slog loggers used by every context. User
// text never reaches a log in full: attributes that carry it are clipped.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ClipLength is how many characters of user text a log line keeps.
const ClipLength = 64

// clippedKeys name attributes that carry text the user selected or sent.
var clippedKeys = map[string]bool{
	"selected_text": true,
	"content":       true,
	"text":          true,
}

// ClipHandler wraps a handler and shortens user-text attributes.
type ClipHandler struct {
	handler slog.Handler
}

// NewClipHandler wraps handler. A nil handler wraps slog.Default's.
func NewClipHandler(handler slog.Handler) *ClipHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &ClipHandler{handler: handler}
}

// Enabled implements slog.Handler.
func (h *ClipHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ClipHandler) Handle(ctx context.Context, r slog.Record) error {
	clipped := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clipped.AddAttrs(clipAttr(a))
		return true
	})
	return h.handler.Handle(ctx, clipped)
}

// WithAttrs implements slog.Handler.
func (h *ClipHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = clipAttr(a)
	}
	return &ClipHandler{handler: h.handler.WithAttrs(out)}
}

// WithGroup implements slog.Handler.
func (h *ClipHandler) WithGroup(name string) slog.Handler {
	return &ClipHandler{handler: h.handler.WithGroup(name)}
}

func clipAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = clipAttr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	if !clippedKeys[strings.ToLower(a.Key)] {
		return a
	}
	return slog.String(a.Key, Clip(a.Value.Resolve().String()))
}

// Clip shortens s to ClipLength characters, noting how much was dropped.
func Clip(s string) string {
	n := utf8.RuneCountInString(s)
	if n <= ClipLength {
		return s
	}
	runes := []rune(s)
	return fmt.Sprintf("%s…(+%d chars)", string(runes[:ClipLength]), n-ClipLength)
}

// Options selects the output format and level.
type Options struct {
	Level slog.Level
	JSON  bool
}

// New returns a clipping logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: opts.Level}
	var base slog.Handler
	if opts.JSON {
		base = slog.NewJSONHandler(w, hopts)
	} else {
		base = slog.NewTextHandler(w, hopts)
	}
	return slog.New(NewClipHandler(base))
}

// OpenFile creates path's directory and opens it for appending. Terminal
// front-ends log here so output does not corrupt the screen.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// ParseLevel maps a flag value onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}
