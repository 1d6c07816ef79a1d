package background

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shhac/verifai/internal/browser"
	"github.com/shhac/verifai/internal/messaging"
	"github.com/shhac/verifai/internal/protocol"
)

var (
	// ErrEmptySelection is returned for commands without selected text.
	ErrEmptySelection = errors.New("no text selected")

	// ErrInvocationPanicked is returned when an invocation crashed and was
	// recovered.
	ErrInvocationPanicked = errors.New("analysis invocation panicked")
)

// Analyzer runs the remote analysis.
type Analyzer interface {
	Analyze(ctx context.Context, content string) (*protocol.AnalysisResult, error)
}

// Command is one "analyze selection" request.
type Command struct {
	TabID        browser.TabID
	SelectedText string
}

// Dispatcher runs the analysis workflow for each command. Concurrent
// commands for the same tab are not merged; whichever finishes last is
// what the tab shows.
type Dispatcher struct {
	injector *Injector
	analyzer Analyzer
	sender   Sender
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil logger discards logs.
func NewDispatcher(injector *Injector, analyzer Analyzer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		injector: injector,
		analyzer: analyzer,
		sender:   injector.sender,
		logger:   logger,
	}
}

// Invoke starts the workflow on its own goroutine. Commands with blank
// text are ignored and reported as false.
func (d *Dispatcher) Invoke(cmd Command) bool {
	if strings.TrimSpace(cmd.SelectedText) == "" {
		return false
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = d.Run(context.Background(), cmd)
	}()
	return true
}

// Wait blocks until every invocation started by Invoke has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Run executes the workflow synchronously: make the tab ready, show the
// loading state, call the service, then show the result or the error.
// A panic anywhere in the workflow is recovered and returned as
// ErrInvocationPanicked.
func (d *Dispatcher) Run(ctx context.Context, cmd Command) (err error) {
	text := strings.TrimSpace(cmd.SelectedText)
	if text == "" {
		return ErrEmptySelection
	}

	logger := d.logger.With("invocation", uuid.NewString(), "tab", int(cmd.TabID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("invocation panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrInvocationPanicked, r)
		}
	}()

	logger.Info("analysis requested", "selected_text", text)

	if err := d.injector.EnsureReady(ctx, cmd.TabID); err != nil {
		logger.Warn("page context unavailable, abandoning", "error", err)
		return err
	}

	if _, err := d.injector.Deliver(ctx, cmd.TabID, protocol.ShowLoading(text)); err != nil {
		logger.Warn("loading state not delivered", "error", err)
		return fmt.Errorf("failed to show loading state: %w", err)
	}

	result, err := d.analyzer.Analyze(ctx, text)
	if err != nil {
		logger.Warn("analysis failed", "error", err)
		if _, derr := d.injector.Deliver(ctx, cmd.TabID, protocol.ShowError(err.Error())); derr != nil {
			logger.Warn("error notice not delivered", "error", derr)
		}
		return fmt.Errorf("failed to analyze selection: %w", err)
	}
	if result == nil {
		result = &protocol.AnalysisResult{}
	}

	if _, err := d.injector.Deliver(ctx, cmd.TabID, protocol.ShowResults(*result, text)); err != nil {
		logger.Warn("results not delivered", "error", err)
		return fmt.Errorf("failed to show results: %w", err)
	}

	logger.Info("analysis delivered", "manipulation", result.Manipulation, "techniques", len(result.Techniques))
	return nil
}

// ClosePopup asks the tab to dismiss its overlay. A tab without a page
// context has nothing to close.
func (d *Dispatcher) ClosePopup(ctx context.Context, tabID browser.TabID) error {
	_, err := d.sender.Send(ctx, messaging.BackgroundEndpoint, messaging.TabEndpoint(int(tabID)), protocol.ClosePopup(), d.injector.timeouts.Delivery)
	if errors.Is(err, messaging.ErrNoReceiver) {
		return nil
	}
	return err
}
