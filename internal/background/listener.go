package background

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shhac/verifai/internal/messaging"
	"github.com/shhac/verifai/internal/protocol"
)

// Listener serves the background endpoint, where pages report that the
// user dismissed their overlay.
type Listener struct {
	router    *messaging.Router
	mux       *messaging.Mux
	logger    *slog.Logger
	onDismiss func(from messaging.Endpoint)
}

// NewListener creates a listener. onDismiss may be nil.
func NewListener(router *messaging.Router, logger *slog.Logger, onDismiss func(from messaging.Endpoint)) *Listener {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &Listener{
		router:    router,
		mux:       messaging.NewMux(logger),
		logger:    logger,
		onDismiss: onDismiss,
	}
	l.mux.Handle(protocol.ActionClosePopup, l.handleClosePopup)
	return l
}

// Serve handles messages until ctx is done.
func (l *Listener) Serve(ctx context.Context) error {
	inbox, err := l.router.Register(messaging.BackgroundEndpoint, 0)
	if err != nil {
		return fmt.Errorf("failed to listen on background endpoint: %w", err)
	}
	defer l.router.Unregister(messaging.BackgroundEndpoint)

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-inbox:
			if !ok {
				return nil
			}
			l.mux.Serve(env)
		}
	}
}

func (l *Listener) handleClosePopup(from messaging.Endpoint, _ protocol.Message, respond messaging.Responder) bool {
	l.logger.Debug("overlay dismissed by user", "from", string(from))
	if l.onDismiss != nil {
		l.onDismiss(from)
	}
	respond(protocol.Ack())
	return false
}
