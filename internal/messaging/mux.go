package messaging

import (
	"fmt"
	"log/slog"

	"github.com/shhac/verifai/internal/protocol"
)

// Responder answers the message being handled. Calls after the first are
// ignored.
type Responder func(protocol.Reply)

// HandlerFunc handles one decoded message sent by from. It either calls
// respond before returning, or returns true to keep the channel open and
// respond later.
type HandlerFunc func(from Endpoint, msg protocol.Message, respond Responder) (async bool)

// Mux dispatches envelopes to handlers by action.
type Mux struct {
	handlers map[protocol.Action]HandlerFunc
	logger   *slog.Logger
}

// NewMux creates a mux with no handlers.
func NewMux(logger *slog.Logger) *Mux {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mux{
		handlers: make(map[protocol.Action]HandlerFunc),
		logger:   logger,
	}
}

// Handle registers h for action, replacing any previous handler.
func (m *Mux) Handle(action protocol.Action, h HandlerFunc) {
	m.handlers[action] = h
}

// Serve decodes env and runs the matching handler. Undecodable payloads and
// unknown actions get a failure reply rather than silence, so the sender can
// tell "not understood" apart from "not delivered".
func (m *Mux) Serve(env Envelope) {
	msg, err := protocol.Decode(env.Payload)
	if err != nil {
		m.logger.Warn("dropping malformed message", "from", string(env.From), "error", err)
		env.Respond(protocol.Failure(fmt.Errorf("%w: %v", ErrMalformedMessage, err)))
		return
	}

	h, ok := m.handlers[msg.Action]
	if !ok {
		m.logger.Warn("unknown action", "from", string(env.From), "action", string(msg.Action))
		env.Respond(protocol.Failure(fmt.Errorf("%w: %s", ErrUnknownAction, msg.Action)))
		return
	}

	respond := func(r protocol.Reply) { env.Respond(r) }
	if async := h(env.From, msg, respond); !async && !env.Responded() {
		env.fail(ErrPortClosed)
	}
}
