package messaging

import (
	"fmt"
	"sync"

	"github.com/shhac/verifai/internal/protocol"
)

// Endpoint names a message receiver: the background context or one tab.
type Endpoint string

// BackgroundEndpoint is where pages send messages meant for the background
// context.
const BackgroundEndpoint Endpoint = "background"

// TabEndpoint returns the endpoint a tab's page context listens on.
func TabEndpoint(tabID int) Endpoint {
	return Endpoint(fmt.Sprintf("tab:%d", tabID))
}

type outcome struct {
	reply protocol.Reply
	err   error
}

type envelopeState struct {
	once  sync.Once
	reply chan outcome
	done  bool
	mu    sync.Mutex
}

// Envelope carries one serialized message plus the means to answer it.
// Copies share the same reply slot; only the first answer is delivered.
type Envelope struct {
	From    Endpoint
	To      Endpoint
	Action  protocol.Action
	Payload []byte

	state *envelopeState
}

func newEnvelope(from, to Endpoint, action protocol.Action, payload []byte) Envelope {
	return Envelope{
		From:    from,
		To:      to,
		Action:  action,
		Payload: payload,
		state:   &envelopeState{reply: make(chan outcome, 1)},
	}
}

// Respond answers the sender. It reports false if the envelope was already
// answered.
func (e Envelope) Respond(r protocol.Reply) bool {
	return e.finish(outcome{reply: r})
}

// Responded reports whether an answer (or failure) was already delivered.
func (e Envelope) Responded() bool {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.state.done
}

func (e Envelope) fail(err error) bool {
	return e.finish(outcome{err: err})
}

func (e Envelope) finish(o outcome) bool {
	delivered := false
	e.state.once.Do(func() {
		e.state.mu.Lock()
		e.state.done = true
		e.state.mu.Unlock()
		e.state.reply <- o
		delivered = true
	})
	return delivered
}
