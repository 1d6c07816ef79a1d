package background

import (
	"context"
	"sync"
	"time"

	"github.com/shhac/verifai/internal/browser"
	"github.com/shhac/verifai/internal/messaging"
	"github.com/shhac/verifai/internal/protocol"
)

type sentMessage struct {
	to      messaging.Endpoint
	msg     protocol.Message
	timeout time.Duration
}

// fakeSender answers with respond and records every send.
type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	respond func(n int, msg protocol.Message) (protocol.Reply, error)
}

func (f *fakeSender) Send(_ context.Context, _, to messaging.Endpoint, msg protocol.Message, timeout time.Duration) (protocol.Reply, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{to: to, msg: msg, timeout: timeout})
	n := len(f.sent)
	f.mu.Unlock()
	if f.respond == nil {
		return protocol.Ack(), nil
	}
	return f.respond(n, msg)
}

func (f *fakeSender) actions() []protocol.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Action, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.msg.Action
	}
	return out
}

// fakeScripting records injections and fails with err.
type fakeScripting struct {
	mu      sync.Mutex
	scripts []string
	css     []string
	err     error
}

func (f *fakeScripting) ExecuteScript(_ context.Context, _ browser.TabID, file string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, file)
	return f.err
}

func (f *fakeScripting) InsertCSS(_ context.Context, _ browser.TabID, file string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.css = append(f.css, file)
	return f.err
}

func (f *fakeScripting) injections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scripts)
}

type fakeAnalyzer struct {
	result *protocol.AnalysisResult
	err    error
	panics bool
	calls  int
	mu     sync.Mutex
}

func (f *fakeAnalyzer) Analyze(_ context.Context, content string) (*protocol.AnalysisResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panics {
		panic("analyzer exploded")
	}
	return f.result, f.err
}

func fastTimeouts() Timeouts {
	return Timeouts{Probe: 50 * time.Millisecond, Settle: time.Millisecond, Delivery: 50 * time.Millisecond}
}

// pageAbsentFirst fails the first n sends with "no receiver".
func pageAbsentFirst(n int) func(int, protocol.Message) (protocol.Reply, error) {
	return func(i int, msg protocol.Message) (protocol.Reply, error) {
		if i <= n {
			return protocol.Reply{}, messaging.ErrNoReceiver
		}
		if msg.Action == protocol.ActionPing {
			return protocol.ReadyReply(), nil
		}
		return protocol.Ack(), nil
	}
}
