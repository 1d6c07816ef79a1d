// Package messaging carries messages between the background context and page
// contexts. Messages cross the router serialized, so the two sides never
// share memory.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shhac/verifai/internal/protocol"
)

// DefaultBuffer is the inbox size used when Register is given zero.
const DefaultBuffer = 8

type endpointInfo struct {
	ch chan Envelope
}

// Router delivers request/reply round trips between registered endpoints.
type Router struct {
	mu        sync.RWMutex
	endpoints map[Endpoint]*endpointInfo
	logger    *slog.Logger
}

// NewRouter creates an empty router. A nil logger discards router logs.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		endpoints: make(map[Endpoint]*endpointInfo),
		logger:    logger.With("component", "router"),
	}
}

// Register opens an inbox for ep. The owner must drain the returned channel
// until it is closed by Unregister.
func (r *Router) Register(ep Endpoint, buffer int) (<-chan Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.endpoints[ep]; exists {
		return nil, fmt.Errorf("endpoint %s already registered", ep)
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	ch := make(chan Envelope, buffer)
	r.endpoints[ep] = &endpointInfo{ch: ch}
	r.logger.Debug("endpoint registered", "endpoint", string(ep), "buffer", buffer)
	return ch, nil
}

// Unregister closes ep's inbox. Envelopes still queued are failed with
// ErrNoReceiver so their senders do not wait for a timeout.
func (r *Router) Unregister(ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.endpoints[ep]
	if !exists {
		return
	}
	delete(r.endpoints, ep)

	dropped := 0
	for {
		select {
		case env := <-info.ch:
			env.fail(fmt.Errorf("%w: %s unloaded", ErrNoReceiver, ep))
			dropped++
			continue
		default:
		}
		break
	}
	close(info.ch)
	r.logger.Debug("endpoint unregistered", "endpoint", string(ep), "dropped", dropped)
}

// IsRegistered reports whether ep currently has an inbox.
func (r *Router) IsRegistered(ep Endpoint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.endpoints[ep]
	return ok
}

// Endpoints lists registered endpoints in sorted order.
func (r *Router) Endpoints() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Endpoint, 0, len(r.endpoints))
	for ep := range r.endpoints {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Send delivers msg to the endpoint and waits for its reply. timeout bounds
// the whole round trip; zero leaves the bound to ctx. Expiry is reported as
// ErrTimeout, which callers treat like any other delivery failure.
func (r *Router) Send(ctx context.Context, from, to Endpoint, msg protocol.Message, timeout time.Duration) (protocol.Reply, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payload, err := protocol.Encode(msg)
	if err != nil {
		return protocol.Reply{}, err
	}
	env := newEnvelope(from, to, msg.Action, payload)

	if err := r.enqueue(ctx, env); err != nil {
		r.logger.Debug("send failed", "from", string(from), "to", string(to), "action", string(msg.Action), "error", err)
		return protocol.Reply{}, err
	}

	select {
	case res := <-env.state.reply:
		if res.err != nil {
			r.logger.Debug("delivery failed", "to", string(to), "action", string(msg.Action), "error", res.err)
		}
		return res.reply, res.err
	case <-ctx.Done():
		err := waitErr(ctx)
		r.logger.Debug("reply wait aborted", "to", string(to), "action", string(msg.Action), "error", err)
		return protocol.Reply{}, fmt.Errorf("%s to %s: %w", msg.Action, to, err)
	}
}

func (r *Router) enqueue(ctx context.Context, env Envelope) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.endpoints[env.To]
	if !exists {
		return fmt.Errorf("%s to %s: %w", env.Action, env.To, ErrNoReceiver)
	}

	select {
	case info.ch <- env:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s to %s: %w", env.Action, env.To, waitErr(ctx))
	}
}
