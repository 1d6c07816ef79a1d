// Package background is the persistent side of verifai: it reacts to the
// analyze command, makes sure the tab's page context is running, calls the
// analysis service and reports progress and results to the page.
package background

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shhac/verifai/internal/browser"
	"github.com/shhac/verifai/internal/config"
	"github.com/shhac/verifai/internal/messaging"
	"github.com/shhac/verifai/internal/overlay"
	"github.com/shhac/verifai/internal/protocol"
)

// ErrInjectionFailed means the page context could not be started in the
// tab, for example because the page is a browser-internal one.
var ErrInjectionFailed = errors.New("failed to inject page script")

// Sender is the part of the router the background context uses.
type Sender interface {
	Send(ctx context.Context, from, to messaging.Endpoint, msg protocol.Message, timeout time.Duration) (protocol.Reply, error)
}

// Timeouts bounds the round trips and waits of one invocation.
type Timeouts struct {
	Probe    time.Duration
	Settle   time.Duration
	Delivery time.Duration
}

// DefaultTimeouts returns the built-in timings.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Probe:    config.DefaultProbeTimeoutMs * time.Millisecond,
		Settle:   config.DefaultSettleDelayMs * time.Millisecond,
		Delivery: config.DefaultDeliveryTimeoutMs * time.Millisecond,
	}
}

// TimeoutsFromConfig reads the timings from cfg.
func TimeoutsFromConfig(cfg *config.Config) Timeouts {
	return Timeouts{
		Probe:    cfg.ProbeTimeout(),
		Settle:   cfg.SettleDelay(),
		Delivery: cfg.DeliveryTimeout(),
	}
}

// Injector makes a tab's page context available before messages are sent
// to it.
type Injector struct {
	sender    Sender
	scripting browser.Scripting
	timeouts  Timeouts
	logger    *slog.Logger
}

// NewInjector creates an injector. A nil logger discards logs.
func NewInjector(sender Sender, scripting browser.Scripting, timeouts Timeouts, logger *slog.Logger) *Injector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Injector{
		sender:    sender,
		scripting: scripting,
		timeouts:  timeouts,
		logger:    logger,
	}
}

// Probe pings the tab. Anything but a ready reply within the probe
// timeout, including a timeout, counts as "no page context".
func (i *Injector) Probe(ctx context.Context, tabID browser.TabID) bool {
	reply, err := i.sender.Send(ctx, messaging.BackgroundEndpoint, messaging.TabEndpoint(int(tabID)), protocol.Ping(), i.timeouts.Probe)
	if err != nil {
		i.logger.Debug("probe failed", "tab", int(tabID), "error", err)
		return false
	}
	return reply.Success && reply.Ready
}

// EnsureReady probes the tab and, when nothing answers, injects the page
// script and stylesheet and waits for the settle delay. It does not probe
// again after injecting.
func (i *Injector) EnsureReady(ctx context.Context, tabID browser.TabID) error {
	if i.Probe(ctx, tabID) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	i.logger.Debug("page context missing, injecting", "tab", int(tabID))
	if err := i.scripting.ExecuteScript(ctx, tabID, overlay.ScriptFile); err != nil {
		return fmt.Errorf("%w: %w", ErrInjectionFailed, err)
	}
	if err := i.scripting.InsertCSS(ctx, tabID, overlay.StylesheetFile); err != nil {
		return fmt.Errorf("%w: %w", ErrInjectionFailed, err)
	}

	return sleep(ctx, i.timeouts.Settle)
}

// Deliver sends msg to the tab. After a delivery failure the tab is made
// ready again and the message is sent once more; a second failure is
// returned.
func (i *Injector) Deliver(ctx context.Context, tabID browser.TabID, msg protocol.Message) (protocol.Reply, error) {
	to := messaging.TabEndpoint(int(tabID))
	reply, err := i.sender.Send(ctx, messaging.BackgroundEndpoint, to, msg, i.timeouts.Delivery)
	if err == nil {
		i.checkReply(tabID, msg.Action, reply)
		return reply, nil
	}
	if !messaging.IsDeliveryFailure(err) {
		return protocol.Reply{}, err
	}

	i.logger.Debug("delivery failed, retrying", "tab", int(tabID), "action", string(msg.Action), "error", err)
	if err := i.EnsureReady(ctx, tabID); err != nil {
		return protocol.Reply{}, fmt.Errorf("retry %s: %w", msg.Action, err)
	}

	reply, err = i.sender.Send(ctx, messaging.BackgroundEndpoint, to, msg, i.timeouts.Delivery)
	if err != nil {
		return protocol.Reply{}, fmt.Errorf("retry %s: %w", msg.Action, err)
	}
	i.checkReply(tabID, msg.Action, reply)
	return reply, nil
}

func (i *Injector) checkReply(tabID browser.TabID, action protocol.Action, reply protocol.Reply) {
	if !reply.Success {
		i.logger.Warn("page rejected message", "tab", int(tabID), "action", string(action), "error", reply.Error)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
