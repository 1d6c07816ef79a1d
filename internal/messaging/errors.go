package messaging

import (
	"context"
	"errors"
)

var (
	// ErrNoReceiver means nothing is listening at the destination endpoint:
	// the page context was never injected or has since been unloaded.
	ErrNoReceiver = errors.New("could not establish connection: receiving end does not exist")

	// ErrPortClosed means the receiver took the message but returned without
	// replying and without keeping the channel open.
	ErrPortClosed = errors.New("message channel closed before a response was received")

	// ErrTimeout means the round trip did not complete within its deadline.
	ErrTimeout = errors.New("message round trip timed out")

	// ErrUnknownAction is carried in failure replies for actions the receiver
	// does not implement.
	ErrUnknownAction = errors.New("unknown action")

	// ErrMalformedMessage is carried in failure replies for payloads that
	// could not be decoded.
	ErrMalformedMessage = errors.New("malformed message")
)

// IsDeliveryFailure reports whether err means the message never reached a
// handler that answered it. Such failures are worth a re-probe and a resend.
func IsDeliveryFailure(err error) bool {
	return errors.Is(err, ErrNoReceiver) ||
		errors.Is(err, ErrPortClosed) ||
		errors.Is(err, ErrTimeout)
}

// waitErr maps a finished context onto router errors. Deadline expiry is a
// delivery failure; cancellation is passed through.
func waitErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
