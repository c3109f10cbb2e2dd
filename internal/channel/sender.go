// Package channel provides the forwarding senders and the retry policy that
// wraps them.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/smsrelay/internal/domain"
)

// ErrInvalidTarget marks a channel whose target can never be delivered to.
var ErrInvalidTarget = errors.New("invalid channel target")

// Sender delivers one message to one channel. A nil error means the
// destination accepted the message.
type Sender interface {
	// Kind returns the channel variant this sender handles.
	Kind() domain.ChannelKind

	// Available reports whether the sender can deliver right now.
	Available() bool

	// Deliver performs a single delivery attempt.
	Deliver(ctx context.Context, ch domain.Channel, msg domain.InboundMessage) error
}

// DeliveryError describes a failed delivery attempt.
type DeliveryError struct {
	Kind      domain.ChannelKind
	Channel   string
	Permanent bool
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery to %s: %v", e.Kind, e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Invalid returns a permanent DeliveryError wrapping ErrInvalidTarget.
func Invalid(ch domain.Channel, reason string) error {
	return &DeliveryError{
		Kind:      ch.Kind,
		Channel:   ch.Label(),
		Permanent: true,
		Err:       fmt.Errorf("%w: %s", ErrInvalidTarget, reason),
	}
}

// Failed returns a retryable DeliveryError.
func Failed(ch domain.Channel, err error) error {
	return &DeliveryError{
		Kind:    ch.Kind,
		Channel: ch.Label(),
		Err:     err,
	}
}

// IsPermanent reports whether retrying err cannot help.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidTarget) {
		return true
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Permanent
	}
	return false
}
