// Package sms implements the outbound SMS forwarding sender.
package sms

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/smsrelay/internal/channel"
	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/soyeahso/smsrelay/internal/logging"
)

// Sender forwards messages over SMS. It prefers the channel's SIM and falls
// back once to the default transport within the same attempt.
type Sender struct {
	prefix     string
	transports TransportSet
	log        *logging.Logger
}

// New creates an SMS sender.
func New(prefix string, transports TransportSet, log *logging.Logger) *Sender {
	return &Sender{
		prefix:     prefix,
		transports: transports,
		log:        log.Sub("sms"),
	}
}

// Kind implements channel.Sender.
func (s *Sender) Kind() domain.ChannelKind { return domain.KindSMS }

// Available implements channel.Sender.
func (s *Sender) Available() bool {
	if def := s.transports.Default(); def != nil && def.Available() {
		return true
	}
	if t, ok := s.transports.(interface{ Any() bool }); ok {
		return t.Any()
	}
	return false
}

// Deliver implements channel.Sender.
func (s *Sender) Deliver(ctx context.Context, ch domain.Channel, msg domain.InboundMessage) error {
	to := strings.TrimSpace(ch.Target)
	if to == "" {
		return channel.Invalid(ch, "empty phone number")
	}
	content := domain.ForwardContent(s.prefix, msg)

	// simErr is reported alongside the default transport's failure.
	var simErr error
	if ch.SIM != "" {
		t, ok := s.transports.ForSIM(ch.SIM)
		switch {
		case !ok || !t.Available():
			s.log.Warn().
				Str("channel", ch.ID).
				Str("sim", ch.SIM).
				Msg("requested SIM unavailable, using default")
		default:
			err := send(ctx, t, to, content)
			if err == nil {
				return nil
			}
			simErr = fmt.Errorf("sim %s: %w", ch.SIM, err)
			s.log.Warn().
				Err(err).
				Str("channel", ch.ID).
				Str("sim", ch.SIM).
				Msg("send via requested SIM failed, falling back to default")
		}
	}

	def := s.transports.Default()
	if def == nil || !def.Available() {
		if simErr != nil {
			return channel.Failed(ch, fmt.Errorf("%w; default: %w", simErr, ErrTransportUnavailable))
		}
		return channel.Failed(ch, ErrTransportUnavailable)
	}
	if err := send(ctx, def, to, content); err != nil {
		if simErr != nil {
			err = fmt.Errorf("%w; default: %w", simErr, err)
		}
		return channel.Failed(ch, err)
	}
	return nil
}

func send(ctx context.Context, t Transport, to, content string) error {
	parts := t.Divide(content)
	if len(parts) <= 1 {
		return t.SendText(ctx, to, content)
	}
	return t.SendMultipart(ctx, to, parts)
}
