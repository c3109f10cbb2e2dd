package routing

import (
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/smsrelay/internal/channel"
	"github.com/soyeahso/smsrelay/internal/domain"
)

// LineNoConfig is reported when there is nothing to match against.
const LineNoConfig = "no channels or keyword rules configured, skipped forwarding"

// TimeoutLine is reported when the wait budget elapses with tasks still running.
func TimeoutLine(budget time.Duration) string {
	return fmt.Sprintf("some forwards timed out (returned after waiting %s)", budget)
}

// OutcomeLine renders the user-visible log line for one delivery outcome.
func OutcomeLine(o domain.DeliveryOutcome) string {
	ch, rule, msg := o.Task.Channel, o.Task.Rule, o.Task.Message

	if ch.Kind == domain.KindSMS {
		if o.Succeeded {
			return fmt.Sprintf("SMS forwarded OK → %s (rule: %s)", ch.Target, rule.Keyword)
		}
		return fmt.Sprintf("SMS forward failed → %s (rule: %s) after %d attempt(s): %s",
			ch.Target, rule.Keyword, o.Attempts, o.ErrorString())
	}

	if errors.Is(o.LastError, channel.ErrInvalidTarget) {
		return fmt.Sprintf("channel %s has invalid webhook URL: %s", ch.Label(), ch.Target)
	}
	if o.Succeeded {
		return fmt.Sprintf("forwarded OK — from: %s -> %s (rule: %s)", msg.Sender, ch.Label(), rule.Keyword)
	}
	return fmt.Sprintf("forward failed — from: %s -> %s (rule: %s) after %d attempt(s): %s",
		msg.Sender, ch.Label(), rule.Keyword, o.Attempts, o.ErrorString())
}
