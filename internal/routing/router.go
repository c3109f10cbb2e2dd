// Package routing matches inbound short messages against keyword rules and
// dispatches them to forwarding channels.
package routing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/soyeahso/smsrelay/internal/hooks"
	"github.com/soyeahso/smsrelay/internal/logging"
	"github.com/soyeahso/smsrelay/internal/outcome"
)

// RuleSource supplies the current channels and rules. Each trigger reads
// one snapshot and never writes back.
type RuleSource interface {
	LoadChannels(ctx context.Context) ([]domain.Channel, error)
	LoadRules(ctx context.Context) ([]domain.Rule, error)
}

// Router is the trigger handler: it turns raw fragments into an inbound
// message and runs a fresh Dispatcher for it.
type Router struct {
	rules    RuleSource
	senders  SenderResolver
	reporter outcome.Reporter
	cfg      DispatchConfig
	hooks    *hooks.Manager
	enabled  atomic.Bool
	log      *logging.Logger
}

// NewRouter creates a router. Forwarding starts enabled.
func NewRouter(
	rules RuleSource,
	senders SenderResolver,
	reporter outcome.Reporter,
	cfg DispatchConfig,
	log *logging.Logger,
) *Router {
	r := &Router{
		rules:    rules,
		senders:  senders,
		reporter: reporter,
		cfg:      cfg,
		log:      log.Sub("routing"),
	}
	r.enabled.Store(true)
	return r
}

// SetHooks attaches a hook manager for message and outcome events.
func (r *Router) SetHooks(h *hooks.Manager) { r.hooks = h }

// SetEnabled switches forwarding on or off. Disabled triggers are dropped.
func (r *Router) SetEnabled(on bool) { r.enabled.Store(on) }

// Enabled reports whether forwarding is on.
func (r *Router) Enabled() bool { return r.enabled.Load() }

// HandleInbound processes one trigger made of one or more fragments from
// the same originator. It never fails; every problem degrades to a log line.
func (r *Router) HandleInbound(ctx context.Context, fragments []domain.Fragment, receivedAt time.Time) DispatchResult {
	if !r.Enabled() {
		r.log.Debug().Int("fragments", len(fragments)).Msg("forwarding disabled, ignoring message")
		return DispatchResult{}
	}

	channels, rules, ok := r.snapshot(ctx)
	if !ok {
		return DispatchResult{}
	}
	if len(channels) == 0 || len(rules) == 0 {
		r.reporter.Append(LineNoConfig)
		r.log.Info().
			Int("channels", len(channels)).
			Int("rules", len(rules)).
			Msg("nothing configured, skipped forwarding")
		return DispatchResult{}
	}

	msg := domain.BuildInbound(fragments, receivedAt)
	return r.dispatch(ctx, msg, channels, rules)
}

// Dispatch runs an already-built message against the current snapshot.
func (r *Router) Dispatch(ctx context.Context, msg domain.InboundMessage) DispatchResult {
	return r.HandleInbound(ctx, []domain.Fragment{{Sender: msg.Sender, Body: msg.Body}}, msg.ReceivedAt)
}

func (r *Router) snapshot(ctx context.Context) ([]domain.Channel, []domain.Rule, bool) {
	channels, err := r.rules.LoadChannels(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("loading channels failed")
		r.reporter.Append(fmt.Sprintf("failed to load channels: %v", err))
		return nil, nil, false
	}
	rules, err := r.rules.LoadRules(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("loading keyword rules failed")
		r.reporter.Append(fmt.Sprintf("failed to load keyword rules: %v", err))
		return nil, nil, false
	}
	return channels, rules, true
}

func (r *Router) dispatch(ctx context.Context, msg domain.InboundMessage, channels []domain.Channel, rules []domain.Rule) DispatchResult {
	r.log.Info().
		Str("from", msg.Sender).
		Int("length", len(msg.Body)).
		Time("receivedAt", msg.ReceivedAt).
		Msg("routing inbound message")

	if r.hooks != nil {
		r.hooks.Emit(ctx, hooks.EventMessageReceived, map[string]any{
			"from":       msg.Sender,
			"body":       msg.Body,
			"receivedAt": msg.ReceivedAt,
		})
	}

	d := NewDispatcher(r.senders, r.reporter, r.cfg, r.log)
	if r.hooks != nil {
		hookCtx := context.WithoutCancel(ctx)
		d.OnOutcome(func(o domain.DeliveryOutcome) {
			r.hooks.EmitAsync(hookCtx, hooks.EventDeliveryOutcome, map[string]any{
				"task":      o.Task.ID,
				"channel":   o.Task.Channel.ID,
				"kind":      string(o.Task.Channel.Kind),
				"rule":      o.Task.Rule.ID,
				"succeeded": o.Succeeded,
				"attempts":  o.Attempts,
				"error":     o.ErrorString(),
			})
		})
	}

	res := d.Run(ctx, msg, channels, rules)

	if r.hooks != nil {
		r.hooks.Emit(ctx, hooks.EventDispatchDone, map[string]any{
			"from":      msg.Sender,
			"matched":   res.Matched,
			"completed": len(res.Outcomes),
			"timedOut":  res.TimedOut,
		})
	}
	return res
}
