package cli

import (
	"context"
	"fmt"

	"github.com/soyeahso/smsrelay/internal/channel"
	"github.com/soyeahso/smsrelay/internal/channel/sms"
	"github.com/soyeahso/smsrelay/internal/channel/webhook"
	"github.com/soyeahso/smsrelay/internal/config"
	"github.com/soyeahso/smsrelay/internal/hooks"
	"github.com/soyeahso/smsrelay/internal/logging"
	"github.com/soyeahso/smsrelay/internal/outcome"
	"github.com/soyeahso/smsrelay/internal/routing"
	"github.com/soyeahso/smsrelay/internal/store"
)

// outcomeQueueSize buffers outcome lines between delivery tasks and the store.
const outcomeQueueSize = 256

// relay is the wired forwarding engine shared by serve, inject and the
// management commands.
type relay struct {
	db       *store.DB
	rules    *store.Rules
	outcomes *outcome.Log
	queue    *outcome.Queue
	senders  *channel.Registry
	hooks    *hooks.Manager
	router   *routing.Router
	log      *logging.Logger
}

// openStore opens the database and the two stores on top of it.
func openStore(cfg config.Config, log *logging.Logger) (*relay, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}
	db, err := store.Open(paths.StorePath(cfg.Store), log)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	outcomes := outcome.NewLog(
		store.NewOutcomeLog(db, cfg.OutcomeLog.Retention),
		cfg.OutcomeLog.MaxLineLength,
		outcome.WithErrorHandler(func(err error) {
			log.Error().Err(err).Msg("writing outcome log failed")
		}),
	)
	hm := hooks.NewManager(log)
	if n := hooks.RegisterCommands(hm, cfg.Hooks); n > 0 {
		log.Info().Int("hooks", n).Msg("command hooks registered")
	}
	return &relay{
		db:       db,
		rules:    store.NewRules(db),
		outcomes: outcomes,
		hooks:    hm,
		log:      log,
	}, nil
}

// openRelay wires the full engine: store, senders, outcome queue and router.
func openRelay(cfg config.Config, log *logging.Logger) (*relay, error) {
	r, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	prefix := cfg.Forwarding.Prefix()
	connect, read, total := cfg.Forwarding.Webhook.Durations()

	r.senders = channel.NewRegistry(log)
	r.senders.Register(webhook.New(webhook.Config{
		OriginPrefix:   prefix,
		ConnectTimeout: connect,
		ReadTimeout:    read,
		TotalTimeout:   total,
	}, log))
	r.senders.Register(sms.New(prefix, smsTransports(cfg.SMS), log))

	r.queue = outcome.NewQueue(r.outcomes, outcomeQueueSize, outcome.DefaultEnqueueWait, log)
	r.router = routing.NewRouter(r.rules, r.senders, r.queue, routing.DispatchConfig{
		Budget: cfg.Forwarding.WaitBudget(),
		Retry: channel.RetryPolicy{
			MaxAttempts: cfg.Forwarding.MaxAttempts,
			Backoff:     cfg.Forwarding.Backoff(),
		},
	}, log)
	r.router.SetEnabled(cfg.Forwarding.ForwardingEnabled())
	r.router.SetHooks(r.hooks)

	for _, st := range r.senders.Status() {
		log.Debug().Str("kind", string(st.Kind)).Bool("available", st.Available).Msg("sender registered")
	}
	return r, nil
}

func smsTransports(cfg config.SMSConfig) *sms.Transports {
	var def sms.Transport
	if cfg.Default != nil {
		def = sms.NewHTTPGateway(gatewayConfig(*cfg.Default, ""))
	}
	sims := make(map[string]sms.Transport, len(cfg.SIMs))
	for sim, entry := range cfg.SIMs {
		sims[sim] = sms.NewHTTPGateway(gatewayConfig(entry, sim))
	}
	return sms.NewTransports(def, sims)
}

func gatewayConfig(e config.SMSGatewayEntry, sim string) sms.GatewayConfig {
	return sms.GatewayConfig{URL: e.URL, Token: e.Token, SIM: sim, Timeout: e.Timeout()}
}

// rulesChanged notifies hooks after a channel or rule edit.
func (r *relay) rulesChanged(cmd, id string) {
	r.hooks.Emit(context.Background(), hooks.EventRulesChanged, map[string]any{
		"command": cmd,
		"id":      id,
	})
}

// Close drains queued outcome lines before closing the store.
func (r *relay) Close() error {
	if r.queue != nil {
		r.queue.Close()
	}
	return r.db.Close()
}
