package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/smsrelay/internal/channel"
	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/soyeahso/smsrelay/internal/logging"
	"github.com/soyeahso/smsrelay/internal/outcome"
)

// DefaultWaitBudget is how long a trigger waits for its delivery tasks.
const DefaultWaitBudget = 30 * time.Second

// State is a dispatcher lifecycle stage.
type State int

const (
	StateIdle State = iota
	StateMatching
	StateDispatching
	StateAwaitingCompletion
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMatching:
		return "matching"
	case StateDispatching:
		return "dispatching"
	case StateAwaitingCompletion:
		return "awaiting_completion"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SenderResolver finds the sender for a channel. channel.Registry
// implements it.
type SenderResolver interface {
	Resolve(ch domain.Channel) (channel.Sender, error)
}

// DispatchConfig tunes one dispatch.
type DispatchConfig struct {
	Budget time.Duration
	Retry  channel.RetryPolicy
}

// DefaultDispatchConfig returns a 30s budget and the default retry policy.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{Budget: DefaultWaitBudget, Retry: channel.DefaultRetryPolicy()}
}

// DispatchResult summarizes a finished dispatch. Outcomes holds only the
// tasks that completed within the budget, in completion order.
type DispatchResult struct {
	Matched  int
	Outcomes []domain.DeliveryOutcome
	TimedOut bool
	Elapsed  time.Duration
}

// Pending returns how many tasks were still running when the wait ended.
func (r DispatchResult) Pending() int {
	return r.Matched - len(r.Outcomes)
}

// Dispatcher fans one message out to its matched channels. A Dispatcher
// handles exactly one trigger; create a new one per message.
type Dispatcher struct {
	senders   SenderResolver
	reporter  outcome.Reporter
	cfg       DispatchConfig
	onOutcome func(domain.DeliveryOutcome)
	log       *logging.Logger

	mu    sync.Mutex
	state State
}

// NewDispatcher creates a single-use dispatcher.
func NewDispatcher(senders SenderResolver, reporter outcome.Reporter, cfg DispatchConfig, log *logging.Logger) *Dispatcher {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultWaitBudget
	}
	return &Dispatcher{
		senders:  senders,
		reporter: reporter,
		cfg:      cfg,
		log:      log.Sub("dispatch"),
	}
}

// OnOutcome registers fn to observe every outcome, including those that
// arrive after the wait budget. Must be called before Run.
func (d *Dispatcher) OnOutcome(fn func(domain.DeliveryOutcome)) {
	d.onOutcome = fn
}

// State returns the current lifecycle stage.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) transition(from, to State) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != from {
		return false
	}
	d.state = to
	return true
}

// Run matches msg against the snapshot, starts one task per match and
// waits up to the budget for them. Tasks still running when the wait ends
// are not cancelled; they finish in the background and still report.
// Cancelling ctx ends the wait early in the same way.
func (d *Dispatcher) Run(ctx context.Context, msg domain.InboundMessage, channels []domain.Channel, rules []domain.Rule) DispatchResult {
	if !d.transition(StateIdle, StateMatching) {
		d.log.Warn().Str("state", d.State().String()).Msg("dispatcher reused, ignoring")
		return DispatchResult{}
	}
	start := time.Now()

	pairs := Match(msg, channels, rules)
	if len(pairs) == 0 {
		d.transition(StateMatching, StateDone)
		d.log.Debug().Str("from", msg.Sender).Msg("no rules matched")
		return DispatchResult{}
	}

	d.transition(StateMatching, StateDispatching)

	// Buffered so tasks that outlive the wait never block on send.
	results := make(chan domain.DeliveryOutcome, len(pairs))
	taskCtx := context.WithoutCancel(ctx)
	for _, p := range pairs {
		task := domain.DeliveryTask{
			ID:      uuid.New().String(),
			Channel: p.Channel,
			Rule:    p.Rule,
			Message: msg,
		}
		go d.runTask(taskCtx, task, results)
	}

	d.log.Info().
		Str("from", msg.Sender).
		Int("tasks", len(pairs)).
		Msg("dispatching")

	d.transition(StateDispatching, StateAwaitingCompletion)
	res := DispatchResult{Matched: len(pairs)}

	timer := time.NewTimer(d.cfg.Budget)
	defer timer.Stop()

wait:
	for len(res.Outcomes) < len(pairs) {
		select {
		case o := <-results:
			res.Outcomes = append(res.Outcomes, o)
		case <-timer.C:
			res.TimedOut = true
			break wait
		case <-ctx.Done():
			res.TimedOut = true
			break wait
		}
	}

	res.Elapsed = time.Since(start)
	if res.TimedOut {
		d.reporter.Append(TimeoutLine(d.cfg.Budget))
		d.log.Warn().
			Int("pending", res.Pending()).
			Dur("budget", d.cfg.Budget).
			Msg("wait budget elapsed with tasks outstanding")
	}

	d.transition(StateAwaitingCompletion, StateDone)
	d.log.Info().
		Int("completed", len(res.Outcomes)).
		Int("matched", res.Matched).
		Dur("elapsed", res.Elapsed).
		Msg("dispatch done")
	return res
}

// runTask delivers one task and reports exactly one outcome.
func (d *Dispatcher) runTask(ctx context.Context, task domain.DeliveryTask, results chan<- domain.DeliveryOutcome) {
	o := domain.DeliveryOutcome{Task: task}

	defer func() {
		if r := recover(); r != nil {
			o.Succeeded = false
			o.LastError = fmt.Errorf("delivery panicked: %v", r)
			d.log.Error().
				Str("task", task.ID).
				Str("channel", task.Channel.ID).
				Interface("panic", r).
				Msg("delivery task panicked")
		}
		d.report(o)
		results <- o
	}()

	sender, err := d.senders.Resolve(task.Channel)
	if err != nil {
		o.LastError = err
		return
	}

	res := channel.WithRetry(sender, d.cfg.Retry, d.log).Deliver(ctx, task.Channel, task.Message)
	o.Succeeded = res.Succeeded
	o.Attempts = res.Attempts
	o.LastError = res.LastError
}

func (d *Dispatcher) report(o domain.DeliveryOutcome) {
	evt := d.log.Info()
	if !o.Succeeded {
		evt = d.log.Warn().Err(o.LastError)
	}
	evt.Str("task", o.Task.ID).
		Str("channel", o.Task.Channel.ID).
		Str("kind", string(o.Task.Channel.Kind)).
		Str("rule", o.Task.Rule.ID).
		Bool("succeeded", o.Succeeded).
		Int("attempts", o.Attempts).
		Msg("delivery outcome")

	d.reporter.Append(OutcomeLine(o))
	if d.onOutcome != nil {
		d.onOutcome(o)
	}
}
