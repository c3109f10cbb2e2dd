package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/smsrelay/internal/config"
)

// DefaultCommandTimeout bounds a command hook with no configured timeout.
const DefaultCommandTimeout = 10 * time.Second

// CommandHandler returns a Handler that runs entry.Command through sh -c
// with the JSON-encoded payload on stdin. SMSRELAY_EVENT carries the event
// name.
func CommandHandler(entry config.HookEntry) Handler {
	timeout := DefaultCommandTimeout
	if entry.Timeout > 0 {
		timeout = time.Duration(entry.Timeout) * time.Millisecond
	}
	return func(ctx context.Context, p Payload) error {
		body, err := json.Marshal(p)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", entry.Command)
		cmd.Stdin = bytes.NewReader(body)
		cmd.Env = append(cmd.Environ(), "SMSRELAY_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.WaitDelay = time.Second

		if err := cmd.Run(); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("hook command timed out after %s", timeout)
			}
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook command: %w: %s", err, msg)
			}
			return fmt.Errorf("hook command: %w", err)
		}
		return nil
	}
}

// RegisterCommands wires every configured command hook into m and returns
// how many were registered.
func RegisterCommands(m *Manager, cfg config.HooksConfig) int {
	n := 0
	for event, entries := range map[string][]config.HookEntry{
		EventMessageReceived: cfg.MessageReceived,
		EventDeliveryOutcome: cfg.DeliveryOutcome,
		EventDispatchDone:    cfg.DispatchDone,
		EventRulesChanged:    cfg.RulesChanged,
		EventGatewayStart:    cfg.GatewayStart,
		EventGatewayStop:     cfg.GatewayStop,
	} {
		for i, entry := range entries {
			if entry.Command == "" {
				continue
			}
			m.On(event, fmt.Sprintf("command:%s[%d]", event, i), CommandHandler(entry))
			n++
		}
	}
	return n
}
