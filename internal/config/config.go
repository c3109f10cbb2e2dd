package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Default values.
const (
	DefaultPort             = 18790
	DefaultOriginPrefix     = "From: "
	DefaultMaxAttempts      = 2
	DefaultBackoffMs        = 1000
	DefaultWaitBudgetMs     = 30000
	DefaultConnectTimeoutMs = 10000
	DefaultReadTimeoutMs    = 20000
	DefaultTotalTimeoutMs   = 20000
	DefaultRetention        = 200
	DefaultMaxLineLength    = 2000
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// ForwardingEnabled reports whether forwarding is switched on.
func (c ForwardingConfig) ForwardingEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Prefix returns the origin line prefix.
func (c ForwardingConfig) Prefix() string {
	if c.OriginPrefix == nil {
		return DefaultOriginPrefix
	}
	return *c.OriginPrefix
}

// Backoff returns the linear retry backoff step.
func (c ForwardingConfig) Backoff() time.Duration {
	return ms(c.BackoffMs)
}

// WaitBudget returns how long a trigger waits for its deliveries.
func (c ForwardingConfig) WaitBudget() time.Duration {
	return ms(c.WaitBudgetMs)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Durations returns the webhook timeouts.
func (w WebhookConfig) Durations() (connect, read, total time.Duration) {
	return ms(w.ConnectTimeoutMs), ms(w.ReadTimeoutMs), ms(w.TotalTimeoutMs)
}

// Timeout returns the gateway request timeout, or zero for the default.
func (e SMSGatewayEntry) Timeout() time.Duration {
	return ms(e.TimeoutMs)
}
