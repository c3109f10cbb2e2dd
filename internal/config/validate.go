package config

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

func oneOf(issues []ValidationIssue, path, value string, valid []string) []ValidationIssue {
	if value != "" && !slices.Contains(valid, value) {
		issues = append(issues, ValidationIssue{
			Path:    path,
			Message: fmt.Sprintf("must be one of %v, got %q", valid, value),
		})
	}
	return issues
}

func positive(issues []ValidationIssue, path string, value int) []ValidationIssue {
	if value < 0 {
		issues = append(issues, ValidationIssue{
			Path:    path,
			Message: fmt.Sprintf("must not be negative, got %d", value),
		})
	}
	return issues
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}
	issues = oneOf(issues, "gateway.bind", cfg.Gateway.Bind, []string{"loopback", "lan", "custom"})
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.customBindHost",
			Message: "required when bind is custom",
		})
	}
	issues = oneOf(issues, "gateway.auth.mode", cfg.Gateway.Auth.Mode, []string{"token", "password", "none"})
	if cfg.Gateway.TLS.Enabled && (cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "") {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.tls",
			Message: "certPath and keyPath are required when TLS is enabled",
		})
	}

	f := cfg.Forwarding
	if f.MaxAttempts < 0 || f.MaxAttempts > 10 {
		issues = append(issues, ValidationIssue{
			Path:    "forwarding.maxAttempts",
			Message: fmt.Sprintf("must be 1-10, got %d", f.MaxAttempts),
		})
	}
	issues = positive(issues, "forwarding.backoffMs", f.BackoffMs)
	issues = positive(issues, "forwarding.waitBudgetMs", f.WaitBudgetMs)
	issues = positive(issues, "forwarding.webhook.connectTimeoutMs", f.Webhook.ConnectTimeoutMs)
	issues = positive(issues, "forwarding.webhook.readTimeoutMs", f.Webhook.ReadTimeoutMs)
	issues = positive(issues, "forwarding.webhook.totalTimeoutMs", f.Webhook.TotalTimeoutMs)

	if cfg.SMS.Default != nil {
		issues = validateGateway(issues, "sms.default", *cfg.SMS.Default)
	}
	sims := make([]string, 0, len(cfg.SMS.SIMs))
	for sim := range cfg.SMS.SIMs {
		sims = append(sims, sim)
	}
	sort.Strings(sims)
	for _, sim := range sims {
		issues = validateGateway(issues, "sms.sims."+sim, cfg.SMS.SIMs[sim])
	}

	issues = positive(issues, "outcomeLog.retention", cfg.OutcomeLog.Retention)
	issues = positive(issues, "outcomeLog.maxLineLength", cfg.OutcomeLog.MaxLineLength)

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	issues = oneOf(issues, "logging.level", cfg.Logging.Level, validLogLevels)
	issues = oneOf(issues, "logging.consoleStyle", cfg.Logging.ConsoleStyle, []string{"pretty", "compact", "json"})

	for event, entries := range map[string][]HookEntry{
		"hooks.messageReceived": cfg.Hooks.MessageReceived,
		"hooks.deliveryOutcome": cfg.Hooks.DeliveryOutcome,
		"hooks.dispatchDone":    cfg.Hooks.DispatchDone,
		"hooks.rulesChanged":    cfg.Hooks.RulesChanged,
		"hooks.gatewayStart":    cfg.Hooks.GatewayStart,
		"hooks.gatewayStop":     cfg.Hooks.GatewayStop,
	} {
		for i, h := range entries {
			if h.Command == "" {
				issues = append(issues, ValidationIssue{
					Path:    fmt.Sprintf("%s[%d].command", event, i),
					Message: "command is required",
				})
			}
		}
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Path < issues[j].Path
	})

	return issues
}

func validateGateway(issues []ValidationIssue, path string, gw SMSGatewayEntry) []ValidationIssue {
	u, err := url.Parse(gw.URL)
	if gw.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		issues = append(issues, ValidationIssue{
			Path:    path + ".url",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", gw.URL),
		})
	}
	return positive(issues, path+".timeoutMs", gw.TimeoutMs)
}
